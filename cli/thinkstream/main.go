package main

import (
	"os"

	thinkstreamcmder "github.com/papercomputeco/thinkstream/cmd/thinkstream"
)

func main() {
	cmd := thinkstreamcmder.NewThinkstreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
