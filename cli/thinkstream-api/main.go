package main

import (
	"os"

	apicmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "thinkstream-api"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .thinkstream/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
