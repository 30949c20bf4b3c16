// Package thinkstreamcmder is the root thinkstream command.
package thinkstreamcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/auth"
	careplancmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/careplan"
	chatcmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/chat"
	configcmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/config"
	generationscmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/generations"
	initcmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/init"
	servecmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/serve"
	statuscmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/status"
	versioncmder "github.com/papercomputeco/thinkstream/cmd/version"
)

const thinkstreamLongDesc string = `thinkstream streams the reasoning of LLM backends while they work
and delivers their validated final answer.

Run services using:
  thinkstream serve api      Run the API server
  thinkstream serve proxy    Run the reasoning proxy
  thinkstream serve          Run both servers together

Talk to running services using:
  thinkstream careplan       Generate a care plan and watch its reasoning
  thinkstream chat           Chat through the reasoning proxy
  thinkstream generations    Browse recorded generations`

const thinkstreamShortDesc string = "thinkstream - reasoning streams for LLM backends"

func NewThinkstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "thinkstream",
		Short:        thinkstreamShortDesc,
		Long:         thinkstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .thinkstream/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(careplancmder.NewCarePlanCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(generationscmder.NewGenerationsCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
