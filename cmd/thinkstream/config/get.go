package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from config.toml, falling back to the
built-in default. With --raw only the value is printed, which suits
scripts such as:

  curl -X POST "$(thinkstream config get lead.zapier_webhook --raw --reveal)"

Webhook URLs and the postgres DSN are redacted unless --reveal is given.

Examples:
  thinkstream config get careplan.mode
  thinkstream config get session.provider --raw
  thinkstream config get lead.hubspot_webhook --reveal`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var raw, reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cmd.OutOrStdout(), args[0], configDir, raw, reveal)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the value")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show credentials embedded in webhook URLs and DSNs")

	return cmd
}

func runGet(w io.Writer, key, configDir string, raw, reveal bool) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if raw {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if !reveal {
			value = config.RedactValue(key, value)
		}
		fmt.Fprintln(w, value)
		return nil
	}

	writeSource(w, cfger.GetTarget())
	line, err := describeKey(cfger, key, reveal)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s\n", cliui.KeyStyle.Render(key), line)
	return nil
}
