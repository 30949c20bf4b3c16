package configcmder

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
)

const listLongDesc string = `List configuration values grouped by section.

Values set in config.toml are shown as is; values that fall back to the
built-in defaults are marked "(default)". Webhook URLs and the postgres DSN
are redacted unless --reveal is given. Pass a section name to list only
that section.

Examples:
  thinkstream config list
  thinkstream config list careplan
  thinkstream config list lead --reveal`

const listShortDesc string = "List configuration values"

func newListCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:       "list [section]",
		Short:     listShortDesc,
		Long:      listLongDesc,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.Sections(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			section := ""
			if len(args) == 1 {
				section = args[0]
			}
			return runList(cmd.OutOrStdout(), configDir, section, reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show credentials embedded in webhook URLs and DSNs")

	return cmd
}

func runList(w io.Writer, configDir, section string, reveal bool) error {
	if section != "" && !slices.Contains(config.Sections(), section) {
		return fmt.Errorf("unknown config section: %q (valid: %v)", section, config.Sections())
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	writeSource(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	current := ""
	for _, key := range keys {
		s := config.KeySection(key)
		if section != "" && s != section {
			continue
		}
		if s != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%s]\n", s)
			current = s
		}

		line, err := describeKey(cfger, key, reveal)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, key, line)
	}

	return nil
}

// describeKey renders the value of key with its origin.
func describeKey(cfger *config.Configer, key string, reveal bool) (string, error) {
	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return "", err
	}
	def, err := config.DefaultConfigValue(key)
	if err != nil {
		return "", err
	}

	if !reveal {
		value = config.RedactValue(key, value)
	}

	switch {
	case value == "":
		return cliui.DimStyle.Render("<not set>"), nil
	case value == def:
		return fmt.Sprintf("%s %s", cliui.ValueStyle.Render(value), cliui.DimStyle.Render("(default)")), nil
	default:
		return cliui.ValueStyle.Render(value), nil
	}
}

func writeSource(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "%s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(target))
		return
	}
	fmt.Fprintf(w, "%s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
