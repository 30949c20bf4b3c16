// Package authcmder provides the auth command for storing API credentials.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/credentials"
)

const authLongDesc string = `Store API credentials for LLM backends.

Credentials are stored in credentials.toml in the .thinkstream/ directory.
The proxy injects them into upstream requests, and the API server uses them
for care plan generation, the chatbot and knowledge base embeddings. An
environment variable for a provider always wins over the stored key.

Supported providers: perplexity, grok, openai, gemini

Examples:
  thinkstream auth perplexity            Prompt for a Perplexity API key
  thinkstream auth grok                  Prompt for an xAI API key
  thinkstream auth --list                List stored credentials
  thinkstream auth --remove openai       Remove stored OpenAI credentials
  echo $KEY | thinkstream auth gemini    Pipe API key from stdin`

const authShortDesc string = "Store API credentials for LLM providers"

// usedBy names the serve features that read each provider's key.
var usedBy = map[string]string{
	"perplexity": "care plans, proxy",
	"grok":       "care plans, proxy",
	"openai":     "care plans, proxy, knowledge base embeddings",
	"gemini":     "chatbot",
}

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, configDir)
			default:
				if len(args) == 0 {
					return fmt.Errorf("provider argument required\n\nSupported providers: %s",
						strings.Join(credentials.SupportedProviders(), ", "))
				}
				return runAuth(out, cmd.InOrStdin(), args[0], configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored credentials")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove stored credentials for a provider")

	return cmd
}

func normalizeProvider(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !credentials.IsSupportedProvider(provider) {
		return "", fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}
	return provider, nil
}

func runAuth(w io.Writer, r io.Reader, provider, configDir string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}

	apiKey, err := readAPIKey(w, r, provider)
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(provider, apiKey); err != nil {
		return err
	}

	envVar := credentials.EnvVarForProvider(provider)
	fmt.Fprintf(w, "\n  %s Stored %s credentials %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(provider),
		cliui.DimStyle.Render("(used by "+usedBy[provider]+")"),
	)
	if os.Getenv(envVar) != "" {
		fmt.Fprintf(w, "  %s is set and takes precedence over the stored key.\n", envVar)
	}

	fmt.Fprintln(w)
	return nil
}

func runList(w io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	providers, err := mgr.ListProviders()
	if err != nil {
		return err
	}

	if len(providers) == 0 {
		fmt.Fprintf(w, "\n  %s No stored credentials.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(w, "  Use 'thinkstream auth <provider>' to store credentials.\n")
		fmt.Fprintf(w, "  Supported providers: %s\n\n", strings.Join(credentials.SupportedProviders(), ", "))
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored credentials"))
	for _, p := range providers {
		note := usedBy[p]
		if env := credentials.EnvVarForProvider(p); env != "" && os.Getenv(env) != "" {
			note += ", overridden by $" + env
		}
		fmt.Fprintf(w, "  %s  %-10s  %s\n",
			cliui.SuccessMark,
			p,
			cliui.DimStyle.Render(note),
		)
	}
	fmt.Fprintln(w)

	return nil
}

func runRemove(w io.Writer, provider, configDir string) error {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return err
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(provider); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Removed %s credentials.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(provider))

	return nil
}

// readAPIKey reads an API key from r. A terminal gets a hidden prompt; any
// other reader, such as a pipe, supplies the key on its first line.
func readAPIKey(w io.Writer, r io.Reader, provider string) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(w, "Enter API key for %s (%s): ", provider, credentials.EnvVarForProvider(provider))

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
