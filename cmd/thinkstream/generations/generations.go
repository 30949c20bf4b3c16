// Package generationscmder provides the generations command for browsing the
// generations recorded by the proxy and the care plan service.
package generationscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/api"
	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/storage"
)

var (
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type generationsCommander struct {
	kind      string
	limit     int
	quiet     bool
	apiTarget string

	out    io.Writer
	client *http.Client
}

const generationsLongDesc string = `List generations recorded by the thinkstream API.

Every care plan and every chat completion relayed by the proxy is recorded
with its backend, status, extracted reasoning and parsed payload. Without an
argument the most recent generations are listed, newest first. With an id the
full record is shown, including the reasoning rendered as markdown.

Use --quiet to output only generation ids, one per line.

Examples:
  thinkstream generations
  thinkstream generations --kind careplan --limit 5
  thinkstream generations 6f1c2d7e-...`

const generationsShortDesc string = "List recorded generations"

func NewGenerationsCmd() *cobra.Command {
	cmder := &generationsCommander{}

	cmd := &cobra.Command{
		Use:   "generations [id]",
		Short: generationsShortDesc,
		Long:  generationsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			if len(args) == 1 {
				return cmder.show(cmd.Context(), args[0])
			}
			return cmder.list(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.kind, "kind", "", "Only list generations of this kind (careplan, chat)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of generations to list")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only generation ids, one per line")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Thinkstream API server URL")

	return cmd
}

func (c *generationsCommander) list(ctx context.Context) error {
	if c.limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", c.limit)
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	if c.kind != "" {
		q.Set("kind", c.kind)
	}

	var list api.GenerationList
	if err := c.get(ctx, "/api/generations", q, &list); err != nil {
		return err
	}

	if c.quiet {
		for _, g := range list.Generations {
			fmt.Fprintln(c.out, g.ID)
		}
		return nil
	}

	if list.Count == 0 {
		fmt.Fprintln(c.out, "No generations recorded.")
		return nil
	}

	fmt.Fprintln(c.out)
	for _, g := range list.Generations {
		fmt.Fprintf(c.out, "  %s  %s  %s  %s  %s\n",
			idStyle.Render(shortID(g.ID)),
			kindStyle.Render(fmt.Sprintf("%-8s", g.Kind)),
			fmt.Sprintf("%-10s", g.Backend),
			statusStyle(g.Status).Render(fmt.Sprintf("%-7s", g.Status)),
			previewStyle.Render(fmt.Sprintf("%s  %s", g.StartedAt.Local().Format(time.DateTime), cliui.FormatDuration(g.Duration()))),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *generationsCommander) show(ctx context.Context, id string) error {
	var g storage.Generation
	if err := c.get(ctx, "/api/generations/"+url.PathEscape(id), nil, &g); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s  %s\n", cliui.KeyStyle.Render("ID:      "), idStyle.Render(g.ID))
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Kind:    "), g.Kind)
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Backend: "), g.Backend)
	if g.Model != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Model:   "), g.Model)
	}
	if g.Mode != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Mode:    "), g.Mode)
	}
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Status:  "), statusStyle(g.Status).Render(g.Status))
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Duration:"), cliui.FormatDuration(g.Duration()))
	if g.PromptTokens > 0 || g.CompletionTokens > 0 {
		fmt.Fprintf(c.out, "  %s  %d prompt, %d completion\n", cliui.KeyStyle.Render("Tokens:  "), g.PromptTokens, g.CompletionTokens)
	}
	if g.Error != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Error:   "), failedStyle.Render(g.Error))
	}

	if g.Reasoning != "" {
		rendered, err := cliui.RenderMarkdown(reasoning.Markdown(g.Reasoning))
		if err != nil {
			rendered = g.Reasoning + "\n"
		}
		fmt.Fprintf(c.out, "\n%s", rendered)
	}

	if len(g.Payload) > 0 {
		var b bytes.Buffer
		if err := json.Indent(&b, g.Payload, "", "  "); err != nil {
			b.Reset()
			b.Write(g.Payload)
		}
		fmt.Fprintf(c.out, "\n%s\n", b.String())
	}

	fmt.Fprintln(c.out)
	return nil
}

// get fetches path from the API and decodes the JSON body into v.
func (c *generationsCommander) get(ctx context.Context, path string, q url.Values, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := url.Parse(strings.TrimSuffix(c.apiTarget, "/") + path)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	if q != nil {
		target.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := c.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to thinkstream API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusStyle(status string) lipgloss.Style {
	if status == storage.StatusCompleted {
		return okStyle
	}
	return failedStyle
}
