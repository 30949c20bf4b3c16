// Package careplancmder provides the careplan command, which streams a care
// plan from a running thinkstream API server and renders it in the terminal.
package careplancmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

type carePlanCommander struct {
	apiTarget   string
	file        string
	mode        string
	environment string
	focus       []string
	output      string
	jsonOut     bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	client *http.Client
	logger *slog.Logger
}

const carePlanLongDesc string = `Generate a care plan through a running thinkstream API server.

Reads the patient context from --file (use "-" for stdin). The file is either
a complete request ({"patient_form_data": ..., "care_environment": ...,
"focus_areas": [...]}) or the patient form data on its own.

The model's reasoning is streamed to the terminal as it arrives. When the
plan is complete and valid, a summary is rendered. Use --output to save the
plan JSON, or --json to print it instead of the summary.

Examples:
  thinkstream careplan --file patient.json
  thinkstream careplan --file patient.json --mode single --output plan.json
  cat patient.json | thinkstream careplan --file - --json`

const carePlanShortDesc string = "Stream a care plan from the API server"

func NewCarePlanCmd() *cobra.Command {
	cmder := &carePlanCommander{}

	cmd := &cobra.Command{
		Use:   "careplan",
		Short: carePlanShortDesc,
		Long:  carePlanLongDesc,
		Args:  cobra.NoArgs,
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(logger.ForCLI(), logger.WithDebug(debug), logger.WithComponent("careplan"))
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Thinkstream API server URL")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", `Patient context JSON file ("-" for stdin)`)
	cmd.Flags().StringVar(&cmder.mode, "mode", "", "Generation mode (staged, single). Default: the server's mode")
	cmd.Flags().StringVar(&cmder.environment, "environment", "", "Care environment, overriding the file")
	cmd.Flags().StringSliceVar(&cmder.focus, "focus", nil, "Focus areas, overriding the file")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the care plan JSON to this file")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the care plan JSON instead of the summary")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (c *carePlanCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	switch c.mode {
	case "", careplan.ModeStaged, careplan.ModeSingle:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.mode, careplan.ModeStaged, careplan.ModeSingle)
	}

	req, err := c.loadRequest()
	if err != nil {
		return err
	}

	plan, err := c.generate(ctx, req)
	if err != nil {
		return err
	}

	if c.output != "" {
		if err := os.WriteFile(c.output, indent(plan), 0o644); err != nil {
			return fmt.Errorf("writing care plan: %w", err)
		}
		fmt.Fprintf(c.errOut, "  %s Care plan written to %s\n", cliui.SuccessMark, c.output)
	}

	if c.jsonOut {
		_, err := fmt.Fprintln(c.out, string(indent(plan)))
		return err
	}

	decoded, err := careplan.Decode(plan)
	if err != nil {
		return fmt.Errorf("decoding care plan: %w", err)
	}
	rendered, err := cliui.RenderMarkdown(Summary(decoded))
	if err != nil {
		c.logger.Debug("markdown rendering failed", "error", err)
	}
	fmt.Fprint(c.out, rendered)
	return nil
}

// loadRequest reads the patient context and applies flag overrides.
func (c *carePlanCommander) loadRequest() (*careplan.Request, error) {
	var (
		data []byte
		err  error
	)
	if c.file == "-" {
		data, err = io.ReadAll(c.in)
	} else {
		data, err = os.ReadFile(c.file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading patient context: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing patient context: %w", err)
	}

	req := &careplan.Request{}
	if _, ok := fields["patient_form_data"]; ok {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("parsing patient context: %w", err)
		}
	} else {
		req.PatientFormData = json.RawMessage(bytes.TrimSpace(data))
	}

	if c.environment != "" {
		req.CareEnvironment = c.environment
	}
	if len(c.focus) > 0 {
		req.FocusAreas = c.focus
	}
	if c.mode != "" {
		req.Mode = c.mode
	}
	return req, nil
}

// generate streams one care plan and returns its JSON. Reasoning is printed
// as it arrives.
func (c *carePlanCommander) generate(ctx context.Context, req *careplan.Request) (json.RawMessage, error) {
	base := strings.TrimSuffix(c.apiTarget, "/")
	transport := &stream.HTTPTransport{
		Client:    c.client,
		SetupURL:  base + "/api/careplan/initiate-stream",
		StreamURL: base + "/api/careplan/stream",
		Body:      req,
	}

	var final json.RawMessage
	thinking := cliui.NewReasoningPrinter(c.out)
	decoder := &careplan.EventDecoder{
		OnEvent: func(ev careplan.Event) {
			switch ev.Type {
			case careplan.EventError:
				if ev.StageName != "" {
					fmt.Fprintf(c.errOut, "\n  %s stage %s: %s\n", cliui.FailMark, ev.StageName, ev.Content)
				}
			case careplan.EventPlanComplete:
				final = ev.CarePlan
			case careplan.EventFinalJSON:
				final = ev.JSONData
			}
		},
	}

	ctrl := stream.New(transport, stream.Options{
		Decoder:  decoder,
		Strategy: reasoning.NewThinkTag(),
		Validator: func(p json.RawMessage) error {
			_, err := careplan.Normalize(p)
			return err
		},
		Timeout: careplan.DefaultStageTimeout,
		Logger:  c.logger,
		Callbacks: stream.Callbacks{
			OnReasoning: thinking.Update,
		},
	})

	payload, err := ctrl.Run(ctx)
	if thinking.Printed() != "" {
		fmt.Fprint(c.out, "\n\n")
	}
	if err != nil {
		var verr *stream.VendorError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("care plan generation failed: %s", verr.Message)
		}
		return nil, fmt.Errorf("care plan generation failed: %w", err)
	}

	if len(final) > 0 {
		payload = final
	}
	return careplan.Normalize(payload)
}

func indent(raw json.RawMessage) []byte {
	var b bytes.Buffer
	if err := json.Indent(&b, raw, "", "  "); err != nil {
		return raw
	}
	return b.Bytes()
}
