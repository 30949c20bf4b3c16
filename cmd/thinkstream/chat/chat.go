// Package chatcmder provides the chat command for interactive chat with a
// reasoning backend through the thinkstream proxy.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/pkg/dotdir"
	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

// defaultBackendLabel names the conversation when no --backend is given and
// the proxy picks the backend from the model.
const defaultBackendLabel = "default"

type chatCommander struct {
	proxyTarget string
	backend     string
	model       string
	reset       bool
	configDir   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	client *http.Client
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session through the thinkstream proxy.

The chat command sends messages to a reasoning backend through the configured
thinkstream proxy, which records every exchange. Reasoning emitted inside
<think></think> tags is shown faintly as it streams, followed by the answer.

The conversation is kept in .thinkstream/chat_history.json and resumes on the
next "thinkstream chat" with the same backend. Use --reset to start over.

Examples:
  thinkstream chat
  thinkstream chat --backend grok
  thinkstream chat --model sonar-reasoning-pro --proxy-target http://localhost:8080
  thinkstream chat --reset`

const chatShortDesc string = "Interactive chat through the thinkstream proxy"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("proxy-target") {
				cmder.proxyTarget = cfg.Client.ProxyTarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			cmder.logger = logger.New(logger.ForCLI(), logger.WithDebug(debug), logger.WithComponent("chat"))
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.proxyTarget, "proxy-target", "p", defaults.Client.ProxyTarget, "Thinkstream proxy URL")
	cmd.Flags().StringVarP(&cmder.backend, "backend", "b", "", "Backend to chat with (perplexity, grok, openai). Default: detected from the model")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name. Default: the backend's default model")
	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Discard the saved conversation and start a new one")

	return cmd
}

func (c *chatCommander) label() string {
	if c.backend == "" {
		return defaultBackendLabel
	}
	return strings.ToLower(c.backend)
}

func (c *chatCommander) completionsURL() string {
	base := strings.TrimSuffix(c.proxyTarget, "/")
	if c.backend == "" {
		return base + "/v1/chat/completions"
	}
	return base + "/" + strings.ToLower(c.backend) + "/v1/chat/completions"
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 5 * time.Minute}
	}

	manager := dotdir.NewManager()
	if c.reset {
		if err := manager.ClearChatHistory(c.configDir); err != nil {
			return fmt.Errorf("clearing chat history: %w", err)
		}
	}

	history, err := manager.LoadChatHistory(c.configDir)
	if err != nil {
		return fmt.Errorf("loading chat history: %w", err)
	}

	fmt.Fprintln(c.out)
	if history != nil && history.Backend == c.label() && len(history.Messages) > 0 {
		fmt.Fprintf(c.out, "  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(history.Messages))),
		)
	} else {
		history = &dotdir.ChatHistory{Backend: c.label()}
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Backend:"), cliui.NameStyle.Render(c.label()))
	if c.model != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Model:  "), cliui.NameStyle.Render(c.model))
	}
	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		history.Messages = append(history.Messages, dotdir.ChatMessage{Role: "user", Content: input})

		answer, err := c.sendAndStream(ctx, history.Messages)
		if err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			// Drop the failed turn so it can be retried.
			history.Messages = history.Messages[:len(history.Messages)-1]
			continue
		}

		history.Messages = append(history.Messages, dotdir.ChatMessage{Role: "assistant", Content: answer})
		if err := manager.SaveChatHistory(history, c.configDir); err != nil {
			c.logger.Warn("failed to save chat history", "error", err)
		}

		fmt.Fprint(c.out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// sendAndStream posts the conversation to the proxy and prints the streamed
// reply. It returns the answer with the reasoning block removed.
func (c *chatCommander) sendAndStream(ctx context.Context, history []dotdir.ChatMessage) (string, error) {
	streaming := true
	req := &llm.ChatRequest{
		Model:    c.model,
		Messages: make([]llm.Message, 0, len(history)),
		Stream:   &streaming,
	}
	for _, m := range history {
		req.Messages = append(req.Messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	c.logger.Debug("sending chat request",
		"url", c.completionsURL(),
		"model", c.model,
		"message_count", len(req.Messages),
	)

	transport := &stream.RequestTransport{
		Client: c.client,
		URL:    c.completionsURL(),
		Body:   req,
	}
	conn, err := transport.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	fmt.Fprint(c.out, assistantPrompt)

	var (
		decoder  = stream.ChatCompletion{}
		acc      reasoning.Accumulator
		thinking = cliui.NewReasoningPrinter(c.out)
		printed  string
		started  bool
	)

	render := func() {
		text := acc.String()
		if r := reasoning.ThinkTags.Extract(text); r != "" {
			thinking.Update(r)
		}
		if strings.Contains(text, reasoning.ThinkTags.Start) && !reasoning.ThinkTags.Closed(text) {
			return
		}

		answer := strings.TrimLeft(reasoning.ThinkTags.Strip(text), " \t\r\n")
		if answer == "" {
			return
		}
		if !started {
			if thinking.Printed() != "" {
				fmt.Fprint(c.out, "\n\n")
			}
			started = true
		}

		delta, ok := strings.CutPrefix(answer, printed)
		if !ok {
			delta = answer
		}
		fmt.Fprint(c.out, delta)
		printed = answer
	}

	for {
		ev, err := conn.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		if ev.Raw != "" && !(ev.Terminal && ev.Raw == "[DONE]") {
			delta, err := decoder.Decode(ev.Raw)
			if err != nil {
				var verr *stream.VendorError
				if errors.As(err, &verr) {
					return "", err
				}
				c.logger.Debug("skipping undecodable chunk", "error", err)
			} else if delta != "" {
				acc.Append(delta)
				render()
			}
		}

		if ev.Terminal {
			break
		}
	}

	return strings.TrimSpace(reasoning.ThinkTags.Strip(acc.String())), nil
}
