// Package proxycmder provides the thinkstream reasoning proxy cobra command.
package proxycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/services"
	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/proxy"
)

type proxyCommander struct {
	cfg    *config.Config
	keys   services.KeyResolver
	logger *slog.Logger
}

const proxyLongDesc string = `Run the thinkstream reasoning proxy.

The proxy relays OpenAI-compatible chat completions to Perplexity, Grok or
OpenAI unchanged, injects backend defaults and API keys, and records the
reasoning and final answer of every exchange.

Backends are chosen by path (/grok/v1/chat/completions), by the
X-Thinkstream-Backend header, or by the requested model.`

const proxyShortDesc string = "Run the thinkstream reasoning proxy"

var proxyFlags = append(append([]string{
	config.FlagProxyListenStandalone,
}, services.StorageFlags...), services.ProxyFlags...)

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := services.LoadConfig(cmd, proxyFlags...)
			if err != nil {
				return err
			}
			keys, err := services.Keys(cmd)
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			cmder.keys = keys
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := services.Logger(cmd, "proxy")
			if err != nil {
				return err
			}
			cmder.logger = log
			return cmder.run(cmd.Context())
		},
	}

	services.AddFlags(cmd, proxyFlags...)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := services.New(ctx, c.cfg, c.keys, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := proxy.New(svc.ProxyConfig(""), svc.Recorder, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	}
}
