// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/api"
	apicmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/api"
	proxycmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/proxy"
	"github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/services"
	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/proxy"
)

type ServeCommander struct {
	cfg    *config.Config
	keys   services.KeyResolver
	logger *slog.Logger
}

const serveLongDesc string = `Run thinkstream services.

Use subcommands to run individual services or all services together:
  thinkstream serve          Run both proxy and API server together
  thinkstream serve api      Run just the API server
  thinkstream serve proxy    Run just the proxy server

Both servers share one storage backend, worker pool and event stream.`

const serveShortDesc string = "Run thinkstream services"

var serveFlags = append(append(append([]string{
	config.FlagProxyListen,
	config.FlagAPIListen,
}, services.StorageFlags...), services.ProxyFlags...), services.APIFlags...)

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := services.LoadConfig(cmd, serveFlags...)
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
			log, err := services.Logger(cmd, "serve")
			if err != nil {
				return err
			}
			cmder.logger = log
			return cmder.run(cmd.Context())
		},
	}

	services.AddFlags(cmd, serveFlags...)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := services.New(ctx, c.cfg, c.keys, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := proxy.New(svc.ProxyConfig(""), svc.Recorder, c.logger.With("component", "proxy"))
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	deps, err := svc.APIDependencies(ctx)
	if err != nil {
		return err
	}
	apiServer, err := api.NewServer(svc.APIConfig(""), deps, c.logger.With("component", "api"))
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
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
