// Package apicmder provides the thinkstream API server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/api"
	"github.com/papercomputeco/thinkstream/cmd/thinkstream/serve/services"
	"github.com/papercomputeco/thinkstream/pkg/config"
)

type apiCommander struct {
	cfg    *config.Config
	keys   services.KeyResolver
	logger *slog.Logger
}

const apiLongDesc string = `Run the thinkstream API server.

Serves care plan generation over server-sent events, the sales chatbot,
lead capture and the history of recorded generations.`

const apiShortDesc string = "Run the thinkstream API server"

var apiFlags = append(append([]string{
	config.FlagAPIListenStandalone,
}, services.StorageFlags...), services.APIFlags...)

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := services.LoadConfig(cmd, apiFlags...)
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
			log, err := services.Logger(cmd, "api")
			if err != nil {
				return err
			}
			cmder.logger = log
			return cmder.run(cmd.Context())
		},
	}

	services.AddFlags(cmd, apiFlags...)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := services.New(ctx, c.cfg, c.keys, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	deps, err := svc.APIDependencies(ctx)
	if err != nil {
		return err
	}

	server, err := api.NewServer(svc.APIConfig(""), deps, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer server.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
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
