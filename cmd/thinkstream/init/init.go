// Package initcmder provides the init command for initializing a local
// .thinkstream directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/cliui"
	"github.com/papercomputeco/thinkstream/pkg/config"
)

const (
	dirName = ".thinkstream"

	remoteConfigLimit = 1 << 20
)

const initLongDesc string = `Initialize a new .thinkstream/ directory in the current working directory.

Creates a local .thinkstream/ directory that takes precedence over the default
~/.thinkstream/ directory for configuration, credentials, chat history and
other thinkstream state, and writes a config.toml.

Use --preset to start from a backend preset (perplexity, grok, openai,
ollama) or from a config.toml served at an http(s) URL. A preset replaces
any existing config.toml.

Examples:
  thinkstream init
  thinkstream init --preset grok
  thinkstream init --preset https://example.com/thinkstream/config.toml`

const initShortDesc string = "Initialize a local .thinkstream/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, preset string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, statErr := os.Stat(dir)
	existed := statErr == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .thinkstream directory: %w", err)
		}
	}

	cfg, err := resolvePreset(ctx, preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	configPath := filepath.Join(dir, "config.toml")
	if cfg == nil {
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Already initialized: %s\n", dir)
			return nil
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	if existed {
		fmt.Printf("  %s Updated %s\n", cliui.SuccessMark, cliui.DimStyle.Render(configPath))
	} else {
		fmt.Printf("  %s Initialized .thinkstream directory: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	}
	return nil
}

// resolvePreset returns the config named by preset, or nil for no preset.
func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	switch {
	case preset == "":
		return nil, nil
	case strings.HasPrefix(preset, "http://"), strings.HasPrefix(preset, "https://"):
		return fetchRemoteConfig(ctx, preset)
	default:
		return config.PresetConfig(preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, remoteConfigLimit+1))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	if len(data) > remoteConfigLimit {
		return nil, errors.New("fetching remote config: response too large")
	}

	return config.ParseConfigTOML(data)
}
