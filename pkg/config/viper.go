package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/thinkstream/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the THINKSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (THINKSTREAM_PROXY_LISTEN, THINKSTREAM_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: THINKSTREAM_PROXY_LISTEN, THINKSTREAM_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("THINKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every registry key gets a default so that
// AutomaticEnv can resolve it.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for key, info := range configKeys {
		if key == "embedding.dimensions" {
			v.SetDefault(key, d.Embedding.Dimensions)
			continue
		}
		v.SetDefault(key, info.get(d))
	}
}

// FromViper builds a Config from the resolved values in v.
func FromViper(v *viper.Viper) *Config {
	c := &Config{Version: v.GetInt("version")}
	for key, info := range configKeys {
		if key == "embedding.dimensions" {
			c.Embedding.Dimensions = v.GetUint(key)
			continue
		}
		if val := v.GetString(key); val != "" {
			// Setters only reject values the registry can not represent;
			// such values keep their zero value.
			_ = info.set(c, val)
		}
	}
	return c
}
