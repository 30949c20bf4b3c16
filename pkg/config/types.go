package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent thinkstream configuration stored as
// config.toml in the .thinkstream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Proxy       ProxyConfig       `toml:"proxy"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	CarePlan    CarePlanConfig    `toml:"careplan"`
	Chatbot     ChatbotConfig     `toml:"chatbot"`
	Lead        LeadConfig        `toml:"lead"`
	Session     SessionConfig     `toml:"session"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	EventStream EventStreamConfig `toml:"event_stream"`
}

// StorageConfig selects where generations and leads are persisted. Postgres
// wins over SQLite when both are set; neither keeps records in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ProxyConfig holds reasoning proxy settings.
type ProxyConfig struct {
	Listen         string `toml:"listen,omitempty"`
	DefaultBackend string `toml:"default_backend,omitempty"`

	// Upstream overrides the base URL of the default backend.
	Upstream string `toml:"upstream,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// proxy and API servers (e.g. thinkstream chat, thinkstream careplan).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// CarePlanConfig holds care plan generation settings.
type CarePlanConfig struct {
	Backend string `toml:"backend,omitempty"`
	Model   string `toml:"model,omitempty"`
	Mode    string `toml:"mode,omitempty"`

	// Upstream overrides the backend base URL.
	Upstream string `toml:"upstream,omitempty"`
}

// ChatbotConfig holds sales chatbot settings. The chatbot talks to any
// OpenAI-compatible endpoint.
type ChatbotConfig struct {
	Target string `toml:"target,omitempty"`
	Model  string `toml:"model,omitempty"`

	// Credential names the credentials.toml entry holding the API key.
	Credential string `toml:"credential,omitempty"`
}

// LeadConfig holds lead webhook targets.
type LeadConfig struct {
	ZapierWebhook  string `toml:"zapier_webhook,omitempty"`
	HubSpotWebhook string `toml:"hubspot_webhook,omitempty"`
}

// SessionConfig selects the care plan stream session registry.
type SessionConfig struct {
	Provider  string `toml:"provider,omitempty"`
	RedisAddr string `toml:"redis_addr,omitempty"`
	TTL       string `toml:"ttl,omitempty"`
}

// TTLDuration parses TTL. An empty or invalid value returns zero, which
// selects the registry default.
func (s SessionConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(s.TTL)
	if err != nil {
		return 0
	}
	return d
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// EventStreamConfig selects where generation events are published.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"proxy.listen":          stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.default_backend": stringKey(func(c *Config) *string { return &c.Proxy.DefaultBackend }),
	"proxy.upstream":        stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.proxy_target": stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.api_target":   stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"careplan.backend":  stringKey(func(c *Config) *string { return &c.CarePlan.Backend }),
	"careplan.model":    stringKey(func(c *Config) *string { return &c.CarePlan.Model }),
	"careplan.upstream": stringKey(func(c *Config) *string { return &c.CarePlan.Upstream }),
	"careplan.mode": {
		get: func(c *Config) string { return c.CarePlan.Mode },
		set: func(c *Config, v string) error {
			if v != "staged" && v != "single" {
				return fmt.Errorf("invalid value for careplan.mode: %q (expected staged or single)", v)
			}
			c.CarePlan.Mode = v
			return nil
		},
	},

	"chatbot.target":     stringKey(func(c *Config) *string { return &c.Chatbot.Target }),
	"chatbot.model":      stringKey(func(c *Config) *string { return &c.Chatbot.Model }),
	"chatbot.credential": stringKey(func(c *Config) *string { return &c.Chatbot.Credential }),

	"lead.zapier_webhook":  stringKey(func(c *Config) *string { return &c.Lead.ZapierWebhook }),
	"lead.hubspot_webhook": stringKey(func(c *Config) *string { return &c.Lead.HubSpotWebhook }),

	"session.provider":   stringKey(func(c *Config) *string { return &c.Session.Provider }),
	"session.redis_addr": stringKey(func(c *Config) *string { return &c.Session.RedisAddr }),
	"session.ttl": {
		get: func(c *Config) string { return c.Session.TTL },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for session.ttl: %w", err)
			}
			c.Session.TTL = v
			return nil
		},
	},

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},

	"event_stream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"event_stream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"event_stream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}
