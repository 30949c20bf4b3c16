package services

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/thinkstream/pkg/config"
	"github.com/papercomputeco/thinkstream/pkg/credentials"
	"github.com/papercomputeco/thinkstream/pkg/logger"
)

// Flags is the registry of flags shared by the serve commands.
var Flags = config.FlagSet{
	config.FlagProxyListen:           {Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen", Description: "Address for proxy to listen on"},
	config.FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagProxyListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for proxy to listen on"},
	config.FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagBackend:               {Name: "backend", Shorthand: "b", ViperKey: "proxy.default_backend", Description: "Backend for requests the proxy cannot attribute (perplexity, grok, openai)"},
	config.FlagUpstream:              {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Override the base URL of the default backend"},
	config.FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	config.FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string (takes precedence over --sqlite)"},
	config.FlagCarePlanBackend:       {Name: "careplan-backend", ViperKey: "careplan.backend", Description: "Backend generating care plans"},
	config.FlagCarePlanModel:         {Name: "careplan-model", ViperKey: "careplan.model", Description: "Model generating care plans (default: the backend's default)"},
	config.FlagCarePlanMode:          {Name: "careplan-mode", ViperKey: "careplan.mode", Description: "Care plan mode for requests that name none (staged, single)"},
	config.FlagChatbotTarget:         {Name: "chatbot-target", ViperKey: "chatbot.target", Description: "OpenAI-compatible base URL for the chatbot"},
	config.FlagChatbotModel:          {Name: "chatbot-model", ViperKey: "chatbot.model", Description: "Chatbot model"},
	config.FlagZapierWebhook:         {Name: "zapier-webhook", ViperKey: "lead.zapier_webhook", Description: "Zapier webhook receiving captured leads"},
	config.FlagHubSpotWebhook:        {Name: "hubspot-webhook", ViperKey: "lead.hubspot_webhook", Description: "HubSpot webhook receiving captured leads"},
	config.FlagSessionProvider:       {Name: "session-provider", ViperKey: "session.provider", Description: "Care plan stream session store (memory, redis)"},
	config.FlagRedisAddr:             {Name: "redis-addr", ViperKey: "session.redis_addr", Description: "Redis address for the redis session store"},
	config.FlagVectorStoreProv:       {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store for the chatbot knowledge base (inmemory, qdrant)"},
	config.FlagVectorStoreTgt:        {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store address (host:port)"},
	config.FlagEmbeddingProv:         {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (openai, ollama)"},
	config.FlagEmbeddingTgt:          {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	config.FlagEmbeddingModel:        {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model"},
	config.FlagEmbeddingDims:         {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	config.FlagEventStreamProv:       {Name: "event-stream-provider", ViperKey: "event_stream.provider", Description: "Where generation events are published (nop, kafka)"},
	config.FlagKafkaBrokers:          {Name: "kafka-brokers", ViperKey: "event_stream.brokers", Description: "Comma separated Kafka brokers"},
	config.FlagKafkaTopic:            {Name: "kafka-topic", ViperKey: "event_stream.topic", Description: "Kafka topic for generation events"},
}

// StorageFlags are the flags every serve command accepts.
var StorageFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventStreamProv,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

// ProxyFlags are the flags the proxy needs.
var ProxyFlags = []string{
	config.FlagBackend,
	config.FlagUpstream,
}

// APIFlags are the flags the API server needs.
var APIFlags = []string{
	config.FlagCarePlanBackend,
	config.FlagCarePlanModel,
	config.FlagCarePlanMode,
	config.FlagChatbotTarget,
	config.FlagChatbotModel,
	config.FlagZapierWebhook,
	config.FlagHubSpotWebhook,
	config.FlagSessionProvider,
	config.FlagRedisAddr,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

// AddFlags registers the given registry flags on cmd. Their values are read
// back through viper by LoadConfig.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if key == config.FlagEmbeddingDims {
			config.AddUintFlag(cmd, Flags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, Flags, key, new(string))
	}
	if cmd.Flags().Lookup("log-format") == nil {
		cmd.Flags().String("log-format", string(logger.FormatJSON), "Log format (json, pretty, text)")
		cmd.Flags().String("log-file", "", "Also append JSON logs to this file")
	}
}

// LoadConfig resolves the configuration for cmd with the precedence
// flag > THINKSTREAM_ env > config.toml > default.
func LoadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, Flags, keys)

	return config.FromViper(v), nil
}

// Keys returns the credential store for cmd's config directory.
func Keys(cmd *cobra.Command) (*credentials.Manager, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	return mgr, nil
}

// Logger builds the process logger from the --debug, --log-format and
// --log-file flags. Records go to stdout and, with --log-file, also to the
// file as JSON.
func Logger(cmd *cobra.Command, component string) (*slog.Logger, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	rawFormat, _ := cmd.Flags().GetString("log-format")
	logFile, _ := cmd.Flags().GetString("log-file")

	format, err := logger.ParseFormat(rawFormat, logger.FormatJSON)
	if err != nil {
		return nil, err
	}

	console := logger.New(
		logger.ForService(),
		logger.WithFormat(format),
		logger.WithWriter(cmd.OutOrStdout()),
		logger.WithDebug(debug),
		logger.WithComponent(component),
	)
	if logFile == "" {
		return console, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.ForService(),
		logger.WithWriter(f),
		logger.WithDebug(debug),
		logger.WithComponent(component),
	)
	return logger.Multi(console, file), nil
}
