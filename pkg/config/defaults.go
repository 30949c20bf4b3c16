package config

const (
	defaultProxyListen    = ":8080"
	defaultAPIListen      = ":8081"
	defaultProxyBackend   = "perplexity"
	defaultCarePlanMode   = "staged"
	defaultSessionTTL     = "10m"
	defaultSessionStore   = "memory"
	defaultVectorProvider = "inmemory"
	defaultEventStream    = "nop"
	defaultEventTopic     = "thinkstream.generations"

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultChatbotTarget     = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultChatbotModel      = "gemini-2.0-flash-lite"
	defaultChatbotCredential = "gemini"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingModel      = "text-embedding-3-small"
	defaultEmbeddingDimensions = 1536
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:         defaultProxyListen,
			DefaultBackend: defaultProxyBackend,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
		CarePlan: CarePlanConfig{
			Backend: defaultProxyBackend,
			Mode:    defaultCarePlanMode,
		},
		Chatbot: ChatbotConfig{
			Target:     defaultChatbotTarget,
			Model:      defaultChatbotModel,
			Credential: defaultChatbotCredential,
		},
		Session: SessionConfig{
			Provider: defaultSessionStore,
			TTL:      defaultSessionTTL,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStream,
			Topic:    defaultEventTopic,
		},
	}
}
