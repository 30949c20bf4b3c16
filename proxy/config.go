package proxy

import "time"

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DefaultBackend serves /v1/chat/completions requests whose model does not
	// identify a backend.
	DefaultBackend string

	// Upstreams overrides the base URL per backend name, for example to point
	// openai at a local Ollama.
	Upstreams map[string]string

	// APIKeys holds the credential injected for each backend. A backend
	// without a key forwards the client's Authorization header.
	APIKeys map[string]string

	// Timeout bounds one upstream exchange. Zero selects DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout leaves room for long reasoning streams.
const DefaultTimeout = 5 * time.Minute
