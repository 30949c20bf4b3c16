// Package header provides header filtering for the thinkstream proxy.
//
// The proxy sits between a client and a reasoning backend:
//
//	Client <--> Proxy <--> Perplexity / xAI / OpenAI
//
// and each leg negotiates compression, hops and encoding independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BackendHeader optionally names the backend for /v1/chat/completions. It is
// never forwarded upstream.
const BackendHeader = "X-Thinkstream-Backend"

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// hopByHop headers only apply to a single transport-level connection.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded to the backend.
var skipRequest = with(hopByHop,
	// Go's http.Transport sets Host from the upstream URL.
	"Host",

	// Go's http.Transport adds its own Accept-Encoding and decompresses the
	// upstream response transparently.
	"Accept-Encoding",

	// The body is re-encoded when defaults are applied.
	"Content-Length",

	BackendHeader,
)

// skipResponse is the set of upstream response headers (client <-- proxy <--
// upstream) that are not copied back to the client.
var skipResponse = with(hopByHop,
	// The proxy always reads a decompressed body.
	"Content-Encoding",

	// Fiber computes the length of what it actually sends.
	"Content-Length",
)

func with(base []string, extra ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(base)+len(extra))
	for _, k := range append(append([]string{}, base...), extra...) {
		m[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	return m
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not forward
// to the upstream API.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetAuthorization replaces the client's credentials with the backend key.
// An empty key leaves the client's Authorization header in place.
func (h *Handler) SetAuthorization(req *http.Request, apiKey string) {
	if apiKey == "" {
		return
	}
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+apiKey)
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetSSEHeaders marks the client response as an unbuffered event stream.
func (h *Handler) SetSSEHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}
