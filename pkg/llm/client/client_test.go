package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/llm/client"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		received map[string]any
		authz    string
	)

	BeforeEach(func() {
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/chat/completions"))
			authz = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			if received["stream"] == true {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, part := range []string{"<think>", "weighing", "</think>", `{"a":1}`} {
					b, _ := json.Marshal(part)
					fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"sonar-reasoning-pro","choices":[{"index":0,"delta":{"content":%s}}]}`+"\n\n", b)
				}
				fmt.Fprint(w, "data: [DONE]\n\n")
				return
			}

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"id": "c1",
				"object": "chat.completion",
				"created": 1700000000,
				"model": "grok-3-mini-fast",
				"choices": [{
					"index": 0,
					"finish_reason": "tool_calls",
					"message": {
						"role": "assistant",
						"content": "Happy to help.",
						"tool_calls": [{
							"id": "call_1",
							"type": "function",
							"function": {"name": "create_hubspot_lead", "arguments": "{\"name\":\"Ada\"}"}
						}]
					}
				}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}`)
		}))
		DeferCleanup(server.Close)
	})

	newClient := func() *client.Client {
		c, err := client.New(client.Config{
			BaseURL:    server.URL,
			APIKey:     "test-key",
			HTTPClient: server.Client(),
			NoRetries:  true,
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("requires an API key", func() {
		_, err := client.New(client.Config{BaseURL: server.URL})
		Expect(err).To(MatchError(client.ErrMissingAPIKey))
	})

	It("completes a request with tools and maps tool calls", func() {
		resp, err := newClient().Complete(context.Background(), &llm.ChatRequest{
			Model:       "grok-3-mini-fast",
			Messages:    []llm.Message{llm.System("be brief"), llm.User("I want a demo")},
			Temperature: llm.Float(0.7),
			Tools: []llm.Tool{{
				Name:        "create_hubspot_lead",
				Description: "Create a lead",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(authz).To(Equal("Bearer test-key"))
		Expect(received).To(HaveKeyWithValue("model", "grok-3-mini-fast"))
		Expect(received).To(HaveKeyWithValue("temperature", 0.7))
		Expect(received["tools"]).To(HaveLen(1))

		Expect(resp.Message.Content).To(Equal("Happy to help."))
		Expect(resp.StopReason).To(Equal("tool_calls"))
		Expect(resp.Message.ToolCalls).To(ConsistOf(llm.ToolCall{
			ID:        "call_1",
			Name:      "create_hubspot_lead",
			Arguments: `{"name":"Ada"}`,
		}))
		Expect(resp.Usage.TotalTokens).To(Equal(15))
	})

	It("sends a json_schema response format", func() {
		_, err := newClient().Complete(context.Background(), &llm.ChatRequest{
			Model:    "sonar-reasoning-pro",
			Messages: []llm.Message{llm.User("plan")},
			ResponseSchema: &llm.ResponseSchema{
				Name:   "stage_1_assessment_setup",
				Schema: map[string]any{"type": "object"},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(received).To(HaveKey("response_format"))
		format := received["response_format"].(map[string]any)
		Expect(format).To(HaveKeyWithValue("type", "json_schema"))
	})

	It("streams deltas in order", func() {
		s, err := newClient().Stream(context.Background(), &llm.ChatRequest{
			Model:    "sonar-reasoning-pro",
			Messages: []llm.Message{llm.User("plan")},
		})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		var b strings.Builder
		for s.Next() {
			b.WriteString(s.Current().Content)
		}
		Expect(s.Err()).NotTo(HaveOccurred())
		Expect(b.String()).To(Equal(`<think>weighing</think>{"a":1}`))
		Expect(received).To(HaveKeyWithValue("stream", true))
	})

	It("feeds a stream controller through StreamTransport", func() {
		req := &llm.ChatRequest{Model: "sonar-reasoning-pro", Messages: []llm.Message{llm.User("plan")}}
		conn, err := llm.StreamTransport(newClient(), req).Connect(context.Background())
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close()

		var raws []string
		for {
			ev, err := conn.Recv()
			Expect(err).NotTo(HaveOccurred())
			if ev.Terminal {
				break
			}
			raws = append(raws, ev.Raw)
		}
		Expect(raws).To(Equal([]string{"<think>", "weighing", "</think>", `{"a":1}`}))
	})

	It("rejects empty requests", func() {
		_, err := newClient().Complete(context.Background(), &llm.ChatRequest{Model: "x"})
		Expect(err).To(MatchError(ContainSubstring("no messages")))
	})
})
