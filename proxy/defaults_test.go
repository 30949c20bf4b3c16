package proxy

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/llm/provider"
)

var _ = Describe("applyDefaults", func() {
	var grok, perplexity provider.Backend

	BeforeEach(func() {
		var err error
		grok, err = provider.Lookup(provider.Grok)
		Expect(err).NotTo(HaveOccurred())
		perplexity, err = provider.Lookup(provider.Perplexity)
		Expect(err).NotTo(HaveOccurred())
	})

	It("fills missing grok fields", func() {
		out, err := applyDefaults([]byte(`{"messages":[]}`), grok)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"messages":[],"model":"grok-3-mini-fast","temperature":0.7,"reasoning_effort":"high"}`))
	})

	It("treats null and empty model as missing", func() {
		out, err := applyDefaults([]byte(`{"model":"","temperature":null}`), grok)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"model":"grok-3-mini-fast","temperature":0.7,"reasoning_effort":"high"}`))
	})

	It("returns the body unchanged when nothing is missing", func() {
		body := []byte(`{"model":"sonar","messages":[]}`)
		out, err := applyDefaults(body, perplexity)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(body))
	})

	It("preserves unknown fields", func() {
		out, err := applyDefaults([]byte(`{"search_mode":"academic"}`), perplexity)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"search_mode":"academic","model":"sonar-reasoning-pro"}`))
	})

	It("rejects non-object bodies", func() {
		_, err := applyDefaults([]byte(`[1,2]`), perplexity)
		Expect(err).To(HaveOccurred())

		_, err = applyDefaults([]byte(`null`), perplexity)
		Expect(err).To(HaveOccurred())
	})
})
