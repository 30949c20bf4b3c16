// Package storagetest holds the Ginkgo specs every storage.Driver must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/storage"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewGeneration returns a completed generation started n minutes after a
// fixed epoch.
func NewGeneration(id, kind string, n int) *storage.Generation {
	started := epoch.Add(time.Duration(n) * time.Minute)
	return &storage.Generation{
		ID:               id,
		Kind:             kind,
		Backend:          "perplexity",
		Model:            "sonar-reasoning-pro",
		Mode:             "staged",
		Status:           storage.StatusCompleted,
		Reasoning:        "Reviewing vitals",
		Payload:          json.RawMessage(`{"next_steps":[]}`),
		PromptTokens:     120,
		CompletionTokens: 480,
		StartedAt:        started,
		CompletedAt:      started.Add(42 * time.Second),
	}
}

// NewLead returns a lead created n minutes after a fixed epoch.
func NewLead(id string, n int) *storage.Lead {
	return &storage.Lead{
		ID:        id,
		Name:      "Ada Lovelace",
		Email:     fmt.Sprintf("%s@example.com", id),
		Company:   "Analytical Engines",
		Role:      "CTO",
		Message:   "Interested in a demo",
		Source:    "chatbot",
		LeadType:  "demo",
		CreatedAt: epoch.Add(time.Duration(n) * time.Minute),
	}
}

// DriverSpecs declares the shared driver specs. newDriver is called before
// each spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("PutGeneration and GetGeneration", func() {
		It("round trips a generation", func() {
			g := NewGeneration("gen-1", storage.KindCarePlan, 0)
			Expect(driver.PutGeneration(ctx, g)).To(Succeed())

			got, err := driver.GetGeneration(ctx, "gen-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("gen-1"))
			Expect(got.Kind).To(Equal(storage.KindCarePlan))
			Expect(got.Backend).To(Equal("perplexity"))
			Expect(got.Model).To(Equal("sonar-reasoning-pro"))
			Expect(got.Mode).To(Equal("staged"))
			Expect(got.Status).To(Equal(storage.StatusCompleted))
			Expect(got.Reasoning).To(Equal("Reviewing vitals"))
			Expect(got.Payload).To(MatchJSON(`{"next_steps":[]}`))
			Expect(got.PromptTokens).To(Equal(120))
			Expect(got.CompletionTokens).To(Equal(480))
			Expect(got.StartedAt).To(BeTemporally("~", g.StartedAt, time.Millisecond))
			Expect(got.Duration()).To(BeNumerically("~", 42*time.Second, time.Millisecond))
		})

		It("keeps an empty payload empty", func() {
			g := NewGeneration("gen-failed", storage.KindChat, 0)
			g.Status = storage.StatusFailed
			g.Payload = nil
			g.Error = "stream closed"
			Expect(driver.PutGeneration(ctx, g)).To(Succeed())

			got, err := driver.GetGeneration(ctx, "gen-failed")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Payload).To(BeEmpty())
			Expect(got.Error).To(Equal("stream closed"))
		})

		It("replaces a generation with the same ID", func() {
			g := NewGeneration("gen-1", storage.KindCarePlan, 0)
			Expect(driver.PutGeneration(ctx, g)).To(Succeed())

			g.Status = storage.StatusFailed
			g.Error = "care plan failed validation"
			Expect(driver.PutGeneration(ctx, g)).To(Succeed())

			got, err := driver.GetGeneration(ctx, "gen-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(storage.StatusFailed))

			all, err := driver.ListGenerations(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("returns NotFoundError for a missing generation", func() {
			_, err := driver.GetGeneration(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound))

			var nf storage.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(nf))
		})

		It("rejects a nil generation", func() {
			Expect(driver.PutGeneration(ctx, nil)).To(MatchError(storage.ErrNilRecord))
		})
	})

	Describe("ListGenerations", func() {
		BeforeEach(func() {
			Expect(driver.PutGeneration(ctx, NewGeneration("a", storage.KindCarePlan, 1))).To(Succeed())
			Expect(driver.PutGeneration(ctx, NewGeneration("b", storage.KindChat, 2))).To(Succeed())
			Expect(driver.PutGeneration(ctx, NewGeneration("c", storage.KindCarePlan, 3))).To(Succeed())
		})

		ids := func(gens []*storage.Generation) []string {
			out := make([]string, 0, len(gens))
			for _, g := range gens {
				out = append(out, g.ID)
			}
			return out
		}

		It("lists newest first", func() {
			gens, err := driver.ListGenerations(ctx, storage.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(gens)).To(Equal([]string{"c", "b", "a"}))
		})

		It("filters by kind", func() {
			gens, err := driver.ListGenerations(ctx, storage.ListOptions{Kind: storage.KindCarePlan})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(gens)).To(Equal([]string{"c", "a"}))
		})

		It("applies the limit", func() {
			gens, err := driver.ListGenerations(ctx, storage.ListOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(gens)).To(Equal([]string{"c", "b"}))
		})
	})

	Describe("Leads", func() {
		It("lists leads newest first", func() {
			Expect(driver.PutLead(ctx, NewLead("lead-1", 1))).To(Succeed())
			Expect(driver.PutLead(ctx, NewLead("lead-2", 2))).To(Succeed())

			leads, err := driver.ListLeads(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(2))
			Expect(leads[0].ID).To(Equal("lead-2"))
			Expect(leads[0].Email).To(Equal("lead-2@example.com"))
			Expect(leads[0].LeadType).To(Equal("demo"))
			Expect(leads[1].ID).To(Equal("lead-1"))
		})

		It("applies the limit", func() {
			for i := range 3 {
				Expect(driver.PutLead(ctx, NewLead(fmt.Sprintf("lead-%d", i), i))).To(Succeed())
			}

			leads, err := driver.ListLeads(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(HaveLen(1))
			Expect(leads[0].ID).To(Equal("lead-2"))
		})

		It("returns an empty list when nothing is stored", func() {
			leads, err := driver.ListLeads(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(leads).To(BeEmpty())
		})

		It("rejects a nil lead", func() {
			Expect(driver.PutLead(ctx, nil)).To(MatchError(storage.ErrNilRecord))
		})
	})
}
