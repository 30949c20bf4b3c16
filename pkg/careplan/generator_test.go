package careplan_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/llm"
	"github.com/papercomputeco/thinkstream/pkg/logger"
	testutils "github.com/papercomputeco/thinkstream/pkg/utils/test"
)

type eventLog struct {
	mu     sync.Mutex
	events []careplan.Event
	failOn func(careplan.Event) error
}

func (l *eventLog) emit(ev careplan.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn != nil {
		if err := l.failOn(ev); err != nil {
			return err
		}
	}
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) ofType(t string) []careplan.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []careplan.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func stageChunks(output string) []string {
	return []string{"<think>Assess", "ing stage</think>\n", output}
}

var stageOutputs = map[string]string{
	careplan.StageAssessment:    stage1Output,
	careplan.StageDiagnosis:     stage2Output,
	careplan.StageInterventions: stage3Output,
	careplan.StageEvaluation:    stage4Output,
	careplan.StageSummary:       stage5Output,
}

var _ = Describe("Generator", func() {
	var (
		client *testutils.MockClient
		log    *eventLog
		req    *careplan.Request
		gen    *careplan.Generator
	)

	BeforeEach(func() {
		client = &testutils.MockClient{
			StreamFunc: func(r *llm.ChatRequest) ([]string, error) {
				return stageChunks(stageOutputs[r.ResponseSchema.Name]), nil
			},
		}
		log = &eventLog{}
		req = &careplan.Request{
			PatientFormData: json.RawMessage(`{"patient_full_name":"Jane Doe","patient_age":67}`),
			CareEnvironment: "inpatient",
			FocusAreas:      []string{"fluid balance"},
		}

		var err error
		gen, err = careplan.NewGenerator(careplan.Config{
			Client:  client,
			Backend: "perplexity",
			Logger:  logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a client", func() {
		_, err := careplan.NewGenerator(careplan.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Staged", func() {
		It("emits stage events in order and a validated plan", func() {
			plan, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())

			types := log.types()
			Expect(types[0]).To(Equal(careplan.EventOverallStart))
			Expect(types[len(types)-1]).To(Equal(careplan.EventPlanComplete))
			Expect(log.ofType(careplan.EventStageStart)).To(HaveLen(5))
			Expect(log.ofType(careplan.EventReasoningComplete)).To(HaveLen(5))
			Expect(log.ofType(careplan.EventStageJSON)).To(HaveLen(5))
			Expect(log.ofType(careplan.EventError)).To(BeEmpty())

			first := log.ofType(careplan.EventStageStart)[0]
			Expect(first.StageName).To(Equal(careplan.StageAssessment))
			Expect(*first.StageIndex).To(Equal(0))
			Expect(types[1:6]).To(Equal([]string{
				careplan.EventStageStart,
				careplan.EventReasoningChunk,
				careplan.EventReasoningChunk,
				careplan.EventReasoningComplete,
				careplan.EventStageJSON,
			}))

			chunks := log.ofType(careplan.EventReasoningChunk)
			Expect(chunks[0].Content).To(Equal("Assess"))
			Expect(chunks[1].Content).To(Equal("ing stage"))
			Expect(*log.ofType(careplan.EventReasoningComplete)[0].ReasoningMarkdown).To(Equal("Assessing stage"))

			decoded, err := careplan.Decode(plan)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.NursingDiagnoses[0].Evidence).To(ConsistOf("edema", "crackles"))
			Expect(decoded.NursingDiagnoses[0].Goals[0].Interventions[0].Text).To(Equal("Weigh daily"))
			Expect(decoded.NursingDiagnoses[0].Goals[0].Evaluation.Method).To(Equal("Daily weights"))
			Expect(decoded.AIAgents[0].ConfidenceScore).To(Equal(0.9))
			Expect(decoded.NextSteps).To(ConsistOf("Cardiology follow up"))

			complete := log.ofType(careplan.EventPlanComplete)[0]
			Expect(complete.CarePlan).To(MatchJSON(plan))
		})

		It("streams reasoning chunks that concatenate cleanly across a split end tag", func() {
			client.StreamFunc = func(r *llm.ChatRequest) ([]string, error) {
				if r.ResponseSchema.Name == careplan.StageAssessment {
					return []string{"<think>abc", "</thi", "nk>", stage1Output}, nil
				}
				return stageChunks(stageOutputs[r.ResponseSchema.Name]), nil
			}

			_, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())

			var b strings.Builder
			for _, ev := range log.ofType(careplan.EventReasoningChunk) {
				if ev.StageName == careplan.StageAssessment {
					b.WriteString(ev.Content)
				}
			}
			Expect(b.String()).To(Equal("abc"))
			Expect(*log.ofType(careplan.EventReasoningComplete)[0].ReasoningMarkdown).To(Equal("abc"))
		})

		It("treats error-shaped model content as reasoning text", func() {
			client.StreamFunc = func(r *llm.ChatRequest) ([]string, error) {
				if r.ResponseSchema.Name == careplan.StageAssessment {
					return []string{"<think>", `{"type":"error","message":"boom"}`, "</think>", stage1Output}, nil
				}
				return stageChunks(stageOutputs[r.ResponseSchema.Name]), nil
			}

			_, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())
			Expect(log.ofType(careplan.EventError)).To(BeEmpty())
			Expect(log.ofType(careplan.EventStageJSON)).To(HaveLen(5))
		})

		It("sends stage sub-schemas with the generation defaults", func() {
			_, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())

			reqs := client.Requests()
			Expect(reqs).To(HaveLen(5))
			first := reqs[0]
			Expect(first.Model).To(Equal("sonar-reasoning-pro"))
			Expect(*first.Temperature).To(Equal(0.2))
			Expect(*first.MaxTokens).To(Equal(8000))
			Expect(first.IsStreaming()).To(BeTrue())
			Expect(first.ResponseSchema.Name).To(Equal(careplan.StageAssessment))
			Expect(first.Messages[0].Content).To(ContainSubstring("Conduct a comprehensive initial assessment"))
			Expect(first.LastUserMessage()).To(HavePrefix("Patient and Care Plan Context:\n"))
			Expect(first.LastUserMessage()).NotTo(ContainSubstring("currentCarePlanContext"))

			Expect(reqs[1].LastUserMessage()).To(ContainSubstring("currentCarePlanContext"))
			Expect(reqs[1].LastUserMessage()).To(ContainSubstring("Excess Fluid Volume"))
		})

		It("reports a failed stage and continues", func() {
			client.StreamFunc = func(r *llm.ChatRequest) ([]string, error) {
				if r.ResponseSchema.Name == careplan.StageInterventions {
					return nil, errors.New("upstream unavailable")
				}
				return stageChunks(stageOutputs[r.ResponseSchema.Name]), nil
			}

			_, err := gen.Staged(context.Background(), req, log.emit)

			var verr *careplan.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(client.Requests()).To(HaveLen(5))

			errs := log.ofType(careplan.EventError)
			Expect(errs).To(HaveLen(2))
			Expect(errs[0].StageName).To(Equal(careplan.StageInterventions))
			Expect(errs[0].Content).To(ContainSubstring("upstream unavailable"))
			Expect(errs[1].StageName).To(BeEmpty())
			Expect(log.ofType(careplan.EventPlanComplete)).To(BeEmpty())
		})

		It("emits an empty object for unparseable stage output", func() {
			client.StreamFunc = func(r *llm.ChatRequest) ([]string, error) {
				if r.ResponseSchema.Name == careplan.StageSummary {
					return []string{"<think>Summarizing</think>", "not json"}, nil
				}
				return stageChunks(stageOutputs[r.ResponseSchema.Name]), nil
			}

			plan, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(plan)).To(ContainSubstring(`"next_steps":[]`))

			last := log.ofType(careplan.EventStageJSON)[4]
			Expect(last.StageName).To(Equal(careplan.StageSummary))
			Expect(last.JSONData).To(MatchJSON(`{}`))
			Expect(*log.ofType(careplan.EventReasoningComplete)[4].ReasoningMarkdown).To(Equal("Summarizing"))
			errs := log.ofType(careplan.EventError)
			Expect(errs).To(HaveLen(1))
			Expect(errs[0].StageName).To(Equal(careplan.StageSummary))
		})

		It("stops when the client goes away", func() {
			gone := errors.New("client gone")
			log.failOn = func(ev careplan.Event) error {
				if ev.Type == careplan.EventStageStart && *ev.StageIndex == 1 {
					return gone
				}
				return nil
			}

			_, err := gen.Staged(context.Background(), req, log.emit)
			Expect(err).To(MatchError(gone))
			Expect(client.Requests()).To(HaveLen(1))
		})

		It("honors cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := gen.Staged(ctx, req, log.emit)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Single", func() {
		BeforeEach(func() {
			req.Mode = careplan.ModeSingle
		})

		It("relays content and emits the final reasoning and plan", func() {
			client.StreamFunc = func(*llm.ChatRequest) ([]string, error) {
				return []string{"<think>Reviewing ", "history</think>", validPlan}, nil
			}

			plan, err := gen.Generate(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())
			Expect(plan).To(MatchJSON(validPlan))

			Expect(log.types()).To(Equal([]string{
				careplan.EventContentChunk,
				careplan.EventContentChunk,
				careplan.EventContentChunk,
				careplan.EventFinalReasoning,
				careplan.EventFinalJSON,
			}))
			Expect(*log.ofType(careplan.EventFinalReasoning)[0].ReasoningMarkdown).To(Equal("Reviewing history"))

			reqs := client.Requests()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].ResponseSchema.Name).To(Equal("care_plan"))
			Expect(reqs[0].ResponseSchema.Schema).To(HaveKey("properties"))
		})

		It("reports a plan that fails validation", func() {
			client.StreamFunc = func(*llm.ChatRequest) ([]string, error) {
				return []string{"<think>Short</think>", `{"next_steps": []}`}, nil
			}

			_, err := gen.Single(context.Background(), req, log.emit)
			var verr *careplan.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())

			types := log.types()
			Expect(types[len(types)-1]).To(Equal(careplan.EventError))
			Expect(log.ofType(careplan.EventFinalJSON)).To(BeEmpty())
			Expect(log.ofType(careplan.EventFinalReasoning)).To(HaveLen(1))
		})

		It("fills next_steps when the model omits it", func() {
			var doc map[string]any
			Expect(json.Unmarshal([]byte(validPlan), &doc)).To(Succeed())
			delete(doc, "next_steps")
			raw, _ := json.Marshal(doc)

			client.StreamFunc = func(*llm.ChatRequest) ([]string, error) {
				return []string{"<think>ok</think>", string(raw)}, nil
			}

			plan, err := gen.Single(context.Background(), req, log.emit)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(plan)).To(ContainSubstring(`"next_steps":[]`))
			Expect(strings.Count(string(plan), "next_steps")).To(Equal(1))
		})
	})
})
