package careplan_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

func feed(events ...string) stream.Transport {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString("data: ")
		b.WriteString(ev)
		b.WriteString("\n\n")
	}
	body := b.String()
	return stream.TransportFunc(func(context.Context) (stream.Conn, error) {
		return stream.NewReader(io.NopCloser(strings.NewReader(body))), nil
	})
}

var _ = Describe("EventDecoder", func() {
	It("wraps staged reasoning in one block and parses the final plan", func() {
		var seen []string
		dec := &careplan.EventDecoder{OnEvent: func(ev careplan.Event) {
			seen = append(seen, ev.Type)
		}}

		c := stream.New(feed(
			`{"type":"start","content":"Starting care plan generation"}`,
			`{"type":"overall_generation_start"}`,
			`{"type":"stage_start","stage_name":"stage_1_assessment_setup","accordion_title":"Stage 1","stage_index":0}`,
			`{"type":"reasoning_text_chunk","stage_name":"stage_1_assessment_setup","content":"Reviewing vitals"}`,
			`{"type":"stage_json_chunk","stage_name":"stage_1_assessment_setup","json_data":{}}`,
			`{"type":"error","stage_name":"stage_2_diagnosis_goals","content":"upstream 502"}`,
			`{"type":"stage_start","stage_name":"stage_3_interventions","accordion_title":"Stage 3","stage_index":2}`,
			`{"type":"reasoning_text_chunk","stage_name":"stage_3_interventions","content":"Planning care"}`,
			`{"type":"full_care_plan_complete","care_plan":{"next_steps":["rest"]}}`,
			`[DONE]`,
		), stream.Options{Decoder: dec})
		DeferCleanup(c.Close)

		payload, err := c.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"next_steps":["rest"]}`))
		Expect(c.Snapshot().Reasoning).To(Equal("Stage 1\n\nReviewing vitals\n\nStage 3\n\nPlanning care"))
		Expect(seen).To(ContainElement(careplan.EventError))
		Expect(seen[0]).To(Equal(careplan.EventStart))
	})

	It("fails on an error without a stage", func() {
		c := stream.New(feed(
			`{"type":"start","content":"Starting care plan generation"}`,
			`{"type":"error","content":"Invalid stream ID"}`,
			`[DONE]`,
		), stream.Options{Decoder: &careplan.EventDecoder{}})
		DeferCleanup(c.Close)

		_, err := c.Run(context.Background())
		var verr *stream.VendorError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Message).To(Equal("Invalid stream ID"))
	})

	It("passes single mode content through", func() {
		plan, _ := json.Marshal(map[string]any{"next_steps": []string{}})
		chunk := func(s string) string {
			b, _ := json.Marshal(careplan.Event{Type: careplan.EventContentChunk, Content: s})
			return string(b)
		}

		c := stream.New(feed(
			chunk("<think>Weighing "),
			chunk("options</think>"),
			chunk(string(plan)),
			`{"type":"final_reasoning","reasoning_markdown":"Weighing options"}`,
			`[DONE]`,
		), stream.Options{Decoder: &careplan.EventDecoder{}})
		DeferCleanup(c.Close)

		payload, err := c.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(MatchJSON(`{"next_steps":[]}`))
		Expect(c.Snapshot().Reasoning).To(Equal("Weighing options"))
	})

	It("rejects events that are not JSON", func() {
		_, err := (&careplan.EventDecoder{}).Decode("not json")
		Expect(err).To(HaveOccurred())
	})
})
