package careplan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/thinkstream/pkg/reasoning"
	"github.com/papercomputeco/thinkstream/pkg/stream"
)

// Event types streamed to care plan clients.
const (
	EventStart             = "start"
	EventOverallStart      = "overall_generation_start"
	EventStageStart        = "stage_start"
	EventReasoningChunk    = "reasoning_text_chunk"
	EventReasoningComplete = "stage_reasoning_complete"
	EventStageJSON         = "stage_json_chunk"
	EventPlanComplete      = "full_care_plan_complete"
	EventContentChunk      = "content_chunk"
	EventFinalReasoning    = "final_reasoning"
	EventFinalJSON         = "final_json"
	EventError             = "error"
)

// Event is one message on the care plan feed. Which fields are set depends on
// Type.
type Event struct {
	Type              string          `json:"type"`
	StageName         string          `json:"stage_name,omitempty"`
	AccordionTitle    string          `json:"accordion_title,omitempty"`
	StageIndex        *int            `json:"stage_index,omitempty"`
	Content           string          `json:"content,omitempty"`
	ReasoningMarkdown *string         `json:"reasoning_markdown,omitempty"`
	JSONData          json.RawMessage `json:"json_data,omitempty"`
	CarePlan          json.RawMessage `json:"care_plan,omitempty"`
}

// Emitter receives events in order. A non-nil error aborts generation.
type Emitter func(Event) error

// ErrorEvent returns an error event. An empty stage marks a failure of the
// whole generation.
func ErrorEvent(stage, msg string) Event {
	return Event{Type: EventError, StageName: stage, Content: msg}
}

// EventDecoder turns a care plan feed into text for a stream.Controller.
//
// In single mode the feed carries the raw model output as content chunks and
// the decoder passes them through. In staged mode the reasoning of every
// stage is wrapped in one think block, so the controller shows the running
// reasoning of the whole generation, and the final plan follows the block as
// the payload. Stage errors are reported to OnEvent only; an error without a
// stage name fails the request.
//
// An EventDecoder keeps state for one feed. Use a new one per request.
type EventDecoder struct {
	// OnEvent, if set, observes every decoded event.
	OnEvent func(Event)

	opened bool
}

func (d *EventDecoder) Decode(raw string) (string, error) {
	if verr, ok := stream.AsVendorError(raw); ok {
		var ev Event
		if json.Unmarshal([]byte(raw), &ev) == nil && ev.StageName != "" {
			d.observe(ev)
			return "", nil
		}
		return "", verr
	}

	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return "", fmt.Errorf("decoding care plan event: %w", err)
	}
	d.observe(ev)

	switch ev.Type {
	case EventContentChunk:
		return ev.Content, nil

	case EventStageStart:
		var b strings.Builder
		d.open(&b)
		if ev.StageIndex == nil || *ev.StageIndex > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(ev.AccordionTitle)
		b.WriteString("\n\n")
		return b.String(), nil

	case EventReasoningChunk:
		var b strings.Builder
		d.open(&b)
		b.WriteString(ev.Content)
		return b.String(), nil

	case EventPlanComplete:
		var b strings.Builder
		d.open(&b)
		b.WriteString(reasoning.ThinkTags.End)
		b.WriteString("\n")
		b.Write(ev.CarePlan)
		return b.String(), nil
	}
	return "", nil
}

func (d *EventDecoder) open(b *strings.Builder) {
	if !d.opened {
		d.opened = true
		b.WriteString(reasoning.ThinkTags.Start)
	}
}

func (d *EventDecoder) observe(ev Event) {
	if d.OnEvent != nil {
		d.OnEvent(ev)
	}
}
