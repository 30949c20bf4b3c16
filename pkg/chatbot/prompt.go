package chatbot

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/papercomputeco/thinkstream/pkg/llm"
)

// LeadToolName is the tool the model calls to register a sales lead.
const LeadToolName = "create_hubspot_lead"

// Lead intents and urgencies accepted by the lead tool.
var (
	LeadIntents   = []string{"demo_request", "pricing_info", "sales_call", "general_interest"}
	LeadUrgencies = []string{"high", "medium", "low"}
)

//go:embed system_prompt.tmpl
var systemPromptText string

var systemPrompt = template.Must(template.New("system").Parse(systemPromptText))

// SystemPrompt renders the assistant persona with the retrieved context.
func SystemPrompt(kb string) string {
	var b strings.Builder
	// The template is static; rendering only fails on writer errors.
	_ = systemPrompt.Execute(&b, struct {
		Context  string
		LeadTool string
	}{Context: strings.TrimSpace(kb), LeadTool: LeadToolName})
	return b.String()
}

// LeadTool describes create_hubspot_lead.
func LeadTool() llm.Tool {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(desc string, values []string) map[string]any {
		return map[string]any{"type": "string", "enum": values, "description": desc}
	}

	return llm.Tool{
		Name:        LeadToolName,
		Description: "Create a lead in HubSpot when a user expresses intent to purchase, see a demo, or talk to sales",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    str("The lead's full name, if provided"),
				"email":   str("The lead's email address, if provided"),
				"company": str("The lead's company or organization"),
				"role":    str("The lead's job title or role"),
				"intent":  enum("The type of sales intent expressed by the user", LeadIntents),
				"urgency": enum("How urgent the lead's request appears to be", LeadUrgencies),
				"interests": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Specific product features or aspects the lead is interested in",
				},
			},
			"required": []string{"intent"},
		},
	}
}

var leadIntentKeywords = []string{
	"demo", "pricing", "cost", "price", "trial", "contact", "sales",
	"representative", "schedule", "meeting", "call", "free trial",
	"subscribe", "purchase", "buy", "implementation", "integrate",
	"talk to someone", "speak with", "expert", "consultation", "quote",
}

// HasLeadIntent reports whether message mentions a buying signal.
func HasLeadIntent(message string) bool {
	m := strings.ToLower(message)
	for _, k := range leadIntentKeywords {
		if strings.Contains(m, k) {
			return true
		}
	}
	return false
}

var (
	leadFollowups = []string{
		"Can I schedule a personalized demo?",
		"What pricing plans are available?",
		"How long does implementation take?",
	}
	defaultFollowups = []string{
		"How does Ron AI generate care plans?",
		"Which EHR systems does Ron AI integrate with?",
		"Is Ron AI HIPAA compliant?",
	}
)

func followups(leadIntent bool) []string {
	if leadIntent {
		return append([]string(nil), leadFollowups...)
	}
	return append([]string(nil), defaultFollowups...)
}
