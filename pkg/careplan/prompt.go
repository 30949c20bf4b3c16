package careplan

import (
	"encoding/json"
	"fmt"
	"strings"
)

const stagePromptTemplate = "You are an expert clinical AI. Based on the full patient context and any previously generated care plan sections " +
	"provided in the user message, your task for this specific stage is to: %s. " +
	"Generate ONLY the data specified by the JSON schema provided for this stage. " +
	"Do not regenerate or include any fields that are not part of this stage's specific schema."

const singleSystemPrompt = `You are an expert healthcare provider creating evidence-based care plans.
Using the patient information provided, develop a comprehensive ADPIE care plan following best medical practices.
First provide your reasoning analyzing the patient's condition and applicable clinical guidelines within <think></think> XML tags.
Then, immediately after the closing </think> tag, output a valid JSON object matching the provided JSON schema.
Fill every required field. Use "N/A" for narrative fields that do not apply and [] for empty lists.`

func stageSystemPrompt(focus string) string {
	return fmt.Sprintf(stagePromptTemplate, strings.TrimSuffix(focus, "."))
}

type promptContext struct {
	PatientFormData        json.RawMessage `json:"patientFormData"`
	CareEnvironment        string          `json:"careEnvironment"`
	FocusAreas             []string        `json:"focusAreas"`
	CurrentCarePlanContext map[string]any  `json:"currentCarePlanContext,omitempty"`
}

// userPrompt renders the patient context and, after the first stage, the
// plan generated so far.
func userPrompt(req *Request, current map[string]any) (string, error) {
	pc := promptContext{
		PatientFormData:        req.PatientFormData,
		CareEnvironment:        req.CareEnvironment,
		FocusAreas:             req.FocusAreas,
		CurrentCarePlanContext: current,
	}
	if len(pc.PatientFormData) == 0 {
		pc.PatientFormData = json.RawMessage(`{}`)
	}
	if pc.FocusAreas == nil {
		pc.FocusAreas = []string{}
	}

	b, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding prompt context: %w", err)
	}
	return "Patient and Care Plan Context:\n" + string(b), nil
}
