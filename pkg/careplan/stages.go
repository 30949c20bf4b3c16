package careplan

import (
	"sort"
	"strings"
)

// Stage is one step of staged generation. Paths name the schema properties
// the stage produces; "*" steps into array items.
type Stage struct {
	Name           string
	AccordionTitle string
	Focus          string
	Paths          []string
	Required       []string
}

// Stage names.
const (
	StageAssessment    = "stage_1_assessment_setup"
	StageDiagnosis     = "stage_2_diagnosis_goals"
	StageInterventions = "stage_3_interventions"
	StageEvaluation    = "stage_4_evaluation_criteria"
	StageSummary       = "stage_5_summary_admin_coordination"
)

// Stages run in order, each one building on the plan merged so far.
var Stages = []Stage{
	{
		Name:           StageAssessment,
		AccordionTitle: "Stage 1: Comprehensive Assessment, Diagnoses & Assessments List",
		Focus: "Conduct a comprehensive initial assessment. Populate demographics, vitals, history, and detailed additional assessment fields. " +
			"Generate a `recommendedAssessmentsList` of up to 10 items, each with `item`, `rationale`, and `status`. " +
			"Create initial nursing diagnoses up to 5, including diagnosis name, related factors, and evidence. " +
			"Populate the `aiAgents` array with their initial contributions.",
		Paths: []string{
			"patientData", "clinicalData",
			"assessment_subjective_chief_complaint", "assessment_subjective_hpi",
			"assessment_subjective_goals", "assessment_subjective_other",
			"assessment_objective_vitals_summary", "assessment_objective_physical_exam",
			"assessment_objective_diagnostics", "assessment_objective_meds_reviewed", "assessment_objective_other",
			"recommendedAssessmentsList",
			"nursingDiagnoses",
			"aiAgents",
		},
		Required: []string{
			"patientData", "clinicalData", "assessment_subjective_chief_complaint",
			"nursingDiagnoses", "recommendedAssessmentsList", "aiAgents",
		},
	},
	{
		Name:           StageDiagnosis,
		AccordionTitle: "Stage 2: Nursing Diagnoses Refinement & Goal Setting (up to 5 goals/diagnosis)",
		Focus: "Based on the assessment and initial diagnoses, refine `diagnosis_evidence` or `diagnosis_risk_factors` for each of the up to 5 NANDA diagnoses. " +
			"Then, for each confirmed nursing diagnosis, develop up to 5 specific, measurable, achievable, relevant, and time-bound (SMART) " +
			"patient-centered goals. Populate ONLY the `goals` array for each nursing diagnosis, including `goal_description`, `goal_target_date`, `goal_outcomes`, and `goal_rationale`. " +
			"Update `aiAgents` with their `planningContribution`. " +
			"Ensure the output strictly adheres to the JSON schema provided for this stage.",
		Paths: []string{
			"nursingDiagnoses.*.diagnosis_evidence",
			"nursingDiagnoses.*.diagnosis_risk_factors",
			"nursingDiagnoses.*.goals",
			"aiAgents",
		},
		Required: []string{"nursingDiagnoses"},
	},
	{
		Name:           StageInterventions,
		AccordionTitle: "Stage 3: Intervention Planning (20 interventions/goal)",
		Focus: "For each goal (up to 5 goals per diagnosis), develop a comprehensive set of 20 evidence-based nursing interventions " +
			"(specifically 15 general interventions and 5 health teaching interventions). " +
			"Populate ONLY the `interventions` array within each `goal` object. Each intervention must include `interventionText`, `interventionType` (e.g., 'general', 'health_teaching'), and `rationale`. " +
			"Update `aiAgents` with their `implementationContribution`. " +
			"The output must strictly follow the JSON schema for this stage.",
		Paths: []string{
			"nursingDiagnoses.*.goals.*.interventions",
			"aiAgents",
		},
		Required: []string{"nursingDiagnoses"},
	},
	{
		Name:           StageEvaluation,
		AccordionTitle: "Stage 4: Evaluation Criteria Planning (1 evaluation/goal)",
		Focus: "For each goal (up to 5 goals per diagnosis), define specific evaluation criteria. " +
			"Populate ONLY the `evaluation` object within each `goal` object. This object must include `evaluationText`, `evaluationMethod`, `evaluationTargetDate`, and `evaluationStatus`. " +
			"Update `aiAgents` with their `evaluationContribution`. " +
			"The output must strictly follow the JSON schema for this stage.",
		Paths: []string{
			"nursingDiagnoses.*.goals.*.evaluation",
			"aiAgents",
		},
		Required: []string{"nursingDiagnoses"},
	},
	{
		Name:           StageSummary,
		AccordionTitle: "Stage 5: Interdisciplinary Plan, Summary & Administrative Support",
		Focus: "Develop an `interdisciplinaryPlan` identifying key collaborations. " +
			"Provide an `overall_plan_summary`. Define clear `next_steps` for ongoing care. " +
			"Identify any `priorAuthItems` required. Update `aiAgents` with final `confidenceScore` and overall `insights`. " +
			"Generate `sourcesData` used throughout the plan. " +
			"Create `notification_title`, `notification_message`, and details for care team communication. " +
			"Strictly adhere to the JSON schema provided for this stage for all generated fields.",
		Paths: []string{
			"interdisciplinaryPlan",
			"overall_plan_summary", "next_steps",
			"priorAuthItems", "aiAgents", "sourcesData",
			"notification_title", "notification_message",
			"notification_detail_1", "notification_detail_2",
		},
		Required: []string{"interdisciplinaryPlan", "overall_plan_summary", "next_steps", "aiAgents"},
	},
}

// StageByName returns the named stage.
func StageByName(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// SubSchema projects the full care plan schema onto the stage's paths.
// Intermediate objects and arrays on a nested path are emitted as shells
// holding only the projected leaves. Only top-level required keys that were
// actually projected are kept.
func SubSchema(st Stage) map[string]any {
	full := Schema()
	props := map[string]any{}
	for _, path := range st.Paths {
		project(full, props, strings.Split(path, "."))
	}

	var required []string
	for _, key := range st.Required {
		if _, ok := props[key]; ok {
			required = append(required, key)
		}
	}
	sort.Strings(required)

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// project copies the definition at parts from the object schema src into
// dst, which is the properties map of the matching projected object.
func project(src map[string]any, dst map[string]any, parts []string) bool {
	srcProps, _ := src["properties"].(map[string]any)
	def, ok := srcProps[parts[0]].(map[string]any)
	if !ok {
		return false
	}
	if len(parts) == 1 {
		dst[parts[0]] = deepCopy(def)
		return true
	}

	node, ok := dst[parts[0]].(map[string]any)
	if !ok {
		node = shell(def)
		dst[parts[0]] = node
	}

	rest := parts[1:]
	srcNode, dstNode := def, node
	if rest[0] == "*" {
		items, ok := def["items"].(map[string]any)
		if !ok {
			return false
		}
		if len(rest) == 1 {
			node["items"] = deepCopy(items)
			return true
		}
		dstItems, ok := node["items"].(map[string]any)
		if !ok {
			return false
		}
		srcNode, dstNode, rest = items, dstItems, rest[1:]
	}

	dstProps, ok := dstNode["properties"].(map[string]any)
	if !ok {
		dstProps = map[string]any{}
		dstNode["properties"] = dstProps
	}
	return project(srcNode, dstProps, rest)
}

func shell(def map[string]any) map[string]any {
	if def["type"] == "array" {
		return map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "object", "properties": map[string]any{}},
		}
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
