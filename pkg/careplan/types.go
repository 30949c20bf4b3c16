package careplan

// CarePlan is an ADPIE (assessment, diagnosis, planning, implementation,
// evaluation) plan of care. Its JSON form is the terminal payload of a
// generation and the source of the JSON Schema sent to the backend.
type CarePlan struct {
	PatientData                PatientData             `json:"patientData" jsonschema:"required"`
	ClinicalData               ClinicalData            `json:"clinicalData" jsonschema:"required"`
	AIAgents                   []AIAgent               `json:"aiAgents,omitempty"`
	RecommendedAssessmentsList []RecommendedAssessment `json:"recommendedAssessmentsList" jsonschema:"required" jsonschema_description:"List of recommended assessments to be performed, with rationales and status."`
	PriorAuthItems             []PriorAuthItem         `json:"priorAuthItems,omitempty"`
	SourcesData                []Source                `json:"sourcesData,omitempty"`

	AssessmentSubjectiveChiefComplaint string `json:"assessment_subjective_chief_complaint,omitempty"`
	AssessmentSubjectiveHPI            string `json:"assessment_subjective_hpi,omitempty"`
	AssessmentSubjectiveGoals          string `json:"assessment_subjective_goals,omitempty"`
	AssessmentSubjectiveOther          string `json:"assessment_subjective_other,omitempty"`
	AssessmentObjectiveVitalsSummary   string `json:"assessment_objective_vitals_summary,omitempty"`
	AssessmentObjectivePhysicalExam    string `json:"assessment_objective_physical_exam,omitempty"`
	AssessmentObjectiveDiagnostics     string `json:"assessment_objective_diagnostics,omitempty"`
	AssessmentObjectiveMedsReviewed    string `json:"assessment_objective_meds_reviewed,omitempty"`
	AssessmentObjectiveOther           string `json:"assessment_objective_other,omitempty"`

	NursingDiagnoses      []NursingDiagnosis      `json:"nursingDiagnoses" jsonschema:"required"`
	InterdisciplinaryPlan []InterdisciplinaryItem `json:"interdisciplinaryPlan,omitempty"`
	OverallPlanSummary    string                  `json:"overall_plan_summary,omitempty"`
	NextSteps             []string                `json:"next_steps" jsonschema:"required"`

	NotificationTitle   string `json:"notification_title,omitempty"`
	NotificationMessage string `json:"notification_message,omitempty"`
	NotificationDetail1 string `json:"notification_detail_1,omitempty"`
	NotificationDetail2 string `json:"notification_detail_2,omitempty"`
}

type PatientData struct {
	FullName         string     `json:"patient_full_name,omitempty"`
	Age              FlexString `json:"patient_age,omitempty"`
	Gender           string     `json:"patient_gender,omitempty"`
	MRN              string     `json:"patient_mrn,omitempty"`
	DOB              string     `json:"patient_dob,omitempty"`
	InsurancePlan    string     `json:"patient_insurance_plan,omitempty"`
	PolicyNumber     string     `json:"patient_policy_number,omitempty"`
	PrimaryProvider  string     `json:"patient_primary_provider,omitempty"`
	AdmissionDate    string     `json:"patient_admission_date,omitempty"`
	Allergies        []string   `json:"allergies,omitempty"`
	VitalSigns       VitalSigns `json:"vitalSigns,omitempty"`
	NYHAClassSummary string     `json:"nyha_class_description,omitempty"`
}

type VitalSigns struct {
	BP        string `json:"vital_bp,omitempty"`
	Pulse     string `json:"vital_pulse,omitempty"`
	RespRate  string `json:"vital_resp_rate,omitempty"`
	Temp      string `json:"vital_temp,omitempty"`
	O2Sat     string `json:"vital_o2sat,omitempty"`
	PainScore string `json:"vital_pain_score,omitempty"`
}

type ClinicalData struct {
	PrimaryDiagnosis   string       `json:"primary_diagnosis_text,omitempty"`
	SecondaryDiagnoses []string     `json:"secondaryDiagnoses,omitempty"`
	Labs               []Lab        `json:"labs,omitempty"`
	Medications        []Medication `json:"medications,omitempty"`
	Treatments         []Treatment  `json:"treatments,omitempty"`
	LastImagingSummary string       `json:"last_imaging_summary,omitempty"`
	LastECGSummary     string       `json:"last_ecg_summary,omitempty"`
}

type Lab struct {
	Name  string `json:"lab_n_name,omitempty"`
	Value string `json:"lab_n_value,omitempty"`
	Flag  string `json:"lab_n_flag,omitempty"`
	Trend string `json:"lab_n_trend,omitempty"`
}

type Medication struct {
	Name       string   `json:"med_n_name,omitempty"`
	Dosage     string   `json:"med_n_dosage,omitempty"`
	Route      string   `json:"med_n_route,omitempty"`
	Frequency  string   `json:"med_n_frequency,omitempty"`
	Status     string   `json:"med_n_status,omitempty"`
	PARequired FlexBool `json:"med_n_pa_required,omitempty"`
}

type Treatment struct {
	Name       string   `json:"treatment_n_name,omitempty"`
	Status     string   `json:"treatment_n_status,omitempty"`
	Details    string   `json:"treatment_n_details,omitempty"`
	Date       string   `json:"treatment_n_date,omitempty"`
	PARequired FlexBool `json:"treatment_n_pa_required,omitempty"`
}

// AIAgent is one specialist persona that contributed to the plan.
type AIAgent struct {
	Name                       string   `json:"name" jsonschema:"required"`
	Specialty                  string   `json:"specialty" jsonschema:"required"`
	ConfidenceScore            float64  `json:"confidenceScore" jsonschema:"required" jsonschema_description:"Overall confidence of this agent in its contributions (0.0 to 1.0)"`
	Insights                   []string `json:"insights" jsonschema:"required" jsonschema_description:"Key insights or summaries provided by this agent"`
	AssessmentContribution     string   `json:"assessmentContribution,omitempty" jsonschema_description:"Summary of this agent's contribution to the assessment phase"`
	PlanningContribution       string   `json:"planningContribution,omitempty" jsonschema_description:"Summary of this agent's contribution to the planning phase (diagnoses, goals)"`
	ImplementationContribution string   `json:"implementationContribution,omitempty" jsonschema_description:"Summary of this agent's contribution to the implementation phase (interventions)"`
	EvaluationContribution     string   `json:"evaluationContribution,omitempty" jsonschema_description:"Summary of this agent's contribution to the evaluation phase"`
}

type RecommendedAssessment struct {
	Item      string `json:"item" jsonschema:"required" jsonschema_description:"Specific assessment to be performed (e.g., 'Monitor blood pressure q4h')"`
	Rationale string `json:"rationale" jsonschema:"required" jsonschema_description:"Reason for performing this assessment"`
	Status    string `json:"status" jsonschema:"required,enum=pending,enum=in_progress,enum=completed,enum=deferred" jsonschema_description:"Current status of the assessment"`
}

type PriorAuthItem struct {
	ID                  string          `json:"id,omitempty"`
	Item                string          `json:"item,omitempty"`
	Type                string          `json:"type,omitempty"`
	Status              string          `json:"status,omitempty"`
	SubmittedDate       string          `json:"submittedDate,omitempty"`
	ApprovedDate        string          `json:"approvedDate,omitempty"`
	ExpirationDate      string          `json:"expirationDate,omitempty"`
	EstimatedResponse   string          `json:"estimatedResponse,omitempty"`
	EstimatedSubmission string          `json:"estimatedSubmission,omitempty"`
	Confidence          string          `json:"confidence,omitempty"`
	Criteria            []AuthCriterion `json:"criteria,omitempty"`
}

type AuthCriterion struct {
	Name  string   `json:"name,omitempty"`
	Met   FlexBool `json:"met,omitempty"`
	Notes string   `json:"notes,omitempty"`
}

type Source struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title,omitempty"`
	Type          string `json:"type,omitempty"`
	URL           string `json:"url,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
	RetrievalDate string `json:"retrieval_date,omitempty"`
	AgentSource   string `json:"agent_source,omitempty"`
}

// NursingDiagnosis is a NANDA diagnosis with its goals.
type NursingDiagnosis struct {
	NANDA       string   `json:"diagnosis_nanda" jsonschema:"required"`
	RelatedTo   string   `json:"diagnosis_related_to,omitempty"`
	Evidence    []string `json:"diagnosis_evidence" jsonschema:"required"`
	IsRisk      bool     `json:"diagnosis_is_risk,omitempty"`
	RiskFactors []string `json:"diagnosis_risk_factors,omitempty"`
	Goals       []Goal   `json:"goals" jsonschema:"required"`
}

type Goal struct {
	Description   string         `json:"goal_description" jsonschema:"required"`
	TargetDate    string         `json:"goal_target_date,omitempty" jsonschema_description:"Target date (YYYY-MM-DD)."`
	Outcomes      []string       `json:"goal_outcomes" jsonschema:"required"`
	Rationale     string         `json:"goal_rationale,omitempty"`
	Interventions []Intervention `json:"interventions" jsonschema:"required" jsonschema_description:"Interventions specific to this goal."`
	Evaluation    Evaluation     `json:"evaluation" jsonschema:"required" jsonschema_description:"Evaluation criteria and status for this goal."`
}

type Intervention struct {
	Text      string `json:"interventionText" jsonschema:"required" jsonschema_description:"The specific nursing intervention action."`
	Type      string `json:"interventionType" jsonschema:"required,enum=general,enum=health_teaching,enum=monitoring,enum=psychosocial" jsonschema_description:"Type of intervention."`
	Rationale string `json:"rationale" jsonschema:"required" jsonschema_description:"Evidence-based rationale for the intervention."`
}

type Evaluation struct {
	Text       string `json:"evaluationText" jsonschema:"required" jsonschema_description:"Description of how the goal achievement will be evaluated."`
	Method     string `json:"evaluationMethod" jsonschema:"required" jsonschema_description:"Method used for evaluation (e.g., patient report, observation, lab values)."`
	TargetDate string `json:"evaluationTargetDate,omitempty" jsonschema_description:"Target date for this specific evaluation point (YYYY-MM-DD)."`
	Status     string `json:"evaluationStatus" jsonschema:"required,enum=met,enum=partially_met,enum=not_met,enum=ongoing" jsonschema_description:"Status of goal achievement."`
}

type InterdisciplinaryItem struct {
	Discipline string `json:"discipline" jsonschema:"required"`
	PlanItem   string `json:"plan_item" jsonschema:"required"`
}
