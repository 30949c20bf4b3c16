package careplancmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	careplancmder "github.com/papercomputeco/thinkstream/cmd/thinkstream/careplan"
	"github.com/papercomputeco/thinkstream/pkg/careplan"
)

const validPlan = `{
	"patientData": {"patient_full_name": "Jane Doe", "patient_age": 67},
	"clinicalData": {"primary_diagnosis_text": "Congestive Heart Failure"},
	"recommendedAssessmentsList": [
		{"item": "Daily weights", "rationale": "Track fluid status", "status": "pending"}
	],
	"nursingDiagnoses": [{
		"diagnosis_nanda": "Excess Fluid Volume",
		"diagnosis_evidence": ["bilateral edema"],
		"goals": [{
			"goal_description": "Achieve euvolemia",
			"goal_outcomes": ["Weight down 2kg"],
			"interventions": [
				{"interventionText": "Weigh daily", "interventionType": "monitoring", "rationale": "Detect retention"}
			],
			"evaluation": {
				"evaluationText": "Weight trend reviewed",
				"evaluationMethod": "Daily weights",
				"evaluationStatus": "ongoing"
			}
		}]
	}],
	"next_steps": ["Cardiology follow up"]
}`

func compact(s string) string {
	var b bytes.Buffer
	Expect(json.Compact(&b, []byte(s))).To(Succeed())
	return b.String()
}

func event(ev careplan.Event) string {
	data, err := json.Marshal(ev)
	Expect(err).NotTo(HaveOccurred())
	return "data: " + string(data) + "\n\n"
}

func intPtr(i int) *int { return &i }

var _ = Describe("NewCarePlanCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := careplancmder.NewCarePlanCmd()
		Expect(cmd.Use).To(Equal("careplan"))
	})

	It("has the expected flags", func() {
		cmd := careplancmder.NewCarePlanCmd()
		for _, name := range []string{"file", "mode", "api-target", "environment", "focus", "output", "json"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("api-target").DefValue).To(Equal("http://localhost:8081"))
	})
})

var _ = Describe("Care plan command execution", func() {
	var (
		tmpDir   string
		server   *httptest.Server
		mu       sync.Mutex
		setups   []map[string]json.RawMessage
		feed     string
		setupErr bool
		out      *bytes.Buffer
		errOut   *bytes.Buffer
	)

	stagedFeed := func() string {
		return event(careplan.Event{Type: careplan.EventStart}) +
			event(careplan.Event{Type: careplan.EventOverallStart}) +
			event(careplan.Event{Type: careplan.EventStageStart, StageName: "assessment", AccordionTitle: "Assessment", StageIndex: intPtr(0)}) +
			event(careplan.Event{Type: careplan.EventReasoningChunk, StageName: "assessment", Content: "Edema suggests fluid overload."}) +
			event(careplan.Event{Type: careplan.EventPlanComplete, CarePlan: json.RawMessage(compact(validPlan))}) +
			"data: [DONE]\n\n"
	}

	writePatient := func(content string) string {
		path := filepath.Join(tmpDir, "patient.json")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	run := func(args ...string) error {
		cmd := careplancmder.NewCarePlanCmd()
		cmd.PersistentFlags().String("config-dir", tmpDir, "")
		cmd.SetOut(out)
		cmd.SetErr(errOut)
		cmd.SetArgs(append([]string{"--api-target", server.URL}, args...))
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "thinkstream-careplan-test-*")
		Expect(err).NotTo(HaveOccurred())

		setups = nil
		setupErr = false
		feed = stagedFeed()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}

		mux := http.NewServeMux()
		mux.HandleFunc("/api/careplan/initiate-stream", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]json.RawMessage
			_ = json.NewDecoder(r.Body).Decode(&body)

			mu.Lock()
			setups = append(setups, body)
			fail := setupErr
			mu.Unlock()

			if fail {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"stream_id":"abc"}`)
		})
		mux.HandleFunc("/api/careplan/stream", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("streamId") != "abc" {
				http.Error(w, "unknown stream", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, feed)
		})
		server = httptest.NewServer(mux)
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(tmpDir)
	})

	It("streams reasoning and prints the plan JSON", func() {
		path := writePatient(`{"patient_form_data":{"name":"Jane"},"care_environment":"hospital","focus_areas":["cardiac"]}`)

		Expect(run("--file", path, "--json")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Edema suggests fluid overload."))
		Expect(out.String()).To(ContainSubstring(`"diagnosis_nanda": "Excess Fluid Volume"`))

		Expect(setups).To(HaveLen(1))
		Expect(string(setups[0]["care_environment"])).To(Equal(`"hospital"`))
	})

	It("renders a summary by default", func() {
		path := writePatient(`{"patient_form_data":{"name":"Jane"}}`)

		Expect(run("--file", path)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Excess Fluid Volume"))
		Expect(out.String()).To(ContainSubstring("Cardiology follow up"))
	})

	It("wraps bare patient data and applies flag overrides", func() {
		path := writePatient(`{"name":"Jane","age":67}`)

		Expect(run("--file", path, "--json", "--mode", "staged", "--environment", "home", "--focus", "cardiac,renal")).To(Succeed())

		Expect(setups).To(HaveLen(1))
		Expect(compact(string(setups[0]["patient_form_data"]))).To(Equal(`{"name":"Jane","age":67}`))
		Expect(string(setups[0]["care_environment"])).To(Equal(`"home"`))
		Expect(string(setups[0]["mode"])).To(Equal(`"staged"`))
		Expect(compact(string(setups[0]["focus_areas"]))).To(Equal(`["cardiac","renal"]`))
	})

	It("uses the final JSON of a single pass feed", func() {
		feed = event(careplan.Event{Type: careplan.EventStart}) +
			event(careplan.Event{Type: careplan.EventContentChunk, Content: "<think>Check weights.</think>\n"}) +
			event(careplan.Event{Type: careplan.EventContentChunk, Content: compact(validPlan)}) +
			event(careplan.Event{Type: careplan.EventFinalJSON, JSONData: json.RawMessage(compact(validPlan))}) +
			"data: [DONE]\n\n"
		path := writePatient(`{"name":"Jane"}`)

		Expect(run("--file", path, "--mode", "single", "--json")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Check weights."))
		Expect(out.String()).To(ContainSubstring("Achieve euvolemia"))
	})

	It("writes the plan to --output", func() {
		path := writePatient(`{"name":"Jane"}`)
		dest := filepath.Join(tmpDir, "plan.json")

		Expect(run("--file", path, "--output", dest)).To(Succeed())

		data, err := os.ReadFile(dest)
		Expect(err).NotTo(HaveOccurred())
		_, err = careplan.Decode(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(errOut.String()).To(ContainSubstring("plan.json"))
	})

	It("reads the patient context from stdin", func() {
		cmd := careplancmder.NewCarePlanCmd()
		cmd.PersistentFlags().String("config-dir", tmpDir, "")
		cmd.SetIn(strings.NewReader(`{"name":"Jane"}`))
		cmd.SetOut(out)
		cmd.SetErr(errOut)
		cmd.SetArgs([]string{"--api-target", server.URL, "--file", "-", "--json"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(compact(string(setups[0]["patient_form_data"]))).To(Equal(`{"name":"Jane"}`))
	})

	It("reports stage errors and still completes", func() {
		feed = event(careplan.Event{Type: careplan.EventStageStart, StageName: "planning", AccordionTitle: "Planning", StageIndex: intPtr(0)}) +
			event(careplan.ErrorEvent("planning", "stage timed out")) +
			event(careplan.Event{Type: careplan.EventPlanComplete, CarePlan: json.RawMessage(compact(validPlan))}) +
			"data: [DONE]\n\n"
		path := writePatient(`{"name":"Jane"}`)

		Expect(run("--file", path, "--json")).To(Succeed())
		Expect(errOut.String()).To(ContainSubstring("stage timed out"))
	})

	It("fails on a generation error", func() {
		feed = event(careplan.Event{Type: careplan.EventStart}) +
			event(careplan.ErrorEvent("", "backend unavailable"))
		path := writePatient(`{"name":"Jane"}`)

		err := run("--file", path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("backend unavailable"))
	})

	It("fails when the setup request is rejected", func() {
		setupErr = true
		path := writePatient(`{"name":"Jane"}`)

		err := run("--file", path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("400"))
	})

	It("rejects an unknown mode before contacting the server", func() {
		path := writePatient(`{"name":"Jane"}`)

		err := run("--file", path, "--mode", "fast")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invalid mode"))
		Expect(setups).To(BeEmpty())
	})

	It("rejects a malformed patient file", func() {
		path := writePatient(`not json`)

		err := run("--file", path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parsing patient context"))
	})

	It("requires --file", func() {
		err := run()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Summary", func() {
	It("lists diagnoses, goals and next steps", func() {
		plan, err := careplan.Decode(json.RawMessage(validPlan))
		Expect(err).NotTo(HaveOccurred())

		md := careplancmder.Summary(plan)
		Expect(md).To(HavePrefix("# Care plan: Jane Doe"))
		Expect(md).To(ContainSubstring("**Primary diagnosis:** Congestive Heart Failure"))
		Expect(md).To(ContainSubstring("1. **Excess Fluid Volume**"))
		Expect(md).To(ContainSubstring("Goal: Achieve euvolemia (ongoing)"))
		Expect(md).To(ContainSubstring("- Weigh daily"))
		Expect(md).To(ContainSubstring("- Daily weights"))
		Expect(md).To(ContainSubstring("- Cardiology follow up"))
	})

	It("omits empty sections", func() {
		md := careplancmder.Summary(&careplan.CarePlan{})
		Expect(md).To(Equal("# Care plan\n\n"))
	})
})
