package careplancmder

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/thinkstream/pkg/careplan"
)

// Summary renders the parts of plan a clinician reads first as markdown.
func Summary(plan *careplan.CarePlan) string {
	var b strings.Builder

	b.WriteString("# Care plan")
	if name := plan.PatientData.FullName; name != "" {
		fmt.Fprintf(&b, ": %s", name)
	}
	b.WriteString("\n\n")

	if dx := plan.ClinicalData.PrimaryDiagnosis; dx != "" {
		fmt.Fprintf(&b, "**Primary diagnosis:** %s\n\n", dx)
	}
	if s := plan.OverallPlanSummary; s != "" && s != "N/A" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}

	if len(plan.NursingDiagnoses) > 0 {
		b.WriteString("## Nursing diagnoses\n\n")
		for i, d := range plan.NursingDiagnoses {
			fmt.Fprintf(&b, "%d. **%s**", i+1, d.NANDA)
			if d.RelatedTo != "" {
				fmt.Fprintf(&b, " related to %s", d.RelatedTo)
			}
			b.WriteString("\n")
			for _, g := range d.Goals {
				fmt.Fprintf(&b, "   - Goal: %s (%s)\n", g.Description, strings.ReplaceAll(g.Evaluation.Status, "_", " "))
				for _, in := range g.Interventions {
					fmt.Fprintf(&b, "     - %s\n", in.Text)
				}
			}
		}
		b.WriteString("\n")
	}

	if len(plan.RecommendedAssessmentsList) > 0 {
		b.WriteString("## Recommended assessments\n\n")
		for _, a := range plan.RecommendedAssessmentsList {
			fmt.Fprintf(&b, "- %s\n", a.Item)
		}
		b.WriteString("\n")
	}

	if len(plan.NextSteps) > 0 {
		b.WriteString("## Next steps\n\n")
		for _, s := range plan.NextSteps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}
