package reasoning

import (
	"regexp"
	"strings"
)

var (
	phaseHeading    = regexp.MustCompile(`(?m)^(Assessment|Diagnosis|Planning|Implementation|Evaluation|Conclusion|Summary):$`)
	stepHeading     = regexp.MustCompile(`(?m)^(Step\s*\d+):`)
	supportHeading  = regexp.MustCompile(`(?m)^(Rationale|Evidence|Considerations):$`)
	citation        = regexp.MustCompile(`(\[\s*(?:S\d+|\d+|[A-Za-z]+)\s*\])`)
	dashBullet      = regexp.MustCompile(`(?m)^[ \t]*-[ \t]+(.*)`)
	starBullet      = regexp.MustCompile(`(?m)^[ \t]*\*[ \t]+(.*)`)
	numberedItem    = regexp.MustCompile(`(?m)^[ \t]*(\d+\.)[ \t]+(.*)`)
	quoteLine       = regexp.MustCompile(`(?m)^[ \t]*>[ \t]*(.*)`)
	numberedBlock   = regexp.MustCompile(`^\d+\.\s`)
	clinicalPattern []*regexp.Regexp
)

// clinicalKeywords are emphasized in rendered reasoning.
var clinicalKeywords = []string{
	"ADPIE", "NANDA", "CHF", "Congestive Heart Failure", "Hypertension", "Diabetes",
	"Assessment", "Diagnosis", "Planning", "Implementation", "Evaluation",
	"Goal", "Outcome", "Intervention", "Rationale", "Evidence",
	"Risk for", "Related to", "As evidenced by",
}

func init() {
	clinicalPattern = make([]*regexp.Regexp, len(clinicalKeywords))
	for i, kw := range clinicalKeywords {
		clinicalPattern[i] = regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(kw) + `)\b`)
	}
}

// Markdown formats raw clinical reasoning for display. It turns nursing
// process phase labels and "Step N:" prefixes into headings, emphasizes
// clinical keywords and citations like [S1], normalizes list markers, and
// joins hard-wrapped prose paragraphs into single lines.
func Markdown(text string) string {
	if text == "" {
		return ""
	}

	md := strings.ReplaceAll(text, "\r\n", "\n")
	md = phaseHeading.ReplaceAllString(md, "## ${1}:")
	md = stepHeading.ReplaceAllString(md, "### ${1}:")
	md = supportHeading.ReplaceAllString(md, "#### ${1}:")

	for _, re := range clinicalPattern {
		md = re.ReplaceAllString(md, "**${1}**")
	}

	md = citation.ReplaceAllString(md, "*${1}*")
	md = dashBullet.ReplaceAllString(md, "* ${1}")
	md = starBullet.ReplaceAllString(md, "* ${1}")
	md = numberedItem.ReplaceAllString(md, "${1} ${2}")
	md = quoteLine.ReplaceAllString(md, "> ${1}")

	blocks := strings.Split(md, "\n\n")
	for i, block := range blocks {
		if !isStructuredBlock(block) {
			block = strings.ReplaceAll(block, "\n", " ")
		}
		blocks[i] = strings.TrimSpace(block)
	}

	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}

func isStructuredBlock(block string) bool {
	return strings.HasPrefix(block, "* ") ||
		strings.HasPrefix(block, "#") ||
		strings.HasPrefix(block, ">") ||
		numberedBlock.MatchString(block)
}
