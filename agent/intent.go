package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// Signals is what one step exposes to the heuristics: the model's raw
// response, the user's latest question, and whether a tool result had
// already been supplied this step.
type Signals struct {
	Response      string
	Question      string
	HasToolResult bool
}

// IntentReport is the detector's verdict for one step.
type IntentReport struct {
	HasToolIntent    bool
	NeedsData        bool
	LikelyFabricated bool
	ShouldForce      bool
	Reasons          []string
}

// Predicate is one independently testable heuristic over the step signals.
type Predicate struct {
	Name  string
	Match func(Signals) bool
}

// IntentDetector flags responses where the model announced an action without
// taking it, or answered a data question with numbers it could not have had.
// Heuristics are kept as ordered predicate lists so each one can be tested
// and extended without touching the orchestration logic.
type IntentDetector struct {
	log            func(string)
	toolIntent     []Predicate
	dataQuestion   []Predicate
	fabrication    []Predicate
	minForceLength int
}

// NewIntentDetector creates the detector with the default heuristic set.
func NewIntentDetector(logFunc func(string)) *IntentDetector {
	return &IntentDetector{
		log:            logFunc,
		toolIntent:     defaultToolIntentPredicates(),
		dataQuestion:   defaultDataQuestionPredicates(),
		fabrication:    defaultFabricationPredicates(),
		minForceLength: 50,
	}
}

func (d *IntentDetector) logf(format string, args ...interface{}) {
	if d.log != nil {
		d.log(fmt.Sprintf(format, args...))
	}
}

// Detect runs the heuristics and applies the decision rule:
// force a retry when the model announces a tool call it never emitted, when
// a data-requiring question got a substantive answer with no tool result
// behind it, or when the fabrication heuristic fires.
func (d *IntentDetector) Detect(sig Signals) IntentReport {
	report := IntentReport{}

	for _, p := range d.toolIntent {
		if p.Match(sig) {
			report.HasToolIntent = true
			report.Reasons = append(report.Reasons, p.Name)
			break
		}
	}
	for _, p := range d.dataQuestion {
		if p.Match(sig) {
			report.NeedsData = true
			report.Reasons = append(report.Reasons, p.Name)
			break
		}
	}
	if report.NeedsData {
		for _, p := range d.fabrication {
			if p.Match(sig) {
				report.LikelyFabricated = true
				report.Reasons = append(report.Reasons, p.Name)
				break
			}
		}
	}

	report.ShouldForce = (report.HasToolIntent && !sig.HasToolResult) ||
		(report.NeedsData && !sig.HasToolResult && len(sig.Response) > d.minForceLength) ||
		report.LikelyFabricated

	if report.ShouldForce {
		d.logf("[INTENT] forcing retry: intent=%v needsData=%v fabricated=%v reasons=%s",
			report.HasToolIntent, report.NeedsData, report.LikelyFabricated, strings.Join(report.Reasons, ","))
	}

	return report
}

// Spanish phrases meaning "I will check/query/verify". The model is told not
// to narrate intent, so any of these without an emitted call is a miss.
var toolIntentPhrases = []string{
	"voy a consultar",
	"voy a revisar",
	"voy a verificar",
	"voy a buscar",
	"déjame revisar",
	"dejame revisar",
	"déjame consultar",
	"dejame consultar",
	"permíteme revisar",
	"permiteme revisar",
	"consultaré",
	"revisaré",
	"verificaré",
	"un momento mientras",
}

func defaultToolIntentPredicates() []Predicate {
	return []Predicate{
		{
			Name: "tool_intent_phrase",
			Match: func(sig Signals) bool {
				lr := strings.ToLower(sig.Response)
				for _, phrase := range toolIntentPhrases {
					if strings.Contains(lr, phrase) {
						return true
					}
				}
				return false
			},
		},
		{
			Name: "error_mention",
			Match: func(sig Signals) bool {
				lr := strings.ToLower(sig.Response)
				return strings.Contains(lr, "error") &&
					(strings.Contains(lr, "column") || strings.Contains(lr, "columna") ||
						strings.Contains(lr, "table") || strings.Contains(lr, "tabla"))
			},
		},
	}
}

// Question patterns implying the answer must come from the data store.
var dataQuestionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcu[aá]nt[oa]s?\b`),
	regexp.MustCompile(`(?i)\bcu[aá]l\s+fue\b`),
	regexp.MustCompile(`(?i)\bcu[aá]nto\s+(gast|vend|factur|cobr)`),
	regexp.MustCompile(`(?i)show\s*rate`),
	regexp.MustCompile(`(?i)\broas\b`),
	regexp.MustCompile(`(?i)\bcloser\b`),
	regexp.MustCompile(`(?i)llamadas?\b`),
	regexp.MustCompile(`(?i)cierres?\b`),
	regexp.MustCompile(`(?i)objecion`),
	regexp.MustCompile(`(?i)factur`),
	regexp.MustCompile(`(?i)\bleads?\b`),
	regexp.MustCompile(`(?i)tasa\s+de\s+(cierre|asistencia)`),
	regexp.MustCompile(`(?i)del?\s+\d{1,2}\s+al\s+\d{1,2}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
}

func defaultDataQuestionPredicates() []Predicate {
	return []Predicate{
		{
			Name: "data_question_pattern",
			Match: func(sig Signals) bool {
				for _, re := range dataQuestionRes {
					if re.MatchString(sig.Question) {
						return true
					}
				}
				return false
			},
		},
	}
}

// Domain nouns that, next to a run of digits, suggest invented figures.
var fabricationNouns = []string{"llamada", "cierre", "factur", "cash", "show rate", "roas", "lead", "$"}

var digitRunRe = regexp.MustCompile(`\d{2,}`)

// Known precision/recall tradeoff: a legitimate general-knowledge answer
// containing numbers can over-trigger this, and fabricated decimals with no
// adjacent keyword can slip through. Kept as-is deliberately.
func defaultFabricationPredicates() []Predicate {
	return []Predicate{
		{
			Name: "digits_near_domain_nouns",
			Match: func(sig Signals) bool {
				if sig.HasToolResult {
					return false
				}
				lr := strings.ToLower(sig.Response)
				hasNoun := false
				for _, noun := range fabricationNouns {
					if strings.Contains(lr, noun) {
						hasNoun = true
						break
					}
				}
				return hasNoun && digitRunRe.MatchString(sig.Response)
			},
		},
	}
}
