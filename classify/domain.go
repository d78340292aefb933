package classify

import (
	"regexp"
	"strings"

	"github.com/cascadehq/cascaderouter/core"
)

// keyword weight tiers.
const (
	weightVeryStrong = 1.5
	weightStrong     = 1.0
	weightModerate   = 0.7
	weightWeak       = 0.3
)

type keyword struct {
	term   string
	weight float64
}

// domainKeywords is the deterministic keyword table driving domain
// scoring. One table per enumerated domain; general has no
// table of its own — it is the fallback when nothing else scores.
var domainKeywords = map[core.Domain][]keyword{
	core.DomainCode: {
		{"function", weightStrong}, {"```", weightVeryStrong}, {"compile", weightStrong},
		{"stack trace", weightVeryStrong}, {"refactor", weightStrong}, {"algorithm", weightModerate},
		{"bug", weightModerate}, {"unit test", weightStrong}, {"python", weightModerate},
		{"golang", weightModerate}, {"javascript", weightModerate}, {"variable", weightWeak},
		{"repository", weightWeak}, {"pull request", weightStrong},
	},
	core.DomainData: {
		{"sql", weightVeryStrong}, {"dataframe", weightVeryStrong}, {"csv", weightStrong},
		{"pivot table", weightStrong}, {"aggregate", weightModerate}, {"join", weightModerate},
		{"etl", weightStrong}, {"dataset", weightModerate}, {"schema", weightWeak},
		{"query the database", weightVeryStrong},
	},
	core.DomainStructured: {
		{"json schema", weightVeryStrong}, {"yaml", weightStrong}, {"xml", weightStrong},
		{"as json", weightStrong}, {"key-value", weightModerate}, {"parse this into", weightModerate},
		{"structured output", weightVeryStrong},
	},
	core.DomainRAG: {
		{"according to the document", weightVeryStrong}, {"based on the attached", weightVeryStrong},
		{"retrieved context", weightStrong}, {"citation", weightModerate}, {"source document", weightStrong},
		{"knowledge base", weightModerate},
	},
	core.DomainConversation: {
		{"hello", weightStrong}, {"hi there", weightStrong}, {"how are you", weightVeryStrong},
		{"thanks", weightModerate}, {"thank you", weightModerate}, {"chat", weightWeak},
		{"what's up", weightStrong},
	},
	core.DomainTool: {
		{"call the api", weightVeryStrong}, {"invoke", weightStrong}, {"function call", weightVeryStrong},
		{"use the tool", weightVeryStrong}, {"webhook", weightModerate}, {"execute the command", weightStrong},
	},
	core.DomainCreative: {
		{"write a poem", weightVeryStrong}, {"short story", weightVeryStrong}, {"write a song", weightVeryStrong},
		{"brainstorm", weightModerate}, {"creative", weightModerate}, {"fictional", weightModerate},
		{"write a story", weightVeryStrong},
	},
	core.DomainSummary: {
		{"summarize", weightVeryStrong}, {"tl;dr", weightVeryStrong}, {"key takeaways", weightStrong},
		{"give me a summary", weightVeryStrong}, {"condense", weightModerate}, {"in a few sentences", weightModerate},
	},
	core.DomainTranslation: {
		{"translate", weightVeryStrong}, {"in spanish", weightStrong}, {"in french", weightStrong},
		{"into japanese", weightStrong}, {"from english to", weightVeryStrong},
	},
	core.DomainMath: {
		{"solve for", weightVeryStrong}, {"derivative", weightVeryStrong}, {"integral", weightVeryStrong},
		{"equation", weightStrong}, {"theorem", weightStrong}, {"calculate", weightModerate},
		{"probability", weightModerate}, {"matrix", weightModerate},
	},
	core.DomainMedical: {
		{"diagnosis", weightVeryStrong}, {"symptom", weightStrong}, {"treatment", weightStrong},
		{"medication", weightStrong}, {"patient", weightModerate}, {"dosage", weightStrong},
		{"contraindication", weightVeryStrong},
	},
	core.DomainLegal: {
		{"contract", weightStrong}, {"liability", weightStrong}, {"plaintiff", weightVeryStrong},
		{"jurisdiction", weightStrong}, {"statute", weightStrong}, {"indemnification", weightVeryStrong},
		{"terms of service", weightModerate},
	},
	core.DomainFinancial: {
		{"portfolio", weightStrong}, {"valuation", weightStrong}, {"balance sheet", weightVeryStrong},
		{"arbitrage", weightVeryStrong}, {"interest rate", weightStrong}, {"amortization", weightVeryStrong},
		{"equity", weightModerate},
	},
	core.DomainMultimodal: {
		{"in this image", weightVeryStrong}, {"attached photo", weightVeryStrong}, {"the picture shows", weightVeryStrong},
		{"this screenshot", weightStrong}, {"video frame", weightStrong},
	},
}

// mcqPatterns identifies multiple-choice-framed queries: "A) ... B) ..."
// option lists, "choose the correct answer", "select one of the following".
var mcqPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*[A-D][.)]\s+\S`),
	regexp.MustCompile(`(?i)which of the following`),
	regexp.MustCompile(`(?i)select (the|one) (correct|best)`),
	regexp.MustCompile(`(?i)choose the correct answer`),
}

// mcqWrapperRe strips the instruction wrapper ("Answer the following
// multiple choice question:") before scoring.
var mcqWrapperRe = regexp.MustCompile(`(?i)^(answer the following multiple[- ]choice question:?\s*)`)

// subjectHints maps MCQ subject keywords to the domain they boost. Kept
// as an ordered slice so the first-match rule is deterministic — the
// classifier must stay a pure function of its input.
var subjectHints = []struct {
	term   string
	domain core.Domain
}{
	{"anatomy", core.DomainMedical},
	{"algebra", core.DomainMath},
	{"biology", core.DomainMedical},
	{"calculus", core.DomainMath},
	{"chemistry", core.DomainMath},
	{"computer science", core.DomainCode},
	{"contracts", core.DomainLegal},
	{"economics", core.DomainFinancial},
	{"finance", core.DomainFinancial},
	{"history", core.DomainGeneral},
	{"law", core.DomainLegal},
	{"physics", core.DomainMath},
	{"programming", core.DomainCode},
}

// DomainRouter assigns a domain tag used by downstream routing and
// strategy selection.
type DomainRouter struct{}

// NewDomainRouter builds a DomainRouter.
func NewDomainRouter() *DomainRouter {
	return &DomainRouter{}
}

// Classify scores text across all domains and returns the winner. If hint
// is non-empty and a recognized domain, it overrides detection.
func (d *DomainRouter) Classify(text string, hint core.Domain) core.DomainResult {
	if hint != "" && isValidDomain(hint) {
		return core.DomainResult{
			Domain:     hint,
			Confidence: 1.0,
			TopScores:  map[core.Domain]float64{hint: 1.0},
		}
	}

	isMCQ := false
	for _, re := range mcqPatterns {
		if re.MatchString(text) {
			isMCQ = true
			break
		}
	}

	scoringText := text
	if isMCQ {
		scoringText = mcqWrapperRe.ReplaceAllString(text, "")
	}
	lower := strings.ToLower(scoringText)

	scores := make(map[core.Domain]float64, len(domainKeywords))
	for domain, keywords := range domainKeywords {
		var s float64
		for _, kw := range keywords {
			if strings.Contains(lower, kw.term) {
				s += kw.weight
			}
		}
		scores[domain] = s
	}

	subjectHint := ""
	if isMCQ {
		for _, hint := range subjectHints {
			if strings.Contains(lower, hint.term) {
				scores[hint.domain] += 0.5
				subjectHint = hint.term
				break
			}
		}
		scores[core.DomainConversation] -= 0.5
		if scores[core.DomainConversation] < 0 {
			scores[core.DomainConversation] = 0
		}
	}

	winner, maxScore := topDomain(scores)
	if maxScore <= 0 {
		winner = core.DomainGeneral
	}
	if tiedForMax(scores, maxScore) {
		winner = core.DomainGeneral
	}

	confidence := maxScore / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	return core.DomainResult{
		Domain:      winner,
		Confidence:  confidence,
		TopScores:   topN(scores, 3),
		IsMCQ:       isMCQ,
		SubjectHint: subjectHint,
	}
}

func isValidDomain(d core.Domain) bool {
	switch d {
	case core.DomainCode, core.DomainData, core.DomainStructured, core.DomainRAG,
		core.DomainConversation, core.DomainTool, core.DomainCreative, core.DomainSummary,
		core.DomainTranslation, core.DomainMath, core.DomainMedical, core.DomainLegal,
		core.DomainFinancial, core.DomainMultimodal, core.DomainGeneral:
		return true
	default:
		return false
	}
}

// topDomain returns the highest-scoring domain. general enters scores only
// through an MCQ subject hint; otherwise a zero-score tie falls through to
// the maxScore<=0 general fallback in Classify.
func topDomain(scores map[core.Domain]float64) (core.Domain, float64) {
	var best core.Domain
	var bestScore float64
	first := true
	for domain, score := range scores {
		if first || score > bestScore {
			best, bestScore = domain, score
			first = false
		}
	}
	return best, bestScore
}

// tiedForMax reports whether more than one domain shares the max score;
// ties go to general.
func tiedForMax(scores map[core.Domain]float64, maxScore float64) bool {
	count := 0
	for _, s := range scores {
		if s == maxScore {
			count++
		}
	}
	return count > 1
}

// topN returns the n highest-scoring entries from scores.
func topN(scores map[core.Domain]float64, n int) map[core.Domain]float64 {
	type pair struct {
		d core.Domain
		s float64
	}
	pairs := make([]pair, 0, len(scores))
	for d, s := range scores {
		pairs = append(pairs, pair{d, s})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].s > pairs[i].s {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make(map[core.Domain]float64, n)
	for i := 0; i < n; i++ {
		out[pairs[i].d] = pairs[i].s
	}
	return out
}
