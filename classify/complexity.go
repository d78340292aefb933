// Package classify implements the two deterministic, keyword-weighted
// classifiers that label every incoming query before routing: the
// complexity classifier (this file) and the domain router (domain.go).
//
// Both are pure functions of their input text and keyword tables — no
// network calls, no randomness, no hidden state — so the same query always
// produces the same verdict.
package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/cascadehq/cascaderouter/core"
)

// band is one scored complexity level with the score range that maps to it.
type band struct {
	level core.Complexity
	min   float64
}

// bandOrder is sorted from hardest to easiest so the first band whose min
// the score clears wins.
var bandOrder = []band{
	{core.ComplexityExpert, 8.0},
	{core.ComplexityHard, 5.5},
	{core.ComplexityModerate, 3.2},
	{core.ComplexitySimple, 1.2},
	{core.ComplexityTrivial, 0},
}

// tieEpsilon is how close two adjacent bands' scores must be before the
// tie-break rule (prefer the cheaper band) applies.
const tieEpsilon = 0.25

var (
	codeFenceRe    = regexp.MustCompile("```")
	mathNotationRe = regexp.MustCompile(`[=<>≤≥∑∫√]|\b(derivative|integral|equation|theorem)\b`)
	multiQuestionRe = regexp.MustCompile(`\?.*\?`)
	jsonDemandRe   = regexp.MustCompile(`(?i)\bas json\b|\bin json format\b|\bjson schema\b`)
)

// Word-boundary anchored so "derivative" does not read as the "derive"
// cue — the cue is the imperative, not the noun.
var chainOfReasoningRe = regexp.MustCompile(`(?i)\b(prove|derive|step[- ]by[- ]step|show your work|explain why)\b`)

var constraintJoiners = []string{"and also", " then ", "as well as", "in addition"}

// rareDomainJargon is a small per-domain jargon sample used only as a
// complexity signal (distinct from classify.Domain's own, larger tables in
// domain.go) — presence of any of these nudges the score toward "hard".
var rareDomainJargon = []string{
	"differential equation", "quantum", "asymptotic", "homomorphism",
	"arbitrage", "indemnification", "contraindication", "covariant",
	"eigenvalue", "nash equilibrium", "byzantine fault",
}

// ComplexityClassifier scores a query's difficulty. It never fails: a
// blank or pathological query maps to ComplexityTrivial with low
// confidence.
type ComplexityClassifier struct{}

// NewComplexityClassifier builds a ComplexityClassifier. It carries no
// configuration; the keyword tables are package-level constants so every
// instance is equivalent.
func NewComplexityClassifier() *ComplexityClassifier {
	return &ComplexityClassifier{}
}

// Classify scores text and returns its ComplexityResult. If hint is
// non-empty and a recognized band, it overrides detection entirely.
func (c *ComplexityClassifier) Classify(text string, hint core.Complexity) core.ComplexityResult {
	if hint != "" {
		if hint.Rank() >= 0 && isValidComplexity(hint) {
			return core.ComplexityResult{
				Complexity: hint,
				Confidence: 1.0,
				Scores:     map[core.Complexity]float64{hint: 1.0},
			}
		}
		// invalid hint: fall through to detection. Logging it is the
		// caller's responsibility; this function stays pure.
	}

	score, scores := c.score(text)
	level := bandFor(score)
	confidence := confidenceFor(score, level)

	return core.ComplexityResult{
		Complexity: level,
		Confidence: confidence,
		Scores:     scores,
	}
}

func isValidComplexity(c core.Complexity) bool {
	switch c {
	case core.ComplexityTrivial, core.ComplexitySimple, core.ComplexityModerate, core.ComplexityHard, core.ComplexityExpert:
		return true
	default:
		return false
	}
}

// score computes the raw numeric complexity score and a per-band score
// breakdown (each band's score is how far the raw score is past its own
// threshold, clamped to [0,1], used only for the Scores map callers can
// inspect — routing decisions use only the winning band).
func (c *ComplexityClassifier) score(text string) (float64, map[core.Complexity]float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, zeroScores()
	}

	lower := strings.ToLower(trimmed)
	words := strings.Fields(lower)
	wordCount := len(words)
	charCount := len(trimmed)

	var s float64

	// Length-driven base signal.
	s += math.Min(float64(wordCount)/40.0, 3.0)
	s += math.Min(float64(charCount)/600.0, 1.5)

	if codeFenceRe.MatchString(text) {
		s += 2.0
	}
	if mathNotationRe.MatchString(lower) {
		s += 1.5
	}
	if multiQuestionRe.MatchString(trimmed) {
		s += 1.0
	}
	if chainOfReasoningRe.MatchString(lower) {
		s += 2.5
	}
	for _, jargon := range rareDomainJargon {
		if strings.Contains(lower, jargon) {
			s += 1.8
			break
		}
	}
	constraints := 0
	for _, joiner := range constraintJoiners {
		constraints += strings.Count(lower, joiner)
	}
	s += math.Min(float64(constraints)*0.8, 2.0)

	if jsonDemandRe.MatchString(trimmed) {
		s += 0.8
	}

	return s, zeroScores()
}

func zeroScores() map[core.Complexity]float64 {
	return map[core.Complexity]float64{
		core.ComplexityTrivial:  0,
		core.ComplexitySimple:   0,
		core.ComplexityModerate: 0,
		core.ComplexityHard:     0,
		core.ComplexityExpert:   0,
	}
}

// bandFor maps a raw score to its complexity band, applying the
// prefer-the-lower-band tie-break when two adjacent bands are within
// tieEpsilon of each other.
func bandFor(score float64) core.Complexity {
	for i, b := range bandOrder {
		if score >= b.min {
			// Check tie-break against the next-cheaper band.
			if i+1 < len(bandOrder) {
				next := bandOrder[i+1]
				if score-next.min < tieEpsilon && score-b.min < tieEpsilon {
					return next.level
				}
			}
			return b.level
		}
	}
	return core.ComplexityTrivial
}

// confidenceFor computes 1 - gap_to_next_band, clamped to [0,1].
func confidenceFor(score float64, level core.Complexity) float64 {
	var lowerBound, upperBound float64
	found := false
	for i, b := range bandOrder {
		if b.level == level {
			lowerBound = b.min
			if i > 0 {
				upperBound = bandOrder[i-1].min
			} else {
				upperBound = lowerBound + 4.0 // expert band: open-ended, use a fixed span
			}
			found = true
			break
		}
	}
	if !found || upperBound <= lowerBound {
		return 0.1
	}
	span := upperBound - lowerBound
	position := (score - lowerBound) / span
	confidence := position
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	// A query right at the band's floor is barely in-band; a query near
	// its ceiling is confidently in-band.
	return math.Max(confidence, 0.05)
}
