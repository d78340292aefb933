// Package validate implements the pluggable response-quality validator.
// A Validator never applies a threshold — that's the cascade executor's
// job — it only returns a score in [0,1] plus supporting details.
package validate

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/cascadehq/cascaderouter/core"
)

// Method selects which validation strategy to run.
type Method string

const (
	MethodNone         Method = "none"
	MethodSyntaxCheck  Method = "syntax-check"
	MethodQualityCheck Method = "quality-check"
	MethodFullQuality  Method = "full-quality"
	MethodFactCheck    Method = "fact-check"
	MethodSafetyCheck  Method = "safety-check"
	MethodSemantic     Method = "semantic"
	MethodCustom       Method = "custom"
)

// Result is a validation pass's single score plus supporting details.
type Result struct {
	Score   float64
	Details map[string]interface{}
}

// Scorer is the pluggable interface an external model implements —
// fact-check, safety-check, and semantic methods all route through one of
// these. Adapters implement the explicit interface; there is no
// structural fallback.
type Scorer interface {
	Score(ctx context.Context, query, response string) (float64, error)
}

// CustomPredicate is the caller-supplied function backing MethodCustom.
type CustomPredicate func(query, response string) (float64, map[string]interface{})

// Validator runs one of the pluggable methods. All scorer fields are
// optional; their absence degrades gracefully to quality-check, and the
// degradation is always logged, never silent.
type Validator struct {
	logger core.Logger

	semanticScorer Scorer
	factScorer     Scorer
	safetyScorer   Scorer
	customFn       CustomPredicate
}

// Option configures a Validator at construction.
type Option func(*Validator)

func WithSemanticScorer(s Scorer) Option { return func(v *Validator) { v.semanticScorer = s } }
func WithFactScorer(s Scorer) Option     { return func(v *Validator) { v.factScorer = s } }
func WithSafetyScorer(s Scorer) Option   { return func(v *Validator) { v.safetyScorer = s } }
func WithCustomPredicate(fn CustomPredicate) Option {
	return func(v *Validator) { v.customFn = fn }
}
func WithLogger(l core.Logger) Option { return func(v *Validator) { v.logger = l } }

// NewValidator builds a Validator. With no options every method still
// works: none passes, syntax/quality/full-quality run their heuristics,
// and fact-check/safety-check/semantic degrade to quality-check.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{logger: &core.NoOpLogger{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs method against query/response and returns a score in
// [0,1]. Empty query or response text is accepted without panicking; an
// empty response scores 0 under syntax-check, quality-check and
// full-quality.
func (v *Validator) Validate(ctx context.Context, method Method, query, response string) (Result, error) {
	switch method {
	case MethodNone, "":
		return Result{Score: 1.0, Details: map[string]interface{}{"method": "none"}}, nil
	case MethodSyntaxCheck:
		return v.syntaxCheck(response), nil
	case MethodQualityCheck:
		return v.qualityCheck(query, response), nil
	case MethodFullQuality:
		return v.fullQuality(query, response), nil
	case MethodFactCheck:
		return v.pluginOrDegrade(ctx, "fact-check", v.factScorer, query, response), nil
	case MethodSafetyCheck:
		return v.pluginOrDegrade(ctx, "safety-check", v.safetyScorer, query, response), nil
	case MethodSemantic:
		return v.pluginOrDegrade(ctx, "semantic", v.semanticScorer, query, response), nil
	case MethodCustom:
		return v.custom(query, response), nil
	default:
		return v.qualityCheck(query, response), nil
	}
}

func (v *Validator) pluginOrDegrade(ctx context.Context, name string, scorer Scorer, query, response string) Result {
	if scorer == nil {
		v.logger.Warn("validator degraded: no scorer registered", map[string]interface{}{"method": name})
		r := v.qualityCheck(query, response)
		r.Details["degraded_from"] = name
		return r
	}
	score, err := scorer.Score(ctx, query, response)
	if err != nil {
		v.logger.Warn("validator degraded: scorer call failed", map[string]interface{}{"method": name, "error": err.Error()})
		r := v.qualityCheck(query, response)
		r.Details["degraded_from"] = name
		r.Details["degrade_reason"] = err.Error()
		return r
	}
	return Result{Score: clamp01(score), Details: map[string]interface{}{"method": name}}
}

func (v *Validator) custom(query, response string) Result {
	if v.customFn == nil {
		v.logger.Warn("validator degraded: no custom predicate registered", map[string]interface{}{"method": "custom"})
		r := v.qualityCheck(query, response)
		r.Details["degraded_from"] = "custom"
		return r
	}
	score, details := v.customFn(query, response)
	if details == nil {
		details = map[string]interface{}{}
	}
	details["method"] = "custom"
	return Result{Score: clamp01(score), Details: details}
}

var (
	codeFenceBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")
	sqlKeywordRe     = regexp.MustCompile(`(?i)^\s*(select|insert|update|delete|create|alter|with)\b`)
)

// syntaxCheck parses code/JSON/SQL in response and passes if well-formed.
// It inspects fenced code blocks for balance, attempts a JSON parse if
// the response looks JSON-shaped, and does a light SQL keyword/paren
// balance check otherwise.
func (v *Validator) syntaxCheck(response string) Result {
	trimmed := strings.TrimSpace(response)
	details := map[string]interface{}{"method": "syntax-check"}

	if trimmed == "" {
		return Result{Score: 0, Details: details}
	}

	if strings.Contains(trimmed, "```") {
		fences := strings.Count(trimmed, "```")
		balanced := fences%2 == 0
		details["fenced_blocks_balanced"] = balanced
		if !balanced {
			return Result{Score: 0.1, Details: details}
		}
		// Score 1.0 if every extracted block is non-empty.
		blocks := codeFenceBlockRe.FindAllStringSubmatch(trimmed, -1)
		for _, b := range blocks {
			if strings.TrimSpace(b[1]) == "" {
				details["empty_block"] = true
				return Result{Score: 0.3, Details: details}
			}
		}
		return Result{Score: 1.0, Details: details}
	}

	if looksLikeJSON(trimmed) {
		var v interface{}
		if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
			details["json_error"] = err.Error()
			return Result{Score: 0.1, Details: details}
		}
		return Result{Score: 1.0, Details: details}
	}

	if sqlKeywordRe.MatchString(trimmed) {
		if balancedParens(trimmed) {
			return Result{Score: 1.0, Details: details}
		}
		details["unbalanced_parens"] = true
		return Result{Score: 0.2, Details: details}
	}

	// Not recognizably code/JSON/SQL: neither pass nor fail strongly.
	details["no_recognized_syntax"] = true
	return Result{Score: 0.5, Details: details}
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

var refusalMarkers = []string{
	"i cannot", "i can't", "i'm sorry, but i can't", "as an ai language model",
	"i am not able to", "i'm not able to", "i won't be able to",
}

// qualityCheck is a heuristic on response length, non-emptiness, absence
// of refusal markers, and alignment to the query via token overlap and a
// question-answering pattern check.
func (v *Validator) qualityCheck(query, response string) Result {
	details := map[string]interface{}{"method": "quality-check"}
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		details["empty"] = true
		return Result{Score: 0, Details: details}
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			details["refusal_detected"] = true
			return Result{Score: 0.1, Details: details}
		}
	}

	var score float64

	wordCount := len(strings.Fields(trimmed))
	switch {
	case wordCount < 2:
		score += 0.1
	case wordCount < 10:
		score += 0.3
	default:
		score += 0.4
	}

	overlap := tokenOverlap(query, trimmed)
	details["token_overlap"] = overlap
	score += overlap * 0.4

	if strings.HasSuffix(strings.TrimSpace(query), "?") {
		// A question should get more than a one-word answer.
		if wordCount >= 3 {
			score += 0.2
		}
	} else {
		score += 0.2
	}

	return Result{Score: clamp01(score), Details: details}
}

var listRequestRe = regexp.MustCompile(`(?i)\blist\b|\benumerate\b|\bbullet`)
var listItemRe = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s+\S`)
var countRequestRe = regexp.MustCompile(`(?i)\b(give me|list|name|provide)\s+(\d+|a dozen|three|four|five|six|seven|eight|nine|ten)\b`)
var numberRe = regexp.MustCompile(`\d+`)

// fullQuality layers structural checks onto quality-check: a requested
// list must come back as a list; a requested count must come back with a
// matching number of items.
func (v *Validator) fullQuality(query, response string) Result {
	base := v.qualityCheck(query, response)
	if base.Score == 0 {
		base.Details["method"] = "full-quality"
		return base
	}

	structuralPenalty := 0.0

	if listRequestRe.MatchString(query) {
		items := listItemRe.FindAllString(response, -1)
		base.Details["list_items_found"] = len(items)
		if len(items) == 0 {
			structuralPenalty += 0.3
		}
	}

	if m := countRequestRe.FindStringSubmatch(query); m != nil {
		wantStr := m[2]
		want := wordToNumber(wantStr)
		items := listItemRe.FindAllString(response, -1)
		got := len(items)
		if got == 0 {
			got = len(numberRe.FindAllString(response, -1))
		}
		base.Details["count_requested"] = want
		base.Details["count_found"] = got
		if want > 0 && got != want {
			structuralPenalty += 0.2
		}
	}

	base.Score = clamp01(base.Score - structuralPenalty)
	base.Details["method"] = "full-quality"
	return base
}

func wordToNumber(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	switch strings.ToLower(s) {
	case "three":
		return 3
	case "four":
		return 4
	case "five":
		return 5
	case "six":
		return 6
	case "seven":
		return 7
	case "eight":
		return 8
	case "nine":
		return 9
	case "ten":
		return 10
	case "a dozen":
		return 12
	default:
		return 0
	}
}

// tokenOverlap returns the fraction of query's distinct words that also
// appear in response, a cheap proxy for "is this response on-topic".
func tokenOverlap(query, response string) float64 {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return 0.5
	}
	responseWords := wordSet(response)
	if len(responseWords) == 0 {
		return 0
	}
	hits := 0
	for w := range responseWords {
		if queryWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryWords))
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
