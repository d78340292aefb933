package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_MethodNonePassesTrivially(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodNone, "anything", "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)
}

func TestValidator_SyntaxCheckBalancedCodeFence(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodSyntaxCheck, "write a function", "```go\nfunc main() {}\n```")
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)
}

func TestValidator_SyntaxCheckUnbalancedCodeFence(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodSyntaxCheck, "write a function", "```go\nfunc main() {}")
	require.NoError(t, err)
	assert.Less(t, result.Score, 0.5)
}

func TestValidator_SyntaxCheckValidJSON(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodSyntaxCheck, "give me json", `{"key": "value"}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Score)
}

func TestValidator_SyntaxCheckInvalidJSON(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodSyntaxCheck, "give me json", `{"key": }`)
	require.NoError(t, err)
	assert.Less(t, result.Score, 0.5)
}

func TestValidator_QualityCheckEmptyResponseScoresZero(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodQualityCheck, "what is Go?", "   ")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Score)
}

func TestValidator_QualityCheckDetectsRefusal(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodQualityCheck, "what is Go?", "I cannot help with that request.")
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Score, 0.1)
	assert.Equal(t, true, result.Details["refusal_detected"])
}

func TestValidator_QualityCheckOnTopicAnswerScoresWell(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(
		context.Background(),
		MethodQualityCheck,
		"What is the Go programming language used for?",
		"The Go programming language is used for building fast, concurrent network services and CLIs.",
	)
	require.NoError(t, err)
	assert.Greater(t, result.Score, 0.5)
}

func TestValidator_FullQualityPenalizesMissingList(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(
		context.Background(),
		MethodFullQuality,
		"Please list three benefits of exercise.",
		"Exercise is good for you because it helps your body and mind in many ways overall.",
	)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Details["list_items_found"])
}

func TestValidator_FullQualityAcceptsMatchingList(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(
		context.Background(),
		MethodFullQuality,
		"Please list three benefits of exercise.",
		"- Improves cardiovascular health\n- Boosts mood\n- Builds strength",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Details["list_items_found"])
	assert.Equal(t, 3, result.Details["count_found"])
}

type stubScorer struct {
	score float64
	err   error
}

func (s stubScorer) Score(ctx context.Context, query, response string) (float64, error) {
	return s.score, s.err
}

func TestValidator_SemanticScorerUsedWhenRegistered(t *testing.T) {
	v := NewValidator(WithSemanticScorer(stubScorer{score: 0.73}))
	result, err := v.Validate(context.Background(), MethodSemantic, "q", "r")
	require.NoError(t, err)
	assert.Equal(t, 0.73, result.Score)
	assert.Equal(t, "semantic", result.Details["method"])
}

func TestValidator_SemanticDegradesWithoutScorer(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodSemantic, "what is Go?", "Go is a programming language.")
	require.NoError(t, err)
	assert.Equal(t, "semantic", result.Details["degraded_from"])
}

func TestValidator_FactCheckDegradesOnScorerError(t *testing.T) {
	v := NewValidator(WithFactScorer(stubScorer{err: errors.New("scorer unavailable")}))
	result, err := v.Validate(context.Background(), MethodFactCheck, "what is Go?", "Go is a programming language.")
	require.NoError(t, err)
	assert.Equal(t, "fact-check", result.Details["degraded_from"])
	assert.Equal(t, "scorer unavailable", result.Details["degrade_reason"])
}

func TestValidator_CustomPredicate(t *testing.T) {
	v := NewValidator(WithCustomPredicate(func(query, response string) (float64, map[string]interface{}) {
		return 0.42, map[string]interface{}{"reason": "stubbed"}
	}))
	result, err := v.Validate(context.Background(), MethodCustom, "q", "r")
	require.NoError(t, err)
	assert.Equal(t, 0.42, result.Score)
	assert.Equal(t, "stubbed", result.Details["reason"])
}

func TestValidator_CustomDegradesWithoutPredicate(t *testing.T) {
	v := NewValidator()
	result, err := v.Validate(context.Background(), MethodCustom, "what is Go?", "Go is a programming language.")
	require.NoError(t, err)
	assert.Equal(t, "custom", result.Details["degraded_from"])
}
