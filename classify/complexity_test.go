package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascadehq/cascaderouter/core"
)

func TestComplexityClassifier_HintOverride(t *testing.T) {
	c := NewComplexityClassifier()
	result := c.Classify("what time is it", core.ComplexityExpert)
	assert.Equal(t, core.ComplexityExpert, result.Complexity)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestComplexityClassifier_InvalidHintFallsThrough(t *testing.T) {
	c := NewComplexityClassifier()
	result := c.Classify("hi", core.Complexity("not-a-real-band"))
	assert.Equal(t, core.ComplexityTrivial, result.Complexity)
}

func TestComplexityClassifier_NoHint(t *testing.T) {
	c := NewComplexityClassifier()

	tests := []struct {
		name string
		text string
		want core.Complexity
	}{
		{"trivial greeting", "hi", core.ComplexityTrivial},
		{"math notation bumps into simple", "What is the derivative of x^2?", core.ComplexitySimple},
		{
			"chain-of-reasoning cue plus length lands in moderate",
			"Design a distributed, fault-tolerant consensus algorithm that tolerates " +
				"Byzantine failures, prove its safety and liveness properties, and " +
				"analyze the worst-case message complexity across multiple rounds.",
			core.ComplexityModerate,
		},
		{
			"dense jargon plus chain-of-reasoning plus length lands in hard",
			"Derive a closed-form expression for the eigenvalue decomposition of a stochastic matrix, " +
				"prove convergence step by step, and analyze numerical stability under floating point error " +
				"accumulation across iterative refinement passes in a distributed setting with byzantine fault " +
				"tolerant nodes.",
			core.ComplexityHard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text, "")
			assert.Equal(t, tt.want, result.Complexity)
			assert.Greater(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		})
	}
}

func TestComplexityClassifier_ScoresMapCoversAllBands(t *testing.T) {
	c := NewComplexityClassifier()
	result := c.Classify("explain how TCP congestion control works", "")
	for _, band := range []core.Complexity{
		core.ComplexityTrivial, core.ComplexitySimple, core.ComplexityModerate,
		core.ComplexityHard, core.ComplexityExpert,
	} {
		_, ok := result.Scores[band]
		assert.True(t, ok, "expected a score entry for band %s", band)
	}
}

func TestComplexityClassifier_EmptyText(t *testing.T) {
	c := NewComplexityClassifier()
	result := c.Classify("", "")
	assert.Equal(t, core.ComplexityTrivial, result.Complexity)
}

func TestComplexityClassifier_Deterministic(t *testing.T) {
	c := NewComplexityClassifier()
	text := "Write a function that reverses a linked list."
	first := c.Classify(text, "")
	second := c.Classify(text, "")
	assert.Equal(t, first.Complexity, second.Complexity)
	assert.Equal(t, first.Confidence, second.Confidence)
}
