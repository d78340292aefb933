package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuery_GeneratesID(t *testing.T) {
	q, err := NewQuery("hello")
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "hello", q.Text)
}

func TestNewQuery_RejectsDuplicateToolNames(t *testing.T) {
	_, err := NewQuery("use my tools",
		WithTools(Tool{Name: "lookup"}, Tool{Name: "lookup"}),
	)
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestNewQuery_RejectsToolsWithoutText(t *testing.T) {
	_, err := NewQuery("", WithTools(Tool{Name: "lookup"}))
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestModelConfig_Cost(t *testing.T) {
	m := ModelConfig{InputCostPerToken: 0.000001, OutputCostPerToken: 0.000002}
	assert.InDelta(t, 0.0004, m.Cost(200, 100), 1e-12)
}

func TestModelConfig_Validate(t *testing.T) {
	valid := ModelConfig{Name: "m", Provider: "p", ModelID: "id"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, ModelConfig{Provider: "p", ModelID: "id"}.Validate())
	assert.Error(t, ModelConfig{Name: "m", Provider: "p", ModelID: "id", InputCostPerToken: -1}.Validate())
}

func TestComplexity_Ordering(t *testing.T) {
	assert.True(t, ComplexityTrivial.LessThan(ComplexityExpert))
	assert.False(t, ComplexityExpert.LessThan(ComplexityHard))
	assert.Equal(t, 0, Complexity("bogus").Rank())
}

func TestKindOf_ExtractsKindAndRetryability(t *testing.T) {
	inner := NewError(KindProviderTransient, "provider.call", assert.AnError)
	assert.Equal(t, KindProviderTransient, KindOf(inner))
	assert.True(t, IsRetryable(inner))

	permanent := NewError(KindProviderPermanent, "provider.call", assert.AnError)
	assert.False(t, IsRetryable(permanent))
}
