package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascaderouter/core"
)

func testModels() []core.ModelConfig {
	return []core.ModelConfig{
		{Name: "cheap", Provider: "local", ModelID: "cheap-1", InputCostPerToken: 0.0000001, OutputCostPerToken: 0.0000002},
		{Name: "mid", Provider: "openai", ModelID: "mid-1", InputCostPerToken: 0.0000005, OutputCostPerToken: 0.000001},
		{Name: "premium", Provider: "anthropic", ModelID: "premium-1", InputCostPerToken: 0.000003, OutputCostPerToken: 0.000015},
	}
}

func TestTierPolicy_Validate(t *testing.T) {
	assert.Error(t, TierPolicy{}.Validate())
	assert.Error(t, TierPolicy{Name: "free", MinQuality: 1.5}.Validate())
	assert.NoError(t, TierPolicy{Name: "free", MinQuality: 0.5}.Validate())
}

func TestTierRouter_AllowList(t *testing.T) {
	registry := NewTierRegistry()
	require.NoError(t, registry.Register(TierPolicy{Name: "free", AllowList: []string{"cheap", "mid"}}))
	router := NewTierRouter(registry)

	result, err := router.Filter("free", testModels())
	require.NoError(t, err)
	assert.False(t, result.UsedFallback)
	names := modelNames(result.Models)
	assert.ElementsMatch(t, []string{"cheap", "mid"}, names)
}

func TestTierRouter_AllowAllWildcard(t *testing.T) {
	registry := NewTierRegistry()
	require.NoError(t, registry.Register(TierPolicy{Name: "pro", AllowList: []string{"*"}}))
	router := NewTierRouter(registry)

	result, err := router.Filter("pro", testModels())
	require.NoError(t, err)
	assert.Len(t, result.Models, 3)
}

func TestTierRouter_DenyListOverridesWildcard(t *testing.T) {
	registry := NewTierRegistry()
	require.NoError(t, registry.Register(TierPolicy{Name: "pro", AllowList: []string{"*"}, DenyList: []string{"premium"}}))
	router := NewTierRouter(registry)

	result, err := router.Filter("pro", testModels())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cheap", "mid"}, modelNames(result.Models))
}

func TestTierRouter_FallsBackToCheapestWhenFilteredEmpty(t *testing.T) {
	registry := NewTierRegistry()
	require.NoError(t, registry.Register(TierPolicy{Name: "locked-out", AllowList: []string{"nonexistent-model"}}))
	router := NewTierRouter(registry)

	result, err := router.Filter("locked-out", testModels())
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	require.Len(t, result.Models, 1)
	assert.Equal(t, "cheap", result.Models[0].Name)
}

func TestTierRouter_UnknownTier(t *testing.T) {
	registry := NewTierRegistry()
	router := NewTierRouter(registry)
	_, err := router.Filter("ghost", testModels())
	assert.Error(t, err)
}

func TestTierRouter_EmptyCandidatesWithNoFallback(t *testing.T) {
	registry := NewTierRegistry()
	require.NoError(t, registry.Register(TierPolicy{Name: "free", AllowList: []string{"*"}}))
	router := NewTierRouter(registry)
	_, err := router.Filter("free", nil)
	assert.Error(t, err)
}

func modelNames(models []core.ModelConfig) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}
