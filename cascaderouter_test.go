package cascaderouter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascaderouter/budget"
	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/core"
	"github.com/cascadehq/cascaderouter/provider"
	"github.com/cascadehq/cascaderouter/routing"
)

func testModels() (cheap, premium core.ModelConfig) {
	cheap = core.ModelConfig{
		Name: "mini", Provider: "mockcheap", ModelID: "mini-1",
		InputCostPerToken: 0.00000005, OutputCostPerToken: 0.00000015,
		ContextWindow: 16000,
		Capabilities:  core.ModelCapabilities{SupportsTools: true, SupportsSystemMessages: true},
	}
	premium = core.ModelConfig{
		Name: "max", Provider: "mockpremium", ModelID: "max-1",
		InputCostPerToken: 0.00001, OutputCostPerToken: 0.00003,
		ContextWindow: 200000,
		Capabilities:  core.ModelCapabilities{SupportsTools: true, SupportsStreaming: true, SupportsSystemMessages: true, IsReasoning: true},
	}
	return cheap, premium
}

func testRouter(t *testing.T, mutate func(*Config)) (*Router, *provider.MockAdapter, *provider.MockAdapter) {
	t.Helper()
	cheap, premium := testModels()
	cheapAdapter := provider.NewMockAdapter("mockcheap")
	premiumAdapter := provider.NewMockAdapter("mockpremium")

	providers := provider.NewRegistry()
	providers.Register(cheapAdapter)
	providers.Register(premiumAdapter)

	cfg := Config{
		Models:         []core.ModelConfig{cheap, premium},
		Providers:      providers,
		CascadeEnabled: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg), cheapAdapter, premiumAdapter
}

func TestRun_CheapPathAccepted(t *testing.T) {
	router, cheapAdapter, premiumAdapter := testRouter(t, nil)
	cheapAdapter.SetResponse("What is 2+2?", "2+2 equals 4, the answer is four.")

	var kinds []callback.Kind
	for _, k := range []callback.Kind{callback.KindQueryStart, callback.KindCascadeDecision, callback.KindQueryComplete} {
		kind := k
		router.Bus().Subscribe(kind, func(e callback.Event) { kinds = append(kinds, kind) })
	}

	query, err := core.NewQuery("What is 2+2?")
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "mini", result.ModelUsed)
	assert.True(t, result.Cascaded)
	assert.True(t, result.DraftAccepted)
	assert.False(t, result.FallbackUsed)
	assert.Len(t, result.Steps, 1)
	assert.Zero(t, premiumAdapter.CallCount(), "the verifier must never be invoked on an accepted draft")

	// Total cost must equal the sum of per-step costs.
	var sum float64
	for _, s := range result.Steps {
		sum += s.Cost
	}
	assert.Equal(t, sum, result.TotalCost)

	_, premiumModel := testModels()
	assert.Less(t, result.TotalCost, premiumModel.Cost(100, 100))

	assert.Contains(t, kinds, callback.KindQueryStart)
	assert.Contains(t, kinds, callback.KindCascadeDecision)
	assert.Contains(t, kinds, callback.KindQueryComplete)

	outcome := router.Stats().ByDomainOutcome[result.Domain]
	assert.Equal(t, int64(1), outcome.Accepted)
	assert.Equal(t, int64(0), outcome.Escalated)
}

func TestRun_ForceDirectOverride(t *testing.T) {
	router, _, premiumAdapter := testRouter(t, nil)

	query, err := core.NewQuery("What is 2+2?", core.WithForceDirect())
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "max", result.ModelUsed)
	assert.False(t, result.Cascaded)
	assert.True(t, result.DraftAccepted)
	assert.Equal(t, 1, premiumAdapter.CallCount())
	assert.Equal(t, int64(1), router.Stats().ForcedDirectCount)
}

func TestRun_BudgetBlockMakesNoModelCalls(t *testing.T) {
	store := budget.NewStore()
	now := time.Now().UTC()
	store.Configure("u1", budget.WindowDay, 0.01, 0.8, 1.0, now)
	store.Record("u1", 0.009999, now)

	router, cheapAdapter, premiumAdapter := testRouter(t, func(cfg *Config) {
		cfg.Budget = store
	})

	var exceeded bool
	router.Bus().Subscribe(callback.KindBudgetExceeded, func(callback.Event) { exceeded = true })

	// Long prompt so the projected cost pushes past the block threshold.
	text := "Summarize the complete history of distributed consensus algorithms, their tradeoffs, and every production system that uses each of them, in exhaustive detail covering at least the last three decades of published research and industrial deployment experience across all major cloud providers and database vendors worldwide."
	query, err := core.NewQuery(text, core.WithUser("u1", ""))
	require.NoError(t, err)

	_, err = router.Run(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, core.KindBudgetExceeded, core.KindOf(err))
	assert.True(t, exceeded)
	assert.Zero(t, cheapAdapter.CallCount())
	assert.Zero(t, premiumAdapter.CallCount())
	assert.Equal(t, 0.009999, store.Consumed("u1", budget.WindowDay, now), "a denied query must not change the consumed figure")
}

func TestRun_TierAllowListConstrainsDirectBest(t *testing.T) {
	tiers := routing.NewTierRegistry()
	require.NoError(t, tiers.Register(routing.TierPolicy{
		Name:      "free",
		AllowList: []string{"mini"},
	}))

	router, cheapAdapter, premiumAdapter := testRouter(t, func(cfg *Config) {
		cfg.Tiers = tiers
	})

	// Hard complexity routes direct-best, but the free tier only admits the
	// cheap model, so direct-best degrades to it.
	query, err := core.NewQuery("What is 2+2?",
		core.WithUser("u1", "free"),
		core.WithComplexityHint(core.ComplexityHard),
	)
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "mini", result.ModelUsed)
	assert.Equal(t, 1, cheapAdapter.CallCount())
	assert.Zero(t, premiumAdapter.CallCount())

	// The tier-forced degradation is recorded on the decision metadata.
	assert.Equal(t, "free", result.RoutingMetadata["tier"])
	assert.Equal(t, true, result.RoutingMetadata["tier_restricted"])
}

func TestRun_TierFallbackRecordedInMetadata(t *testing.T) {
	tiers := routing.NewTierRegistry()
	require.NoError(t, tiers.Register(routing.TierPolicy{
		Name:      "locked",
		AllowList: []string{"no-such-model"},
	}))

	router, cheapAdapter, _ := testRouter(t, func(cfg *Config) {
		cfg.Tiers = tiers
	})
	cheapAdapter.SetResponse("What is 2+2?", "2+2 equals 4, the answer is four.")

	query, err := core.NewQuery("What is 2+2?", core.WithUser("u1", "locked"))
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "mini", result.ModelUsed)
	assert.Equal(t, true, result.RoutingMetadata["tier_fallback_to_cheapest"])
}

func TestRun_TierMaxCostCapsCandidates(t *testing.T) {
	tiers := routing.NewTierRegistry()
	require.NoError(t, tiers.Register(routing.TierPolicy{
		Name:      "capped",
		AllowList: []string{"*"},
		MaxCost:   0.0005, // the premium model's projected cost is ~0.008
	}))

	router, cheapAdapter, premiumAdapter := testRouter(t, func(cfg *Config) {
		cfg.Tiers = tiers
	})

	// Force-direct would pick the premium model, but the tier's per-query
	// cost ceiling prices it out of the candidate set.
	query, err := core.NewQuery("What is 2+2?",
		core.WithUser("u1", "capped"),
		core.WithForceDirect(),
	)
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, "mini", result.ModelUsed)
	assert.Equal(t, true, result.RoutingMetadata["tier_cost_capped"])
	assert.Equal(t, 1, cheapAdapter.CallCount())
	assert.Zero(t, premiumAdapter.CallCount())
}

func TestRun_RecordsActualCostAgainstBudget(t *testing.T) {
	store := budget.NewStore()
	now := time.Now().UTC()
	store.Configure("u1", budget.WindowDay, 10.0, 0.8, 1.0, now)

	router, cheapAdapter, _ := testRouter(t, func(cfg *Config) {
		cfg.Budget = store
	})
	cheapAdapter.SetResponse("What is 2+2?", "2+2 equals 4, the answer is four.")

	query, err := core.NewQuery("What is 2+2?", core.WithUser("u1", ""))
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)
	require.Positive(t, result.TotalCost)

	assert.Equal(t, result.TotalCost, store.Consumed("u1", budget.WindowDay, now))
}

func TestRun_EmptyQueryStillRoutes(t *testing.T) {
	router, _, _ := testRouter(t, nil)

	query, err := core.NewQuery("")
	require.NoError(t, err)

	result, err := router.Run(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "mini", result.ModelUsed, "empty query cascades to the cheapest model")
	assert.NotEmpty(t, result.FinalResponse)
}
