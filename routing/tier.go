package routing

import (
	"sync"

	"github.com/cascadehq/cascaderouter/core"
)

// TierPolicy constrains model choice, budget, and quality floor for one
// caller tier.
type TierPolicy struct {
	Name        string
	AllowList   []string // may contain "*" meaning "all models"
	DenyList    []string
	MaxCost     float64 // per-query ceiling, 0 means unlimited
	MinQuality  float64
	MaxLatencyMs int64
}

// Validate checks a TierPolicy is well-formed. Called once at
// registration.
func (t TierPolicy) Validate() error {
	if t.Name == "" {
		return core.NewError(core.KindConfiguration, "routing.TierPolicy.Validate", errEmptyTierName)
	}
	if t.MinQuality < 0 || t.MinQuality > 1 {
		return core.NewError(core.KindConfiguration, "routing.TierPolicy.Validate", errBadTierQuality)
	}
	return nil
}

func (t TierPolicy) allowsAll() bool {
	for _, m := range t.AllowList {
		if m == "*" {
			return true
		}
	}
	return false
}

func (t TierPolicy) denies(modelName string) bool {
	for _, m := range t.DenyList {
		if m == modelName {
			return true
		}
	}
	return false
}

func (t TierPolicy) allows(modelName string) bool {
	if t.allowsAll() {
		return true
	}
	for _, m := range t.AllowList {
		if m == modelName {
			return true
		}
	}
	return false
}

// TierRegistry is a concurrency-safe, read-mostly store of TierPolicy by
// name. Registrations are rare; reads take the fast RLock path.
type TierRegistry struct {
	mu       sync.RWMutex
	policies map[string]TierPolicy
}

// NewTierRegistry builds an empty TierRegistry.
func NewTierRegistry() *TierRegistry {
	return &TierRegistry{policies: make(map[string]TierPolicy)}
}

// Register validates and stores policy.
func (r *TierRegistry) Register(policy TierPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[policy.Name] = policy
	return nil
}

// Lookup returns the named policy, if registered.
func (r *TierRegistry) Lookup(name string) (TierPolicy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// FilterResult is what TierRouter.Filter returns: the filtered candidate
// list plus the constraints the decision metadata should record.
type FilterResult struct {
	Models          []core.ModelConfig
	UsedFallback    bool
	MaxCost         float64
	MaxLatencyMs    int64
	MinQuality      float64
}

// TierRouter filters the candidate model set by the caller's tier.
// With no tier parameter it is inert and adds zero overhead —
// callers should skip invoking Filter entirely in that case.
type TierRouter struct {
	registry *TierRegistry
}

// NewTierRouter builds a TierRouter backed by registry.
func NewTierRouter(registry *TierRegistry) *TierRouter {
	return &TierRouter{registry: registry}
}

// Filter applies tierName's allow/deny lists to candidates. If the
// filtered set is empty, it falls back to the single cheapest model in the
// original set and sets UsedFallback. An unknown tier returns a
// core.KindConfiguration error; an empty candidates set, which leaves no
// fallback model, returns a core.KindTierNoModels error.
func (t *TierRouter) Filter(tierName string, candidates []core.ModelConfig) (FilterResult, error) {
	policy, ok := t.registry.Lookup(tierName)
	if !ok {
		return FilterResult{}, core.NewError(core.KindConfiguration, "routing.TierRouter.Filter", errUnknownTier)
	}

	filtered := make([]core.ModelConfig, 0, len(candidates))
	for _, m := range candidates {
		if policy.denies(m.Name) {
			continue
		}
		if !policy.allows(m.Name) {
			continue
		}
		filtered = append(filtered, m)
	}

	result := FilterResult{
		Models:       filtered,
		MaxCost:      policy.MaxCost,
		MaxLatencyMs: policy.MaxLatencyMs,
		MinQuality:   policy.MinQuality,
	}

	if len(filtered) == 0 {
		cheapest, ok := cheapestOf(candidates)
		if !ok {
			return FilterResult{}, core.NewError(core.KindTierNoModels, "routing.TierRouter.Filter", errNoFallbackModel)
		}
		result.Models = []core.ModelConfig{cheapest}
		result.UsedFallback = true
	}

	return result, nil
}

func cheapestOf(models []core.ModelConfig) (core.ModelConfig, bool) {
	if len(models) == 0 {
		return core.ModelConfig{}, false
	}
	best := models[0]
	for _, m := range models[1:] {
		if m.InputCostPerToken+m.OutputCostPerToken < best.InputCostPerToken+best.OutputCostPerToken {
			best = m
		}
	}
	return best, true
}
