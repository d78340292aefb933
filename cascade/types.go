// Package cascade implements the cascade executor: direct, cascade, and
// multi-step domain-pipeline strategies, tool-call iteration, and
// retry-then-escalate failure semantics.
package cascade

import (
	"sync"
	"time"

	"github.com/cascadehq/cascaderouter/core"
	"github.com/cascadehq/cascaderouter/routing"
	"github.com/cascadehq/cascaderouter/validate"
)

// CascadeStep is one leg of a domain pipeline.
type CascadeStep struct {
	Name             string
	ModelName        string // references ModelConfig.Name
	ValidationMethod validate.Method
	QualityThreshold float64
	FallbackOnly     bool
	// UseDraftContext is read only for a single-step strategy: when the
	// cascade escalates, the verifier call includes the drafter's response
	// as additional context rather than re-sending only the original
	// messages. Multi-step pipelines do not read it.
	UseDraftContext bool
}

// DomainStrategy is an ordered, non-empty list of CascadeSteps tagged
// with a domain. At most one strategy per domain is active in a
// StrategyRegistry.
type DomainStrategy struct {
	Domain              core.Domain
	Steps               []CascadeStep
	RequireVerifier     bool
	CascadeComplexities []core.Complexity // empty means no restriction
	Threshold           *float64           // overrides per-complexity default when set
}

// Validate checks a DomainStrategy is well-formed: non-empty step list,
// unique step names, thresholds in [0,1].
func (d DomainStrategy) Validate() error {
	if len(d.Steps) == 0 {
		return core.NewError(core.KindConfiguration, "cascade.DomainStrategy.Validate", errEmptyPipeline)
	}
	seen := make(map[string]struct{}, len(d.Steps))
	for _, s := range d.Steps {
		if _, dup := seen[s.Name]; dup {
			return core.NewError(core.KindConfiguration, "cascade.DomainStrategy.Validate", errDuplicateStepName)
		}
		seen[s.Name] = struct{}{}
		if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
			return core.NewError(core.KindConfiguration, "cascade.DomainStrategy.Validate", core.ErrInvalidQuality)
		}
	}
	if d.Threshold != nil && (*d.Threshold < 0 || *d.Threshold > 1) {
		return core.NewError(core.KindConfiguration, "cascade.DomainStrategy.Validate", core.ErrInvalidQuality)
	}
	return nil
}

// StrategyRegistry is a concurrency-safe, read-mostly store of
// DomainStrategy by domain. It implements routing.DomainStrategyLookup so
// the PreRouter can consult it without importing this package.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[core.Domain]DomainStrategy
}

// NewStrategyRegistry builds an empty StrategyRegistry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{strategies: make(map[core.Domain]DomainStrategy)}
}

// Register validates and stores strategy, replacing any prior strategy
// for the same domain.
func (r *StrategyRegistry) Register(strategy DomainStrategy) error {
	if err := strategy.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strategy.Domain] = strategy
	return nil
}

// Get returns the registered DomainStrategy for domain.
func (r *StrategyRegistry) Get(domain core.Domain) (DomainStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[domain]
	return s, ok
}

// Lookup implements routing.DomainStrategyLookup.
func (r *StrategyRegistry) Lookup(domain core.Domain) (routing.DomainStrategyInfo, bool) {
	s, ok := r.Get(domain)
	if !ok {
		return routing.DomainStrategyInfo{}, false
	}
	return routing.DomainStrategyInfo{
		RequireVerifier:     s.RequireVerifier,
		CascadeComplexities: s.CascadeComplexities,
	}, true
}

// StepStatus is one step's terminal (or in-flight) state.
type StepStatus string

const (
	StatusPending       StepStatus = "pending"
	StatusRunning       StepStatus = "running"
	StatusSuccess       StepStatus = "success"
	StatusFailedQuality StepStatus = "failed-quality"
	StatusFailedError   StepStatus = "failed-error"
	StatusSkipped       StepStatus = "skipped"
)

// ToolCallRecord is one tool call the model made during a step, paired
// with the tool-result message the host returned for it.
type ToolCallRecord struct {
	Call   core.ToolCall
	Result core.Message
	Error  string
}

// StepResult is one executed (or skipped) leg of a cascade/pipeline run.
type StepResult struct {
	StepName          string
	ModelUsed         string
	Provider          string
	Status            StepStatus
	ResponseText      string
	QualityScore      float64
	Cost              float64
	Latency           time.Duration
	Usage             core.UsageDetails
	ValidationDetails map[string]interface{}
	ErrorText         string
	ToolCalls         []ToolCallRecord
}

// ExecutionResult is the executor's output for one query — the same
// record Router.Run returns to callers.
type ExecutionResult struct {
	FinalResponse string
	ModelUsed     string
	Provider      string
	Domain        core.Domain
	Confidence    float64
	TotalCost     float64
	TotalTokens   int
	TotalLatency  time.Duration
	Cascaded      bool
	DraftAccepted bool
	FallbackUsed  bool
	Steps         []StepResult // ordered execution trace
	RoutingReason string
	// RoutingMetadata is the PreRouter decision's metadata map (which rule
	// fired, tier constraints applied, fallback degradations), surfaced so
	// callers and UIs can explain the decision without a side channel.
	RoutingMetadata map[string]interface{}
}

// perComplexityThreshold returns the default quality threshold for
// complexity, used when a DomainStrategy (or step) does not specify its
// own.
func perComplexityThreshold(c core.Complexity) float64 {
	switch c {
	case core.ComplexityTrivial:
		return 0.25
	case core.ComplexitySimple:
		return 0.40
	case core.ComplexityModerate:
		return 0.55
	case core.ComplexityHard:
		return 0.70
	case core.ComplexityExpert:
		return 0.80
	default:
		return 0.40
	}
}
