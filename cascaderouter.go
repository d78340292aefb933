// Package cascaderouter wires the classification, routing, budget, and
// execution components into the single programmatic entry point hosts
// call: Router.Run. Everything else in this module — classify, routing,
// budget, validate, cascade, callback — is independently usable; this
// file is the glue.
package cascaderouter

import (
	"context"
	"time"

	"github.com/cascadehq/cascaderouter/budget"
	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/cascade"
	"github.com/cascadehq/cascaderouter/classify"
	"github.com/cascadehq/cascaderouter/core"
	"github.com/cascadehq/cascaderouter/provider"
	"github.com/cascadehq/cascaderouter/routing"
	"github.com/cascadehq/cascaderouter/validate"
)

// Router is the assembled cascade router: classifier, pre-router, optional
// tier router and budget gate, cascade executor, and callback bus.
type Router struct {
	complexity *classify.ComplexityClassifier
	domain     *classify.DomainRouter
	preRouter  *routing.PreRouter
	tierRouter *routing.TierRouter // nil if no tiers registered
	gate       *budget.Gate        // nil if no budgets registered
	executor   *cascade.Executor
	strategies *cascade.StrategyRegistry
	bus        *callback.Bus
	models     []core.ModelConfig
	logger     core.Logger
}

// Config wires a Router's collaborators. Models is the full candidate set
// the PreRouter/TierRouter/Executor choose from; everything else is
// optional (nil disables the corresponding optional component).
type Config struct {
	Models          []core.ModelConfig
	Providers       *provider.Registry
	Strategies      *cascade.StrategyRegistry
	Tiers           *routing.TierRegistry
	Budget          *budget.Store
	Bus             *callback.Bus
	Logger          core.Logger
	Telemetry       core.Telemetry
	Validator       *validate.Validator
	Tools           cascade.ToolExecutor
	CascadeEnabled  bool
	RulePredicate   routing.RulePredicate
	ExecutorOptions []cascade.Option
}

// NewRouter assembles a Router from cfg. cfg.CascadeEnabled is passed to
// the PreRouter as given, so a Config that leaves it at its zero value
// (false) disables cascading (PreRouter rule 2); set it to true to allow
// the cascade strategy.
func NewRouter(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Bus == nil {
		cfg.Bus = callback.NewBus(cfg.Logger)
	}
	if cfg.Strategies == nil {
		cfg.Strategies = cascade.NewStrategyRegistry()
	}
	if cfg.Validator == nil {
		cfg.Validator = validate.NewValidator(validate.WithLogger(cfg.Logger))
	}

	var tierRouter *routing.TierRouter
	if cfg.Tiers != nil {
		tierRouter = routing.NewTierRouter(cfg.Tiers)
	}

	var gate *budget.Gate
	if cfg.Budget != nil {
		gate = budget.NewGate(cfg.Budget, cfg.Bus)
	}

	preRouter := routing.NewPreRouter(cfg.CascadeEnabled, cfg.Strategies, cfg.RulePredicate)

	execOpts := append([]cascade.Option{
		cascade.WithExecutorLogger(cfg.Logger),
	}, cfg.ExecutorOptions...)
	if cfg.Telemetry != nil {
		execOpts = append(execOpts, cascade.WithExecutorTelemetry(cfg.Telemetry))
	}
	if cfg.Tools != nil {
		execOpts = append(execOpts, cascade.WithToolExecutor(cfg.Tools))
	}

	executor := cascade.NewExecutor(cfg.Providers, cfg.Validator, cfg.Bus, execOpts...)

	return &Router{
		complexity: classify.NewComplexityClassifier(),
		domain:     classify.NewDomainRouter(),
		preRouter:  preRouter,
		tierRouter: tierRouter,
		gate:       gate,
		executor:   executor,
		strategies: cfg.Strategies,
		bus:        cfg.Bus,
		models:     cfg.Models,
		logger:     cfg.Logger,
	}
}

// Stats returns the PreRouter's monotonic counters.
func (r *Router) Stats() routing.Stats { return r.preRouter.Stats() }

// Bus returns the callback bus so callers can Subscribe before running
// queries.
func (r *Router) Bus() *callback.Bus { return r.bus }

// Run is the programmatic entry point: classify, route, tier-filter,
// budget-check, execute, and return the aggregate result.
func (r *Router) Run(ctx context.Context, query *core.Query) (cascade.ExecutionResult, error) {
	if query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, query.Timeout)
		defer cancel()
	}

	complexityResult := r.complexity.Classify(query.Text, query.ComplexityHint)
	r.publish(callback.KindComplexityDetected, query.ID, map[string]interface{}{
		"complexity": string(complexityResult.Complexity), "confidence": complexityResult.Confidence,
	})

	domainResult := r.domain.Classify(query.Text, query.DomainHint)
	r.publish(callback.KindDomainDetected, query.ID, map[string]interface{}{
		"domain": string(domainResult.Domain), "confidence": domainResult.Confidence,
	})

	decision := r.preRouter.Route(routing.Context{
		Complexity:  complexityResult,
		Domain:      domainResult,
		ForceDirect: query.ForceDirect,
		UserTier:    query.UserTier,
	})

	estimatedPrompt, estimatedCompletion := estimateTokens(query.Text)

	candidates := r.models
	var tier *routing.FilterResult
	if r.tierRouter != nil && query.UserTier != "" {
		filtered, err := r.tierRouter.Filter(query.UserTier, candidates)
		if err != nil {
			return cascade.ExecutionResult{}, err.(*core.RouterError).WithQuery(query.ID)
		}
		tier = &filtered

		decision.Metadata["tier"] = query.UserTier
		if len(filtered.Models) < len(candidates) {
			decision.Metadata["tier_restricted"] = true
		}
		if filtered.UsedFallback {
			decision.Metadata["tier_fallback_to_cheapest"] = true
			r.logger.Warn("tier filtering left no eligible models, falling back to cheapest", map[string]interface{}{
				"query_id": query.ID, "tier": query.UserTier,
			})
		}
		if filtered.MaxCost > 0 {
			decision.Metadata["tier_max_cost"] = filtered.MaxCost
		}
		if filtered.MinQuality > 0 {
			decision.Metadata["tier_min_quality"] = filtered.MinQuality
		}
		if filtered.MaxLatencyMs > 0 {
			decision.Metadata["tier_max_latency_ms"] = filtered.MaxLatencyMs
		}
		candidates = filtered.Models

		// Tier caps are enforced at three points: MaxCost here, by dropping
		// candidates whose projected cost exceeds it; MinQuality in the
		// executor, as a floor on the acceptance threshold; MaxLatencyMs in
		// the executor, as a clamp on the per-query wall clock.
		if filtered.MaxCost > 0 {
			capped := capByProjectedCost(candidates, filtered.MaxCost, estimatedPrompt, estimatedCompletion)
			if len(capped) < len(candidates) {
				decision.Metadata["tier_cost_capped"] = true
			}
			candidates = capped
		}
	}

	if r.gate != nil && query.UserID != "" {
		cheapest := routing.CheapestRate(candidates)
		if _, err := r.gate.PreCheck(query.ID, query.UserID, estimatedPrompt, estimatedCompletion, cheapest, time.Now()); err != nil {
			return cascade.ExecutionResult{}, err
		}
	}

	var strategy *cascade.DomainStrategy
	if s, ok := r.strategies.Get(domainResult.Domain); ok {
		strategy = &s
	}

	result, err := r.executor.Execute(ctx, cascade.Input{
		Query:      query,
		Decision:   decision,
		Complexity: complexityResult,
		Domain:     domainResult,
		Candidates: candidates,
		Strategy:   strategy,
		Tier:       tier,
	})

	if result.Cascaded {
		r.preRouter.RecordOutcome(result.Domain, !result.FallbackUsed)
	}

	if r.gate != nil && query.UserID != "" {
		r.gate.RecordActual(query.UserID, result.TotalCost, time.Now())
	}

	return result, err
}

func (r *Router) publish(kind callback.Kind, queryID string, payload map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(callback.Event{Kind: kind, QueryID: queryID, Payload: payload})
}

// capByProjectedCost drops candidates whose projected per-query cost
// exceeds maxCost. If every candidate exceeds it, the single cheapest is
// kept — a too-tight cap degrades the query rather than failing it,
// mirroring the tier allow-list fallback.
func capByProjectedCost(models []core.ModelConfig, maxCost float64, promptTokens, completionTokens int) []core.ModelConfig {
	kept := make([]core.ModelConfig, 0, len(models))
	for _, m := range models {
		if routing.ProjectedCost(m, promptTokens, completionTokens) <= maxCost {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 && len(models) > 0 {
		cheapest := models[0]
		for _, m := range models[1:] {
			if m.InputCostPerToken+m.OutputCostPerToken < cheapest.InputCostPerToken+cheapest.OutputCostPerToken {
				cheapest = m
			}
		}
		kept = append(kept, cheapest)
	}
	return kept
}

// estimateTokens is a rough pre-call token estimate: ~4 characters per
// token for the prompt, a fixed completion allowance. The BudgetGate
// pre-check is explicitly an estimate; the post-execution
// RecordActual call is what keeps the ledger honest.
func estimateTokens(text string) (prompt, completion int) {
	prompt = len(text)/4 + 1
	completion = 256
	return prompt, completion
}
