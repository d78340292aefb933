// Package routing implements the PreRouter (priority-ordered strategy
// selection) and the optional TierRouter (caller-tier model filtering).
package routing

import (
	"sync/atomic"

	"github.com/cascadehq/cascaderouter/core"
)

// DomainStrategyInfo is the narrow slice of a cascade.DomainStrategy the
// PreRouter needs to apply rules 4–6. Kept as its own small struct (rather
// than importing package cascade) so routing has no dependency on cascade —
// cascade depends on routing, not the other way around.
type DomainStrategyInfo struct {
	RequireVerifier     bool
	CascadeComplexities []core.Complexity // empty means "no complexity restriction"
}

// DomainStrategyLookup resolves a domain to its configured strategy info,
// if any. cascade.StrategyRegistry implements this.
type DomainStrategyLookup interface {
	Lookup(domain core.Domain) (DomainStrategyInfo, bool)
}

// RulePredicate is a caller-supplied freeform predicate over routing
// context; when its third return value (matched) is true, PreRouter rule 3
// honors the returned strategy outright.
type RulePredicate func(ctx Context) (core.RoutingStrategy, string, bool)

// Context carries everything PreRouter's rule list needs to decide.
type Context struct {
	Complexity  core.ComplexityResult
	Domain      core.DomainResult
	ForceDirect bool
	UserTier    string
}

// PreRouter maps (complexity, domain, context) to a RoutingStrategy via a
// priority-ordered rule list. It is a pure function of its
// inputs plus process-lifetime configuration (cascade-enabled flag, the
// domain strategy lookup, and any rule-engine predicate); only its
// counters mutate.
type PreRouter struct {
	cascadeEnabled  bool
	domainLookup    DomainStrategyLookup
	rulePredicate   RulePredicate

	totalQueries      atomic.Int64
	byComplexity      [5]atomic.Int64 // indexed by core.Complexity.Rank()
	byStrategy        map[core.RoutingStrategy]*atomic.Int64
	byDomainOutcome   map[core.Domain]*domainCounters
	forcedDirectCount atomic.Int64
	cascadeDisabled   atomic.Int64
}

// domainCounters tracks one domain's cascade outcomes. The map holding
// these is fully populated at construction and never written again, so
// concurrent lookups are lock-free.
type domainCounters struct {
	accepted  atomic.Int64
	escalated atomic.Int64
}

// NewPreRouter builds a PreRouter. cascadeEnabled false disables
// cascading globally (rule 2); domainLookup and rulePredicate are
// optional (nil is fine — rules 3–6 simply never fire).
func NewPreRouter(cascadeEnabled bool, domainLookup DomainStrategyLookup, rulePredicate RulePredicate) *PreRouter {
	byDomainOutcome := make(map[core.Domain]*domainCounters, len(core.AllDomains))
	for _, d := range core.AllDomains {
		byDomainOutcome[d] = &domainCounters{}
	}
	return &PreRouter{
		cascadeEnabled: cascadeEnabled,
		domainLookup:   domainLookup,
		rulePredicate:  rulePredicate,
		byStrategy: map[core.RoutingStrategy]*atomic.Int64{
			core.StrategyDirectCheap: {},
			core.StrategyDirectBest:  {},
			core.StrategyCascade:     {},
			core.StrategyParallel:    {},
		},
		byDomainOutcome: byDomainOutcome,
	}
}

// RecordOutcome feeds a cascade's verdict back into the per-domain
// counters so callers can inspect cascade health (accept vs. escalate
// rates) without wiring external metrics. Unknown domains are attributed
// to general.
func (p *PreRouter) RecordOutcome(domain core.Domain, draftAccepted bool) {
	c, ok := p.byDomainOutcome[domain]
	if !ok {
		c = p.byDomainOutcome[core.DomainGeneral]
	}
	if draftAccepted {
		c.accepted.Add(1)
	} else {
		c.escalated.Add(1)
	}
}

// Route applies the priority-ordered rule list and returns the first
// matching RoutingDecision.
func (p *PreRouter) Route(ctx Context) core.RoutingDecision {
	p.totalQueries.Add(1)
	p.byComplexity[ctx.Complexity.Complexity.Rank()].Add(1)

	decision := p.route(ctx)
	if counter, ok := p.byStrategy[decision.Strategy]; ok {
		counter.Add(1)
	}
	return decision
}

func (p *PreRouter) route(ctx Context) core.RoutingDecision {
	meta := map[string]interface{}{
		"complexity": string(ctx.Complexity.Complexity),
		"domain":     string(ctx.Domain.Domain),
	}

	// Rule 1: caller forces direct.
	if ctx.ForceDirect {
		p.forcedDirectCount.Add(1)
		meta["rule"] = "force_direct"
		meta["router_type"] = "forced"
		return core.RoutingDecision{
			Strategy: core.StrategyDirectBest, Reason: "caller set force_direct", Confidence: 1.0, Metadata: meta,
		}
	}

	// Rule 2: cascade disabled globally.
	if !p.cascadeEnabled {
		p.cascadeDisabled.Add(1)
		meta["rule"] = "cascade_disabled"
		return core.RoutingDecision{
			Strategy: core.StrategyDirectBest, Reason: "cascade disabled for this process", Confidence: 1.0, Metadata: meta,
		}
	}

	// Rule 3: rule-engine predicate.
	if p.rulePredicate != nil {
		if strategy, reason, matched := p.rulePredicate(ctx); matched {
			meta["rule"] = "rule_engine"
			meta["router_type"] = "rule_engine"
			return core.RoutingDecision{Strategy: strategy, Reason: reason, Confidence: 0.9, Metadata: meta}
		}
	}

	// Rules 4–6: domain strategy configured.
	if p.domainLookup != nil {
		if info, ok := p.domainLookup.Lookup(ctx.Domain.Domain); ok {
			if info.RequireVerifier {
				meta["rule"] = "domain_requires_verifier"
				return core.RoutingDecision{
					Strategy: core.StrategyDirectBest, Reason: "domain strategy requires verifier", Confidence: 0.95, Metadata: meta,
				}
			}
			if len(info.CascadeComplexities) > 0 {
				if complexityIn(ctx.Complexity.Complexity, info.CascadeComplexities) {
					meta["rule"] = "domain_cascade_complexity"
					return core.RoutingDecision{
						Strategy: core.StrategyCascade, Reason: "domain strategy configured for this complexity", Confidence: 0.9, Metadata: meta,
					}
				}
				// Domain strategy exists but doesn't cover this complexity —
				// fall through to the complexity-only rules 7/8.
			} else {
				meta["rule"] = "domain_cascade"
				return core.RoutingDecision{
					Strategy: core.StrategyCascade, Reason: "domain strategy configured, no complexity restriction", Confidence: 0.9, Metadata: meta,
				}
			}
		}
	}

	// Rules 7/8: complexity-only fallback.
	switch ctx.Complexity.Complexity {
	case core.ComplexityTrivial, core.ComplexitySimple, core.ComplexityModerate:
		meta["rule"] = "complexity_cascade"
		return core.RoutingDecision{
			Strategy: core.StrategyCascade, Reason: "complexity eligible for cascade", Confidence: ctx.Complexity.Confidence, Metadata: meta,
		}
	default:
		meta["rule"] = "complexity_direct_best"
		return core.RoutingDecision{
			Strategy: core.StrategyDirectBest, Reason: "complexity requires direct-best", Confidence: ctx.Complexity.Confidence, Metadata: meta,
		}
	}
}

func complexityIn(c core.Complexity, set []core.Complexity) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

// Stats is a snapshot of PreRouter's monotonic counters, safe to read
// concurrently with Route.
type Stats struct {
	TotalQueries      int64
	ByComplexity      map[core.Complexity]int64
	ByStrategy        map[core.RoutingStrategy]int64
	ByDomainOutcome   map[core.Domain]DomainOutcome
	ForcedDirectCount int64
	CascadeDisabled   int64
}

// DomainOutcome is a snapshot of one domain's cascade outcomes: how often
// the drafter's response was accepted versus escalated to the verifier.
type DomainOutcome struct {
	Accepted  int64
	Escalated int64
}

// Stats returns a consistent snapshot of the PreRouter's counters.
func (p *PreRouter) Stats() Stats {
	byComplexity := map[core.Complexity]int64{
		core.ComplexityTrivial:  p.byComplexity[core.ComplexityTrivial.Rank()].Load(),
		core.ComplexitySimple:   p.byComplexity[core.ComplexitySimple.Rank()].Load(),
		core.ComplexityModerate: p.byComplexity[core.ComplexityModerate.Rank()].Load(),
		core.ComplexityHard:     p.byComplexity[core.ComplexityHard.Rank()].Load(),
		core.ComplexityExpert:   p.byComplexity[core.ComplexityExpert.Rank()].Load(),
	}
	byStrategy := make(map[core.RoutingStrategy]int64, len(p.byStrategy))
	for strategy, counter := range p.byStrategy {
		byStrategy[strategy] = counter.Load()
	}
	byDomainOutcome := make(map[core.Domain]DomainOutcome, len(p.byDomainOutcome))
	for domain, c := range p.byDomainOutcome {
		byDomainOutcome[domain] = DomainOutcome{
			Accepted:  c.accepted.Load(),
			Escalated: c.escalated.Load(),
		}
	}
	return Stats{
		TotalQueries:      p.totalQueries.Load(),
		ByComplexity:      byComplexity,
		ByStrategy:        byStrategy,
		ByDomainOutcome:   byDomainOutcome,
		ForcedDirectCount: p.forcedDirectCount.Load(),
		CascadeDisabled:   p.cascadeDisabled.Load(),
	}
}
