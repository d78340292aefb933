package budget

import (
	"time"

	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/core"
)

// Gate pre-checks projected query cost against per-user window caps and
// records actual cost after execution. It is activated only if a
// per-user budget is registered (a caller simply never calls PreCheck for
// users with no configured cap — a zero window Cap means
// "unconfigured", not "zero budget").
type Gate struct {
	store *Store
	bus   *callback.Bus
}

// NewGate builds a Gate over store, optionally publishing BUDGET_WARNING /
// BUDGET_EXCEEDED events to bus (nil is fine — the gate just stops
// publishing).
func NewGate(store *Store, bus *callback.Bus) *Gate {
	return &Gate{store: store, bus: bus}
}

// Decision is PreCheck's verdict.
type Decision struct {
	Admitted       bool
	ProjectedCost  float64
	Consumed       float64
	Cap            float64
	WarnThreshold  float64
	BlockThreshold float64
}

// PreCheck estimates a query's cost as
// (estimatedPromptTokens+estimatedCompletionTokens) * cheapestRate, adds it
// to the user's currently-consumed figure in the daily window, and denies
// admission if the result exceeds the block threshold. Crossing the warn
// threshold (but not the block threshold) publishes BUDGET_WARNING and
// still admits. Exactly-at-warn admits and warns; exactly-at-block also
// admits — denial requires strictly exceeding the block threshold, so
// consumed + projected ≤ block × cap holds for every admitted query.
func (g *Gate) PreCheck(queryID, userID string, estimatedPromptTokens, estimatedCompletionTokens int, cheapestRate float64, now time.Time) (Decision, error) {
	projected := float64(estimatedPromptTokens+estimatedCompletionTokens) * cheapestRate

	u := g.store.userState(userID)
	u.mu.Lock()
	ws := u.rollIfNeeded(WindowDay, now)
	consumed := ws.Consumed
	cap := ws.Cap
	warnThreshold := ws.WarnThreshold()
	blockThreshold := ws.BlockThreshold()
	u.mu.Unlock()

	projectedTotal := consumed + projected

	decision := Decision{
		ProjectedCost:  projected,
		Consumed:       consumed,
		Cap:            cap,
		WarnThreshold:  warnThreshold,
		BlockThreshold: blockThreshold,
	}

	if cap <= 0 {
		// No cap configured for this user: inert, always admits.
		decision.Admitted = true
		return decision, nil
	}

	if projectedTotal > blockThreshold {
		decision.Admitted = false
		g.publish(callback.KindBudgetExceeded, queryID, map[string]interface{}{
			"user_id": userID, "projected_total": projectedTotal, "block_threshold": blockThreshold,
		})
		return decision, core.NewError(core.KindBudgetExceeded, "budget.Gate.PreCheck", errBudgetExceeded).WithQuery(queryID)
	}

	decision.Admitted = true
	if projectedTotal >= warnThreshold {
		g.publish(callback.KindBudgetWarning, queryID, map[string]interface{}{
			"user_id": userID, "projected_total": projectedTotal, "warn_threshold": warnThreshold,
		})
	}
	return decision, nil
}

// RecordActual records the real cost of a completed (or partially
// completed) query against userID's windows. Called post-execution
// regardless of success — cost already incurred is truth, not an
// estimate.
func (g *Gate) RecordActual(userID string, actualCost float64, now time.Time) {
	if actualCost <= 0 {
		return
	}
	g.store.Record(userID, actualCost, now)
}

func (g *Gate) publish(kind callback.Kind, queryID string, payload map[string]interface{}) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(callback.Event{Kind: kind, QueryID: queryID, Payload: payload})
}
