package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascaderouter/callback"
	"github.com/cascadehq/cascaderouter/core"
)

func TestGate_NoCapConfiguredAlwaysAdmits(t *testing.T) {
	store := NewStore()
	gate := NewGate(store, nil)
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	decision, err := gate.PreCheck("q1", "bob", 1000, 1000, 0.00001, now)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
}

func TestGate_AdmitsUnderWarnThreshold(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)

	gate := NewGate(store, nil)
	decision, err := gate.PreCheck("q1", "alice", 1000, 1000, 0.0001, now) // projected = 2000*0.0001 = 0.2
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 0.2, decision.ProjectedCost)
}

func TestGate_WarnsAtThresholdButStillAdmits(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)
	store.Record("alice", 8.0, now) // exactly at the 0.8*10=8.0 warn threshold

	bus := callback.NewBus(nil)
	var warned bool
	bus.Subscribe(callback.KindBudgetWarning, func(callback.Event) { warned = true })

	gate := NewGate(store, bus)
	decision, err := gate.PreCheck("q1", "alice", 0, 0, 0, now) // zero projected cost, consumed already at threshold
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.True(t, warned)
}

func TestGate_AdmitsAtExactBlockThreshold(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)
	store.Record("alice", 10.0, now) // consumed sits exactly at block = 1.0*10

	gate := NewGate(store, nil)
	decision, err := gate.PreCheck("q1", "alice", 0, 0, 0, now)
	require.NoError(t, err)
	assert.True(t, decision.Admitted, "denial requires strictly exceeding the block threshold")
}

func TestGate_DeniesOverBlockThreshold(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)

	bus := callback.NewBus(nil)
	var exceeded bool
	bus.Subscribe(callback.KindBudgetExceeded, func(callback.Event) { exceeded = true })

	gate := NewGate(store, bus)
	// projected = 200000 tokens * 0.0001 = 20.0, well past the 10.0 cap
	decision, err := gate.PreCheck("q1", "alice", 100000, 100000, 0.0001, now)
	require.Error(t, err)
	assert.False(t, decision.Admitted)
	assert.True(t, exceeded)
	assert.Equal(t, core.KindBudgetExceeded, core.KindOf(err))
}

func TestGate_RecordActualIgnoresNonPositiveCost(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	store.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)

	gate := NewGate(store, nil)
	gate.RecordActual("alice", 0, now)
	gate.RecordActual("alice", -5, now)
	assert.Equal(t, 0.0, store.Consumed("alice", WindowDay, now))

	gate.RecordActual("alice", 2.0, now)
	assert.Equal(t, 2.0, store.Consumed("alice", WindowDay, now))
}
