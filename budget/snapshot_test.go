package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ExportImportRoundTrip(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)
	s.Configure("alice", WindowMonth, 100.0, 0.75, 0.95, now)
	s.Configure("bob", WindowDay, 1.0, 0.8, 1.0, now)
	s.Record("alice", 4.0, now)
	s.Record("bob", 0.25, now)

	data, err := s.ExportSnapshot(now)
	require.NoError(t, err)

	restored := NewStore()
	require.NoError(t, restored.ImportSnapshot(data))

	assert.Equal(t, 4.0, restored.Consumed("alice", WindowDay, now))
	assert.Equal(t, 4.0, restored.Consumed("alice", WindowMonth, now))
	assert.Equal(t, 0.25, restored.Consumed("bob", WindowDay, now))

	// Thresholds survive the round trip, not just the consumed figures.
	windows := restored.Snapshot(now)
	assert.Equal(t, 0.75, windows["alice"][WindowMonth].WarnFrac)
	assert.Equal(t, 0.95, windows["alice"][WindowMonth].BlockFrac)
}

func TestStore_ImportSnapshotRejectsGarbage(t *testing.T) {
	s := NewStore()
	err := s.ImportSnapshot([]byte("{not valid yaml: ["))
	require.Error(t, err)
}

func TestStore_ImportLeavesAbsentUsersUntouched(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	source := NewStore()
	source.Configure("alice", WindowDay, 10.0, 0.8, 1.0, now)
	source.Record("alice", 2.0, now)
	data, err := source.ExportSnapshot(now)
	require.NoError(t, err)

	dest := NewStore()
	dest.Configure("carol", WindowDay, 5.0, 0.8, 1.0, now)
	dest.Record("carol", 1.5, now)
	require.NoError(t, dest.ImportSnapshot(data))

	assert.Equal(t, 2.0, dest.Consumed("alice", WindowDay, now))
	assert.Equal(t, 1.5, dest.Consumed("carol", WindowDay, now))
}
