package budget

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cascadehq/cascaderouter/core"
)

// snapshotWindow is the YAML-serializable shape of one window inside the
// opaque blob: user_id → window → {consumed, cap, warn, block,
// window_start}.
type snapshotWindow struct {
	Consumed    float64   `yaml:"consumed"`
	Cap         float64   `yaml:"cap"`
	Warn        float64   `yaml:"warn"`
	Block       float64   `yaml:"block"`
	WindowStart time.Time `yaml:"window_start"`
}

// Blob is the opaque, host-persisted snapshot format.
type Blob map[string]map[Window]snapshotWindow

// ExportSnapshot produces a YAML-encoded opaque blob of s's current state,
// suitable for host-side persistence across process restarts.
func (s *Store) ExportSnapshot(now time.Time) ([]byte, error) {
	raw := s.Snapshot(now)
	blob := make(Blob, len(raw))
	for userID, windows := range raw {
		entry := make(map[Window]snapshotWindow, len(windows))
		for win, ws := range windows {
			entry[win] = snapshotWindow{
				Consumed: ws.Consumed, Cap: ws.Cap, Warn: ws.WarnFrac, Block: ws.BlockFrac,
				WindowStart: ws.WindowStart,
			}
		}
		blob[userID] = entry
	}
	data, err := yaml.Marshal(blob)
	if err != nil {
		return nil, core.NewError(core.KindInternal, "budget.Store.ExportSnapshot", err)
	}
	return data, nil
}

// ImportSnapshot decodes data (as produced by ExportSnapshot) and restores
// it into s, overwriting any existing state for the users present in the
// blob. ImportSnapshot(ExportSnapshot(s)) reproduces s exactly.
func (s *Store) ImportSnapshot(data []byte) error {
	var blob Blob
	if err := yaml.Unmarshal(data, &blob); err != nil {
		return core.NewError(core.KindInternal, "budget.Store.ImportSnapshot", err)
	}
	restored := make(map[string]map[Window]WindowState, len(blob))
	for userID, windows := range blob {
		entry := make(map[Window]WindowState, len(windows))
		for win, sw := range windows {
			entry[win] = WindowState{
				Consumed: sw.Consumed, Cap: sw.Cap, WarnFrac: sw.Warn, BlockFrac: sw.Block,
				WindowStart: sw.WindowStart,
			}
		}
		restored[userID] = entry
	}
	s.Restore(restored)
	return nil
}
