package httpserver

import (
	"sync"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

// SnapshotHolder keeps the most recent rendered snapshot for the API. It is
// a chart renderer, so it is fed by the same synchronous render call as the
// terminal output.
type SnapshotHolder struct {
	mu   sync.RWMutex
	snap aggregate.Snapshot
	set  bool
}

// NewSnapshotHolder creates an empty holder.
func NewSnapshotHolder() *SnapshotHolder {
	return &SnapshotHolder{}
}

func (h *SnapshotHolder) Name() string { return "api" }

// Render stores snap. Snapshots are immutable, so no copy is taken.
func (h *SnapshotHolder) Render(snap aggregate.Snapshot) error {
	h.mu.Lock()
	h.snap = snap
	h.set = true
	h.mu.Unlock()
	return nil
}

func (h *SnapshotHolder) Close() error { return nil }

// Latest returns the last rendered snapshot and whether one exists.
func (h *SnapshotHolder) Latest() (aggregate.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap, h.set
}
