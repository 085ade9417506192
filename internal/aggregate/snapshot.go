package aggregate

import "time"

// CategoryCount is one bar of a category-count snapshot.
type CategoryCount struct {
	Label string `json:"label" yaml:"label"`
	Count int64  `json:"count" yaml:"count"`
}

// Point is one (x, y) pair of a series or window snapshot.
type Point struct {
	X string  `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Snapshot is an immutable copy of aggregator state at one moment.
// UpdatedAt is the time of the last accepted record (zero before any).
// Renderers read it; nothing writes to it after construction.
type Snapshot struct {
	Mode       Mode            `json:"mode" yaml:"mode"`
	Seq        uint64          `json:"seq" yaml:"seq"`
	Total      float64         `json:"total" yaml:"total"`
	Capacity   int             `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Categories []CategoryCount `json:"categories,omitempty" yaml:"categories,omitempty"`
	Points     []Point         `json:"points,omitempty" yaml:"points,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"updated_at"`
}

// Len returns the number of bars or points in the snapshot.
func (s Snapshot) Len() int {
	if s.Mode == ModeCategory {
		return len(s.Categories)
	}
	return len(s.Points)
}

// Count returns the count for label and whether it has been seen.
func (s Snapshot) Count(label string) (int64, bool) {
	for _, c := range s.Categories {
		if c.Label == label {
			return c.Count, true
		}
	}
	return 0, false
}

// Labels returns category labels or point x-values in display order.
func (s Snapshot) Labels() []string {
	if s.Mode == ModeCategory {
		out := make([]string, len(s.Categories))
		for i, c := range s.Categories {
			out[i] = c.Label
		}
		return out
	}
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.X
	}
	return out
}
