package aggregate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/tailchart/internal/ingest"
	"github.com/tinytelemetry/tailchart/internal/model"
)

func rec(fields map[string]any) *model.Record {
	return &model.Record{Fields: fields}
}

func TestCategoryCounts_FirstSeenOrder(t *testing.T) {
	t.Parallel()

	c := NewCategoryCounts("category")
	for _, cat := range []string{"food", "food", "drink"} {
		require.NoError(t, c.Update(rec(map[string]any{"category": cat})))
	}

	snap := c.Snapshot()
	assert.Equal(t, ModeCategory, snap.Mode)
	assert.Equal(t, []CategoryCount{{Label: "food", Count: 2}, {Label: "drink", Count: 1}}, snap.Categories)
	assert.Equal(t, uint64(3), snap.Seq)
	assert.Equal(t, float64(3), snap.Total)
}

func TestCategoryCounts_CountsNeverDecrease(t *testing.T) {
	t.Parallel()

	c := NewCategoryCounts("category")
	labels := []string{"a", "b", "a", "c", "a", "b"}
	want := map[string]int64{}
	prev := map[string]int64{}
	for _, l := range labels {
		require.NoError(t, c.Update(rec(map[string]any{"category": l})))
		want[l]++
		for _, cc := range c.Snapshot().Categories {
			assert.GreaterOrEqual(t, cc.Count, prev[cc.Label], "count for %q decreased", cc.Label)
			prev[cc.Label] = cc.Count
		}
	}
	for label, n := range want {
		got, ok := c.Snapshot().Count(label)
		require.True(t, ok)
		assert.Equal(t, n, got, "count for %q", label)
	}
}

func TestCategoryCounts_MissingCategoryIsUnknown(t *testing.T) {
	t.Parallel()

	c := NewCategoryCounts("category")
	require.NoError(t, c.Update(rec(map[string]any{"author": "Eve"})))
	require.NoError(t, c.Update(rec(map[string]any{"category": "  "})))
	require.NoError(t, c.Update(rec(map[string]any{"category": float64(7)})))

	snap := c.Snapshot()
	n, ok := snap.Count(model.DefaultUnknownCategory)
	require.True(t, ok)
	assert.Equal(t, int64(2), n)
	n, ok = snap.Count("7")
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestSeries_AppendsInArrivalOrder(t *testing.T) {
	t.Parallel()

	s := NewSeries("food", "calories")
	require.NoError(t, s.Update(rec(map[string]any{"food": "apple", "calories": "95"})))
	require.NoError(t, s.Update(rec(map[string]any{"food": "banana", "calories": float64(105)})))

	snap := s.Snapshot()
	assert.Equal(t, []Point{{X: "apple", Y: 95}, {X: "banana", Y: 105}}, snap.Points)
	assert.Equal(t, []string{"apple", "banana"}, snap.Labels())
}

func TestSeries_RejectsWithoutMutation(t *testing.T) {
	t.Parallel()

	s := NewSeries("food", "calories")
	require.NoError(t, s.Update(rec(map[string]any{"food": "apple", "calories": 95.0})))
	before := s.Snapshot()

	cases := []map[string]any{
		{"calories": 10.0},
		{"food": "kiwi"},
		{"food": "kiwi", "calories": "lots"},
	}
	for _, fields := range cases {
		err := s.Update(rec(fields))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ingest.ErrSchemaMismatch), "err = %v", err)
	}

	after := s.Snapshot()
	assert.Equal(t, before.Points, after.Points)
	assert.Equal(t, before.Seq, after.Seq)
}

func TestWindow_EvictsOldest(t *testing.T) {
	t.Parallel()

	w := NewWindow("food", "calories", 2)
	for i, food := range []string{"apple", "banana", "cherry"} {
		require.NoError(t, w.Update(rec(map[string]any{"food": food, "calories": float64(i)})))
	}

	snap := w.Snapshot()
	assert.Equal(t, []string{"banana", "cherry"}, snap.Labels())
	assert.Equal(t, 2, snap.Capacity)
	assert.Equal(t, uint64(3), snap.Seq)
}

func TestWindow_BoundHoldsForAnyLength(t *testing.T) {
	t.Parallel()

	for _, size := range []int{1, 2, 5, 7} {
		w := NewWindow("x", "y", size)
		var accepted []string
		for i := 0; i < 23; i++ {
			x := fmt.Sprintf("p%d", i)
			require.NoError(t, w.Update(rec(map[string]any{"x": x, "y": float64(i)})))
			accepted = append(accepted, x)

			require.LessOrEqual(t, w.Len(), size)
			start := len(accepted) - size
			if start < 0 {
				start = 0
			}
			assert.Equal(t, accepted[start:], w.Snapshot().Labels(), "size=%d after %d appends", size, i+1)
		}
	}
}

func TestWindow_DefaultCapacity(t *testing.T) {
	t.Parallel()

	w := NewWindow("x", "y", 0)
	assert.Equal(t, model.DefaultWindowSize, w.Capacity())
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	c := NewCategoryCounts("category")
	require.NoError(t, c.Update(rec(map[string]any{"category": "a"})))
	snap := c.Snapshot()
	snap.Categories[0].Count = 100

	n, _ := c.Snapshot().Count("a")
	assert.Equal(t, int64(1), n)

	w := NewWindow("x", "y", 3)
	require.NoError(t, w.Update(rec(map[string]any{"x": "a", "y": 1.0})))
	ws := w.Snapshot()
	require.NoError(t, w.Update(rec(map[string]any{"x": "b", "y": 2.0})))
	assert.Len(t, ws.Points, 1)
}

func TestNew(t *testing.T) {
	t.Parallel()

	a, err := New(DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, ModeCategory, a.Mode())

	a, err = New(Policy{Mode: ModeWindow, XField: "x", YField: "y", WindowSize: 3})
	require.NoError(t, err)
	assert.Equal(t, ModeWindow, a.Mode())

	_, err = New(Policy{Mode: ModeWindow, XField: "x", YField: "y"})
	assert.Error(t, err)

	_, err = New(Policy{Mode: ModeSeries, XField: "x"})
	assert.Error(t, err)
}

func TestPolicyRequiredFields(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	assert.Empty(t, p.RequiredFields())

	p.RequireCategory = true
	assert.Equal(t, []string{"category"}, p.RequiredFields())

	p = Policy{Mode: ModeSeries, XField: "food", YField: "calories"}
	assert.Equal(t, []string{"food", "calories"}, p.RequiredFields())
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := map[string]Mode{
		"":         ModeCategory,
		"category": ModeCategory,
		"Series":   ModeSeries,
		"window":   ModeWindow,
		"rolling":  ModeWindow,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, "ParseMode(%q)", in)
		assert.Equal(t, want, got, "ParseMode(%q)", in)
	}

	_, err := ParseMode("pie")
	assert.Error(t, err)
}
