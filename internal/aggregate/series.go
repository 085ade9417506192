package aggregate

import (
	"time"

	"github.com/tinytelemetry/tailchart/internal/model"
)

var timeNow clock = time.Now

// Series is an append-only, unbounded sequence of points.
type Series struct {
	xField, yField string
	points         []Point
	seq            uint64
	now            clock
	last           time.Time
}

// NewSeries appends (xField, yField) pairs in arrival order.
func NewSeries(xField, yField string) *Series {
	return &Series{xField: xField, yField: yField, now: timeNow}
}

func (s *Series) Mode() Mode { return ModeSeries }

// Update appends the record's point, or returns a schema mismatch and leaves
// the series unchanged.
func (s *Series) Update(record *model.Record) error {
	p, err := extractPoint(record, s.xField, s.yField)
	if err != nil {
		return err
	}
	s.points = append(s.points, p)
	s.seq++
	s.last = s.now()
	return nil
}

func (s *Series) Snapshot() Snapshot {
	return Snapshot{
		Mode:      ModeSeries,
		Seq:       s.seq,
		Total:     float64(len(s.points)),
		Points:    append([]Point(nil), s.points...),
		UpdatedAt: s.last,
	}
}

// Window keeps the most recent points up to a fixed capacity, evicting the
// oldest first.
type Window struct {
	xField, yField string
	buf            []Point
	head           int // index of the oldest point
	size           int
	seq            uint64
	now            clock
	last           time.Time
}

// NewWindow creates a rolling window of capacity points.
// A non-positive capacity falls back to the default window size.
func NewWindow(xField, yField string, capacity int) *Window {
	if capacity <= 0 {
		capacity = model.DefaultWindowSize
	}
	return &Window{
		xField: xField,
		yField: yField,
		buf:    make([]Point, capacity),
		now:    timeNow,
	}
}

func (w *Window) Mode() Mode { return ModeWindow }

// Capacity returns the window bound.
func (w *Window) Capacity() int { return len(w.buf) }

// Len returns the number of points currently held.
func (w *Window) Len() int { return w.size }

func (w *Window) Update(record *model.Record) error {
	p, err := extractPoint(record, w.xField, w.yField)
	if err != nil {
		return err
	}
	w.push(p)
	w.seq++
	w.last = w.now()
	return nil
}

func (w *Window) push(p Point) {
	capacity := len(w.buf)
	if w.size < capacity {
		w.buf[(w.head+w.size)%capacity] = p
		w.size++
		return
	}
	w.buf[w.head] = p
	w.head = (w.head + 1) % capacity
}

// Snapshot returns the held points oldest first.
func (w *Window) Snapshot() Snapshot {
	points := make([]Point, w.size)
	for i := 0; i < w.size; i++ {
		points[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return Snapshot{
		Mode:      ModeWindow,
		Seq:       w.seq,
		Total:     float64(w.size),
		Capacity:  len(w.buf),
		Points:    points,
		UpdatedAt: w.last,
	}
}
