package aggregate

import (
	"time"

	"github.com/tinytelemetry/tailchart/internal/ingest"
	"github.com/tinytelemetry/tailchart/internal/model"
)

// Aggregator folds records into process-lifetime state.
// It is owned by a single goroutine and is not safe for concurrent use.
type Aggregator interface {
	ingest.RecordSink
	Mode() Mode
	Snapshot() Snapshot
}

// New creates the aggregator selected by policy.
func New(policy Policy) (Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	switch policy.Mode {
	case ModeSeries:
		return NewSeries(policy.XField, policy.YField), nil
	case ModeWindow:
		return NewWindow(policy.XField, policy.YField, policy.WindowSize), nil
	default:
		return NewCategoryCounts(policy.CategoryField), nil
	}
}

// extractPoint reads the x and y fields from record without side effects.
func extractPoint(record *model.Record, xField, yField string) (Point, error) {
	x, ok := record.Text(xField)
	if !ok {
		return Point{}, ingest.NewSchemaMismatch(xField, "required field is missing or null")
	}
	if !record.Has(yField) {
		return Point{}, ingest.NewSchemaMismatch(yField, "required field is missing or null")
	}
	y, ok := record.Number(yField)
	if !ok {
		return Point{}, ingest.NewSchemaMismatch(yField, "value is not numeric")
	}
	return Point{X: x, Y: y}, nil
}

type clock func() time.Time
