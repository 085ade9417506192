package ingest

import "github.com/tinytelemetry/tailchart/internal/model"

// RecordSink receives each successfully parsed record.
// Update must leave its state unchanged when it returns an error.
type RecordSink interface {
	Update(record *model.Record) error
}

// EnvelopeProcessor consumes source-tagged payloads and folds them into a sink.
type EnvelopeProcessor interface {
	ProcessEnvelope(env model.IngestEnvelope) (*model.Record, error)
}

// NewEnvelopeProcessor creates the JSON processor for sink.
func NewEnvelopeProcessor(sink RecordSink, required ...string) EnvelopeProcessor {
	return NewProcessor(NewParser(required...), sink)
}
