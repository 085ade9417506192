package source

import (
	"errors"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// ErrSourceNotFound is returned at startup when the input cannot be located
// (missing file, unknown topic).
var ErrSourceNotFound = errors.New("source not found")

// RecordSource is a unified interface for all record inputs (file, kafka, nats, tcp, stdin).
// Lines closes when the source is exhausted or fails; Err reports the failure.
type RecordSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw payloads
	Err() error                         // non-nil once Lines is closed after a failure
	Stop()                              // graceful shutdown, idempotent
	Name() string                       // "file", "kafka", "nats", "tcp", "stdin"
}

const (
	// DefaultBuffer is the default channel buffer size between a source and the pipeline.
	DefaultBuffer = 1024
)
