package ingest

import (
	"log/slog"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// Processor handles payload parsing and routing to the aggregate sink.
type Processor struct {
	parser *Parser
	sink   RecordSink
	logger *slog.Logger
}

// NewProcessor creates a new record processor.
func NewProcessor(parser *Parser, sink RecordSink) *Processor {
	if parser == nil {
		parser = NewParser()
	}
	return &Processor{
		parser: parser,
		sink:   sink,
		logger: slog.Default(),
	}
}

// SetLogger replaces the processor's logger.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// ProcessEnvelope parses one payload and applies it to the sink.
// A parse failure is returned as *ParseError and the sink is not touched.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) (*model.Record, error) {
	p.logger.Debug("ingest: raw payload", "source", env.Source, "offset", env.Offset, "payload", env.Line)

	record, err := p.parser.Parse(env)
	if err != nil {
		return nil, err
	}

	if p.sink != nil {
		if err := p.sink.Update(record); err != nil {
			return nil, err
		}
	}

	return record, nil
}
