package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
	"github.com/tinytelemetry/tailchart/internal/chart"
	"github.com/tinytelemetry/tailchart/internal/ingest"
	"github.com/tinytelemetry/tailchart/internal/metrics"
	"github.com/tinytelemetry/tailchart/internal/model"
	"github.com/tinytelemetry/tailchart/internal/source"
)

const maxPayloadExcerpt = 200

// SourceOpener acquires the record source. It runs while the driver is
// Initializing; an error there ends the run before any record is read.
type SourceOpener func(ctx context.Context) (source.RecordSource, error)

// Static returns an opener for an already-open source.
func Static(src source.RecordSource) SourceOpener {
	return func(context.Context) (source.RecordSource, error) { return src, nil }
}

// Config wires the driver's collaborators.
type Config struct {
	Open       SourceOpener
	Aggregator aggregate.Aggregator
	Required   []string                 // fields the parser enforces
	Processor  ingest.EnvelopeProcessor // optional, built from Aggregator and Required when nil
	Renderer   chart.Renderer           // optional, discards frames when nil
	Metrics    *metrics.Pipeline        // optional
	Logger     *slog.Logger             // optional, slog.Default() when nil
}

// Driver runs read -> parse -> aggregate -> render on a single goroutine.
type Driver struct {
	open     SourceOpener
	agg      aggregate.Aggregator
	proc     ingest.EnvelopeProcessor
	renderer chart.Renderer
	metrics  *metrics.Pipeline
	logger   *slog.Logger

	src     source.RecordSource
	started atomic.Bool
	state   atomic.Int32
	last    atomic.Pointer[aggregate.Snapshot]

	received       atomic.Uint64
	accepted       atomic.Uint64
	parseFailures  atomic.Uint64
	renderFailures atomic.Uint64
}

// New validates cfg and creates a driver in the Initializing state.
func New(cfg Config) (*Driver, error) {
	if cfg.Open == nil {
		return nil, errors.New("pipeline: source opener is required")
	}
	if cfg.Aggregator == nil {
		return nil, errors.New("pipeline: aggregator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	proc := cfg.Processor
	if proc == nil {
		p := ingest.NewProcessor(ingest.NewParser(cfg.Required...), cfg.Aggregator)
		p.SetLogger(logger)
		proc = p
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = chart.Nop{}
	}

	d := &Driver{
		open:     cfg.Open,
		agg:      cfg.Aggregator,
		proc:     proc,
		renderer: renderer,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
	d.setState(Initializing)
	return d, nil
}

// State returns the current lifecycle state. Safe from any goroutine.
func (d *Driver) State() State { return State(d.state.Load()) }

// Stats returns the running counters. Safe from any goroutine.
func (d *Driver) Stats() Stats {
	return Stats{
		Received:       d.received.Load(),
		Accepted:       d.accepted.Load(),
		ParseFailures:  d.parseFailures.Load(),
		RenderFailures: d.renderFailures.Load(),
	}
}

// Snapshot returns the snapshot taken after the most recent accepted record.
// Safe from any goroutine.
func (d *Driver) Snapshot() aggregate.Snapshot {
	if s := d.last.Load(); s != nil {
		return *s
	}
	return aggregate.Snapshot{Mode: d.agg.Mode()}
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	if d.metrics != nil {
		d.metrics.State.Set(float64(s))
	}
}

// Run drives the pipeline until the source is exhausted, ctx is cancelled,
// or an unexpected error occurs. Exhaustion and cancellation return nil.
// A Driver runs at most once.
func (d *Driver) Run(ctx context.Context) (err error) {
	if !d.started.CompareAndSwap(false, true) {
		return errors.New("pipeline: driver already started")
	}

	src, err := d.open(ctx)
	if err != nil {
		d.setState(Closed)
		return fmt.Errorf("open source: %w", err)
	}
	d.src = src

	defer func() { d.close(err) }()

	d.setState(Running)
	d.logger.Info("pipeline: running", "source", src.Name(), "mode", d.agg.Mode(), "renderer", d.renderer.Name())

	for {
		// Cancellation wins over a ready payload.
		select {
		case <-ctx.Done():
			d.interrupt()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			d.interrupt()
			return nil
		case env, ok := <-src.Lines():
			if !ok {
				if serr := src.Err(); serr != nil {
					return fmt.Errorf("source %s: %w", src.Name(), serr)
				}
				d.setState(Draining)
				d.logger.Info("pipeline: source exhausted", "source", src.Name())
				return nil
			}
			if err := d.step(env); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) interrupt() {
	d.setState(Interrupted)
	d.logger.Info("pipeline: interrupted")
}

// step handles one payload. Only unexpected failures are returned.
func (d *Driver) step(env model.IngestEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s record at offset %d: %v", env.Source, env.Offset, r)
		}
	}()

	d.received.Add(1)
	if d.metrics != nil {
		d.metrics.RecordsReceived.Inc()
	}

	if _, err := d.proc.ProcessEnvelope(env); err != nil {
		var perr *ingest.ParseError
		if !errors.As(err, &perr) {
			return fmt.Errorf("process %s record at offset %d: %w", env.Source, env.Offset, err)
		}
		d.parseFailures.Add(1)
		if d.metrics != nil {
			d.metrics.ParseFailures.WithLabelValues(perr.Kind.String()).Inc()
		}
		d.logger.Warn("pipeline: dropped record",
			"source", env.Source,
			"topic", env.Topic,
			"offset", env.Offset,
			"kind", perr.Kind.String(),
			"error", err,
			"payload", excerpt(env.Line),
		)
		return nil
	}

	d.accepted.Add(1)
	snap := d.agg.Snapshot()
	d.last.Store(&snap)
	if d.metrics != nil {
		d.metrics.RecordsAccepted.Inc()
		d.metrics.AggregateSize.Set(float64(snap.Len()))
	}
	d.logger.Debug("pipeline: aggregate updated", "seq", snap.Seq, "size", snap.Len(), "labels", snap.Labels())

	d.render(snap)
	return nil
}

func (d *Driver) render(snap aggregate.Snapshot) {
	if err := d.renderer.Render(snap); err != nil {
		d.renderFailures.Add(1)
		if d.metrics != nil {
			d.metrics.RenderFailures.Inc()
		}
		d.logger.Warn("pipeline: render failed", "renderer", d.renderer.Name(), "seq", snap.Seq, "error", err)
	}
}

// close releases the source, flushes a final frame and closes the renderer.
func (d *Driver) close(runErr error) {
	if runErr != nil {
		d.logger.Error("pipeline: stopped on unexpected error", "error", runErr)
	}
	d.src.Stop()

	snap := d.agg.Snapshot()
	d.last.Store(&snap)
	d.guard("final render", func() { d.render(snap) })
	d.guard("renderer close", func() {
		if err := d.renderer.Close(); err != nil {
			d.logger.Warn("pipeline: renderer close failed", "renderer", d.renderer.Name(), "error", err)
		}
	})

	d.setState(Closed)
	st := d.Stats()
	d.logger.Info("pipeline: closed",
		"received", st.Received,
		"accepted", st.Accepted,
		"parse_failures", st.ParseFailures,
		"render_failures", st.RenderFailures,
	)
}

// guard runs a shutdown step; a panic is logged and counted as a render
// failure so the driver still reaches Closed.
func (d *Driver) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.renderFailures.Add(1)
			if d.metrics != nil {
				d.metrics.RenderFailures.Inc()
			}
			d.logger.Error("pipeline: "+what+" panicked", "renderer", d.renderer.Name(), "panic", r)
		}
	}()
	fn()
}

// excerpt shortens s to at most maxPayloadExcerpt bytes on a rune boundary.
func excerpt(s string) string {
	if len(s) <= maxPayloadExcerpt {
		return s
	}
	cut := maxPayloadExcerpt
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
