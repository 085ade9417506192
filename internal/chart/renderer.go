package chart

import (
	"errors"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

// Renderer draws a snapshot of aggregator state. Render runs synchronously on
// the pipeline goroutine and must not retain or mutate snap.
type Renderer interface {
	Name() string
	Render(snap aggregate.Snapshot) error
	Close() error
}

// Labels are the title and axis captions of a chart.
type Labels struct {
	Title  string
	XLabel string
	YLabel string
}

// DefaultLabels returns the captions used for category breakdowns.
func DefaultLabels() Labels {
	return Labels{
		Title:  "Real-Time Category Breakdown",
		XLabel: "Category",
		YLabel: "Message Counts",
	}
}

// withDefaults fills empty captions from DefaultLabels.
func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	if l.Title == "" {
		l.Title = d.Title
	}
	if l.XLabel == "" {
		l.XLabel = d.XLabel
	}
	if l.YLabel == "" {
		l.YLabel = d.YLabel
	}
	return l
}

// Multi fans each call out to every renderer in order.
type Multi []Renderer

func (m Multi) Name() string { return "multi" }

func (m Multi) Render(snap aggregate.Snapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every snapshot.
type Nop struct{}

func (Nop) Name() string                    { return "none" }
func (Nop) Render(aggregate.Snapshot) error { return nil }
func (Nop) Close() error                    { return nil }
