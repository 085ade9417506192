package chart

import (
	"fmt"
	"io"
	"time"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

const clearScreen = "\x1b[H\x1b[2J"

// TermRenderer redraws the chart to a terminal writer after every record.
type TermRenderer struct {
	w      io.Writer
	labels Labels
	plain  bool
	pause  time.Duration
	width  int
	height int
}

// TermConfig holds tunable parameters for TermRenderer.
type TermConfig struct {
	Plain  bool          // one summary line per frame, no ANSI
	Pause  time.Duration // yield after each frame
	Width  int
	Height int
}

// NewTermRenderer creates a renderer writing to w.
func NewTermRenderer(w io.Writer, labels Labels, conf ...TermConfig) *TermRenderer {
	r := &TermRenderer{w: w, labels: labels, width: 80, height: 16}
	if len(conf) > 0 {
		r.plain = conf[0].Plain
		r.pause = conf[0].Pause
		if conf[0].Width > 0 {
			r.width = conf[0].Width
		}
		if conf[0].Height > 0 {
			r.height = conf[0].Height
		}
	}
	return r
}

func (r *TermRenderer) Name() string {
	if r.plain {
		return "plain"
	}
	return "term"
}

func (r *TermRenderer) Render(snap aggregate.Snapshot) error {
	var err error
	if r.plain {
		_, err = fmt.Fprintln(r.w, Summary(snap, r.labels))
	} else {
		_, err = fmt.Fprint(r.w, clearScreen+Frame(snap, r.labels, r.width, r.height)+"\n")
	}
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if r.pause > 0 {
		time.Sleep(r.pause)
	}
	return nil
}

func (r *TermRenderer) Close() error { return nil }
