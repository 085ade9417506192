package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource reads newline-delimited payloads from stdin until EOF.
type StdinSource struct {
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	closer   io.Closer
	err      error
	stopOnce sync.Once
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return NewReaderSource(ctx, os.Stdin, conf...)
}

// NewReaderSource reads newline-delimited payloads from r until EOF. It
// reports itself as the stdin source; r is closed on Stop when it is an
// io.Closer other than os.Stdin.
func NewReaderSource(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultBuffer
	maxLineSize := model.DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	if c, ok := r.(io.Closer); ok && r != io.Reader(os.Stdin) {
		s.closer = c
	}
	go s.read(ctx, r, maxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, min(64*1024, maxLineSize))
	scanner.Buffer(buf, maxLineSize)

	// Use a single goroutine for blocking scan with a done channel to
	// detect context cancellation without spawning a goroutine per line.
	type scanResult struct {
		line string
		err  error
	}
	results := make(chan scanResult)
	go func() {
		defer close(results)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			select {
			case results <- scanResult{line: line}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("stdin line exceeded max size (%d bytes): %w", maxLineSize, err)
			}
			select {
			case results <- scanResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				slog.Info("source: stdin reached EOF")
				return
			}
			if res.err != nil {
				s.err = res.err
				return
			}
			offset++
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: res.line, Offset: offset}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Err() error                         { return s.err }
func (s *StdinSource) Name() string                       { return "stdin" }

func (s *StdinSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.closer != nil {
			_ = s.closer.Close()
		}
	})
}
