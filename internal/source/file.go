package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// FileConfig holds tunable parameters for the file tail source.
type FileConfig struct {
	PollInterval time.Duration
	MaxLineSize  int
	BufferSize   int
	FromStart    bool // read pre-existing content instead of seeking to EOF
}

// FileSource tails a growing newline-delimited file. It never exhausts on
// its own; it runs until Stop or the parent context is cancelled.
type FileSource struct {
	path     string
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	stopOnce sync.Once

	file        *os.File
	watcher     *fsnotify.Watcher
	poll        time.Duration
	maxLineSize int
}

// NewFileSource opens path and starts tailing it. A missing file yields an
// error wrapping ErrSourceNotFound.
func NewFileSource(ctx context.Context, path string, conf ...FileConfig) (*FileSource, error) {
	poll := model.DefaultPollInterval
	maxLineSize := model.DefaultMaxLineSize
	bufferSize := DefaultBuffer
	fromStart := false
	if len(conf) > 0 {
		if conf[0].PollInterval > 0 {
			poll = conf[0].PollInterval
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		fromStart = conf[0].FromStart
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	var start int64
	if !fromStart {
		if start, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", path, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := watcher.Add(path); addErr != nil {
			watcher.Close()
			watcher = nil
			err = addErr
		}
	}
	if err != nil {
		slog.Debug("source: fsnotify unavailable, polling only", "path", path, "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:        path,
		ch:          make(chan model.IngestEnvelope, bufferSize),
		cancel:      cancel,
		done:        make(chan struct{}),
		file:        f,
		watcher:     watcher,
		poll:        poll,
		maxLineSize: maxLineSize,
	}
	slog.Info("source: tailing file, ready and waiting for records", "path", path, "offset", start)
	go s.tail(ctx, start)
	return s, nil
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Err() error                         { return s.err }
func (s *FileSource) Name() string                       { return "file" }

// Stop cancels tailing and waits for the file handle to be released.
func (s *FileSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *FileSource) tail(ctx context.Context, pos int64) {
	defer close(s.done)
	defer close(s.ch)
	defer s.file.Close()
	if s.watcher != nil {
		defer s.watcher.Close()
	}

	reader := bufio.NewReader(s.file)
	var (
		pending    []byte
		discarding bool
		seq        int64
	)

	for {
		chunk, err := reader.ReadBytes('\n')
		pos += int64(len(chunk))

		if err == nil {
			line := append(pending, chunk...)
			pending = pending[:0]
			if discarding {
				discarding = false
				continue
			}
			line = bytes.TrimRight(line, "\r\n")
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if len(line) > s.maxLineSize {
				slog.Warn("source: dropped line exceeding max size", "path", s.path, "bytes", len(line), "max_bytes", s.maxLineSize)
				continue
			}
			seq++
			env := model.IngestEnvelope{Source: "file", Line: string(line), Topic: s.path, Offset: seq}
			select {
			case s.ch <- env:
			case <-ctx.Done():
				return
			}
			continue
		}

		if !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("read %s: %w", s.path, err)
			return
		}

		// Partial line: hold it until the writer finishes it.
		if !discarding {
			pending = append(pending, chunk...)
			if len(pending) > s.maxLineSize {
				slog.Warn("source: dropped line exceeding max size", "path", s.path, "max_bytes", s.maxLineSize)
				pending = pending[:0]
				discarding = true
			}
		}

		if !s.wait(ctx) {
			return
		}

		info, err := s.file.Stat()
		if err != nil {
			s.err = fmt.Errorf("stat %s: %w", s.path, err)
			return
		}
		if info.Size() < pos {
			slog.Warn("source: file truncated, restarting from beginning", "path", s.path, "size", info.Size(), "offset", pos)
			if _, err := s.file.Seek(0, io.SeekStart); err != nil {
				s.err = fmt.Errorf("seek %s: %w", s.path, err)
				return
			}
			reader.Reset(s.file)
			pending = pending[:0]
			discarding = false
			pos = 0
		}
	}
}

// wait blocks until the file may have grown: a filesystem event, the poll
// interval elapsing, or cancellation. It reports false on cancellation.
func (s *FileSource) wait(ctx context.Context) bool {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if s.watcher != nil {
		events = s.watcher.Events
		errs = s.watcher.Errors
	}
	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				return true
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("source: fsnotify error", "path", s.path, "error", err)
		}
	}
}
