package source

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStdinSourceStopClosesLines(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := NewReaderSource(context.Background(), r)
	src.Stop()

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected lines channel to be closed after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lines channel to close")
	}
}

func TestStdinSourceStopIsIdempotent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer func() { _ = w.Close() }()

	src := NewReaderSource(context.Background(), r)
	src.Stop()
	src.Stop()
}

func TestStdinSourceExhaustsAtEOF(t *testing.T) {
	t.Parallel()

	input := "{\"category\":\"a\"}\n\n{\"category\":\"b\"}\n"
	src := NewReaderSource(context.Background(), strings.NewReader(input))
	defer src.Stop()

	var got []string
	for env := range src.Lines() {
		got = append(got, env.Line)
		if env.Source != "stdin" {
			t.Errorf("source = %q, want stdin", env.Source)
		}
	}
	if len(got) != 2 {
		t.Fatalf("lines = %v, want 2 non-empty lines", got)
	}
	if src.Err() != nil {
		t.Fatalf("Err() = %v, want nil on EOF", src.Err())
	}
}

func TestStdinSourceLineTooLong(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("x", 128) + "\n"
	src := NewReaderSource(context.Background(), strings.NewReader(input), StdinConfig{MaxLineSize: 16})
	defer src.Stop()

	for range src.Lines() {
		t.Fatal("expected no lines")
	}
	if src.Err() == nil {
		t.Fatal("expected an error for an oversized line")
	}
}
