package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/tailchart/internal/source"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, runOptions{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	return code, stdout.String(), stderr.String()
}

func TestRun_MissingFileExitsBeforeProcessing(t *testing.T) {
	resetTailchartEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.jsonl")
	code, stdout, stderr := runCLI(t, "", "file", missing, "--renderer", "plain")

	if code != exitSourceNotFound {
		t.Fatalf("exit code = %d, want %d (stderr: %s)", code, exitSourceNotFound, stderr)
	}
	if !strings.Contains(stderr, "source not found") {
		t.Fatalf("stderr = %q, want source not found diagnostic", stderr)
	}
	if stdout != "" {
		t.Fatalf("stdout = %q, want no frames", stdout)
	}
}

func TestRun_StdinCategoryScenario(t *testing.T) {
	resetTailchartEnv(t)

	input := "{\"category\":\"food\"}\n{\"category\":\"food\"}\n{\"category\":\"drink\"}\n"
	code, stdout, stderr := runCLI(t, input, "stdin", "--renderer", "plain")

	if code != exitOK {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("frames = %d, want 4 (one per record plus final flush):\n%s", len(lines), stdout)
	}
	if last := lines[len(lines)-1]; !strings.HasSuffix(last, "food=2 drink=1") {
		t.Fatalf("last frame = %q, want counts food=2 drink=1", last)
	}
}

func TestRun_StdinMalformedLineIsSkipped(t *testing.T) {
	resetTailchartEnv(t)

	code, stdout, stderr := runCLI(t, "not-json\n{\"category\":\"x\"}\n", "stdin", "--renderer", "plain")

	if code != exitOK {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr)
	}
	if !strings.HasSuffix(strings.TrimSpace(stdout), "x=1") {
		t.Fatalf("stdout = %q, want final counts x=1", stdout)
	}
	if got := strings.Count(stderr, "pipeline: dropped record"); got != 1 {
		t.Fatalf("dropped record diagnostics = %d, want 1", got)
	}
}

func TestRun_WindowSnapshotFile(t *testing.T) {
	resetTailchartEnv(t)

	out := filepath.Join(t.TempDir(), "snapshot.yml")
	input := "{\"food\":\"apple\",\"kcal\":95}\n{\"food\":\"banana\",\"kcal\":105}\n{\"food\":\"cherry\",\"kcal\":50}\n"
	code, _, stderr := runCLI(t, input,
		"stdin",
		"--renderer", "none",
		"--mode", "window",
		"--x-field", "food",
		"--y-field", "kcal",
		"--window-size", "2",
		"--snapshot-file", out,
	)
	if code != exitOK {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var doc struct {
		Points []struct {
			X string  `yaml:"x"`
			Y float64 `yaml:"y"`
		} `yaml:"points"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(doc.Points) != 2 || doc.Points[0].X != "banana" || doc.Points[1].X != "cherry" {
		t.Fatalf("points = %+v, want [banana cherry]", doc.Points)
	}
}

func TestRun_InvalidConfigExitsWithFailure(t *testing.T) {
	resetTailchartEnv(t)

	code, _, stderr := runCLI(t, "", "stdin", "--mode", "window", "--x-field", "a", "--y-field", "b", "--window-size", "0")
	if code != exitFailure {
		t.Fatalf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "invalid window-size") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "", "version")
	if code != exitOK {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Version:    dev") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitFailure},
		{fmt.Errorf("open source: %w", source.ErrSourceNotFound), exitSourceNotFound},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
