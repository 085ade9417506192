package chart

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

// snapshotDocument is the on-disk layout of a FileRenderer frame.
type snapshotDocument struct {
	Title              string `yaml:"title"`
	XLabel             string `yaml:"x_label"`
	YLabel             string `yaml:"y_label"`
	aggregate.Snapshot `yaml:",inline"`
}

// FileRenderer rewrites a YAML document with the latest snapshot after
// every record. Writes go through a temp file and rename so readers never
// see a partial frame.
type FileRenderer struct {
	path   string
	labels Labels
}

// NewFileRenderer creates a renderer targeting path. The parent directory
// is created when missing.
func NewFileRenderer(path string, labels Labels) (*FileRenderer, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileRenderer{path: path, labels: labels.withDefaults()}, nil
}

func (r *FileRenderer) Name() string { return "file" }

func (r *FileRenderer) Render(snap aggregate.Snapshot) error {
	data, err := yaml.Marshal(snapshotDocument{
		Title:    r.labels.Title,
		XLabel:   r.labels.XLabel,
		YLabel:   r.labels.YLabel,
		Snapshot: snap,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (r *FileRenderer) Close() error { return nil }
