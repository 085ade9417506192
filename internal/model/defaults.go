package model

import "time"

// Shared defaults used by the CLI and the pipeline packages.
const (
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultRenderPause     = 10 * time.Millisecond
	DefaultWindowSize      = 5
	DefaultCategoryField   = "category"
	DefaultUnknownCategory = "unknown"
	DefaultMaxLineSize     = 1024 * 1024 // 1MB
)
