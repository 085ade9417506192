package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
)

func TestLoadConfig_Defaults(t *testing.T) {
	resetTailchartEnv(t)

	cfg, err := loadConfig(newViper(), "")
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}

	if cfg.Mode != "category" {
		t.Fatalf("Mode = %q, want %q", cfg.Mode, "category")
	}
	if cfg.CategoryField != "category" {
		t.Fatalf("CategoryField = %q, want %q", cfg.CategoryField, "category")
	}
	if cfg.WindowSize != 5 {
		t.Fatalf("WindowSize = %d, want 5", cfg.WindowSize)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %s, want 500ms", cfg.PollInterval)
	}
	if cfg.Renderer != "term" {
		t.Fatalf("Renderer = %q, want term", cfg.Renderer)
	}
	if got := cfg.brokers(); len(got) != 1 || got[0] != "localhost:9092" {
		t.Fatalf("brokers = %v, want [localhost:9092]", got)
	}
	if cfg.KafkaGroup != "test_group" || cfg.KafkaOffset != "earliest" {
		t.Fatalf("kafka group/offset = %q/%q", cfg.KafkaGroup, cfg.KafkaOffset)
	}
	if cfg.APIEnabled {
		t.Fatal("api should be disabled by default")
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("ConfigPath = %q, want empty when no file exists", cfg.ConfigPath)
	}
}

func TestLoadConfig_FileSettings(t *testing.T) {
	resetTailchartEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		wantErr      bool
		errSubstring string
		assert       func(t *testing.T, cfg appConfig)
	}{
		{
			name: "rolling window",
			configYAML: `
mode: rolling
x-field: food
y-field: calories
window-size: 2
renderer: plain
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				p, err := cfg.policy()
				if err != nil {
					t.Fatalf("policy: %v", err)
				}
				if p.Mode != aggregate.ModeWindow || p.WindowSize != 2 {
					t.Fatalf("policy = %+v", p)
				}
				if l := cfg.labels(); l.XLabel != "food" || l.YLabel != "calories" {
					t.Fatalf("labels = %+v", l)
				}
			},
		},
		{
			name: "kafka settings",
			configYAML: `
kafka-brokers: "a:9092, b:9092"
kafka-topic: events
kafka-offset: latest
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				got := cfg.brokers()
				if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
					t.Fatalf("brokers = %v", got)
				}
				if cfg.KafkaTopic != "events" || cfg.KafkaOffset != "latest" {
					t.Fatalf("kafka topic/offset = %q/%q", cfg.KafkaTopic, cfg.KafkaOffset)
				}
			},
		},
		{
			name: "invalid window size rejected",
			configYAML: `
window-size: 0
`,
			wantErr:      true,
			errSubstring: "invalid window-size",
		},
		{
			name: "unknown renderer rejected",
			configYAML: `
renderer: matplotlib
`,
			wantErr:      true,
			errSubstring: "invalid renderer",
		},
		{
			name: "unknown mode rejected",
			configYAML: `
mode: histogram
`,
			wantErr:      true,
			errSubstring: "unknown aggregation mode",
		},
		{
			name: "series without fields rejected",
			configYAML: `
mode: series
`,
			wantErr:      true,
			errSubstring: "requires both x and y fields",
		},
		{
			name: "invalid log level rejected",
			configYAML: `
log-level: loud
`,
			wantErr:      true,
			errSubstring: "invalid log-level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeTempConfig(t, tt.configYAML)
			cfg, err := loadConfig(newViper(), configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if cfg.ConfigPath != configPath {
				t.Fatalf("ConfigPath = %q, want %q", cfg.ConfigPath, configPath)
			}
			tt.assert(t, cfg)
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetTailchartEnv(t)
	t.Setenv("TAILCHART_WINDOW_SIZE", "3")
	t.Setenv("TAILCHART_CATEGORY_FIELD", "kind")
	t.Setenv("KAFKA_BROKER_ADDRESS", "broker:9093")

	cfg, err := loadConfig(newViper(), "")
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.WindowSize != 3 {
		t.Fatalf("WindowSize = %d, want 3", cfg.WindowSize)
	}
	if cfg.CategoryField != "kind" {
		t.Fatalf("CategoryField = %q, want kind", cfg.CategoryField)
	}
	if got := cfg.brokers(); len(got) != 1 || got[0] != "broker:9093" {
		t.Fatalf("brokers = %v, want [broker:9093]", got)
	}
}

func TestLoadConfig_ExpandsHomeInPaths(t *testing.T) {
	home := resetTailchartEnv(t)

	cfg, err := loadConfig(newViper(), writeTempConfig(t, `
snapshot-file: ~/charts/latest.yml
`))
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if want := filepath.Join(home, "charts", "latest.yml"); cfg.SnapshotFile != want {
		t.Fatalf("SnapshotFile = %q, want %q", cfg.SnapshotFile, want)
	}
}

func TestAppConfig_CategoryLabelsUseChartDefaults(t *testing.T) {
	resetTailchartEnv(t)

	cfg, err := loadConfig(newViper(), "")
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if l := cfg.labels(); l.Title != "" || l.XLabel != "" {
		t.Fatalf("labels = %+v, want empty so the renderer applies defaults", l)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// resetTailchartEnv clears TAILCHART_* and broker variables and points HOME
// at a temp dir so no user config leaks in. It returns the temp home.
func resetTailchartEnv(t *testing.T) string {
	t.Helper()

	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "TAILCHART_") {
			continue
		}
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
	t.Setenv("KAFKA_BROKER_ADDRESS", "")
	os.Unsetenv("KAFKA_BROKER_ADDRESS")

	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}
