package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
	"github.com/tinytelemetry/tailchart/internal/chart"
	"github.com/tinytelemetry/tailchart/internal/httpserver"
	"github.com/tinytelemetry/tailchart/internal/model"
	"github.com/tinytelemetry/tailchart/internal/source"
	"github.com/tinytelemetry/tailchart/internal/tcpserver"
)

const (
	defaultRenderer    = "term"
	defaultKafkaOffset = "earliest"
	defaultLogLevel    = "info"
)

var knownRenderers = []string{"term", "plain", "tui", "none"}

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Mode            string        `mapstructure:"mode"`
	CategoryField   string        `mapstructure:"category-field"`
	RequireCategory bool          `mapstructure:"require-category"`
	XField          string        `mapstructure:"x-field"`
	YField          string        `mapstructure:"y-field"`
	WindowSize      int           `mapstructure:"window-size"`
	Renderer        string        `mapstructure:"renderer"`
	Title           string        `mapstructure:"title"`
	XLabel          string        `mapstructure:"x-label"`
	YLabel          string        `mapstructure:"y-label"`
	RenderPause     time.Duration `mapstructure:"render-pause"`
	SnapshotFile    string        `mapstructure:"snapshot-file"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	FromStart       bool          `mapstructure:"from-start"`
	MaxLineSize     int           `mapstructure:"max-line-size"`
	KafkaBrokers    string        `mapstructure:"kafka-brokers"`
	KafkaTopic      string        `mapstructure:"kafka-topic"`
	KafkaGroup      string        `mapstructure:"kafka-group"`
	KafkaOffset     string        `mapstructure:"kafka-offset"`
	KafkaVersion    string        `mapstructure:"kafka-version"`
	NATSURL         string        `mapstructure:"nats-url"`
	NATSSubject     string        `mapstructure:"nats-subject"`
	NATSQueue       string        `mapstructure:"nats-queue"`
	TCPAddr         string        `mapstructure:"tcp-addr"`
	APIEnabled      bool          `mapstructure:"api-enabled"`
	APIAddr         string        `mapstructure:"api-addr"`
	LogFile         string        `mapstructure:"log-file"`
	LogLevel        string        `mapstructure:"log-level"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TAILCHART")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("mode", string(aggregate.ModeCategory))
	v.SetDefault("category-field", model.DefaultCategoryField)
	v.SetDefault("require-category", false)
	v.SetDefault("x-field", "")
	v.SetDefault("y-field", "")
	v.SetDefault("window-size", model.DefaultWindowSize)
	v.SetDefault("renderer", defaultRenderer)
	v.SetDefault("title", "")
	v.SetDefault("x-label", "")
	v.SetDefault("y-label", "")
	v.SetDefault("render-pause", model.DefaultRenderPause)
	v.SetDefault("snapshot-file", "")
	v.SetDefault("poll-interval", model.DefaultPollInterval)
	v.SetDefault("from-start", false)
	v.SetDefault("max-line-size", model.DefaultMaxLineSize)
	v.SetDefault("kafka-brokers", source.DefaultKafkaBroker)
	v.SetDefault("kafka-topic", "")
	v.SetDefault("kafka-group", source.DefaultKafkaGroup)
	v.SetDefault("kafka-offset", defaultKafkaOffset)
	v.SetDefault("kafka-version", "")
	v.SetDefault("nats-url", "nats://127.0.0.1:4222")
	v.SetDefault("nats-subject", "")
	v.SetDefault("nats-queue", "")
	v.SetDefault("tcp-addr", tcpserver.DefaultAddr)
	v.SetDefault("api-enabled", false)
	v.SetDefault("api-addr", httpserver.DefaultAddr)
	v.SetDefault("log-file", "")
	v.SetDefault("log-level", defaultLogLevel)

	// KAFKA_BROKER_ADDRESS is honored as an alias for the broker list.
	_ = v.BindEnv("kafka-brokers", "TAILCHART_KAFKA_BROKERS", "KAFKA_BROKER_ADDRESS")
	return v
}

func loadConfig(v *viper.Viper, configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "tailchart", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	mode, err := aggregate.ParseMode(cfg.Mode)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = string(mode)
	if cfg.WindowSize <= 0 {
		return cfg, fmt.Errorf("invalid window-size: %d", cfg.WindowSize)
	}
	cfg.Renderer = strings.ToLower(strings.TrimSpace(cfg.Renderer))
	if !isKnownRenderer(cfg.Renderer) {
		return cfg, fmt.Errorf("invalid renderer %q (want one of %s)", cfg.Renderer, strings.Join(knownRenderers, ", "))
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("invalid poll-interval: %s", cfg.PollInterval)
	}
	if cfg.RenderPause < 0 {
		return cfg, fmt.Errorf("invalid render-pause: %s", cfg.RenderPause)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	if _, err := cfg.policy(); err != nil {
		return cfg, err
	}

	// Expand ~ in file paths
	for _, p := range []*string{&cfg.SnapshotFile, &cfg.LogFile} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	return cfg, nil
}

func isKnownRenderer(name string) bool {
	for _, r := range knownRenderers {
		if r == name {
			return true
		}
	}
	return false
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log-level %q: %w", s, err)
	}
	return level, nil
}

// policy maps the aggregation keys onto an aggregate.Policy.
func (c appConfig) policy() (aggregate.Policy, error) {
	mode, err := aggregate.ParseMode(c.Mode)
	if err != nil {
		return aggregate.Policy{}, err
	}
	p := aggregate.Policy{
		Mode:            mode,
		CategoryField:   c.CategoryField,
		RequireCategory: c.RequireCategory,
		XField:          c.XField,
		YField:          c.YField,
		WindowSize:      c.WindowSize,
	}
	return p, p.Validate()
}

// labels returns chart captions, defaulting axes to the field names outside
// category mode.
func (c appConfig) labels() chart.Labels {
	l := chart.Labels{Title: c.Title, XLabel: c.XLabel, YLabel: c.YLabel}
	if c.Mode != string(aggregate.ModeCategory) {
		if l.Title == "" {
			l.Title = fmt.Sprintf("Real-Time %s of %s", strings.ToUpper(c.Mode[:1])+c.Mode[1:], c.YField)
		}
		if l.XLabel == "" {
			l.XLabel = c.XField
		}
		if l.YLabel == "" {
			l.YLabel = c.YField
		}
	}
	return l
}

func (c appConfig) brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
