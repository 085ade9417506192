package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tinytelemetry/tailchart/internal/source"
	"github.com/tinytelemetry/tailchart/internal/tcpserver"
)

// InputSourcePlugin is a small plugin primitive for wiring record inputs.
// Build runs while the pipeline is initializing.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (source.RecordSource, error)
}

type fileInputPlugin struct {
	path string
	conf source.FileConfig
}

func (p fileInputPlugin) Name() string  { return "file" }
func (p fileInputPlugin) Enabled() bool { return p.path != "" }

func (p fileInputPlugin) Build(ctx context.Context) (source.RecordSource, error) {
	return source.NewFileSource(ctx, p.path, p.conf)
}

type kafkaInputPlugin struct {
	conf source.KafkaConfig
}

func (p kafkaInputPlugin) Name() string  { return "kafka" }
func (p kafkaInputPlugin) Enabled() bool { return p.conf.Topic != "" }

func (p kafkaInputPlugin) Build(ctx context.Context) (source.RecordSource, error) {
	return source.NewKafkaSource(ctx, p.conf)
}

type natsInputPlugin struct {
	conf source.NATSConfig
}

func (p natsInputPlugin) Name() string  { return "nats" }
func (p natsInputPlugin) Enabled() bool { return p.conf.Subject != "" }

func (p natsInputPlugin) Build(ctx context.Context) (source.RecordSource, error) {
	return source.NewNATSSource(ctx, p.conf)
}

type tcpInputPlugin struct {
	addr        string
	maxLineSize int
}

func (p tcpInputPlugin) Name() string  { return "tcp" }
func (p tcpInputPlugin) Enabled() bool { return p.addr != "" }

func (p tcpInputPlugin) Build(_ context.Context) (source.RecordSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{MaxLineSize: p.maxLineSize})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return source.NewTCPSource(server), nil
}

type stdinInputPlugin struct {
	r           io.Reader
	maxLineSize int
}

func (p stdinInputPlugin) Name() string { return "stdin" }

// Enabled reports whether stdin is piped rather than an interactive terminal.
func (p stdinInputPlugin) Enabled() bool {
	f, ok := p.r.(*os.File)
	if !ok {
		return p.r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (source.RecordSource, error) {
	return source.NewReaderSource(ctx, p.r, source.StdinConfig{MaxLineSize: p.maxLineSize}), nil
}

// buildInputPlugin selects the plugin for a subcommand.
func buildInputPlugin(kind string, cfg appConfig, args []string, stdin io.Reader) (InputSourcePlugin, error) {
	switch kind {
	case "file":
		if len(args) != 1 {
			return nil, fmt.Errorf("file input needs exactly one path")
		}
		return fileInputPlugin{path: args[0], conf: source.FileConfig{
			PollInterval: cfg.PollInterval,
			MaxLineSize:  cfg.MaxLineSize,
			FromStart:    cfg.FromStart,
		}}, nil
	case "kafka":
		return kafkaInputPlugin{conf: source.KafkaConfig{
			Brokers: cfg.brokers(),
			Topic:   cfg.KafkaTopic,
			Group:   cfg.KafkaGroup,
			Offset:  cfg.KafkaOffset,
			Version: cfg.KafkaVersion,
		}}, nil
	case "nats":
		return natsInputPlugin{conf: source.NATSConfig{
			URL:     cfg.NATSURL,
			Subject: cfg.NATSSubject,
			Queue:   cfg.NATSQueue,
		}}, nil
	case "tcp":
		return tcpInputPlugin{addr: cfg.TCPAddr, maxLineSize: cfg.MaxLineSize}, nil
	case "stdin":
		return stdinInputPlugin{r: stdin, maxLineSize: cfg.MaxLineSize}, nil
	default:
		return nil, fmt.Errorf("unknown input %q", kind)
	}
}
