package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/tailchart/internal/aggregate"
	"github.com/tinytelemetry/tailchart/internal/chart"
	"github.com/tinytelemetry/tailchart/internal/httpserver"
	"github.com/tinytelemetry/tailchart/internal/metrics"
	"github.com/tinytelemetry/tailchart/internal/pipeline"
)

// runOptions carries the process streams so tests can substitute them.
type runOptions struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// runPipeline tails the plugin's source until it is exhausted, the operator
// interrupts, or an unexpected error stops the driver.
func runPipeline(ctx context.Context, cfg appConfig, plugin InputSourcePlugin, opts runOptions) error {
	if !plugin.Enabled() {
		return fmt.Errorf("input %s is not configured", plugin.Name())
	}

	useTUI := cfg.Renderer == "tui"
	cleanupLogger := configureRuntimeLogger(cfg, useTUI, opts.Stderr)
	defer cleanupLogger()

	policy, err := cfg.policy()
	if err != nil {
		return err
	}
	agg, err := aggregate.New(policy)
	if err != nil {
		return err
	}
	registry := metrics.NewRegistry()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer, tui, holder, err := buildRenderers(ctx, cfg, opts.Stdout)
	if err != nil {
		return err
	}

	driver, err := pipeline.New(pipeline.Config{
		Open:       plugin.Build,
		Aggregator: agg,
		Required:   policy.RequiredFields(),
		Renderer:   renderer,
		Metrics:    registry.Pipeline,
		Logger:     slog.Default(),
	})
	if err != nil {
		return err
	}

	if cfg.APIEnabled {
		status := func() httpserver.Status {
			return httpserver.Status{State: driver.State().String(), Records: driver.Stats().Received}
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, holder, status, registry.Handler())
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	if !useTUI {
		printStartupBanner(opts.Stderr, cfg, plugin.Name())
	}

	g, gctx := errgroup.WithContext(ctx)

	if tui != nil {
		// Quitting the chart is an operator interrupt.
		g.Go(func() error {
			defer cancel()
			return tui.Run()
		})
	}

	g.Go(func() error {
		err := driver.Run(gctx)
		if err != nil && tui != nil {
			tui.Kill()
		}
		return err
	})

	return g.Wait()
}

// buildRenderers assembles the configured outputs. holder is nil unless the
// API is enabled; tui is nil unless the TUI renderer was selected.
func buildRenderers(ctx context.Context, cfg appConfig, stdout io.Writer) (chart.Renderer, *chart.TUIRenderer, *httpserver.SnapshotHolder, error) {
	labels := cfg.labels()
	var (
		out    chart.Multi
		tui    *chart.TUIRenderer
		holder *httpserver.SnapshotHolder
	)

	switch cfg.Renderer {
	case "term":
		out = append(out, chart.NewTermRenderer(stdout, labels, chart.TermConfig{Pause: cfg.RenderPause}))
	case "plain":
		out = append(out, chart.NewTermRenderer(stdout, labels, chart.TermConfig{Plain: true, Pause: cfg.RenderPause}))
	case "tui":
		tui = chart.NewTUIRenderer(labels, cfg.RenderPause, tea.WithContext(ctx))
		out = append(out, tui)
	}

	if cfg.SnapshotFile != "" {
		fr, err := chart.NewFileRenderer(cfg.SnapshotFile, labels)
		if err != nil {
			return nil, nil, nil, err
		}
		out = append(out, fr)
	}

	if cfg.APIEnabled {
		holder = httpserver.NewSnapshotHolder()
		out = append(out, holder)
	}

	switch len(out) {
	case 0:
		return chart.Nop{}, tui, holder, nil
	case 1:
		return out[0], tui, holder, nil
	default:
		return out, tui, holder, nil
	}
}

// configureRuntimeLogger installs the default slog logger. When the TUI owns
// the terminal, logs go to a file under ~/.local/state/tailchart unless
// log-file says otherwise.
func configureRuntimeLogger(cfg appConfig, tui bool, stderr io.Writer) func() {
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	previous := slog.Default()
	install := func(w io.Writer) {
		slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	}

	logPath := cfg.LogFile
	if logPath == "" && tui {
		home, err := os.UserHomeDir()
		if err == nil {
			logPath = filepath.Join(home, ".local", "state", "tailchart", "tailchart.log")
		}
	}
	if logPath == "" {
		install(stderr)
		return func() { slog.SetDefault(previous) }
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		install(stderr)
		return func() { slog.SetDefault(previous) }
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		install(stderr)
		return func() { slog.SetDefault(previous) }
	}

	install(f)
	return func() {
		slog.SetDefault(previous)
		_ = f.Close()
	}
}

func printStartupBanner(w io.Writer, cfg appConfig, inputName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+cyan.Bold(true).Render("tailchart")+" "+dim.Render("v"+version))
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Pipeline"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Input          %s", check, cyan.Render(inputName)))
	lines = append(lines, fmt.Sprintf("    %s  Mode           %s", check, cyan.Render(modeDescription(cfg))))
	lines = append(lines, fmt.Sprintf("    %s  Renderer       %s", check, cyan.Render(cfg.Renderer)))
	if cfg.SnapshotFile != "" {
		lines = append(lines, fmt.Sprintf("    %s  Snapshot File  %s", check, dim.Render(shortenPath(cfg.SnapshotFile))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Snapshot File  %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func modeDescription(cfg appConfig) string {
	switch aggregate.Mode(cfg.Mode) {
	case aggregate.ModeSeries:
		return fmt.Sprintf("series %s/%s", cfg.XField, cfg.YField)
	case aggregate.ModeWindow:
		return fmt.Sprintf("window(%d) %s/%s", cfg.WindowSize, cfg.XField, cfg.YField)
	default:
		return "category " + cfg.CategoryField
	}
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
