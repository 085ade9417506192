package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/tailchart/internal/source"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

const (
	exitOK             = 0
	exitFailure        = 1
	exitSourceNotFound = 2
)

func main() {
	os.Exit(run(os.Args[1:], runOptions{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}))
}

// run executes the CLI and maps the outcome to a process exit code.
func run(args []string, opts runOptions) int {
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(opts.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, source.ErrSourceNotFound):
		return exitSourceNotFound
	default:
		return exitFailure
	}
}

func newRootCmd(opts runOptions) *cobra.Command {
	v := newViper()
	var configPath string

	root := &cobra.Command{
		Use:           "tailchart",
		Short:         "tailchart - live charts from a tailed stream of JSON records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/tailchart/config.yml)")
	pf.String("mode", "category", "aggregation mode: category, series or window")
	pf.String("category-field", "category", "field counted in category mode")
	pf.Bool("require-category", false, "drop records without the category field instead of counting them as unknown")
	pf.String("x-field", "", "x field in series and window modes")
	pf.String("y-field", "", "numeric y field in series and window modes")
	pf.Int("window-size", 5, "rolling window size")
	pf.String("renderer", defaultRenderer, "output: term, plain, tui or none")
	pf.String("title", "", "chart title")
	pf.String("x-label", "", "x axis label")
	pf.String("y-label", "", "y axis label")
	pf.Duration("render-pause", 0, "pause after each redraw")
	pf.String("snapshot-file", "", "also write the latest snapshot as YAML to this path")
	pf.Int("max-line-size", 0, "maximum payload size in bytes")
	pf.Bool("api-enabled", false, "serve /api/health, /api/snapshot and /metrics")
	pf.String("api-addr", "", "HTTP API listen address")
	pf.String("log-file", "", "write logs to this file")
	pf.String("log-level", defaultLogLevel, "log level: debug, info, warn, error")
	_ = v.BindPFlags(pf)

	fileCmd := newInputCmd(v, &configPath, opts, "file <path>", "Tail a growing JSON-lines file", "file", cobra.ExactArgs(1))
	fileCmd.Flags().Duration("poll-interval", 0, "delay between reads when no new data is available")
	fileCmd.Flags().Bool("from-start", false, "read existing content before tailing")
	bindFlag(v, fileCmd, "poll-interval", "poll-interval")
	bindFlag(v, fileCmd, "from-start", "from-start")

	kafkaCmd := newInputCmd(v, &configPath, opts, "kafka", "Consume a Kafka topic", "kafka", cobra.NoArgs)
	kafkaCmd.Flags().String("brokers", "", "comma separated broker addresses")
	kafkaCmd.Flags().String("topic", "", "topic to consume")
	kafkaCmd.Flags().String("group", "", "consumer group")
	kafkaCmd.Flags().String("offset", "", "initial offset: earliest or latest")
	kafkaCmd.Flags().String("kafka-version", "", "kafka protocol version")
	bindFlag(v, kafkaCmd, "kafka-brokers", "brokers")
	bindFlag(v, kafkaCmd, "kafka-topic", "topic")
	bindFlag(v, kafkaCmd, "kafka-group", "group")
	bindFlag(v, kafkaCmd, "kafka-offset", "offset")
	bindFlag(v, kafkaCmd, "kafka-version", "kafka-version")

	natsCmd := newInputCmd(v, &configPath, opts, "nats", "Subscribe to a NATS subject", "nats", cobra.NoArgs)
	natsCmd.Flags().String("url", "", "NATS server URL")
	natsCmd.Flags().String("subject", "", "subject to subscribe to")
	natsCmd.Flags().String("queue", "", "queue group")
	bindFlag(v, natsCmd, "nats-url", "url")
	bindFlag(v, natsCmd, "nats-subject", "subject")
	bindFlag(v, natsCmd, "nats-queue", "queue")

	tcpCmd := newInputCmd(v, &configPath, opts, "tcp", "Accept newline-delimited records over TCP", "tcp", cobra.NoArgs)
	tcpCmd.Flags().String("addr", "", "listen address")
	bindFlag(v, tcpCmd, "tcp-addr", "addr")

	stdinCmd := newInputCmd(v, &configPath, opts, "stdin", "Read records piped on stdin", "stdin", cobra.NoArgs)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tailchart - live stream charts\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}

	root.AddCommand(fileCmd, kafkaCmd, natsCmd, tcpCmd, stdinCmd, versionCmd)
	return root
}

func newInputCmd(v *viper.Viper, configPath *string, opts runOptions, use, short, kind string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			plugin, err := buildInputPlugin(kind, cfg, args, opts.Stdin)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, plugin, opts)
		},
	}
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	_ = v.BindPFlag(key, cmd.Flags().Lookup(flag))
}
