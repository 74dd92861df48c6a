package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rvila94/ALASCA-sub001/telemetry"
)

// Version is set at build time.
var Version = "dev"

var (
	logLevel     string // Log verbosity level
	otelEndpoint string // OTLP/HTTP collector, empty to disable export
	otelInsecure bool   // Plain HTTP to the collector
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "alasca",
	Short: "Hybrid discrete-event simulator for a smart household",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		if !cmd.Flags().Changed("otel-endpoint") {
			otelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		return nil
	},
	SilenceUsage: true,
}

// withTelemetry runs fn with the exporters configured by the root flags and
// flushes them afterwards.
func withTelemetry(ctx context.Context, fn func(ctx context.Context) error) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    otelEndpoint,
		ServiceName: "alasca",
		Version:     Version,
		Insecure:    otelInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logrus.Warnf("telemetry shutdown: %v", err)
		}
	}()
	return fn(ctx)
}

// Execute runs the CLI root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP/HTTP collector host:port, defaults to $OTEL_EXPORTER_OTLP_ENDPOINT (empty disables export)")
	rootCmd.PersistentFlags().BoolVar(&otelInsecure, "otel-insecure", true, "Use plain HTTP to reach the collector")

	rootCmd.AddCommand(runCmd, validateCmd, testbedCmd, tracesCmd)
}
