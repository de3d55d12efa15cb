// Command connecthub runs the ConnectHub orchestration service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/connecthub/connecthub/pkg/api"
	"github.com/connecthub/connecthub/pkg/config"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/observability/metrics"
	"github.com/connecthub/connecthub/pkg/observability/tracing"
	"github.com/connecthub/connecthub/pkg/orchestrator"
	"github.com/connecthub/connecthub/pkg/orchestrator/supervisor"
	"github.com/connecthub/connecthub/pkg/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "connecthub",
		Short:         "ConnectHub polyglot persistence service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML configuration file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and store orchestration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile, cmd.Flags())
		},
	}
	serve.Flags().Int("port", 0, "override the configured HTTP port")
	serve.Flags().String("log-level", "", "override the configured log level")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Current("connecthub").String())
		},
	}

	root.AddCommand(serve, versionCmd)
	return root
}

func runServe(ctx context.Context, configFile string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cfg, flags)

	level, err := logger.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	format, err := logger.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("invalid log format: %w", err)
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting connecthub",
		"version", version.Current(cfg.Service.Name).String(),
		"environment", cfg.Service.Environment,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.AppVersion,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer tracerProvider.Shutdown(context.Background())

	registry := metrics.NewRegistry()

	orch, err := orchestrator.Bootstrap(ctx, cfg, log, registry, tracerProvider.Tracer("orchestrator"))
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer orch.CloseAll()

	sup := supervisor.New(cfg.Orchestrator.ProbeInterval, log)
	watchStores(sup, orch)
	sup.Start()
	defer sup.Stop()

	server := api.NewServer(cfg.HTTP, orch, log, registry)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "error", err)
	}
	return nil
}

// applyFlagOverrides lets explicit command-line flags win over file and
// environment configuration.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) {
	if f := flags.Lookup("port"); f != nil && f.Changed {
		if port, err := flags.GetInt("port"); err == nil {
			cfg.HTTP.Port = port
		}
	}
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
}

func watchStores(sup *supervisor.Supervisor, orch *orchestrator.Orchestrator) {
	for name, probe := range orch.Probes() {
		sup.Watch(name, probe)
	}
	for _, name := range orch.Degraded() {
		sup.MarkUnavailable(name)
	}
}
