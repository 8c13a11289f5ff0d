package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atlasync/atlasync/internal/pipeline"
	"github.com/atlasync/atlasync/pkg/config"
	"github.com/atlasync/atlasync/pkg/connector/registry"
	"github.com/atlasync/atlasync/pkg/logger"
	"github.com/atlasync/atlasync/pkg/state"

	// Register all available connectors.
	_ "github.com/atlasync/atlasync/pkg/connector/destinations/json"
	_ "github.com/atlasync/atlasync/pkg/connector/sources/jira"
)

var version = "0.1.0"

type syncFlags struct {
	sourceConfigFile string
	destConfigFile   string
	stateFile        string
	resetState       bool
	batchSize        int
	workers          int
	flushInterval    time.Duration
	timeout          time.Duration
	logLevel         string
	metricsAddr      string
	failFast         bool
}

func main() {
	// A .env file is optional.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "atlasync",
		Short: "Atlasync - Jira data extraction pipeline",
		Long: `Atlasync extracts data from Jira Cloud (platform, Agile, and Service
Management APIs) and loads it into a destination with incremental sync support.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Atlasync v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available Source Connectors:")
			for _, source := range registry.ListSources() {
				fmt.Printf("  - %s\n", source)
			}
			fmt.Println("\nAvailable Destination Connectors:")
			for _, dest := range registry.ListDestinations() {
				fmt.Printf("  - %s\n", dest)
			}
		},
	})

	flags := &syncFlags{}
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync from source to destination",
		Long: `Run a sync with the specified source and destination configurations.
Configuration files are YAML; ${VAR} references are substituted from the
environment before parsing.

Example:
  atlasync sync --source jira.yaml --destination out.yaml --state .state/jira.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(flags)
		},
	}

	syncCmd.Flags().StringVarP(&flags.sourceConfigFile, "source", "s", "", "Path to source configuration YAML file (required)")
	syncCmd.Flags().StringVarP(&flags.destConfigFile, "destination", "d", "", "Path to destination configuration YAML file (required)")
	_ = syncCmd.MarkFlagRequired("source")
	_ = syncCmd.MarkFlagRequired("destination")

	syncCmd.Flags().StringVar(&flags.stateFile, "state", "", "Path to the state file used for position checkpointing")
	syncCmd.Flags().BoolVar(&flags.resetState, "reset-state", false, "Discard saved state before running")
	syncCmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Records per batch (overrides configuration)")
	syncCmd.Flags().IntVar(&flags.workers, "workers", runtime.NumCPU(), "Number of transform workers")
	syncCmd.Flags().DurationVar(&flags.flushInterval, "flush-interval", 5*time.Second, "Interval for periodic batch flushing")
	syncCmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Minute, "Sync timeout")
	syncCmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	syncCmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9102)")
	syncCmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "Stop the sync on the first error")

	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConnectorConfig(path string) (*config.BaseConfig, error) {
	cfg := &config.BaseConfig{}
	if err := config.Load(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func runSync(flags *syncFlags) error {
	if err := logger.Init(logger.Config{Level: flags.logLevel, Encoding: "json"}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sourceConfig, err := loadConnectorConfig(flags.sourceConfigFile)
	if err != nil {
		return fmt.Errorf("source configuration error: %w", err)
	}
	destConfig, err := loadConnectorConfig(flags.destConfigFile)
	if err != nil {
		return fmt.Errorf("destination configuration error: %w", err)
	}

	if flags.batchSize > 0 {
		sourceConfig.Performance.BatchSize = flags.batchSize
		destConfig.Performance.BatchSize = flags.batchSize
	}
	if flags.failFast {
		sourceConfig.Reliability.FailFast = true
	}

	log := logger.Get().With(
		zap.String("component", "atlasync-cli"),
		zap.String("source", sourceConfig.Type),
		zap.String("destination", destConfig.Type),
	)

	if flags.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info("serving metrics", zap.String("addr", flags.metricsAddr))
			if err := http.ListenAndServe(flags.metricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	source, err := registry.CreateSource(sourceConfig.Type, sourceConfig)
	if err != nil {
		return fmt.Errorf("failed to create source connector %q: %w", sourceConfig.Type, err)
	}
	destination, err := registry.CreateDestination(destConfig.Type, destConfig)
	if err != nil {
		return fmt.Errorf("failed to create destination connector %q: %w", destConfig.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	if err := source.Initialize(ctx, sourceConfig); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	if err := destination.Initialize(ctx, destConfig); err != nil {
		return fmt.Errorf("failed to initialize destination: %w", err)
	}

	p := pipeline.New(source, destination, &pipeline.Config{
		BatchSize:     sourceConfig.Performance.BatchSize,
		WorkerCount:   flags.workers,
		FlushInterval: flags.flushInterval,
		FailFast:      flags.failFast,
	}, log)

	if flags.stateFile != "" {
		store, err := state.NewFileStore(flags.stateFile)
		if err != nil {
			return fmt.Errorf("failed to open state file: %w", err)
		}
		if flags.resetState {
			if err := store.ResetPosition(ctx); err != nil {
				return fmt.Errorf("failed to reset state: %w", err)
			}
			log.Info("state reset", zap.String("state_file", flags.stateFile))
		} else if saved, err := store.LoadPosition(ctx); err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		} else if saved != nil {
			log.Info("previous run state found", zap.String("position", saved.String()))
		}
		p.SetPositionStore(store)
	}

	log.Info("executing sync")
	startTime := time.Now()

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	duration := time.Since(startTime)
	pm := p.Metrics()
	recordsProcessed := pm["records_processed"].(int64)

	log.Info("sync completed",
		zap.Duration("duration", duration),
		zap.Int64("records_processed", recordsProcessed),
		zap.Float64("records_per_second", float64(recordsProcessed)/duration.Seconds()))

	if err := destination.Close(ctx); err != nil {
		log.Warn("failed to close destination", zap.Error(err))
	}
	if err := source.Close(ctx); err != nil {
		log.Warn("failed to close source", zap.Error(err))
	}

	return nil
}
