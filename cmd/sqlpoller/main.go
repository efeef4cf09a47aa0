package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/internal/pipeline"
	"github.com/ajitpratap0/sqlpoller/pkg/checkpoint"
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/destinations"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/sources"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/observability"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sqlpoller",
		Short: "sqlpoller - incremental SQL extraction with bounded time windows",
		Long: `sqlpoller polls a relational database with a templated query whose time window
is bounded by the database clock, and delivers every new row to a sink.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sqlpoller v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available sources and sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConnectors(listJSON)
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print connector metadata as JSON")
	root.AddCommand(listCmd)

	var configFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			fmt.Printf("configuration %q is valid\n", cfg.Name)
			return nil
		},
	}
	root.AddCommand(validateCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with credentials masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
	root.AddCommand(configCmd)

	var once bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the configured source until interrupted",
		Long: `Run polls the configured source every schedule.poll_interval and delivers each
non-empty batch to the sink. The cursor is checkpointed after every delivered batch.

Example:
  sqlpoller run --config orders.yaml
  sqlpoller run --config orders.yaml --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, once)
		},
	}
	runCmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	root.AddCommand(runCmd)

	for _, c := range []*cobra.Command{validateCmd, configCmd, runCmd} {
		c.Flags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file (required)")
		_ = c.MarkFlagRequired("config")
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func listConnectors(asJSON bool) error {
	names := append(registry.ListSources(), registry.ListSinks()...)
	sort.Strings(names)

	if asJSON {
		var infos []*registry.ConnectorInfo
		for _, name := range names {
			if info, err := registry.GetConnectorInfo(name); err == nil {
				infos = append(infos, info)
			}
		}
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Available Sources:")
	for _, name := range registry.ListSources() {
		fmt.Printf("  - %-8s %s\n", name, describe(name))
	}
	fmt.Println("\nAvailable Sinks:")
	for _, name := range registry.ListSinks() {
		fmt.Printf("  - %-8s %s\n", name, describe(name))
	}
	return nil
}

func describe(name string) string {
	info, err := registry.GetConnectorInfo(name)
	if err != nil {
		return ""
	}
	return info.Description
}

func run(configFile string, once bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	obs := cfg.Observability
	if err := logger.Init(logger.Config{
		Level:       obs.LogLevel,
		Encoding:    obs.LogEncoding,
		Development: obs.Development,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get().With(zap.String("component", "sqlpoller-cli"), zap.String("source", cfg.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if obs.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.SamplingRate = obs.TracingSampleRate
		shutdown, err := observability.Init(tc)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	source, err := sources.New(cfg)
	if err != nil {
		return err
	}
	sink, err := destinations.New(cfg)
	if err != nil {
		_ = source.Close()
		return err
	}
	store, err := checkpoint.New(cfg.Checkpoint)
	if err != nil {
		_ = source.Close()
		_ = sink.Close(ctx)
		return err
	}

	runner := pipeline.NewRunner(cfg, source, sink, store, pipeline.WithLogger(log))

	log.Info("starting sqlpoller",
		zap.String("version", version),
		zap.String("driver", cfg.Connection.Driver),
		zap.String("sink", sink.Name()),
		zap.String("checkpoint", cfg.Checkpoint.Type),
		zap.Duration("poll_interval", cfg.Schedule.PollInterval),
		zap.Bool("once", once))

	if once {
		defer runner.Close()
		if err := runner.Start(ctx); err != nil {
			return err
		}
		return runner.RunOnce(ctx)
	}

	if obs.MetricsAddr != "" {
		srv := newStatusServer(obs.MetricsAddr, runner)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("serving metrics", zap.String("addr", obs.MetricsAddr))
	}

	start := time.Now()
	err = runner.Run(ctx)
	cycles, batches, rows := runner.Stats()
	log.Info("sqlpoller stopped",
		zap.Duration("uptime", time.Since(start)),
		zap.Int64("cycles", cycles),
		zap.Int64("batches_delivered", batches),
		zap.Int64("rows_delivered", rows))
	return err
}
