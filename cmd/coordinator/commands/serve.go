package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/biodoia/agentmesh/internal/coordinator"
	"github.com/biodoia/agentmesh/internal/dispatch"
	"github.com/biodoia/agentmesh/internal/feedback"
	"github.com/biodoia/agentmesh/internal/gateway"
	"github.com/biodoia/agentmesh/internal/knowledge"
	"github.com/biodoia/agentmesh/internal/optimizer"
	"github.com/biodoia/agentmesh/internal/registry"
	"github.com/biodoia/agentmesh/internal/router"
	"github.com/biodoia/agentmesh/internal/stats"
	"github.com/biodoia/agentmesh/internal/synthesis"
	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/biodoia/agentmesh/pkg/resilience"
)

var (
	devMode bool
	verbose bool
)

// ServeCmd rappresenta il comando serve
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start AgentMesh coordination server",
	Long: `Start the AgentMesh coordination server.

This command starts the HTTP server that coordinates requests across
the configured specialized agents.`,
	Example: `  # Start server with default settings
  agentmesh serve

  # Start in development mode with verbose logging
  agentmesh serve --dev --verbose

  # Start with custom config
  agentmesh serve -c /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (pretty logging)")
	ServeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogger(verbose, devMode)

	log.Info().Msg("Starting AgentMesh Coordinator")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage_backend", cfg.Storage.Backend).
		Int("agents", len(cfg.Agents)).
		Bool("dev_mode", devMode).
		Msg("Configuration loaded")

	coord, err := buildCoordinator(cfg)
	if err != nil {
		return fmt.Errorf("failed to build coordinator: %w", err)
	}
	defer coord.Close()

	gw, err := gateway.New(cfg, coord)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	go func() {
		if err := gw.Start(); err != nil {
			log.Fatal().Err(err).Msg("Gateway failed to start")
		}
	}()

	log.Info().Msgf("Coordinator running on http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().Msgf("Health check: http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)
	if cfg.Monitoring.Prometheus.Enabled {
		log.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.Host, cfg.Server.Port)
	}
	log.Info().Msg("Press Ctrl+C to stop")

	return waitForShutdown(gw)
}

// buildCoordinator assembla la pipeline completa dalla configurazione
func buildCoordinator(cfg *config.Config) (*coordinator.Coordinator, error) {
	store, err := knowledge.NewStore(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}

	broker := knowledge.NewBroker(store, cfg.Cache.TTL, cfg.Cache.MaxEntries)

	descriptors := cfg.Descriptors()
	reg := registry.New(resilience.BreakerConfig{
		FailureThreshold: cfg.Health.FailureThreshold,
		BaseCooldown:     cfg.Health.BaseCooldown,
		MaxCooldown:      cfg.Health.MaxCooldown,
	}, descriptors)

	classifier := router.NewKeywordClassifier(
		parseKeywords(cfg.Routing.Keywords),
		models.AgentType(cfg.Routing.DefaultType),
	)
	rt := router.New(classifier, reg, router.Options{
		LoadWeight:    cfg.Routing.LoadWeight,
		LatencyWeight: cfg.Routing.LatencyWeight,
	}, log.Logger)

	disp := dispatch.New(dispatch.NewHTTPClient(), reg, dispatch.Config{
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		InitialBackoff: cfg.Dispatch.InitialBackoff,
		MaxBackoff:     cfg.Dispatch.MaxBackoff,
		DefaultTimeout: cfg.Dispatch.DefaultTimeout,
	}, log.Logger)

	synth := synthesis.New(log.Logger)
	fb := feedback.New(store, broker, cfg.Dispatch.FeedbackTimeout, log.Logger)

	collector := stats.NewCollector()
	exporter := stats.NewPrometheusExporter(reg, collector, cfg.Monitoring.Prometheus.Namespace, func() float64 {
		return broker.CacheStats().HitRate()
	})
	if cfg.Monitoring.Prometheus.Enabled {
		exporter.Start()
	}

	return coordinator.New(coordinator.Deps{
		Router:      rt,
		Broker:      broker,
		Optimizer:   optimizer.New(),
		Dispatcher:  disp,
		Synthesizer: synth,
		Feedback:    fb,
		Registry:    reg,
		Collector:   collector,
		Exporter:    exporter,
	}, cfg.Dispatch.RequestDeadline, log.Logger), nil
}

func parseKeywords(raw map[string][]string) map[models.AgentType][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[models.AgentType][]string, len(raw))
	for t, kws := range raw {
		out[models.AgentType(t)] = kws
	}
	return out
}

func waitForShutdown(gw *gateway.Gateway) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("AgentMesh Coordinator stopped cleanly")
	return nil
}

func setupLogger(verbose, dev bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}
}
