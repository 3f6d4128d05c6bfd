package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/pulsetrack/internal/api"
	"github.com/p-blackswan/pulsetrack/internal/config"
	"github.com/p-blackswan/pulsetrack/internal/health"
	"github.com/p-blackswan/pulsetrack/internal/llm"
	"github.com/p-blackswan/pulsetrack/internal/metrics"
	"github.com/p-blackswan/pulsetrack/internal/notify"
	"github.com/p-blackswan/pulsetrack/internal/processor"
	"github.com/p-blackswan/pulsetrack/internal/project"
	"github.com/p-blackswan/pulsetrack/internal/retry"
	"github.com/p-blackswan/pulsetrack/internal/risk"
	"github.com/p-blackswan/pulsetrack/internal/seed"
	"github.com/p-blackswan/pulsetrack/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Bool("github_enabled", cfg.GitHubEnabled()).
		Msg("starting pulsetrack")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Storage
	ds, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer ds.Close()

	// Metrics
	mx := metrics.New()

	// Update processor on top of the Anthropic provider
	provider := llm.NewAnthropicProvider(cfg.AnthropicAPIKey,
		llm.WithModel(cfg.AnthropicModel),
		llm.WithMaxTokens(cfg.MaxTokens),
	)
	proc := processor.New(provider, logger,
		processor.WithRetryConfig(retry.Config{
			MaxAttempts:    cfg.ProcessAttempts,
			BaseDelay:      cfg.ProcessBaseDelay,
			MaxDelay:       cfg.ProcessMaxDelay,
			AttemptTimeout: cfg.AttemptTimeout,
			Jitter:         true,
		}),
		processor.WithMetrics(mx),
	)

	// Risk detector, optionally with a keyword override file
	detector := risk.NewDetector()
	if cfg.RiskRulesPath != "" {
		detector, err = risk.LoadRules(cfg.RiskRulesPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.RiskRulesPath).Msg("failed to load risk rules")
		}
		logger.Info().Str("path", cfg.RiskRulesPath).Msg("risk rules loaded")
	}

	// Project manager with optional integrations
	managerOpts := []project.ManagerOption{project.WithMetrics(mx)}
	if cfg.SlackEnabled() {
		notifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel, logger)
		managerOpts = append(managerOpts, project.WithNotifier(notifier))
		logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack alert notification enabled")
	} else {
		logger.Info().Msg("Slack not configured — alerts stay in the API only")
	}
	if cfg.GitHubEnabled() {
		seeder := seed.NewGitHubSeeder(cfg.GitHubToken, logger)
		managerOpts = append(managerOpts, project.WithSeeder(seeder))
		logger.Info().Msg("GitHub README seeding enabled")
	} else {
		logger.Info().Msg("GitHub not configured — skipping context seeding")
	}

	manager := project.NewManager(
		project.NewStore(ds, logger), proc, detector, logger, managerOpts...,
	)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := ds.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("llm", func(ctx context.Context) health.Status {
		if cfg.AnthropicAPIKey == "" {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	// API server
	rtCfg := &api.RuntimeConfig{
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
		ListenAddr:     cfg.ListenAddr,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AuthMode:       cfg.AuthMode,
	}
	handlers := api.NewHandlers(manager, checker, rtCfg, logger)
	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, mx, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	// Periodic retention sweep: alert cap enforcement and orphan cleanup.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.RetentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ds.RunRetention(ctx); err != nil {
					logger.Warn().Err(err).Msg("retention sweep failed")
				}
			}
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("shutdown timed out")
	}
}
