package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"gate-admission/internal/config"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/infra/api"
	httpapi "gate-admission/internal/infra/http"
	"gate-admission/internal/infra/logging"
	"gate-admission/internal/infra/metrics"
	red "gate-admission/internal/infra/redis"
	"gate-admission/internal/infra/sched"
	"gate-admission/internal/infra/telegram"
	"gate-admission/internal/infra/worker"
	"gate-admission/internal/usecase"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admission HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logging.New(cfg.Log, cfg.Runtime.Dev))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (optional) ----
	var (
		cache   red.RedisClient
		limiter api.ScanLimiter
	)
	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; running without policy cache and scan limiter")
		} else {
			defer client.Close()
			cache = client
			limiter = red.NewRateLimiter(client)
		}
	}

	// ---- Store ----
	st, err := openStores(ctx, cfg, cache, logger)
	if err != nil {
		return err
	}
	defer st.close()
	if err := seedFixtures(ctx, st, cfg.Fixtures); err != nil {
		return err
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("credential store ready")

	// ---- Notifications ----
	var messenger adapter.Messenger
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewRealTelegramBotAdapter(&cfg.Telegram, logger)
		if err != nil {
			return err
		}
		messenger = bot
	} else {
		messenger = telegram.NewNoopBotAdapter(logger)
	}
	notifyUC := usecase.NewNotificationUseCase(messenger, cfg.Telegram.ChatID, logger)

	// Queued notifications still go out after the shutdown signal.
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()
	pool := worker.NewPool(cfg.Notify.Workers, logger)
	pool.Start(poolCtx)
	defer pool.Stop()

	// ---- Use cases ----
	audit := usecase.NewAuditLogger(st.events, st.actions)
	policy := usecase.NewPolicyResolver(st.policies, toPolicy(*cfg.Admission.DefaultPolicy))
	issuer := usecase.NewCredentialIssuer(
		st.creds, st.tm, audit, st.directory, notifyUC, pool, nil,
		usecase.IssuerConfig{CredentialTTL: cfg.Admission.CredentialTTL, CodeAttempts: cfg.Admission.CodeAttempts},
		logger,
	)
	engine := usecase.NewAdmissionEngine(st.creds, st.events, st.actions, st.tm, policy, audit, nil, cfg.Runtime.Dev, logger)

	// ---- Background ----
	statsUC := usecase.NewStatsUseCase(st.creds, nil, logger)
	statsWorker := sched.NewStatsWorker(cfg.Scheduler.StatsInterval, statsUC, st.poolStats, logger)
	go func() {
		if err := statsWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stats worker stopped")
		}
	}()

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := api.NewServer(engine, issuer, auth, api.Options{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Limiter:        limiter,
		ScanRateLimit:  cfg.HTTP.ScanRateLimit,
	}, logger).Router()
	srv := httpapi.NewServer(cfg.HTTP, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	// The parent context is already cancelled here.
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("admissiond stopped")
	return nil
}
