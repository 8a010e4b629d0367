package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/haven-id/haven-id/internal/account"
	"github.com/haven-id/haven-id/internal/app"
	"github.com/haven-id/haven-id/internal/auth"
	"github.com/haven-id/haven-id/internal/mailer"
	"github.com/haven-id/haven-id/internal/observability"
	"github.com/haven-id/haven-id/internal/platform/cache"
	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/profile"
	"github.com/haven-id/haven-id/internal/shared"
	"github.com/haven-id/haven-id/internal/token"
	"github.com/haven-id/haven-id/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "haven_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	runner := db.PoolRunner{Pool: pool}
	accountStore := account.NewRepository()
	profileStore := profile.NewRepository()
	issuer := token.NewIssuer()

	hooks := account.NewHooks()
	profile.RegisterHooks(hooks, profileStore, pool)

	accountService := account.NewService(runner, accountStore, issuer, hooks, logger, cfg.VerifyTokenTTL)
	authService := auth.NewService(runner, accountService, accountStore, profileStore, issuer, auth.NewSessionRepository(), logger, auth.TokenTTLs{
		Login: cfg.LoginLinkTTL,
		Reset: cfg.ResetTokenTTL,
	})

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	mail := mailer.New(jobClient, cfg.BaseURL, logger)

	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, mail, metrics, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
