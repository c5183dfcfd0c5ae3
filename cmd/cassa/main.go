package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cassa/internal/auth"
	"cassa/internal/backend"
	"cassa/internal/cli"
	apphttp "cassa/internal/http"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/middleware/ratelimit"
	"cassa/internal/middleware/security"
	"cassa/internal/report"
)

const (
	shutdownTimeout = 30 * time.Second
	feedSessions    = 1024
	feedTTL         = 30 * time.Minute
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(log.ComponentApp, cfg.LogLevel)
	cli.MustValidate(logger, cfg.Validate)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc := res.LedgerService(ledger.WithLogger(logger.WithComponent(log.ComponentLedger)))

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger: svc,
		Memo:   res.Backend.Memo,
		Feed:   report.NewFeed(feedSessions, feedTTL),
		Auth: auth.New(auth.Config{
			Secret:      cfg.AuthJWTSecret,
			Issuer:      cfg.AuthJWTIssuer,
			OwnerHeader: cfg.AuthOwnerHeader,
		}, logger.WithComponent(log.ComponentAuth)),
		Limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		Detector:     security.NewDetector(),
		Logger:       logger.WithComponent(log.ComponentHTTP),
		Location:     cfg.Location(),
		StoreTimeout: cfg.StoreTimeout,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting cassa server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"token_auth", cfg.AuthJWTSecret != "",
		"timezone", cfg.BusinessTimezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
