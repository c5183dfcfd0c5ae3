package main

import (
	"os"
	"time"

	"cassa/internal/backend"
	"cassa/internal/cli"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/sheets"
	gsheet "cassa/internal/sheets/google"
	"cassa/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)
	cli.MustValidate(logger, cfg.ValidateWorker)

	logger.Info("Starting cassa-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	closeBackend := func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}

	if res.Backend.Events == nil {
		logger.Error("AMQP broker unreachable, the worker cannot consume ledger events")
		closeBackend()
		os.Exit(1)
	}

	var mirror sheets.LedgerMirror = sheets.NopMirror{}
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger.WithComponent(log.ComponentSheets))
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			closeBackend()
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	svc := res.LedgerService(ledger.WithLogger(logger.WithComponent(log.ComponentLedger)))
	w := worker.New(svc, mirror, logger)

	err = w.Run(ctx, res.Backend.Events, cfg.ReconcileInterval)
	closeBackend()
	if err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
