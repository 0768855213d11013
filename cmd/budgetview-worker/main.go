package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetview/internal/amqp"
	"budgetview/internal/cli"
	"budgetview/internal/config"
	gexport "budgetview/internal/export/google"
	"budgetview/internal/log"
	"budgetview/internal/storage"
	"budgetview/internal/worker"
)

// Export snapshots land in the spreadsheet once a day; the audit log is
// written as events arrive.
const exportInterval = 24 * time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store",
			log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := newExporter(logger, cfg)
	activityWorker := worker.NewActivityWorker(repo, exporter,
		cfg.ActivityBatchSize, cfg.ActivityInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeActivityWithRetry(gctx, activityWorker.Handler(gctx))
	})
	g.Go(func() error {
		return activityWorker.RunPeriodicFlush(gctx)
	})
	if exporter != nil {
		g.Go(func() error {
			// One snapshot at startup so a fresh deployment is not a day
			// behind, then the daily cadence.
			if err := activityWorker.ExportSnapshot(gctx); err != nil {
				logger.Error("Startup export failed", log.FieldError, err)
			}
			return activityWorker.RunPeriodicExport(gctx, exportInterval)
		})
	}

	logger.Info("Worker started",
		"queue", cfg.AMQPQueue, "export_enabled", exporter != nil,
		"batch_size", cfg.ActivityBatchSize, "flush_interval", cfg.ActivityInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// newExporter builds the Sheets exporter when one is configured. The worker
// runs fine without it.
func newExporter(logger *log.Logger, cfg *config.Config) worker.ReconciliationExporter {
	if !cfg.SheetsExportEnabled() {
		logger.Info("Sheets export disabled, no GOOGLE_SPREADSHEET_ID configured")
		return nil
	}
	exporter, err := gexport.NewFromConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return exporter
}
