package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/amqp"
	"cashbook/internal/backend"
	"cashbook/internal/cache"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	"cashbook/internal/log"
	"cashbook/internal/store"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting cashbook-worker")
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// checkWorkerConfig rejects setups where mirroring has no meaning.
func checkWorkerConfig(cfg *config.Config) error {
	switch {
	case cfg.AMQPURL == "":
		return errors.New("AMQP_URL is required by the worker")
	case !cfg.SheetsConfigured():
		return errors.New("GOOGLE_SPREADSHEET_ID is required by the worker")
	case cfg.DataBackend == config.BackendSheets:
		return errors.New("the sheets backend cannot be mirrored into itself")
	case cfg.DataBackend == config.BackendMemory:
		return fmt.Errorf("the %s backend is private to the server process; use http, sqlite or redis", cfg.DataBackend)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if err := checkWorkerConfig(cfg); err != nil {
		return err
	}

	caches := cache.NewManager(logger)
	defer caches.Stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger, caches)

	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Close()

	mirror, err := factory.CreateMirror(ctx, bcfg)
	if err != nil {
		return err
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	sw := worker.NewSyncWorker(store.NewClient(res.Backend, cfg.DataBackend, logger), mirror, logger)

	// catch up on changes made while the worker was down
	if stats, err := sw.Resync(ctx); err != nil {
		logger.Error("Startup resync failed", log.FieldOperation, log.OpStartup, log.FieldError, err.Error())
	} else {
		logger.Info("Startup resync complete", "written", stats.Written, "removed", stats.Removed, "errors", stats.Errors)
	}

	caches.StartCleanup(cfg.CacheCleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(gctx, sw.HandleChange)
	})
	g.Go(func() error {
		return sw.RunPeriodic(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
