package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/aggregate"
	"cashbook/internal/amqp"
	"cashbook/internal/backend"
	"cashbook/internal/cache"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	"cashbook/internal/format"
	apphttp "cashbook/internal/http"
	"cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/prefs"
	"cashbook/internal/reconcile"
	"cashbook/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	caches := cache.NewManager(logger)
	defer caches.Stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger, caches).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	client := store.NewClient(res.Backend, cfg.DataBackend, logger)

	opts := []reconcile.Option{reconcile.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, reconcile.WithPublisher(publisher))
		logger.Info("Change events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}
	ctrl := reconcile.New(client, opts...)

	// initial load, like opening the page
	if r := ctrl.Refresh(ctx, nil); r.Refresh != nil {
		logger.Warn("Initial load failed, starting with an empty collection", log.FieldError, r.Refresh.Error())
	} else {
		logger.Info("Transactions loaded", log.FieldCount, len(r.Transactions))
	}

	monthly := aggregate.Mode{}
	if cfg.MonthlyYear != 0 {
		monthly = aggregate.YearAware(cfg.MonthlyYear)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Controller:  ctrl,
		Preferences: prefs.NewService(res.Preferences, cfg.DefaultCurrency),
		Ready: func(ctx context.Context) error {
			_, err := client.List(ctx, nil)
			return err
		},
		Formatter: format.New(format.DefaultLanguage),
		Monthly:   monthly,
		RateLimit: ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		Logger:    logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	caches.StartCleanup(cfg.CacheCleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cashbook server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
