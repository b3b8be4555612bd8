package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/config"
	infraobs "github.com/Zhima-Mochi/clubshop/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/clubshop/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/clubshop/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "clubshop",
		Usage: "order and inventory reservation engine for the club storefront",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Usage:   "dotenv files to load before reading the environment",
				EnvVars: []string{"CLUBSHOP_ENV_FILE"},
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and event workers",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "seed",
						Usage: "load the demo catalog and customers before serving",
					},
				},
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "load the demo catalog and customers into the configured store",
				Action: seed,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	return config.Load(c.StringSlice("env-file")...)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	baseLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.System(baseLogger)
	obs := infraobs.Setup(cfg.ServiceName, baseLogger, nil)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := be.Close(closeCtx); err != nil {
			systemLogger.Warn("backend_close_error", zap.Error(err))
		}
	}()

	if c.Bool("seed") {
		if err := seedDemo(ctx, be); err != nil {
			return err
		}
		systemLogger.Info("demo_data_seeded")
	}

	// In-memory event bus (outbox) fanning domain events out to the workers.
	bus := outbox.NewBus(obs.Logger(), obs,
		outbox.WithQueueSize(cfg.EventQueueSize),
		outbox.WithConcurrency(cfg.EventConcurrency),
		outbox.WithHandlerTimeout(cfg.EventHandlerTimeout),
	)
	app, err := wire(cfg, be, bus, obs)
	if err != nil {
		return err
	}
	bus.Start(ctx)

	app.handler.Metrics = promhttp.Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.router(obs),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Store),
			zap.Bool("redis_idempotency", cfg.RedisAddr != ""),
			zap.Int("kafka_brokers", len(cfg.KafkaBrokers)),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	bus.Stop(shutdownCtx)
	app.close(systemLogger)
	return nil
}

func seed(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	baseLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	systemLogger := logging.System(baseLogger)

	be, err := openBackend(c.Context, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = be.Close(context.Background()) }()

	if err := seedDemo(c.Context, be); err != nil {
		return err
	}
	systemLogger.Info("demo_data_seeded", zap.String("store", cfg.Store))
	return nil
}
