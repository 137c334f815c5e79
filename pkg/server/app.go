package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"SignalScan/internal/domain/models"
	mid "SignalScan/internal/middleware"
	"SignalScan/internal/service/broker"
	icache "SignalScan/internal/service/cache"
	"SignalScan/internal/usecase"
	pkgch "SignalScan/pkg/clickhouse"
	"SignalScan/pkg/config"
	xhttp "SignalScan/pkg/http"
	pkgkafka "SignalScan/pkg/kafka"
	applogger "SignalScan/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	scanner    *usecase.Scanner
	pipeline   *mid.SignalPipeline
	broker     broker.Broker
	producer   *pkgkafka.Producer
	chClient   *pkgch.Client
	redis      *icache.RedisCache
}

// New creates a new App instance. producer, chClient and redis may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	scanner *usecase.Scanner,
	pipeline *mid.SignalPipeline,
	b broker.Broker,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	redis *icache.RedisCache,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		scanner:    scanner,
		pipeline:   pipeline,
		broker:     b,
		producer:   producer,
		chClient:   chClient,
		redis:      redis,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pipeline.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.cfg.Scanner.Autostart {
		if err := a.scanner.Start(ctx, a.cfg.Scanner.Scan); err != nil {
			a.log.Warn("scanner autostart failed", applogger.Error(err))
		} else {
			a.log.Info("scanner autostarted",
				applogger.String("broker", a.broker.Name()),
				applogger.Strings("symbols", a.cfg.Scanner.Scan.Symbols))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops producers of work before the sinks they feed.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.scanner.Stop(); err != nil && !errors.Is(err, models.ErrNotRunning) {
		a.log.Warn("scanner stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.pipeline.Close(); err != nil {
		a.log.Warn("signal pipeline close error", applogger.Error(err))
	}

	// Disconnecting the stream broker also stops its Kafka consumer.
	if err := a.broker.Disconnect(); err != nil {
		a.log.Warn("broker disconnect error", applogger.Error(err))
	}

	// Flush collected logs while the producer is still open.
	a.log.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
