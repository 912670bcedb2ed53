package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketBrief/internal/domain/models"
	"MarketBrief/internal/domain/repository"
	"MarketBrief/internal/handler/api"
	"MarketBrief/internal/usecase"
	pkgch "MarketBrief/pkg/clickhouse"
	"MarketBrief/pkg/config"
	xhttp "MarketBrief/pkg/http"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
	"MarketBrief/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	run      *usecase.ReportRun
	handler  *api.ReportsHandler
	sink     repository.OutputSink
	chClient *pkgch.Client
	producer *pkgkafka.Producer

	httpServer *xhttp.Server
	jobQueue   *queue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	run *usecase.ReportRun,
	handler *api.ReportsHandler,
	sink repository.OutputSink,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:      cfg,
		logger:   lgr,
		run:      run,
		handler:  handler,
		sink:     sink,
		chClient: chClient,
		producer: producer,
	}
}

// RunOnce executes a single report run and exits. This is the CLI path: no
// HTTP server, no queue.
func (a *App) RunOnce(ctx context.Context, in models.RunInput) error {
	defer a.closeClients()

	_, err := a.run.Run(ctx, in)
	return err
}

// Run starts serve mode and blocks until interrupted.
func (a *App) Run() error {
	ctx := context.Background()

	if a.producer != nil {
		a.logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.Topic + ".logs",
			Publisher:      a.producer,
		})
	}

	if a.cfg.Redis.Enabled {
		a.startQueue()
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(a.logger, 2*time.Second))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// startQueue attaches the Redis-backed job queue so report runs can be
// processed asynchronously.
func (a *App) startQueue() {
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	job := usecase.NewReportJob(a.run, a.logger)
	a.jobQueue = queue.NewRedisConsumer(a.logger,
		&queue.QueueConfig{
			Workers:    2,
			RetryLimit: 3,
			RetryDelay: 30 * time.Second,
		},
		client,
		[]queue.Job{job},
	)

	if err := a.jobQueue.Start(); err != nil {
		a.logger.Error("job queue start error", applogger.Error(err))
		a.jobQueue = nil
		return
	}
	a.jobQueue.StartRetryProcessor()
	a.handler.WithQueue(a.jobQueue)
	a.logger.Info("job queue started")
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	a.closeClients()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if err := a.sink.Close(); err != nil {
		a.logger.Warn("output sink close error", applogger.Error(err))
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
