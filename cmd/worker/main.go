package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scrumboard/config"
	"scrumboard/internal/mqhandler"
	"scrumboard/internal/repository"
	"scrumboard/internal/scheduler"
	"scrumboard/pkg/circuitbreaker"
	"scrumboard/pkg/db"
	pkglogger "scrumboard/pkg/logger"
	"scrumboard/pkg/mq"
	"scrumboard/pkg/otel"
	"scrumboard/pkg/outbox"
	redisclient "scrumboard/pkg/redis"
	"scrumboard/pkg/util"
)

const (
	dedupTTL      = time.Hour
	retryTTL      = 24 * time.Hour
	overdueTTL    = 25 * time.Hour
	overdueBudget = time.Minute
	connWatch     = 30 * time.Second
)

func main() {
	logger := pkglogger.NewLogger()
	defer logger.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker service...")

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName + "-worker",
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOtel()

	// Init DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		logger.Warn("Redis unavailable, dedup and retry counting degrade to pass-through", zap.Error(err))
	}
	deduper := util.NewDeduperWithLogger(rdb, dedupTTL, logger)
	retryCounter := util.NewRetryCounter(rdb, retryTTL)

	// Init MQ Publisher (outbox + DLQ)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	sprintRepo := repository.NewSprintRepository(dbConn)
	activityRepo := repository.NewActivityRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Outbox Dispatcher
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Publish circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithCircuitBreaker(circuitbreaker.NewCircuitBreaker(breakerCfg))

	// Activity consumers
	activityHandler := mqhandler.NewActivityHandler(activityRepo, publisher, retryCounter, deduper, logger)
	bindings := []struct{ queue, key string }{
		{mqhandler.IssueActivityQueue, mqhandler.IssueActivityBinding},
		{mqhandler.SprintActivityQueue, mqhandler.SprintActivityBinding},
	}
	consumers := make([]*mq.Consumer, 0, len(bindings))
	for _, b := range bindings {
		logger.Info("Initializing activity consumer", zap.String("queue", b.queue))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.key, logger)
		if err != nil {
			logger.Fatal("failed to init activity consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		consumer.SetHandler(activityHandler.Handle)
		defer consumer.Close()
		consumers = append(consumers, consumer)
	}

	// Overdue scanner
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("invalid scheduler timezone", zap.Error(err))
	}
	overdue := scheduler.NewOverdueScanner(sprintRepo, outboxRepo,
		util.NewDeduperWithLogger(rdb, overdueTTL, logger), loc, cfg.Scheduler.OverdueLimit, logger)
	cron := scheduler.New(loc, logger)
	if _, err := cron.Schedule(ctx, "sprint_overdue", cfg.Scheduler.OverdueSpec, overdueBudget, func(ctx context.Context) error {
		_, err := overdue.Scan(ctx)
		return err
	}); err != nil {
		logger.Fatal("failed to schedule overdue scan", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Start(gctx) })
	for _, c := range consumers {
		c := c
		g.Go(func() error { return c.StartConsuming(gctx) })
	}
	g.Go(func() error { return cron.Run(gctx) })

	conns := map[string]mq.Connectivity{"publisher": publisher}
	for _, c := range consumers {
		conns[c.Queue()] = c
	}
	g.Go(func() error { return mq.WatchConnections(gctx, connWatch, logger, conns) })

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("Worker stopped")
}
