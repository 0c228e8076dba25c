package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scrumboard/config"
	"scrumboard/internal/handler"
	"scrumboard/internal/httpserver"
	"scrumboard/internal/repository"
	"scrumboard/internal/service/board"
	"scrumboard/internal/service/issue"
	"scrumboard/internal/service/organization"
	"scrumboard/internal/service/project"
	"scrumboard/internal/service/sprint"
	"scrumboard/internal/service/status"
	"scrumboard/pkg/db"
	pkglogger "scrumboard/pkg/logger"
	"scrumboard/pkg/mq"
	"scrumboard/pkg/otel"
	"scrumboard/pkg/outbox"
	redisclient "scrumboard/pkg/redis"
	"scrumboard/pkg/util"
)

// memberSyncTTL bounds how often a session's user and membership are re-synced.
const memberSyncTTL = 10 * time.Minute

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

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName + "-api",
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
		// Dedup passes through when Redis is down; startup is not blocked
		logger.Warn("Redis unavailable, member sync runs on every request", zap.Error(err))
	}

	// Init MQ Publisher (admin replay)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	orgRepo := repository.NewOrganizationRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	sprintRepo := repository.NewSprintRepository(dbConn)
	statusRepo := repository.NewStatusRepository(dbConn)
	issueRepo := repository.NewIssueRepository(dbConn)
	activityRepo := repository.NewActivityRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Init Services
	orgService := organization.NewService(orgRepo, logger)
	projectService := project.NewService(projectRepo, sprintRepo, logger)
	sprintService := sprint.NewService(sprintRepo, projectRepo, logger)
	statusService := status.NewService(statusRepo, logger)
	issueService := issue.NewService(issueRepo, issue.Deps{
		Projects: projectRepo,
		Sprints:  sprintRepo,
		Statuses: statusRepo,
		Members:  orgRepo,
	}, logger)
	boardService := board.NewService(issueRepo, statusRepo, logger)
	replayService := outbox.NewReplayService(outboxRepo, publisher, logger)

	// Init Handlers
	handlers := httpserver.Handlers{
		Organization: handler.NewOrganizationHandler(orgService, logger),
		Project:      handler.NewProjectHandler(projectService, logger),
		Sprint:       handler.NewSprintHandler(sprintService, activityRepo, logger),
		Status:       handler.NewStatusHandler(statusService, logger),
		Issue:        handler.NewIssueHandler(issueService, logger),
		Board:        handler.NewBoardHandler(boardService, logger),
		Admin:        handler.NewAdminHandler(replayService, logger),
	}

	// Router
	router := httpserver.NewRouter(handlers, httpserver.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Syncer: orgService,
		Guard:  util.NewDeduperWithLogger(rdb, memberSyncTTL, logger),
	}, dbConn, logger)

	// Start API server
	server := httpserver.NewServer(router, cfg.Server, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("API server stopped")
}
