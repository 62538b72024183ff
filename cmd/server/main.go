package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fibreflow/internal/cache"
	"fibreflow/internal/config"
	"fibreflow/internal/handler"
	"fibreflow/internal/httpserver"
	"fibreflow/internal/repository"
	"fibreflow/internal/service"
	"fibreflow/pkg/db"
	"fibreflow/pkg/logger"
	"fibreflow/pkg/mq"
	"fibreflow/pkg/outbox"
	pkgredis "fibreflow/pkg/redis"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting fibreflow server...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// Redis
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer redisClient.Close()

	projectRepo := repository.NewProjectRepository(dbConn, log)
	phaseRepo := repository.NewPhaseRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	userRepo := repository.NewUserRepository(dbConn, log)
	updateRepo := repository.NewUpdateRepository(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn)

	progressCache := cache.NewProgressCache(redisClient, cfg.ProgressTTL(), log)

	workflowService := service.NewWorkflowService(
		dbConn,
		projectRepo,
		phaseRepo,
		taskRepo,
		userRepo,
		updateRepo,
		outboxRepo,
		progressCache,
		log,
	)

	// Outbox dispatcher publishes committed workflow events to the
	// exchange.
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	go dispatcher.Start(dispatcherCtx)
	log.Info("Outbox dispatcher started")

	// HTTP Server
	workflowHandler := handler.NewWorkflowHandler(workflowService, log)
	taskHandler := handler.NewTaskHandler(workflowService, log)
	clientHandler := handler.NewClientHandler(workflowService, log)
	router := httpserver.NewRouter(workflowHandler, taskHandler, clientHandler, log, dbConn, nil)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("fibreflow server is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down fibreflow server gracefully...")

	stopDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("fibreflow server stopped")
}
