package main

import (
	"os"
	"os/signal"
	"syscall"

	contractsmq "fibreflow/contracts/mq"
	"fibreflow/internal/cache"
	"fibreflow/internal/config"
	"fibreflow/internal/mqhandler"
	"fibreflow/internal/repository"
	"fibreflow/pkg/db"
	"fibreflow/pkg/logger"
	"fibreflow/pkg/mq"
	pkgredis "fibreflow/pkg/redis"

	"go.uber.org/zap"
)

// The worker consumes workflow mutation events and keeps the Redis
// progress cache warm so dashboard reads stay cheap.
func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting fibreflow worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer redisClient.Close()

	projectRepo := repository.NewProjectRepository(dbConn, log)
	phaseRepo := repository.NewPhaseRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	progressCache := cache.NewProgressCache(redisClient, cfg.ProgressTTL(), log)

	refreshHandler := mqhandler.NewProgressRefreshHandler(projectRepo, phaseRepo, taskRepo, progressCache, log)

	routingKeys := []string{
		contractsmq.RoutingKeyPhaseAdvanced,
		contractsmq.RoutingKeyTaskProgressUpdated,
		contractsmq.RoutingKeyTaskAssigned,
	}

	var consumers []*mq.Consumer
	for _, key := range routingKeys {
		queue := key + ".progress.q"
		log.Info("Initializing MQ consumer...",
			zap.String("queue", queue),
			zap.String("routing_key", key),
		)
		consumer, err := mq.NewConsumer(cfg.MQ.URL, queue, key, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("routing_key", key), zap.Error(err))
		}
		defer consumer.Close()

		consumer.SetHandler(refreshHandler.Handle)
		consumers = append(consumers, consumer)

		go func(c *mq.Consumer, key string) {
			log.Info("Starting consumer...", zap.String("routing_key", key))
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("routing_key", key), zap.Error(err))
			}
		}(consumer, key)
	}

	log.Info("fibreflow worker is fully initialized and running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down fibreflow worker gracefully...")
	for _, c := range consumers {
		c.Stop()
	}
	log.Info("fibreflow worker stopped")
}
