package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"hrms/internal/config"
	"hrms/internal/metrics"
	"hrms/internal/queue"
	"hrms/internal/revision"
	"hrms/internal/store"
)

// Worker consumes the change feed and advances the shared revision counters.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	if cfg.QueueBackend != "redis" {
		logger.Error("worker requires QUEUE_BACKEND=redis; the memory queue is projected inside the api process")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	tracker := revision.NewRedisTracker(redisClient.Client, "")
	projector := revision.NewProjector(q, tracker, logger, metrics.New(prometheus.DefaultRegisterer))

	if err := projector.Run(ctx); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
