package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"hrms/internal/attendance"
	"hrms/internal/config"
	"hrms/internal/httpapi"
	"hrms/internal/httpmiddleware"
	"hrms/internal/metrics"
	"hrms/internal/queue"
	"hrms/internal/revision"
	"hrms/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, logger *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	records, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		q       queue.Queue
		tracker revision.Tracker
		checks  []httpapi.Option
	)
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()

		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		tracker = revision.NewRedisTracker(redisClient.Client, "")
		checks = append(checks, httpapi.WithHealthCheck("redis", func(ctx context.Context) error {
			if !redisClient.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}))
	} else {
		q = queue.NewInMemory(256)
		tracker = revision.NewMemoryTracker()
	}

	svc := attendance.NewService(records,
		attendance.WithPublisher(revision.NewPublisher(q)),
		attendance.WithLogger(logger),
		attendance.WithMetrics(m),
		attendance.WithLocation(cfg.Location),
		attendance.WithDuplicatePolicy(cfg.Duplicates),
		attendance.WithStoreTimeout(cfg.StoreTimeout),
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware(cfg.CORSAllowOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin,
		httpmiddleware.OnReject(m.IncRateLimited),
	).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	httpapi.NewHandler(svc, tracker, append(checks, httpapi.WithLogger(logger))...).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreBackend, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.QueueBackend == "memory" {
		// The in-memory queue is only visible inside this process.
		g.Go(func() error {
			return revision.NewProjector(q, tracker, logger, m).Run(gctx)
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.App, logger *slog.Logger) (attendance.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory record store, data will not survive a restart")
		return attendance.NewInMemory(), func() {}, nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return attendance.NewRepository(db.Client), func() { _ = db.Close() }, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       24 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
