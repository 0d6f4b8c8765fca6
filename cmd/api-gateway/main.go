package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/uthutho/admin-api/api/swagger"
	"github.com/uthutho/admin-api/internal/repository"
	"github.com/uthutho/admin-api/internal/service"
	"github.com/uthutho/admin-api/pkg/cache"
	"github.com/uthutho/admin-api/pkg/config"
	"github.com/uthutho/admin-api/pkg/database"
	"github.com/uthutho/admin-api/pkg/events"
	"github.com/uthutho/admin-api/pkg/jobs"
	"github.com/uthutho/admin-api/pkg/logger"
)

// @title Uthutho Admin API
// @version 1.0.0
// @description Review of user submitted fare, hub and stop requests
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	cacheSvc, closeCache := newCacheService(ctx, cfg, metrics, logr)
	defer closeCache()

	notifier, stopEvents := newNotifier(ctx, cfg, logr)
	defer stopEvents()

	validate := service.NewValidator()
	gateway := repository.NewGateway(db, repository.WithQueryObserver(metrics))
	users := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(users, validate, logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	reviewOpts := []service.ReviewServiceOption{
		service.WithPointsReward(cfg.Review.PointsReward),
		service.WithResolveTimeout(cfg.Review.ResolveTimeout),
		service.WithReviewCache(cacheSvc, cfg.Review.CacheTTL),
		service.WithReviewMetrics(metrics),
		service.WithReviewAudit(users),
	}
	if notifier != nil {
		reviewOpts = append(reviewOpts, service.WithResolutionNotifier(notifier))
	}
	reviewSvc := service.NewReviewService(gateway, validate, logr.Named("review"), reviewOpts...)
	routeStopSvc := service.NewRouteStopService(gateway, users, logr.Named("route_stops"))

	router := newRouter(cfg, logr, routerDeps{
		db:         db,
		metrics:    metrics,
		authSvc:    authSvc,
		reviewSvc:  reviewSvc,
		routeStops: routeStopSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCacheService prefers Redis and falls back to an in-process cache.
func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	ttl := cfg.Review.CacheTTL
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err == nil {
			repo := repository.NewCacheRepository(client, cfg.Redis.KeyPrefix)
			logr.Info("using redis cache", zap.String("host", cfg.Redis.Host))
			return service.NewCacheService(repo, metrics, ttl, logr.Named("cache")), func() { _ = repo.Close() }
		}
		logr.Warn("redis unavailable, using in-process cache", zap.Error(err))
	}
	repo := repository.NewMemoryCacheRepository(ttl, 2*ttl)
	return service.NewCacheService(repo, metrics, ttl, logr.Named("cache")), func() {}
}

// newNotifier starts the event queue when publishing is enabled.
func newNotifier(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*service.QueueNotifier, func()) {
	if !cfg.Events.Enabled {
		return nil, func() {}
	}
	publisher := events.NewPublisher(cfg.Events.URL, cfg.Events.Exchange, logr.Named("events"))
	queue := jobs.NewQueue("resolution-events", service.PublishResolutionJob(publisher), jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr.Named("jobs"),
	})
	queue.Start(ctx)
	return service.NewQueueNotifier(queue), func() {
		queue.Stop()
		if err := publisher.Close(); err != nil {
			logr.Warn("failed to close event publisher", zap.Error(err))
		}
	}
}

type routerDeps struct {
	db         *sqlx.DB
	metrics    *service.MetricsService
	authSvc    *service.AuthService
	reviewSvc  *service.ReviewService
	routeStops *service.RouteStopService
}
