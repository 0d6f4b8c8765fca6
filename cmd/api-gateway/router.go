package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/uthutho/admin-api/internal/handler"
	"github.com/uthutho/admin-api/internal/middleware"
	"github.com/uthutho/admin-api/internal/models"
	"github.com/uthutho/admin-api/pkg/config"
	"github.com/uthutho/admin-api/pkg/logger"
	corsmiddleware "github.com/uthutho/admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uthutho/admin-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.authSvc)
	reviewHandler := handler.NewReviewHandler(deps.reviewSvc)
	routeStopHandler := handler.NewRouteStopHandler(deps.routeStops)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.authSvc))
	secured.GET("/auth/me", authHandler.Me)

	staff := secured.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	staff.GET("/requests/pending", reviewHandler.ListPending)
	staff.POST("/requests/:kind/:id/resolve", reviewHandler.Resolve)
	staff.GET("/routes/:id/stops", routeStopHandler.List)
	staff.POST("/routes/:id/stops/:stopId/move", routeStopHandler.Move)

	return r
}
