package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-approval-api/internal/handler"
	"github.com/noah-isme/leave-approval-api/internal/middleware"
	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/internal/service"
	"github.com/noah-isme/leave-approval-api/pkg/config"
	"github.com/noah-isme/leave-approval-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/leave-approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/leave-approval-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth      *service.AuthService
	tokens    middleware.TokenValidator
	leaves    *service.LeaveService
	exports   *service.ExportService
	directory *service.DirectoryService
	metrics   *service.MetricsService
	checks    map[string]handler.ReadinessCheck
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.Tracing())
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	leaveHandler := handler.NewLeaveHandler(deps.leaves, deps.exports)
	ledgerHandler := handler.NewLedgerHandler(deps.leaves, deps.exports)
	directoryHandler := handler.NewDirectoryHandler(deps.directory)
	exportHandler := handler.NewExportHandler(deps.exports)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/export/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/directory/relievers", directoryHandler.Relievers)

	leaves := secured.Group("/leave-requests")
	leaves.POST("", leaveHandler.Submit)
	leaves.GET("/mine", leaveHandler.Mine)
	leaves.GET("/pending", leaveHandler.Pending)
	leaves.GET("/:id", leaveHandler.Get)
	leaves.POST("/:id/approve", leaveHandler.Approve)
	leaves.POST("/:id/reject", leaveHandler.Reject)
	leaves.GET("/:id/certificate", leaveHandler.Certificate)

	stats := secured.Group("/stats")
	stats.GET("/completed-this-month", leaveHandler.CompletedThisMonth)
	stats.GET("/dashboard", leaveHandler.Dashboard)

	ledger := secured.Group("/ledger")
	ledger.Use(middleware.RequireRoles(models.RoleProjectManager))
	ledger.GET("", ledgerHandler.List)
	ledger.GET("/export", ledgerHandler.Export)
	ledger.GET("/:id/pdf", ledgerHandler.Document)

	return r
}
