package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/leave-approval-api/api/swagger"
	"github.com/noah-isme/leave-approval-api/internal/approval"
	"github.com/noah-isme/leave-approval-api/internal/clients/directory"
	"github.com/noah-isme/leave-approval-api/internal/clients/enrichment"
	"github.com/noah-isme/leave-approval-api/internal/events"
	"github.com/noah-isme/leave-approval-api/internal/handler"
	"github.com/noah-isme/leave-approval-api/internal/observability"
	"github.com/noah-isme/leave-approval-api/internal/repository"
	"github.com/noah-isme/leave-approval-api/internal/service"
	"github.com/noah-isme/leave-approval-api/migrations"
	"github.com/noah-isme/leave-approval-api/pkg/cache"
	"github.com/noah-isme/leave-approval-api/pkg/config"
	"github.com/noah-isme/leave-approval-api/pkg/database"
	"github.com/noah-isme/leave-approval-api/pkg/export"
	"github.com/noah-isme/leave-approval-api/pkg/jobs"
	"github.com/noah-isme/leave-approval-api/pkg/logger"
	"github.com/noah-isme/leave-approval-api/pkg/storage"
)

// @title Leave Approval API
// @version 1.0.0
// @description Leave request submission and multi step approval chains
// @BasePath /api/v1
// @schemes http
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

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled:      cfg.Tracing.Enabled,
		Environment:  cfg.Env,
		SamplerRatio: cfg.Tracing.SamplerRatio,
	})
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	store, db := openStore(cfg, logr)
	if db != nil {
		defer db.Close() //nolint:errcheck
		checks["database"] = db.PingContext
	}

	redisClient := openRedis(cfg, logr)
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "leave", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Directory.CacheTTL, logr, redisClient != nil)

	policy := approval.DefaultPolicy()
	if cfg.Approval.PolicyFile != "" {
		policy, err = approval.LoadPolicyFile(cfg.Approval.PolicyFile)
		if err != nil {
			logr.Fatal("failed to load chain policy", zap.String("path", cfg.Approval.PolicyFile), zap.Error(err))
		}
	}
	engine := approval.NewEngine(policy)

	directorySvc := service.NewDirectoryService(
		directory.NewClient(cfg.Directory.CSVURL, cfg.Directory.Timeout),
		cacheSvc,
		metricsSvc,
		logr.Named("directory"),
		service.DirectoryConfig{RefreshInterval: cfg.Directory.CacheTTL, DefaultCredential: cfg.Directory.DefaultCredential},
	)

	files, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Fatal("failed to init certificate storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	exportSvc := service.NewExportService(files, signer, service.ExportConfig{
		APIPrefix:    cfg.APIPrefix,
		Organization: cfg.Certificates.Organization,
	}, logr.Named("export"), export.NewCertificateRenderer())

	var publisher events.Publisher
	if cfg.Events.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logr.Named("events"))
		if err != nil {
			logr.Warn("event publisher unavailable, lifecycle events will not be published", zap.Error(err))
		} else {
			publisher = natsPublisher
			defer natsPublisher.Close()
		}
	} else {
		logr.Info("NATS_URL not configured, event publishing disabled")
	}

	notificationSvc := service.NewNotificationService(
		publisher,
		events.NewWebhookSink(cfg.Events.CloudLogURL, 5*time.Second),
		exportSvc,
		metricsSvc,
		logr.Named("notify"),
	)
	notifyQueue := jobs.NewQueue("notifications", notificationSvc.Handle, jobs.QueueConfig{
		Workers:     cfg.Notify.Workers,
		MaxRetries:  cfg.Notify.Retries,
		RetryDelay:  2 * time.Second,
		Logger:      logr.Named("jobs"),
		OnExhausted: notificationSvc.Exhausted,
	})
	notificationSvc.SetQueue(notifyQueue)
	notifyQueue.Start(context.Background())

	leaveOpts := []service.LeaveServiceOption{
		service.WithLeaveNotifier(notificationSvc),
		service.WithLeaveMetrics(metricsSvc),
	}
	if cfg.Enrichment.Enabled && cfg.Enrichment.URL != "" {
		analyzer := enrichment.NewClient(enrichment.Config{
			URL:        cfg.Enrichment.URL,
			APIKey:     cfg.Enrichment.APIKey,
			Timeout:    cfg.Enrichment.Timeout,
			RatePerSec: cfg.Enrichment.RatePerSec,
		})
		leaveOpts = append(leaveOpts, service.WithReasonAnalyzer(analyzer, cfg.Enrichment.Timeout*2))
	}
	leaveSvc := service.NewLeaveService(store, engine, validate, logr.Named("leave"), leaveOpts...)

	authSvc := service.NewAuthService(directorySvc, validate, logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "leave-approval-api",
	})

	router := newRouter(cfg, logr, routerDeps{
		auth:      authSvc,
		tokens:    authSvc,
		leaves:    leaveSvc,
		exports:   exportSvc,
		directory: directorySvc,
		metrics:   metricsSvc,
		checks:    checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	notifyQueue.Stop()
	if err := shutdownTracing(ctx); err != nil {
		logr.Warn("tracing shutdown failed", zap.Error(err))
	}
	logr.Info("server shutdown complete")
}

// openStore returns the Postgres repository when the database is enabled, otherwise the
// in-memory store.
func openStore(cfg *config.Config, logr *zap.Logger) (service.LeaveStore, *sqlx.DB) {
	if !cfg.Database.Enabled {
		logr.Warn("database disabled, leave requests are kept in memory")
		return repository.NewMemoryLeaveRequestStore(), nil
	}
	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, migrations.Files)
		if err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied", zap.Strings("files", applied))
	}
	return repository.NewLeaveRequestRepository(db), db
}

func openRedis(cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, directory snapshots will not be cached", zap.Error(err))
		return nil
	}
	return client
}
