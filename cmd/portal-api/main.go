package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bidready/portal-backend/internal/auth"
	"bidready/portal-backend/internal/cache"
	"bidready/portal-backend/internal/company"
	"bidready/portal-backend/internal/config"
	"bidready/portal-backend/internal/documents"
	"bidready/portal-backend/internal/middleware"
	"bidready/portal-backend/internal/onboarding"
	"bidready/portal-backend/internal/readiness"
	"bidready/portal-backend/pkg/storage"
)

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle", zap.Error(err))
	}
	if cfg.Database.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxLifetime.Duration > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime.Duration)
	}
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, "postgres")

	// AWS clients are only built when something needs them
	var awsCfg *aws.Config
	awsConfig := func() aws.Config {
		if awsCfg == nil {
			loaded, err := storage.LoadAWSConfig(ctx, storageOptions(cfg.Storage))
			if err != nil {
				logger.Fatal("Failed to load AWS config", zap.Error(err))
			}
			awsCfg = &loaded
		}
		return *awsCfg
	}

	// Company records and readiness
	companyRepo := company.NewRepository(gormDB)
	readinessCache := cache.New[readiness.Result](cfg.Readiness.CacheTTL.Duration, cfg.Readiness.CacheTTL.Duration)
	defer readinessCache.Stop()
	readinessService := readiness.NewService(companyRepo,
		readiness.NewScorer(readiness.DefaultChecklist(), logger), readinessCache, logger)
	readinessHandler := readiness.NewHandler(readinessService, logger)

	// Documents
	var objects storage.S3Client
	if cfg.Storage.Bucket == "" {
		logger.Warn("No document bucket configured, keeping uploads in memory")
		objects = storage.NewMemoryClient(fmt.Sprintf("http://%s/files", cfg.Server.GetServerAddr()))
	} else {
		objects = storage.NewS3Client(awsConfig(), storageOptions(cfg.Storage))
	}
	documentService := documents.NewService(companyRepo,
		documents.NewStorageProvider(objects, cfg.Storage.LinkTTL.Duration), readinessService, logger)
	documentHandler := documents.NewHandler(documentService, logger)

	// Onboarding engine
	drafts, closeDrafts := newDraftStore(ctx, cfg, db, logger)
	defer closeDrafts()

	var publisher onboarding.EventPublisher = onboarding.NewLogPublisher(logger)
	if cfg.Events.SNSTopicARN != "" {
		publisher = onboarding.NewSNSPublisher(sns.NewFromConfig(awsConfig()), cfg.Events.SNSTopicARN)
	}

	backend := onboarding.NewHTTPBackend(cfg.Onboarding.BackendURL, cfg.Onboarding.SubmitTimeout.Duration, logger)
	schemas := onboarding.DefaultSchemas()
	sessionCfg := onboarding.SessionConfig{
		SubmitTimeout: cfg.Onboarding.SubmitTimeout.Duration,
		DraftDebounce: cfg.Onboarding.DraftDebounce.Duration,
	}
	registry := onboarding.NewRegistry(cfg.Onboarding.SessionTTL.Duration, func(userID string) *onboarding.Session {
		return onboarding.NewSession(userID, backend, drafts, schemas, publisher, sessionCfg, logger)
	}, logger)
	defer registry.Stop()
	onboardingHandler := onboarding.NewHandler(registry, logger)

	submitLimiter := middleware.NewRateLimiter(cfg.Onboarding.SubmitRatePerMin, cfg.Onboarding.SubmitBurst, 10*time.Minute, logger)
	go sweepLimiter(ctx, submitLimiter)

	// Auth
	issuer, err := auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL.Duration)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	// Setup Router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigins))

	auth.RegisterRoutes(router, auth.NewHandler(issuer, logger), cfg.Security.DevTokens)

	// Register Routes
	api := router.Group("/api/v1", auth.Middleware(issuer, logger))
	{
		onboardingHandler.RegisterRoutes(api, submitLimiter.Middleware())
		readinessHandler.RegisterRoutes(api)
		documentHandler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "up"
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}
		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"database":  dbStatus,
			"sessions":  registry.Len(),
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("draft_store", cfg.Onboarding.DraftStore))

	// Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func storageOptions(c config.StorageConfig) storage.Options {
	return storage.Options{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// newDraftStore picks the configured draft backend. The returned func
// releases whatever the store opened.
func newDraftStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (onboarding.DraftStore, func()) {
	switch cfg.Onboarding.DraftStore {
	case config.DraftStoreMemory:
		logger.Warn("Drafts are kept in memory and will not survive a restart")
		return onboarding.NewMemoryDraftStore(), func() {}
	case config.DraftStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		return onboarding.NewRedisDraftStore(client, cfg.Onboarding.DraftRetention.Duration), func() { client.Close() }
	default:
		store := onboarding.NewSQLDraftStore(db)
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate draft table", zap.Error(err))
		}
		return store, func() {}
	}
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
