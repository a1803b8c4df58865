package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	authapp "github.com/hcbs/backend/internal/application/authorization"
	"github.com/hcbs/backend/internal/infrastructure/config"
	"github.com/hcbs/backend/internal/infrastructure/event"
	"github.com/hcbs/backend/internal/infrastructure/logger"
	"github.com/hcbs/backend/internal/infrastructure/persistence"
	"github.com/hcbs/backend/internal/interfaces/http/handler"
	"github.com/hcbs/backend/internal/interfaces/http/middleware"
	"github.com/hcbs/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting HCBS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	authorizationRepo := persistence.NewGormAuthorizationRepository(db.DB)
	utilizationRepo := persistence.NewGormUtilizationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize application services
	authorizationService := authapp.NewAuthorizationService(authorizationRepo)
	authorizationService.SetExpiringDaysThreshold(cfg.Authorization.ExpiringDaysThreshold)
	utilizationService := authapp.NewUtilizationService(txScope)
	validationService := authapp.NewValidationService(authorizationRepo, utilizationRepo)

	// Initialize event bus and subscribe handlers
	eventBus := event.NewInMemoryEventBus(log)

	nearLimitHandler := authapp.NewNearLimitHandler(log).
		WithNotifier(authapp.NewLoggingUtilizationAlertNotifier(log))
	eventBus.Subscribe(nearLimitHandler)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	authorizationService.SetEventPublisher(eventBus)
	utilizationService.SetEventPublisher(eventBus)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside the versioned API)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	authorizationHandler := handler.NewAuthorizationHandler(
		authorizationService, utilizationService, validationService)

	// Authorization domain
	authorizationRoutes := router.NewDomainGroup("authorization", "")
	authorizationRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "authorization service ready"})
	})

	authorizationRoutes.POST("/authorizations", authorizationHandler.Create)
	authorizationRoutes.POST("/authorizations/overlap-checks", authorizationHandler.CheckOverlap)
	authorizationRoutes.GET("/authorizations/expiring", authorizationHandler.ListExpiring)
	authorizationRoutes.GET("/authorizations/:id", authorizationHandler.GetByID)
	authorizationRoutes.PUT("/authorizations/:id", authorizationHandler.Update)
	authorizationRoutes.PUT("/authorizations/:id/status", authorizationHandler.UpdateStatus)
	authorizationRoutes.POST("/authorizations/:id/utilization/adjustments", authorizationHandler.AdjustUtilization)
	authorizationRoutes.GET("/authorizations/:id/utilization", authorizationHandler.GetUtilization)
	authorizationRoutes.POST("/authorizations/:id/validate-service", authorizationHandler.ValidateService)

	// Client-scoped queries
	authorizationRoutes.GET("/clients/:client_id/authorizations", authorizationHandler.ListForClient)
	authorizationRoutes.GET("/clients/:client_id/authorizations/active", authorizationHandler.ListActiveForClient)

	r.Register(authorizationRoutes)
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
