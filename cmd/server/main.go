package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reportapp "github.com/Raulito1/collections-web/internal/application/report"
	sessionapp "github.com/Raulito1/collections-web/internal/application/session"
	"github.com/Raulito1/collections-web/internal/domain/session"
	"github.com/Raulito1/collections-web/internal/infrastructure/config"
	"github.com/Raulito1/collections-web/internal/infrastructure/identity"
	"github.com/Raulito1/collections-web/internal/infrastructure/logger"
	"github.com/Raulito1/collections-web/internal/infrastructure/quickbooks"
	"github.com/Raulito1/collections-web/internal/interfaces/http/handler"
	"github.com/Raulito1/collections-web/internal/interfaces/http/middleware"
	"github.com/Raulito1/collections-web/internal/interfaces/http/router"
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

	log.Info("Starting Collections Web",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Session cache: Redis when enabled, otherwise process memory only.
	var cache identity.SessionCache
	if cfg.Redis.Enabled {
		redisCache, err := identity.NewRedisSessionCache(identity.RedisSessionCacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Identity.SessionTTLDays) * 24 * time.Hour,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cache = redisCache
		log.Info("Redis session cache connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		cache = identity.NewMemorySessionCache()
		log.Info("Using in-memory session cache")
	}

	// Identity provider client
	identityClient, err := identity.NewClient(&identity.Config{
		BaseURL:        cfg.Identity.BaseURL,
		APIKey:         cfg.Identity.APIKey,
		TimeoutSeconds: cfg.Identity.TimeoutSeconds,
	}, cache)
	if err != nil {
		log.Fatal("Failed to create identity client", zap.Error(err))
	}

	// Report backend client
	backend, err := quickbooks.NewClient(&quickbooks.Config{
		BaseURL:        cfg.QuickBooks.BaseURL,
		TimeoutSeconds: cfg.QuickBooks.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to create QuickBooks client", zap.Error(err))
	}

	// Session store and lifecycle. The manager owns the store; handlers
	// and middleware only read it.
	store := session.NewStore()
	manager := sessionapp.NewManager(store, identityClient, noopNavigator{}, log)

	startURL, err := url.Parse(cfg.App.BaseURL)
	if err != nil {
		log.Fatal("Invalid app base URL", zap.Error(err))
	}
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	manager.Start(bootCtx, startURL)
	bootCancel()
	defer manager.Stop()

	// Application services
	reportService := reportapp.NewService(backend, store, identityClient, log)
	reconciler := reportapp.NewReconciler(reportService, log)

	// Handlers
	returnTo := cfg.App.BaseURL + "/quickbooks/connected"
	authorizeTo := cfg.Identity.BaseURL + "/auth/v1/authorize?provider=google&redirect_to=" +
		url.QueryEscape(cfg.App.BaseURL+"/auth/callback")

	dashboardHandler := handler.NewDashboardHandler(reportService, reconciler, store, returnTo, log)
	authHandler := handler.NewAuthHandler(manager, store, authorizeTo, log)
	legalHandler := handler.NewLegalHandler()
	healthHandler := handler.NewHealthHandler(store)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(engine, router.WithMiddleware(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.RequireSession(store),
	))

	r.Register(healthHandler).
		Register(legalHandler).
		Register(authHandler).
		Register(dashboardHandler)

	r.Setup()

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

// noopNavigator satisfies the lifecycle's address scrub. On the server
// the callback handler issues the redirect itself, so nothing moves here.
type noopNavigator struct{}

func (noopNavigator) Replace(*url.URL) {}
