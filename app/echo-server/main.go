package main

import (
	"context"
	"fmt"
	"hybridReco/app/echo-server/router"
	"hybridReco/business/recommendation"
	"hybridReco/internal/cache"
	"hybridReco/internal/middleware"
	"hybridReco/internal/repository/embedding"
	"hybridReco/internal/repository/memory"
	"hybridReco/internal/rest"
	"hybridReco/pkg/config"
	"hybridReco/pkg/database"
	"hybridReco/pkg/logger"
	"hybridReco/pkg/metrics"
	"hybridReco/pkg/utils"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	psqlRepo "hybridReco/internal/repository/postgres"
	redisRepo "hybridReco/internal/repository/redis"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Hybrid Recommendation API", "version", cfg.App.Version, "store", cfg.App.Store)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	metrics.Init()

	// Init repo
	var (
		db           *gorm.DB
		interactions recommendation.InteractionStore
		recs         recommendation.RecommendationStore
		catalog      recommendation.ProductCatalog
	)
	switch cfg.App.Store {
	case "postgres":
		db, err = database.InitPostgres(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		logger.Info("Database connected successfully")

		interactions = psqlRepo.NewInteractionRepository(db)
		recs = psqlRepo.NewRecommendationRepository(db)
		catalog = psqlRepo.NewProductRepository(db)
	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		interactions = memory.NewInteractionStore()
		recs = memory.NewRecommendationStore()
		catalog = memory.NewProductCatalog()
	}

	stopSweeper := make(chan struct{})
	var resultCache recommendation.ResultCache
	switch cfg.Cache.Backend {
	case "redis":
		client, err := database.InitRedis(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer client.Close()
		resultCache = redisRepo.NewResultCache(client, cfg.Cache.TTL)
	default:
		local := cache.New(cfg.Cache.TTL, time.Now)
		go sweep(local, cfg.Cache.TTL, stopSweeper)
		resultCache = local
	}

	var embedder recommendation.Embedder
	if cfg.Embedding.BaseURL != "" {
		embedder = embedding.NewClient(cfg.Embedding)
		logger.Info("Content similarity enabled", "model", cfg.Embedding.Model)
	} else {
		logger.Warn("EMBEDDING_BASE_URL not set, content similarity disabled")
	}

	// Init service
	recoService := recommendation.NewService(recommendation.ServiceDeps{
		Interactions: interactions,
		Recs:         recs,
		Catalog:      catalog,
		Embedder:     embedder,
		Cache:        resultCache,
		Eligibility:  recommendation.InStockChecker{},
	}, recommendation.ConfigFromApp(cfg))

	// Init handler
	recoHandler := rest.NewRecommendationHandler(recoService, cfg.Server.RequestTimeout)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(middleware.TraceID())
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.HeaderTraceID},
	}))

	// Setup routes
	router.SetupOpsRoutes(e, cfg.App.Version)
	api := e.Group("/api/v1")
	router.SetupRecommendationRoutes(api, recoHandler,
		middleware.AuthMiddleware(),
		middleware.AdminOnly(),
		middleware.SelfOrAdmin(),
	)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(stopSweeper)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if err := database.ClosePostgres(db); err != nil {
		logger.Error("Database close error", "error", err)
	}

	logger.Info("Server stopped")
}

// sweep drops expired entries from the in-process cache until stop is closed.
func sweep(c *cache.ResultCache, ttl time.Duration, stop <-chan struct{}) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				stats := c.Stats()
				logger.Debug("Result cache swept", "evicted", n, "entries", stats.Entries)
			}
		case <-stop:
			return
		}
	}
}
