package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fulfillment-connector-service/internal/cache"
	"fulfillment-connector-service/internal/clients/fulfillment"
	"fulfillment-connector-service/internal/clients/marketplace"
	"fulfillment-connector-service/internal/config"
	"fulfillment-connector-service/internal/handlers"
	"fulfillment-connector-service/internal/middleware"
	"fulfillment-connector-service/internal/models"
	"fulfillment-connector-service/internal/repository"
	"fulfillment-connector-service/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logger.WithField("service", "fulfillment-connector-service")

	// Connect to database
	db, err := cfg.ConnectDatabase()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.TrackingRecord{},
		&models.SkuMapping{},
	); err != nil {
		log.WithError(err).Warn("auto-migration failed")
	}

	// Inventory cache: local always, Redis tier when configured
	var invCache *cache.InventoryCache
	if cfg.RedisURL != "" {
		invCache, err = cache.NewInventoryCacheWithRedis(cfg.RedisURL, cfg.InventoryCacheTTL)
		if err != nil {
			log.WithError(err).Fatal("invalid redis configuration")
		}
	} else {
		invCache = cache.NewInventoryCache(cfg.InventoryCacheTTL)
	}

	// Remote API clients
	marketplaceClient := marketplace.NewClient(marketplace.Config{
		BaseURL:           cfg.MarketplaceBaseURL,
		AppKey:            cfg.MarketplaceAppKey,
		AppSecret:         cfg.MarketplaceAppSecret,
		AccessToken:       cfg.MarketplaceAccessToken,
		RefreshToken:      cfg.MarketplaceRefreshToken,
		RequestsPerSecond: cfg.MarketplaceRateLimit,
	}, log)
	fulfillmentClient := fulfillment.NewClient(fulfillment.Config{
		BaseURL:           cfg.FulfillmentBaseURL,
		IdentityURL:       cfg.FulfillmentIdentityURL,
		ClientID:          cfg.FulfillmentClientID,
		ClientSecret:      cfg.FulfillmentClientSecret,
		RefreshToken:      cfg.FulfillmentRefreshToken,
		AccessKeyID:       cfg.FulfillmentAccessKeyID,
		SecretKey:         cfg.FulfillmentSecretKey,
		Region:            cfg.FulfillmentRegion,
		RequestsPerSecond: cfg.FulfillmentRateLimit,
	}, log)

	// Repositories
	trackingRepo := repository.NewTrackingRepository(db)
	mappingRepo := repository.NewMappingRepository(db)

	// SKU mapping table, seeded from persisted mappings
	skuMap := services.NewSkuMap()
	if mappings, err := mappingRepo.ListAll(context.Background()); err != nil {
		log.WithError(err).Warn("failed to load SKU mappings")
	} else {
		skuMap.Load(mappings)
		log.WithField("count", skuMap.Len()).Info("SKU mappings loaded")
	}

	// Services
	validator := services.NewValidator(services.ValidatorConfig{
		StrictPostal:     cfg.StrictPostal,
		RequirePhone:     cfg.RequirePhone,
		AllowedCountries: cfg.AllowedCountries,
	}, log)
	transformer := services.NewTransformer(skuMap, log)
	gate := services.NewInventoryGate(fulfillmentClient, invCache, services.InventoryGateConfig{
		SafetyStock:       cfg.InventorySafetyStock,
		LowStockThreshold: cfg.InventoryLowStockThreshold,
		FailOpen:          cfg.InventoryFailOpen,
	}, log)
	orderRouter := services.NewOrderRouter(
		marketplaceClient, fulfillmentClient,
		validator, transformer, gate, skuMap, trackingRepo,
		services.RouterConfig{
			MaxConcurrent: cfg.RoutingMaxConcurrent,
			ListPageSize:  cfg.RoutingListPageSize,
		}, log)
	trackingSync := services.NewTrackingSynchronizer(
		marketplaceClient, fulfillmentClient, trackingRepo,
		services.TrackingSyncConfig{
			MaxRetries:        cfg.TrackingMaxRetries,
			SweepOpsPerMinute: cfg.TrackingSweepOpsPerMinute,
			SchedulerInterval: cfg.TrackingSchedulerInterval,
		}, log)

	// Handlers
	healthHandler := handlers.NewHealthHandler(db)
	routingHandler := handlers.NewRoutingHandler(orderRouter)
	trackingHandler := handlers.NewTrackingHandler(trackingSync, trackingRepo)
	inventoryHandler := handlers.NewInventoryHandler(gate, skuMap, mappingRepo)
	connectivityHandler := handlers.NewConnectivityHandler(marketplaceClient, fulfillmentClient)

	router := setupRouter(cfg, logger,
		healthHandler, routingHandler, trackingHandler, inventoryHandler, connectivityHandler)

	if cfg.TrackingSchedulerEnabled {
		trackingSync.StartScheduler()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port": cfg.Port,
			"env":  cfg.Environment,
		}).Info("fulfillment connector service starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	// Shutdown order matters: stop the scheduler so no sweep is mid-flight,
	// drain HTTP, then release the cache and database.
	trackingSync.StopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}

	if err := invCache.Close(); err != nil {
		log.WithError(err).Warn("cache close failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("shutdown complete")
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	routingHandler *handlers.RoutingHandler,
	trackingHandler *handlers.TrackingHandler,
	inventoryHandler *handlers.InventoryHandler,
	connectivityHandler *handlers.ConnectivityHandler,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Order routing
		routing := v1.Group("/routing")
		{
			routing.POST("/orders/:orderId", routingHandler.RouteOrder)
			routing.POST("/batch", routingHandler.RouteBatch)
			routing.POST("/pending", routingHandler.RoutePending)
		}

		// Tracking synchronization
		tracking := v1.Group("/tracking")
		{
			tracking.POST("/sync/:orderId", trackingHandler.SyncOrder)
			tracking.POST("/sync", trackingHandler.SyncAll)
			tracking.GET("/records", trackingHandler.ListRecords)
			tracking.POST("/scheduler/start", trackingHandler.StartScheduler)
			tracking.POST("/scheduler/stop", trackingHandler.StopScheduler)
		}

		// Inventory and SKU mappings
		inventory := v1.Group("/inventory")
		{
			inventory.GET("/low-stock", inventoryHandler.ListLowStock)
			inventory.GET("/:sku", inventoryHandler.GetInventory)
		}
		mappings := v1.Group("/mappings")
		{
			mappings.GET("", inventoryHandler.ListMappings)
			mappings.POST("", inventoryHandler.CreateMapping)
			mappings.DELETE("/:sourceSku", inventoryHandler.DeleteMapping)
		}

		// Connectivity
		v1.GET("/connectivity", connectivityHandler.Test)
	}

	return router
}
