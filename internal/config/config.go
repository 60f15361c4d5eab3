package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds all configuration for the fulfillment connector service
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// Redis (optional; empty disables the shared cache tier)
	RedisURL string

	// Marketplace API
	MarketplaceBaseURL      string
	MarketplaceAppKey       string
	MarketplaceAppSecret    string
	MarketplaceAccessToken  string
	MarketplaceRefreshToken string
	MarketplaceRateLimit    float64 // requests per second

	// Fulfillment API
	FulfillmentBaseURL      string
	FulfillmentIdentityURL  string
	FulfillmentClientID     string
	FulfillmentClientSecret string
	FulfillmentRefreshToken string
	FulfillmentAccessKeyID  string
	FulfillmentSecretKey    string
	FulfillmentRegion       string
	FulfillmentRateLimit    float64 // requests per second

	// Routing
	RoutingMaxConcurrent int
	RoutingListPageSize  int

	// Validation
	StrictPostal     bool
	RequirePhone     bool
	AllowedCountries []string

	// Inventory
	InventoryCacheTTL          time.Duration
	InventorySafetyStock       int
	InventoryLowStockThreshold int
	InventoryFailOpen          bool

	// Tracking Sync
	TrackingMaxRetries        int
	TrackingSweepOpsPerMinute int
	TrackingSchedulerInterval time.Duration
	TrackingSchedulerEnabled  bool

	// CORS
	CORSAllowedOrigins []string
}

// Load loads configuration from environment variables. A .env file, when
// present, seeds the environment for local development.
func Load() *Config {
	_ = godotenv.Load()

	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "postgres")
		dbName := getEnv("DB_NAME", "fulfillment_connector")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8105"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: databaseURL,
		RedisURL:    getEnv("REDIS_URL", ""),

		// Marketplace API
		MarketplaceBaseURL:      getEnv("MARKETPLACE_BASE_URL", ""),
		MarketplaceAppKey:       getEnv("MARKETPLACE_APP_KEY", ""),
		MarketplaceAppSecret:    getEnv("MARKETPLACE_APP_SECRET", ""),
		MarketplaceAccessToken:  getEnv("MARKETPLACE_ACCESS_TOKEN", ""),
		MarketplaceRefreshToken: getEnv("MARKETPLACE_REFRESH_TOKEN", ""),
		MarketplaceRateLimit:    getEnvAsFloat("MARKETPLACE_RATE_LIMIT", 5),

		// Fulfillment API
		FulfillmentBaseURL:      getEnv("FULFILLMENT_BASE_URL", ""),
		FulfillmentIdentityURL:  getEnv("FULFILLMENT_IDENTITY_URL", ""),
		FulfillmentClientID:     getEnv("FULFILLMENT_CLIENT_ID", ""),
		FulfillmentClientSecret: getEnv("FULFILLMENT_CLIENT_SECRET", ""),
		FulfillmentRefreshToken: getEnv("FULFILLMENT_REFRESH_TOKEN", ""),
		FulfillmentAccessKeyID:  getEnv("FULFILLMENT_ACCESS_KEY_ID", ""),
		FulfillmentSecretKey:    getEnv("FULFILLMENT_SECRET_KEY", ""),
		FulfillmentRegion:       getEnv("FULFILLMENT_REGION", "us-east-1"),
		FulfillmentRateLimit:    getEnvAsFloat("FULFILLMENT_RATE_LIMIT", 5),

		// Routing
		RoutingMaxConcurrent: getEnvAsInt("ROUTING_MAX_CONCURRENT", 5),
		RoutingListPageSize:  getEnvAsInt("ROUTING_LIST_PAGE_SIZE", 50),

		// Validation
		StrictPostal:     getEnvAsBool("VALIDATION_STRICT_POSTAL", false),
		RequirePhone:     getEnvAsBool("VALIDATION_REQUIRE_PHONE", false),
		AllowedCountries: getEnvAsList("VALIDATION_ALLOWED_COUNTRIES"),

		// Inventory
		InventoryCacheTTL:          getEnvAsDuration("INVENTORY_CACHE_TTL", 5*time.Minute),
		InventorySafetyStock:       getEnvAsInt("INVENTORY_SAFETY_STOCK", 0),
		InventoryLowStockThreshold: getEnvAsInt("INVENTORY_LOW_STOCK_THRESHOLD", 5),
		InventoryFailOpen:          getEnvAsBool("INVENTORY_FAIL_OPEN", false),

		// Tracking Sync
		TrackingMaxRetries:        getEnvAsInt("TRACKING_MAX_RETRIES", 3),
		TrackingSweepOpsPerMinute: getEnvAsInt("TRACKING_SWEEP_OPS_PER_MINUTE", 30),
		TrackingSchedulerInterval: getEnvAsDuration("TRACKING_SCHEDULER_INTERVAL", 10*time.Minute),
		TrackingSchedulerEnabled:  getEnvAsBool("TRACKING_SCHEDULER_ENABLED", true),

		// CORS
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}

	// Validate required fields
	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if config.MarketplaceBaseURL == "" {
		log.Println("Warning: MARKETPLACE_BASE_URL not set, marketplace calls will fail")
	}
	if config.FulfillmentBaseURL == "" {
		log.Println("Warning: FULFILLMENT_BASE_URL not set, fulfillment calls will fail")
	}

	return config
}

// ConnectDatabase opens the gorm connection using the configured DSN. Query
// logging is verbose only outside production.
func (c *Config) ConnectDatabase() (*gorm.DB, error) {
	logLevel := logger.Warn
	if c.Environment != "production" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(c.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
