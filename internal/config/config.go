package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration (payment audit trail)
	Database DatabaseConfig

	// Payment gateway configuration
	Gateway GatewayConfig

	// Booking backend configuration (execute + order status endpoints)
	Backend BackendConfig

	// Pricing defaults
	Pricing PricingConfig

	// Reconciliation polling configuration
	Reconcile ReconcileConfig

	// Notification dispatch configuration
	Notify NotifyConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// GatewayConfig holds the hosted payment gateway configuration
type GatewayConfig struct {
	BaseURL      string // gateway API base, e.g. https://gateway.example/api
	MerchantKey  string
	CountryCode  string // default country for widget sessions
	CurrencyCode string // default currency for widget sessions
	Timeout      time.Duration
}

// BackendConfig holds the booking backend endpoints
type BackendConfig struct {
	ExecuteURL     string // POST execute-payment
	OrderStatusURL string // POST bookingStatus
	Timeout        time.Duration
}

// PricingConfig holds the commission and VAT defaults.
// Omitted per-request rates fall back to these, never to 0.
type PricingConfig struct {
	DefaultCommissionPct float64
	DefaultVATPct        float64
	DefaultCurrency      string
}

// ReconcileConfig holds the order reconciliation polling policy.
// MaxAttempts/MaxWait of zero preserve the unbounded loop.
type ReconcileConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
	AttemptTTL   time.Duration // how long finished/abandoned attempts stay in the registry
}

// NotifyConfig holds the confirmation notification endpoint configuration
type NotifyConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Gateway: GatewayConfig{
			BaseURL:      getEnv("GATEWAY_BASE_URL", ""),
			MerchantKey:  getEnv("GATEWAY_MERCHANT_KEY", ""),
			CountryCode:  getEnv("GATEWAY_COUNTRY_CODE", "SA"),
			CurrencyCode: getEnv("GATEWAY_CURRENCY_CODE", "SAR"),
			Timeout:      time.Duration(getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Backend: BackendConfig{
			ExecuteURL:     getEnv("BACKEND_EXECUTE_URL", ""),
			OrderStatusURL: getEnv("BACKEND_ORDER_STATUS_URL", ""),
			Timeout:        time.Duration(getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Pricing: PricingConfig{
			DefaultCommissionPct: getEnvAsFloat("PRICING_DEFAULT_COMMISSION_PCT", 5),
			DefaultVATPct:        getEnvAsFloat("PRICING_DEFAULT_VAT_PCT", 15),
			DefaultCurrency:      getEnv("PRICING_DEFAULT_CURRENCY", "SAR"),
		},
		Reconcile: ReconcileConfig{
			PollInterval: time.Duration(getEnvAsInt("RECONCILE_POLL_INTERVAL_SECONDS", 8)) * time.Second,
			MaxAttempts:  getEnvAsInt("RECONCILE_MAX_ATTEMPTS", 0),
			MaxWait:      time.Duration(getEnvAsInt("RECONCILE_MAX_WAIT_SECONDS", 0)) * time.Second,
			AttemptTTL:   time.Duration(getEnvAsInt("RECONCILE_ATTEMPT_TTL_MINUTES", 60)) * time.Minute,
		},
		Notify: NotifyConfig{
			URL:     getEnv("NOTIFY_URL", ""),
			APIKey:  getEnv("NOTIFY_API_KEY", ""),
			Timeout: time.Duration(getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}

	if c.Backend.ExecuteURL == "" {
		return fmt.Errorf("BACKEND_EXECUTE_URL is required")
	}

	if c.Backend.OrderStatusURL == "" {
		return fmt.Errorf("BACKEND_ORDER_STATUS_URL is required")
	}

	if c.Pricing.DefaultCommissionPct < 0 || c.Pricing.DefaultCommissionPct > 100 {
		return fmt.Errorf("PRICING_DEFAULT_COMMISSION_PCT must be in [0,100]")
	}

	if c.Pricing.DefaultVATPct < 0 || c.Pricing.DefaultVATPct > 100 {
		return fmt.Errorf("PRICING_DEFAULT_VAT_PCT must be in [0,100]")
	}

	if c.Reconcile.PollInterval <= 0 {
		return fmt.Errorf("RECONCILE_POLL_INTERVAL_SECONDS must be positive")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
