/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables once at startup and passed
// by reference into the components that need them; nothing reads the process
// environment after boot.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	TokenTTLHours              int    `mapstructure:"TOKEN_TTL_HOURS"`
	SuiRPCURL                  string `mapstructure:"SUI_RPC_URL"`
	SuiPackageID               string `mapstructure:"SUIPAY_PACKAGE_ID"`
	SuiEventModule             string `mapstructure:"SUIPAY_EVENT_MODULE"`
	IndexerPollIntervalSeconds int    `mapstructure:"INDEXER_POLL_INTERVAL_SECONDS"`
	IndexerPageSize            int    `mapstructure:"INDEXER_PAGE_SIZE"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	OrderPaidExchange          string `mapstructure:"ORDER_PAID_EXCHANGE"`
	OrderPaidRoutingKey        string `mapstructure:"ORDER_PAID_ROUTING_KEY"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	LoginRateLimitPerMinute    int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	PendingOrderReportSchedule string `mapstructure:"PENDING_ORDER_REPORT_SCHEDULE"`
	PendingOrderStaleMinutes   int    `mapstructure:"PENDING_ORDER_STALE_MINUTES"`
}

// IndexingEnabled reports whether the reconciliation loop should run at all.
// An empty or placeholder package id means "indexing disabled" and the loop
// must not start.
func (c Config) IndexingEnabled() bool {
	return strings.TrimSpace(c.SuiPackageID) != "" && c.SuiPackageID != "0x0"
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "3002")
	viper.SetDefault("TOKEN_TTL_HOURS", 24)
	viper.SetDefault("SUI_RPC_URL", "https://fullnode.testnet.sui.io:443")
	viper.SetDefault("SUIPAY_EVENT_MODULE", "payment")
	viper.SetDefault("INDEXER_POLL_INTERVAL_SECONDS", 2)
	viper.SetDefault("INDEXER_PAGE_SIZE", 50)
	viper.SetDefault("ORDER_PAID_EXCHANGE", "suipay.events")
	viper.SetDefault("ORDER_PAID_ROUTING_KEY", "order.paid")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "suipay:rate_limit")
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("PENDING_ORDER_REPORT_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("PENDING_ORDER_STALE_MINUTES", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_HOURS")
	_ = viper.BindEnv("SUI_RPC_URL")
	_ = viper.BindEnv("SUIPAY_PACKAGE_ID", "SUIPAY_PACKAGE_ID", "SUI_PACKAGE_ID")
	_ = viper.BindEnv("SUIPAY_EVENT_MODULE")
	_ = viper.BindEnv("INDEXER_POLL_INTERVAL_SECONDS")
	_ = viper.BindEnv("INDEXER_PAGE_SIZE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("ORDER_PAID_EXCHANGE")
	_ = viper.BindEnv("ORDER_PAID_ROUTING_KEY")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PENDING_ORDER_REPORT_SCHEDULE")
	_ = viper.BindEnv("PENDING_ORDER_STALE_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we log and fall back to the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// A platform-provided PORT (e.g., Railway/Render) takes precedence.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.SuiPackageID = strings.TrimSpace(config.SuiPackageID)
	config.SuiEventModule = strings.TrimSpace(config.SuiEventModule)
	if config.SuiEventModule == "" {
		config.SuiEventModule = "payment"
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "suipay:rate_limit"
	}

	if config.TokenTTLHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive token ttl configured; using 24h\" ttl_hours=%d", config.TokenTTLHours)
		config.TokenTTLHours = 24
	}
	if config.IndexerPollIntervalSeconds <= 0 {
		config.IndexerPollIntervalSeconds = 2
	}
	if config.IndexerPageSize <= 0 {
		config.IndexerPageSize = 50
	}
	if config.PendingOrderStaleMinutes <= 0 {
		config.PendingOrderStaleMinutes = 60
	}

	return
}
