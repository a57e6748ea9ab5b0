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

// Config holds all the configuration variables for the authorizer-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	OperatorJWKSURL             string `mapstructure:"OPERATOR_JWKS_URL"`
	EventExchange               string `mapstructure:"EVENT_EXCHANGE"`
	BalanceLockTimeoutMs        int    `mapstructure:"BALANCE_LOCK_TIMEOUT_MS"`
	AuthorizeRateLimitPerMinute int    `mapstructure:"AUTHORIZE_RATE_LIMIT_PER_MINUTE"`
	SeedDemoData                bool   `mapstructure:"SEED_DEMO_DATA"`
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
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "authorizer:rate_limit")
	viper.SetDefault("EVENT_EXCHANGE", "card.events")
	viper.SetDefault("BALANCE_LOCK_TIMEOUT_MS", 250)
	viper.SetDefault("AUTHORIZE_RATE_LIMIT_PER_MINUTE", 0)
	viper.SetDefault("SEED_DEMO_DATA", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("OPERATOR_JWKS_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("BALANCE_LOCK_TIMEOUT_MS")
	_ = viper.BindEnv("AUTHORIZE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("SEED_DEMO_DATA")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Platform runtimes commonly inject PORT; it wins over SERVER_PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "authorizer:rate_limit"
	}
	config.EventExchange = strings.TrimSpace(config.EventExchange)
	if config.EventExchange == "" {
		config.EventExchange = "card.events"
	}

	if config.BalanceLockTimeoutMs <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive balance lock timeout; using default\" timeout_ms=%d", config.BalanceLockTimeoutMs)
		config.BalanceLockTimeoutMs = 250
	}
	if config.AuthorizeRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative rate limit configured; disabling limiter\" limit=%d", config.AuthorizeRateLimitPerMinute)
		config.AuthorizeRateLimitPerMinute = 0
	}

	return
}
