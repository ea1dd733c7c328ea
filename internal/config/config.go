// Package config loads the service configuration from the environment,
// optionally seeded from a .env file in development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers  []string
	ConsumerGroup string

	UserServiceURL    string
	CourseServiceURL  string
	SessionServiceURL string

	OTLPEndpoint string

	// SalesTaxRate is applied to the discounted subtotal at placement time.
	// Kept at zero until tax handling goes live.
	SalesTaxRate float64
}

// Load reads configuration from the environment. A missing .env file is not
// an error; missing required values are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:               getEnv("ENV", "local"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		HTTPAddr:          ":" + getEnv("PORT", "4004"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:      []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		ConsumerGroup:     getEnv("KAFKA_CONSUMER_GROUP", "order-service-group"),
		UserServiceURL:    getEnv("USER_SERVICE_URL", "http://user-srv:8081"),
		CourseServiceURL:  getEnv("COURSE_SERVICE_URL", "http://course-srv:8082"),
		SessionServiceURL: getEnv("SESSION_SERVICE_URL", "http://session-srv:8083"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.SalesTaxRate, err = getEnvFloat("SALES_TAX_RATE", 0); err != nil {
		return nil, err
	}
	if cfg.SalesTaxRate < 0 || cfg.SalesTaxRate >= 1 {
		return nil, fmt.Errorf("config: SALES_TAX_RATE must be in [0,1), got %v", cfg.SalesTaxRate)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number: %w", key, err)
	}
	return f, nil
}
