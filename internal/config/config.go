package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Gateway    GatewayConfig
	Catalog    CatalogConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds a postgres connection string for the bun pgdriver.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.Username + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database + "?sslmode=disable"
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers     []string
	OrderEvents string
	Enabled     bool
}

type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

type MigrationsConfig struct {
	Dir         string
	AutoMigrate bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "canteen_user"),
			Password:     getEnv("DB_PASSWORD", "canteen_pass"),
			Database:     getEnv("DB_NAME", "canteen_orders"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:     []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			OrderEvents: getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
			Enabled:     getEnvBool("KAFKA_ENABLED", true),
		},
		Gateway: GatewayConfig{
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
			Currency:      getEnv("GATEWAY_CURRENCY", "INR"),
			Timeout:       time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL: getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Migrations: MigrationsConfig{
			Dir:         getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate: getEnvBool("AUTO_MIGRATE", true),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
