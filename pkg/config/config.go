package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Feature store backends
const (
	FeatureStoreMemory     = "memory"
	FeatureStorePostgres   = "postgres"
	FeatureStoreClickHouse = "clickhouse"
)

// Config holds all process configuration
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음 (코어는 이 값을 직접 보지 않음)
type Config struct {
	// Server
	Port            string
	Env             string        // development, staging, production
	WriteTimeout    time.Duration // bounds synchronous scenario runs
	ShutdownTimeout time.Duration

	// Database
	Database DatabaseConfig

	// Redis (model store mirror)
	Redis RedisConfig

	// ClickHouse (columnar feature store)
	ClickHouse ClickHouseConfig

	// Kafka (recommendation publisher)
	Kafka KafkaConfig

	// Pipeline
	FeatureStore      string // memory, postgres, clickhouse
	ScenarioFile      string // YAML scenario config path
	Workers           int
	HistoryWeeks      int
	ReestimateCron    string
	WebhookURL        string
	ScenarioRateRPS   float64
	ScenarioRateBurst int

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Enabled   bool
	KeyPrefix string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Addr     []string
	Database string
	User     string
	Password string
	Table    string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "rgm"),
			User:            getEnv("DB_USER", "rgm"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", false),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "rgm"),
		},

		ClickHouse: ClickHouseConfig{
			Addr:     getEnvAsList("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "rgm"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Table:    getEnv("CLICKHOUSE_TABLE", "observations"),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "rgm.recommendations"),
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
		},

		FeatureStore:      getEnv("FEATURE_STORE", FeatureStorePostgres),
		ScenarioFile:      getEnv("SCENARIO_FILE", ""),
		Workers:           getEnvAsInt("WORKERS", 4),
		HistoryWeeks:      getEnvAsInt("HISTORY_WEEKS", 104),
		ReestimateCron:    getEnv("REESTIMATE_CRON", "0 0 3 * * *"),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		ScenarioRateRPS:   getEnvAsFloat("SCENARIO_RATE_LIMIT", 2),
		ScenarioRateBurst: getEnvAsInt("SCENARIO_RATE_BURST", 4),
		WriteTimeout:      getEnvAsDuration("API_WRITE_TIMEOUT", "120s"),
		ShutdownTimeout:   getEnvAsDuration("API_SHUTDOWN_TIMEOUT", "30s"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.FeatureStore {
	case FeatureStorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres feature store")
		}
	case FeatureStoreClickHouse:
		if len(c.ClickHouse.Addr) == 0 {
			return fmt.Errorf("CLICKHOUSE_ADDR is required for the clickhouse feature store")
		}
	case FeatureStoreMemory:
	default:
		return fmt.Errorf("FEATURE_STORE must be one of: memory, postgres, clickhouse")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED")
	}

	return nil
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
