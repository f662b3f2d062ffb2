package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Storage    StorageConfig
	Queue      QueueConfig
	Archive    ArchiveConfig
	Simulation SimulationConfig
	Metrics    MetricsConfig
}

type StorageConfig struct {
	Driver   string // sqlite3 or postgres
	Path     string // sqlite3 database file
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN resolves the database/sql data source name for the configured driver.
func (s StorageConfig) DSN() string {
	if s.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.Host, s.Port, s.User, s.Password, s.DBName, s.SSLMode)
	}
	return s.Path
}

type QueueConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ArchiveConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SimulationConfig struct {
	Showers         int
	MaxCoreDistance float64 // meters
	DetectionModel  string  // square, polygon, or momentum
	Seed            int64   // 0 seeds from wall clock
}

type MetricsConfig struct {
	Addr string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Storage: StorageConfig{
			Driver:   getEnv("STORAGE_DRIVER", "sqlite3"),
			Path:     getEnv("STORAGE_PATH", "sapphire.sqlite"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "hisparc"),
			Password: getEnv("DB_PASSWORD", "hisparc"),
			DBName:   getEnv("DB_NAME", "hisparc"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "sapphire.events"),
		},
		Archive: ArchiveConfig{
			BaseURL: getEnv("ARCHIVE_BASE_URL", "https://data.hisparc.nl"),
			Timeout: getEnvAsDuration("ARCHIVE_TIMEOUT", 5*time.Minute),
		},
		Simulation: SimulationConfig{
			Showers:         getEnvAsInt("SIM_SHOWERS", 1000),
			MaxCoreDistance: getEnvAsFloat("SIM_MAX_CORE_DISTANCE", 400),
			DetectionModel:  getEnv("SIM_DETECTION_MODEL", "square"),
			Seed:            getEnvAsInt64("SIM_SEED", 0),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9120"),
		},
	}

	if config.Storage.Driver != "sqlite3" && config.Storage.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
