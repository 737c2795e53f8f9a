package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Carbon backend
	APIBaseURL           string
	APITimeout           time.Duration
	LegacyEmissionsPaths bool

	// Database，为空时不归档行程
	DatabaseURL string

	// Sensors
	GPSTimeout           time.Duration
	SensorSampleInterval time.Duration
	SensorBatchSize      int
	MismatchConfidence   float64

	// Token 存储路径
	TokenFile string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:           getEnv("PORT", "4000"),
		Debug:                getEnvBool("DEBUG", false),
		APIBaseURL:           getEnv("API_BASE_URL", "http://136.186.108.171"),
		APITimeout:           getEnvDuration("API_TIMEOUT", 30*time.Second),
		LegacyEmissionsPaths: getEnvBool("LEGACY_EMISSIONS_PATHS", false),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		GPSTimeout:           getEnvDuration("GPS_TIMEOUT", 10*time.Second),
		SensorSampleInterval: getEnvDuration("SENSOR_SAMPLE_INTERVAL", 100*time.Millisecond),
		SensorBatchSize:      getEnvInt("SENSOR_BATCH_SIZE", 600),
		MismatchConfidence:   getEnvFloat("PREDICTION_MISMATCH_CONFIDENCE", 0.7),
		TokenFile:            getEnv("TOKEN_FILE", "session.json"),
	}

	return cfg, nil
}

// ArchiveEnabled 是否配置了归档数据库
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
