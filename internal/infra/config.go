package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	OutputPath        string
	MaxConcurrentJobs int
	JobTTL            time.Duration
	MaxVideoSeconds   int
	StageSeconds      int
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	CORSOrigins       string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		OutputPath:        getEnv("OUTPUT_PATH", "./data"),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 1),
		JobTTL:            time.Hour * time.Duration(getEnvInt("JOB_TTL_HOURS", 24)),
		MaxVideoSeconds:   getEnvInt("MAX_VIDEO_SECONDS", 30),
		StageSeconds:      getEnvInt("STAGE_SECONDS", 2),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSOrigins:       getEnv("CORS_ORIGINS", "*"),
	}

	if cfg.MaxConcurrentJobs < 1 || cfg.MaxConcurrentJobs > 3 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be between 1 and 3, got %d", cfg.MaxConcurrentJobs)
	}

	if cfg.MaxVideoSeconds < 1 {
		return nil, fmt.Errorf("MAX_VIDEO_SECONDS must be positive, got %d", cfg.MaxVideoSeconds)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
