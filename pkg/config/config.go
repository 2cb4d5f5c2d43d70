package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional quote cache)
	Redis RedisConfig

	// KIS (한국투자증권) open API
	KIS KISConfig

	// Local state (token cache, retention)
	Store StoreConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// KISConfig holds KIS API configuration
type KISConfig struct {
	AppKey       string
	AppSecret    string
	BaseURL      string // 실전투자
	PaperBaseURL string // 모의투자
	IsProduction bool

	// Outbound pacing (requests per second)
	CollectorRate   int // 수집 경로 (무거운 루프)
	InteractiveRate int // 조회 경로
}

// StoreConfig holds local filesystem state configuration
type StoreConfig struct {
	HomeDir       string // ~/.stockhunter
	RetentionDays int    // 보존 기간 (캘린더 기준)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		KIS: KISConfig{
			AppKey:          getEnv("KIS_APP_KEY", ""),
			AppSecret:       getEnv("KIS_APP_SECRET", ""),
			BaseURL:         getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			PaperBaseURL:    getEnv("KIS_PAPER_BASE_URL", "https://openapivts.koreainvestment.com:29443"),
			IsProduction:    getEnvAsBool("KIS_IS_PRODUCTION", false),
			CollectorRate:   getEnvAsInt("KIS_COLLECTOR_RATE", 15),
			InteractiveRate: getEnvAsInt("KIS_INTERACTIVE_RATE", 20),
		},

		Store: StoreConfig{
			HomeDir:       getEnv("STOCKHUNTER_HOME", defaultHomeDir()),
			RetentionDays: getEnvAsInt("RETENTION_DAYS", 400),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ActiveBaseURL returns the KIS base URL for the configured environment
func (c *KISConfig) ActiveBaseURL() string {
	if c.IsProduction {
		return c.BaseURL
	}
	return c.PaperBaseURL
}

// EnvLabel returns "prod" or "paper" for the configured environment
func (c *KISConfig) EnvLabel() string {
	if c.IsProduction {
		return "prod"
	}
	return "paper"
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Store.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// defaultHomeDir resolves ~/.stockhunter
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockhunter"
	}
	return filepath.Join(home, ".stockhunter")
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
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
