package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-sourced configuration for the bot.
// Strategy knobs (universe, thresholds, schedule) live in the YAML settings
// files and are loaded separately by internal/settings.
type Config struct {
	// Runtime
	Env         string // development, staging, production
	SettingsDir string // directory holding settings.yaml and universe.yaml

	// Wealthsimple credentials
	Wealthsimple WealthsimpleConfig

	// Infrastructure
	Database DatabaseConfig
	Redis    RedisConfig
	API      APIConfig
	Notify   NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// WealthsimpleConfig holds the brokerage login credentials.
// The API base URL is a strategy setting, not a secret, and lives in settings.yaml.
type WealthsimpleConfig struct {
	Email     string
	Password  string
	OTPSecret string // TOTP secret for accounts with 2FA enabled
}

// DatabaseConfig holds PostgreSQL configuration for the run journal.
type DatabaseConfig struct {
	Enabled  bool
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

// RedisConfig holds Redis configuration for the quote/security cache.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// APIConfig holds the status/metrics HTTP server configuration.
type APIConfig struct {
	Enabled bool
	Port    string
}

// NotifyConfig holds notification sinks. A sink with empty credentials
// is simply not wired.
type NotifyConfig struct {
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:         getEnv("ENV", "development"),
		SettingsDir: getEnv("SETTINGS_DIR", "config"),

		Wealthsimple: WealthsimpleConfig{
			Email:     getEnv("WS_EMAIL", ""),
			Password:  getEnv("WS_PASSWORD", ""),
			OTPSecret: getEnv("WS_OTP_SECRET", ""),
		},

		Database: DatabaseConfig{
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "wstrader"),
			User:            getEnv("DB_USER", "wstrader"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		API: APIConfig{
			Enabled: getEnvAsBool("API_ENABLED", true),
			Port:    getEnv("API_PORT", "8090"),
		},

		Notify: NotifyConfig{
			DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
			TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// HasCredentials reports whether the brokerage login credentials are set.
// Commands that only use public market data can run without them.
func (c *Config) HasCredentials() bool {
	return c.Wealthsimple.Email != "" && c.Wealthsimple.Password != ""
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Database.Enabled && c.Database.URL == "" && c.Database.Name == "" {
		return fmt.Errorf("DB_ENABLED is set but neither DATABASE_URL nor DB_NAME is configured")
	}

	if c.API.Enabled {
		if _, err := strconv.Atoi(c.API.Port); err != nil {
			return fmt.Errorf("API_PORT must be numeric, got %q", c.API.Port)
		}
	}

	return nil
}

// Helper functions (private, only used within this file)

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
