package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	Telegram     TelegramConfig
	Storage      StorageConfig
	Session      SessionConfig
	Sweeper      SweeperConfig
	Subscription SubscriptionConfig
	Pricing      PricingConfig
	Moderation   ModerationConfig
	WebSocket    WebSocketConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
	Host string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

type TelegramConfig struct {
	Token         string
	AdminUserID   int64
	AdminChatID   int64
	Mode          string
	WebhookURL    string
	WebhookSecret string
	SupportURL    string
	RenewURL      string
}

type StorageConfig struct {
	Driver string
}

type SessionConfig struct {
	Store string
	TTL   time.Duration
}

type SweeperConfig struct {
	BroadcastInterval time.Duration
	ExpiryInterval    time.Duration
	UseLock           bool
}

type SubscriptionConfig struct {
	WeeklyPrice  float64
	WeeklyDays   int
	MonthlyPrice float64
	MonthlyDays  int
	ApprovalDays int
}

type PricingConfig struct {
	BaseFare    float64
	PerKMRate   float64
	MinimumFare float64
	FlatFare    float64
	Currency    string
}

type ModerationConfig struct {
	WarnLimit  int
	WarnWindow time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "mashawir"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 20),
			MinIdleConn: 2,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "Mashawir-Bot"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:   getEnv("NEW_RELIC_LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("BOT_TOKEN", ""),
			AdminUserID:   getEnvAsInt64("ADMIN_USER_ID", 0),
			AdminChatID:   getEnvAsInt64("ADMIN_CHAT_ID", 0),
			Mode:          getEnv("BOT_MODE", "polling"),
			WebhookURL:    getEnv("WEBHOOK_URL", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			SupportURL:    getEnv("SUPPORT_URL", ""),
			RenewURL:      getEnv("RENEW_URL", ""),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "postgres"),
		},
		Session: SessionConfig{
			Store: getEnv("SESSION_STORE", "redis"),
			TTL:   parseDuration(getEnv("SESSION_TTL", "24h"), 24*time.Hour),
		},
		Sweeper: SweeperConfig{
			BroadcastInterval: time.Duration(getEnvAsInt("BROADCAST_INTERVAL_SECONDS", 600)) * time.Second,
			ExpiryInterval:    time.Duration(getEnvAsInt("EXPIRY_INTERVAL_SECONDS", 600)) * time.Second,
			UseLock:           getEnvAsBool("SWEEPER_LOCK", false),
		},
		Subscription: SubscriptionConfig{
			WeeklyPrice:  getEnvAsFloat64("WEEKLY_PRICE", 50),
			WeeklyDays:   getEnvAsInt("WEEKLY_DAYS", 7),
			MonthlyPrice: getEnvAsFloat64("MONTHLY_PRICE", 150),
			MonthlyDays:  getEnvAsInt("MONTHLY_DAYS", 30),
			ApprovalDays: getEnvAsInt("APPROVAL_DAYS", 30),
		},
		Pricing: PricingConfig{
			BaseFare:    getEnvAsFloat64("BASE_FARE", 10),
			PerKMRate:   getEnvAsFloat64("PER_KM_RATE", 2),
			MinimumFare: getEnvAsFloat64("MINIMUM_FARE", 15),
			FlatFare:    getEnvAsFloat64("FLAT_FARE", 25),
			Currency:    getEnv("CURRENCY", "SAR"),
		},
		Moderation: ModerationConfig{
			WarnLimit:  getEnvAsInt("WARN_LIMIT", 3),
			WarnWindow: time.Duration(getEnvAsInt("WARN_WINDOW_DAYS", 30)) * 24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Telegram.AdminUserID == 0 {
		return fmt.Errorf("ADMIN_USER_ID is required")
	}
	switch c.Telegram.Mode {
	case "polling":
	case "webhook":
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required in webhook mode")
		}
	default:
		return fmt.Errorf("BOT_MODE must be polling or webhook, got %q", c.Telegram.Mode)
	}
	if c.Storage.Driver != "postgres" && c.Storage.Driver != "memory" {
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Storage.Driver)
	}
	if c.Session.Store != "redis" && c.Session.Store != "memory" {
		return fmt.Errorf("SESSION_STORE must be redis or memory, got %q", c.Session.Store)
	}
	if c.Storage.Driver == "postgres" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.Moderation.WarnLimit <= 0 {
		return fmt.Errorf("WARN_LIMIT must be positive")
	}
	return nil
}

// AdminChat is where payment proofs and inquiries go; it defaults to the admin's private chat
func (c *Config) AdminChat() int64 {
	if c.Telegram.AdminChatID != 0 {
		return c.Telegram.AdminChatID
	}
	return c.Telegram.AdminUserID
}

// Helper functions

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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
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

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
