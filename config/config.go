package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	App       AppConfig
	HTTP      ServerConfig
	Database  DatabaseConfig
	Log       LogConfig
	Telegram  TelegramConfig
	Instamojo InstamojoConfig
	Kafka     KafkaConfig
	Jobs      JobsConfig
}

type AppConfig struct {
	ServiceName   string
	APIKey        string
	PublicBaseURL string
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type TelegramConfig struct {
	Token         string
	APIEndpoint   string
	WebhookSecret string
	EmailDomain   string
	HTTPTimeout   time.Duration
}

type InstamojoConfig struct {
	APIKey          string
	AuthToken       string
	Endpoint        string
	PrivateSalt     string
	VerifyCallbacks bool
	LegacyLinkMatch bool
	HTTPTimeout     time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type JobsConfig struct {
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	BatchSize           int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	dsn := getEnv("DB_DSN", "")
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "payments.db"
		}
	case DriverMySQL:
		if dsn == "" {
			return nil, errors.New("DB_DSN environment variable is required for mysql")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	return &Config{
		App: AppConfig{
			ServiceName:   getEnv("APP_SERVICE_NAME", "tg-payments"),
			APIKey:        getEnv("APP_API_KEY", ""),
			PublicBaseURL: strings.TrimRight(getEnv("WEBHOOK_BASE_URL", ""), "/"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "5000"),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			DSN:             dsn,
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("DB_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			APIEndpoint:   getEnv("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s"),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			EmailDomain:   getEnv("TELEGRAM_EMAIL_DOMAIN", "telegram.me"),
			HTTPTimeout:   getSecondsEnv("TELEGRAM_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Instamojo: InstamojoConfig{
			APIKey:          getEnv("INSTAMOJO_API_KEY", ""),
			AuthToken:       getEnv("INSTAMOJO_AUTH_TOKEN", ""),
			Endpoint:        getEnv("INSTAMOJO_ENDPOINT", "https://www.instamojo.com/api/1.1/"),
			PrivateSalt:     getEnv("INSTAMOJO_PRIVATE_SALT", ""),
			VerifyCallbacks: getBoolEnv("INSTAMOJO_VERIFY_CALLBACKS", true),
			LegacyLinkMatch: getBoolEnv("INSTAMOJO_LEGACY_LINK_MATCH", true),
			HTTPTimeout:     getSecondsEnv("INSTAMOJO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "payment-status"),
		},
		Jobs: JobsConfig{
			ReconcileInterval:   getMinutesEnv("RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			BatchSize:           int32(getIntEnv("JOB_BATCH_SIZE", 100)),
		},
	}, nil
}

// Validate reports the settings the bot cannot run without.
func (c TelegramConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("TELEGRAM_TOKEN environment variable is required")
	}
	return nil
}

func (c InstamojoConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.AuthToken) == "" {
		return errors.New("INSTAMOJO_API_KEY and INSTAMOJO_AUTH_TOKEN environment variables are required")
	}
	return nil
}

func (c AppConfig) CallbackURL() string {
	return joinPublicURL(c.PublicBaseURL, "/instamojo_callback")
}

func (c AppConfig) GatewayWebhookURL() string {
	return joinPublicURL(c.PublicBaseURL, "/instamojo_webhook")
}

func (c AppConfig) TelegramWebhookURL() string {
	return joinPublicURL(c.PublicBaseURL, "/telegram_webhook")
}

func joinPublicURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + path
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	items := make([]string, 0, 2)
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
