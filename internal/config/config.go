package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Queue       QueueConfig
	Reminder    ReminderConfig
	Notify      NotifyConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// QueueConfig tunes the delayed-job queue and the worker draining it.
type QueueConfig struct {
	Key          string
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// ReminderConfig carries the scheduling-engine knobs.
type ReminderConfig struct {
	DefaultTimezone   string
	ReconcileInterval time.Duration
	ReconcileBatch    int
	RetentionWindow   time.Duration
	RetentionInterval time.Duration
	RetryAttempts     int
	RetryBackoff      time.Duration
}

// NotifyConfig configures outbound delivery and the on-disk redelivery buffer.
type NotifyConfig struct {
	WebhookURL         string
	Timeout            time.Duration
	BufferPath         string
	RedeliveryInterval time.Duration
	MaxRedeliveries    int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "remindly"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "remindly_db"),
			User:            getString("DB_USER", "remindly_user"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Key:          getString("QUEUE_KEY", "reminders:delayed"),
			PollInterval: getDuration("QUEUE_POLL_INTERVAL", time.Second),
			BatchSize:    getInt("QUEUE_BATCH_SIZE", 50),
			Concurrency:  getInt("QUEUE_CONCURRENCY", 8),
		},
		Reminder: ReminderConfig{
			DefaultTimezone:   getString("REMINDER_DEFAULT_TZ", "America/Toronto"),
			ReconcileInterval: getDuration("RECONCILE_INTERVAL_SECONDS", 60*time.Second),
			ReconcileBatch:    getInt("RECONCILE_BATCH_SIZE", 100),
			RetentionWindow:   getDuration("RETENTION_WINDOW", 30*24*time.Hour),
			RetentionInterval: getDuration("RETENTION_SWEEP_INTERVAL", time.Hour),
			RetryAttempts:     getInt("DISPATCH_RETRY_ATTEMPTS", 3),
			RetryBackoff:      getDuration("DISPATCH_RETRY_BACKOFF", time.Minute),
		},
		Notify: NotifyConfig{
			WebhookURL:         os.Getenv("NOTIFY_WEBHOOK_URL"),
			Timeout:            getDuration("NOTIFY_TIMEOUT", 10*time.Second),
			BufferPath:         getString("BOLTDB_PATH", "./data/notify-buffer.db"),
			RedeliveryInterval: getDuration("NOTIFY_REDELIVERY_INTERVAL", 30*time.Second),
			MaxRedeliveries:    getInt("NOTIFY_MAX_REDELIVERIES", 3),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
