package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Sweep        SweepConfig
	Sla          SlaConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32

	// StatementTimeoutMs bounds every statement server side; 0 keeps the server default.
	StatementTimeoutMs int
	ApplicationName    string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints and the escalation ledger retention.
type NotificationConfig struct {
	EmailFrom       string
	WebhookURL      string
	LedgerTTLHours  int
	LedgerKeyPrefix string
}

// SweepConfig controls the periodic SLA breach/escalation sweep.
type SweepConfig struct {
	Enabled        bool
	Schedule       string
	Timezone       string
	BatchSize      int
	LockTTLSeconds int
}

// SlaConfig points at SLA seed data.
type SlaConfig struct {
	SeedFile string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-timekeeper"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:                os.Getenv("POSTGRES_DSN"),
			MaxConns:           int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:           int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:      getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:     int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			StatementTimeoutMs: getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_MS", 15000),
			ApplicationName:    getEnv("POSTGRES_APPLICATION_NAME", "sla-timekeeper"),
		},

		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
			LedgerTTLHours:  getEnvAsInt("NOTIFY_LEDGER_TTL_HOURS", 24*30),
			LedgerKeyPrefix: getEnv("NOTIFY_LEDGER_KEY_PREFIX", "sla:escalation"),
		},
		Sweep: SweepConfig{
			Enabled:        getEnvAsBool("SLA_SWEEP_ENABLED", true),
			Schedule:       getEnv("SLA_SWEEP_SCHEDULE", "*/5 * * * *"),
			Timezone:       getEnv("SLA_SWEEP_TIMEZONE", "UTC"),
			BatchSize:      getEnvAsInt("SLA_SWEEP_BATCH_SIZE", 200),
			LockTTLSeconds: getEnvAsInt("SLA_SWEEP_LOCK_TTL_SECONDS", 240),
		},
		Sla: SlaConfig{
			SeedFile: getEnv("SLA_SEED_FILE", "sla.yaml"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LedgerTTL returns how long fired escalations are remembered.
func (n NotificationConfig) LedgerTTL() time.Duration {
	if n.LedgerTTLHours <= 0 {
		return 0
	}
	return time.Duration(n.LedgerTTLHours) * time.Hour
}

// LockTTL returns the lifetime of the sweep lock.
func (s SweepConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// Location resolves the sweep timezone, falling back to UTC.
func (s SweepConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
