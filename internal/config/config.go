package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
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
	Assistant    AssistantConfig
	Reaper       ReaperConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	PublicURL             string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
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
	// Development switches to console encoding with stack traces on warnings.
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// AssistantConfig points at an OpenAI-compatible chat completions endpoint.
type AssistantConfig struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	PersonaFile    string
	LockTTLSeconds int
}

// ReaperConfig controls the inactivity sweep.
type ReaperConfig struct {
	StaleAfterDays  int
	IntervalMinutes int
	Token           string
}

// NotificationConfig holds email and operator chat settings. Empty credentials
// disable the corresponding channel.
type NotificationConfig struct {
	EmailFrom      string
	EmailFromName  string
	SupportInbox   string
	SendgridAPIKey string
	TelegramToken  string
	TelegramChatID int64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		chatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicURL:             strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:8080"), "/"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: appEnv == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Assistant: AssistantConfig{
			Enabled:        getEnvAsBool("ASSISTANT_ENABLED", false),
			BaseURL:        getEnv("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         os.Getenv("ASSISTANT_API_KEY"),
			Model:          getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("ASSISTANT_TIMEOUT_SECONDS", 60),
			PersonaFile:    os.Getenv("ASSISTANT_PERSONA_FILE"),
			LockTTLSeconds: getEnvAsInt("ASSISTANT_LOCK_TTL_SECONDS", 120),
		},
		Reaper: ReaperConfig{
			StaleAfterDays:  getEnvAsInt("REAPER_STALE_AFTER_DAYS", 10),
			IntervalMinutes: getEnvAsInt("REAPER_INTERVAL_MINUTES", 0),
			Token:           os.Getenv("REAPER_TOKEN"),
		},
		Notification: NotificationConfig{
			EmailFrom:      getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailFromName:  getEnv("NOTIFY_EMAIL_FROM_NAME", "Helpdesk"),
			SupportInbox:   os.Getenv("NOTIFY_SUPPORT_INBOX"),
			SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			TelegramChatID: chatID,
		},
	}

	if cfg.Reaper.StaleAfterDays <= 0 {
		return nil, fmt.Errorf("invalid REAPER_STALE_AFTER_DAYS: must be positive")
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

// AccessTokenTTL returns the JWT lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Timeout bounds one assistant call.
func (a AssistantConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// LockTTL bounds how long a crashed call can hold a ticket's assistant lock.
func (a AssistantConfig) LockTTL() time.Duration {
	return time.Duration(a.LockTTLSeconds) * time.Second
}

// StaleAfter is the inactivity window.
func (r ReaperConfig) StaleAfter() time.Duration {
	return time.Duration(r.StaleAfterDays) * 24 * time.Hour
}

// Interval is the in-process sweep interval; zero leaves scheduling to an external caller.
func (r ReaperConfig) Interval() time.Duration {
	if r.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(r.IntervalMinutes) * time.Minute
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
