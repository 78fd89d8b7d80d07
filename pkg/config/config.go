package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Optimizer OptimizerConfig
	Audit     AuditConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN renders a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig verifies tokens minted by the identity service. Tokens are never issued here.
type JWTConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the provider profile and availability cache.
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig throttles booking traffic per client.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// SchedulerConfig governs slot search and commits.
type SchedulerConfig struct {
	SlotStep        time.Duration
	SlotLimit       int
	SearchDays      int
	CommitTimeout   time.Duration
	MaxDuration     time.Duration
	MaxRangeDays    int
	DefaultTimezone string
}

// OptimizerConfig governs proposal generation.
type OptimizerConfig struct {
	HorizonDays     int
	IterationFactor int
	ProposalTTL     time.Duration
	Cron            string
	Parallelism     int
}

// AuditConfig configures delivery of booking transitions to the audit service.
type AuditConfig struct {
	WebhookURL string
	Timeout    time.Duration
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{TTL: parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute)}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
		RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Scheduler = SchedulerConfig{
		SlotStep:        parseDuration(v.GetString("SCHEDULER_SLOT_STEP"), 15*time.Minute),
		SlotLimit:       positive(v.GetInt("SCHEDULER_SLOT_LIMIT"), 5),
		SearchDays:      positive(v.GetInt("SCHEDULER_SEARCH_DAYS"), 14),
		CommitTimeout:   parseDuration(v.GetString("SCHEDULER_COMMIT_TIMEOUT"), 5*time.Second),
		MaxDuration:     parseDuration(v.GetString("SCHEDULER_MAX_DURATION"), 120*time.Minute),
		MaxRangeDays:    positive(v.GetInt("SCHEDULER_MAX_RANGE_DAYS"), 366),
		DefaultTimezone: v.GetString("SCHEDULER_DEFAULT_TIMEZONE"),
	}

	cfg.Optimizer = OptimizerConfig{
		HorizonDays:     positive(v.GetInt("OPTIMIZER_HORIZON_DAYS"), 14),
		IterationFactor: positive(v.GetInt("OPTIMIZER_ITERATION_FACTOR"), 3),
		ProposalTTL:     parseDuration(v.GetString("OPTIMIZER_PROPOSAL_TTL"), 30*time.Minute),
		Cron:            strings.TrimSpace(v.GetString("OPTIMIZER_CRON")),
		Parallelism:     positive(v.GetInt("OPTIMIZER_PARALLELISM"), 4),
	}

	cfg.Audit = AuditConfig{
		WebhookURL: v.GetString("AUDIT_WEBHOOK_URL"),
		Timeout:    parseDuration(v.GetString("AUDIT_TIMEOUT"), 5*time.Second),
		Workers:    positive(v.GetInt("AUDIT_WORKERS"), 2),
		BufferSize: positive(v.GetInt("AUDIT_BUFFER"), 256),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUDIT_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clinic_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("SCHEDULER_SLOT_STEP", "15m")
	v.SetDefault("SCHEDULER_SLOT_LIMIT", 5)
	v.SetDefault("SCHEDULER_SEARCH_DAYS", 14)
	v.SetDefault("SCHEDULER_COMMIT_TIMEOUT", "5s")
	v.SetDefault("SCHEDULER_MAX_DURATION", "120m")
	v.SetDefault("SCHEDULER_MAX_RANGE_DAYS", 366)
	v.SetDefault("SCHEDULER_DEFAULT_TIMEZONE", "UTC")

	v.SetDefault("OPTIMIZER_HORIZON_DAYS", 14)
	v.SetDefault("OPTIMIZER_ITERATION_FACTOR", 3)
	v.SetDefault("OPTIMIZER_PROPOSAL_TTL", "30m")
	v.SetDefault("OPTIMIZER_CRON", "")
	v.SetDefault("OPTIMIZER_PARALLELISM", 4)

	v.SetDefault("AUDIT_WEBHOOK_URL", "")
	v.SetDefault("AUDIT_TIMEOUT", "5s")
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
