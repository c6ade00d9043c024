package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	Timezone       string        `mapstructure:"TIMEZONE"`
	QueueStatuses  []string      `mapstructure:"QUEUE_STATUSES"`
	QueuePerPage   int           `mapstructure:"QUEUE_PER_PAGE"`
	HandoffTTL     time.Duration `mapstructure:"HANDOFF_TTL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string        `mapstructure:"KAFKA_TOPIC"`
	S3Bucket       string        `mapstructure:"S3_BUCKET"`
	S3Prefix       string        `mapstructure:"S3_PREFIX"`
	S3Endpoint     string        `mapstructure:"S3_ENDPOINT"`
	SMTPHost       string        `mapstructure:"SMTP_HOST"`
	SMTPPort       int           `mapstructure:"SMTP_PORT"`
	SMTPUser       string        `mapstructure:"SMTP_USER"`
	SMTPPass       string        `mapstructure:"SMTP_PASS"`
	SMTPFrom       string        `mapstructure:"SMTP_FROM"`
	AppBaseURL     string        `mapstructure:"APP_BASE_URL"`
	ClinicName     string        `mapstructure:"CLINIC_NAME"`
}

// knownStatuses mirrors the attention_status seed. Config cannot import the
// domain packages, so the list is repeated here.
var knownStatuses = map[string]bool{
	"waiting": true, "in_progress": true, "attended": true, "derived": true, "cancelled": true,
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"JWT_SECRET", "JWT_ISSUER", "JWT_TTL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TIMEZONE", "QUEUE_STATUSES", "QUEUE_PER_PAGE", "HANDOFF_TTL", "REDIS_URL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "S3_BUCKET", "S3_PREFIX", "S3_ENDPOINT",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "SMTP_FROM", "APP_BASE_URL",
	"CLINIC_NAME",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("JWT_ISSUER", "frontdesk")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("QUEUE_STATUSES", "waiting,in_progress,cancelled")
	v.SetDefault("QUEUE_PER_PAGE", 10)
	v.SetDefault("HANDOFF_TTL", "10m")
	v.SetDefault("KAFKA_TOPIC", "attention-events")
	v.SetDefault("S3_PREFIX", "frontdesk/")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("CLINIC_NAME", "Clínica")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.QueueStatuses = splitList(v.GetString("QUEUE_STATUSES"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: ENV=development without JWT_SECRET: unauthenticated requests run as super-admin.")
		cfg.JWTSecret = "development-only-secret"
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE. Validate guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate refuses configurations that would run insecurely or with an
// unusable queue filter.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if len(c.QueueStatuses) == 0 {
		return fmt.Errorf("QUEUE_STATUSES must list at least one status")
	}
	for _, s := range c.QueueStatuses {
		if !knownStatuses[s] {
			return fmt.Errorf("QUEUE_STATUSES contains unknown status %q", s)
		}
	}
	if c.QueuePerPage <= 0 {
		return fmt.Errorf("QUEUE_PER_PAGE must be positive")
	}
	if c.HandoffTTL <= 0 {
		return fmt.Errorf("HANDOFF_TTL must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
