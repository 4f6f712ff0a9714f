package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	Environment string

	EmailEnabled bool
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	RunMigrations bool
	RunSeed       bool
	MigrationsDir string

	SeedAdminEmail    string
	SeedAdminPassword string

	HolidayRefreshInterval time.Duration
	AutoApprovalInterval   time.Duration
	ReminderInterval       time.Duration

	MetricsEnabled bool
}

func Load() Config {
	// Absent .env files are the normal case in deployed environments.
	_ = godotenv.Load()

	return Config{
		Addr:                   getEnv("APP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		Environment:            getEnv("APP_ENV", "development"),
		EmailEnabled:           getEnvBool("EMAIL_ENABLED", false),
		EmailFrom:              getEnv("EMAIL_FROM", "no-reply@example.com"),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               getEnvInt("SMTP_PORT", 587),
		SMTPUser:               getEnv("SMTP_USER", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		RunMigrations:          getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:                getEnvBool("RUN_SEED", true),
		MigrationsDir:          getEnv("MIGRATIONS_DIR", "migrations"),
		SeedAdminEmail:         getEnv("SEED_ADMIN_EMAIL", "admin@example.com"),
		SeedAdminPassword:      getEnv("SEED_ADMIN_PASSWORD", "admin123"),
		HolidayRefreshInterval: getEnvDuration("HOLIDAY_REFRESH_INTERVAL", 5*time.Minute),
		AutoApprovalInterval:   getEnvDuration("AUTO_APPROVAL_INTERVAL", time.Hour),
		ReminderInterval:       getEnvDuration("REMINDER_INTERVAL", time.Hour),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if c.Environment == "production" {
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.HolidayRefreshInterval < time.Minute {
		return fmt.Errorf("HOLIDAY_REFRESH_INTERVAL must be at least 1m")
	}
	return nil
}
