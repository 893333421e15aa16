// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration.
type Config struct {
	// Store
	DBDriver       string
	DBPath         string
	DatabaseURL    string
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	DBSSLMode      string
	BusyTimeout    time.Duration
	MaxOpenConns   int
	ReadOnly       bool
	CreateIndex    bool
	InitMaxRetries int
	InitRetryDelay time.Duration

	// Seeding
	SeedBatchSize int
	SeedUserCount int

	// VerifyBypassUser is a load-test hook; empty disables it.
	VerifyBypassUser string

	// Server
	Debug          bool
	LogLevel       string
	Port           string
	TLSDomains     []string
	RequestTimeout time.Duration

	// Optional HS256 secret guarding the seeding routes.
	AdminTokenSecret string

	// Source store read by cmd/migrate.
	MigrateSourceDriver string
	MigrateSourceDSN    string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv is Load without the fatal exit.
func FromEnv() (*Config, error) {
	v := newViper()

	// Defaults
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "users.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "users")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_BUSY_TIMEOUT", "30s")
	v.SetDefault("DB_MAX_OPEN_CONNS", 0)
	v.SetDefault("READ_ONLY", false)
	v.SetDefault("CREATE_INDEX", true)
	v.SetDefault("INIT_MAX_RETRIES", 5)
	v.SetDefault("INIT_RETRY_DELAY", "1s")
	v.SetDefault("SEED_BATCH_SIZE", 1000)
	v.SetDefault("SEED_USER_COUNT", 10000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG", false)
	v.SetDefault("PORT", ":8082")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	cfg := &Config{
		DBDriver:            strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBPath:              v.GetString("DB_PATH"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		DBUser:              v.GetString("DB_USER"),
		DBPass:              v.GetString("DB_PASS"),
		DBHost:              v.GetString("DB_HOST"),
		DBPort:              v.GetString("DB_PORT"),
		DBName:              v.GetString("DB_NAME"),
		DBSSLMode:           v.GetString("DB_SSLMODE"),
		BusyTimeout:         v.GetDuration("DB_BUSY_TIMEOUT"),
		MaxOpenConns:        v.GetInt("DB_MAX_OPEN_CONNS"),
		ReadOnly:            v.GetBool("READ_ONLY") || v.GetBool("READ_ONLY_DB"),
		CreateIndex:         v.GetBool("CREATE_INDEX"),
		InitMaxRetries:      v.GetInt("INIT_MAX_RETRIES"),
		InitRetryDelay:      v.GetDuration("INIT_RETRY_DELAY"),
		SeedBatchSize:       v.GetInt("SEED_BATCH_SIZE"),
		SeedUserCount:       v.GetInt("SEED_USER_COUNT"),
		VerifyBypassUser:    v.GetString("VERIFY_BYPASS_USER"),
		Debug:               v.GetBool("DEBUG"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		Port:                v.GetString("PORT"),
		TLSDomains:          splitTrimmed(v.GetString("TLS_DOMAINS")),
		RequestTimeout:      v.GetDuration("REQUEST_TIMEOUT"),
		AdminTokenSecret:    v.GetString("ADMIN_TOKEN_SECRET"),
		MigrateSourceDriver: strings.ToLower(strings.TrimSpace(v.GetString("MIGRATE_SOURCE_DRIVER"))),
		MigrateSourceDSN:    v.GetString("MIGRATE_SOURCE_DSN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.DBDriver {
	case DriverPostgres:
		return c.PostgresDSN()
	case DriverMySQL:
		return c.DatabaseURL
	default:
		return c.DBPath
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// AdminKey returns the admin token signing key, or nil when the seeding
// routes are unguarded.
func (c *Config) AdminKey() []byte {
	if c.AdminTokenSecret == "" {
		return nil
	}
	return []byte(c.AdminTokenSecret)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return errors.New("DB_PATH must be set for sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBPass == "" {
			return errors.New("DATABASE_URL or DB_PASS must be set for postgres")
		}
	case DriverMySQL:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for mysql")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.SeedBatchSize <= 0 {
		return errors.New("SEED_BATCH_SIZE must be positive")
	}
	if c.InitMaxRetries < 1 {
		return errors.New("INIT_MAX_RETRIES must be at least 1")
	}
	if c.InitRetryDelay < 0 || c.BusyTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	// SQLite lock waits do not observe the request context.
	if c.RequestTimeout > 0 && c.BusyTimeout > c.RequestTimeout {
		return fmt.Errorf("DB_BUSY_TIMEOUT (%s) must not exceed REQUEST_TIMEOUT (%s)", c.BusyTimeout, c.RequestTimeout)
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
