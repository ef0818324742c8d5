// Package config loads application configuration from environment
// variables.  A .env file in the working directory, when present, is
// loaded first and never overrides variables already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	QRPrefix      string        // first field of QR payloads
	LogLevel      string        // debug, info, warn or error
	LogFormat     string        // json or text
	SweepInterval time.Duration // how often ended bookings are completed
	RabbitMQURL   string        // broker for booking events; empty disables publishing
	AutoMigrate   bool          // apply the embedded schema on startup
}

// LoadDotEnv loads .env if it exists.  A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration values from environment variables.  Missing
// required variables are reported together in one error.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}
	var bad []string
	mustInt := func(key string) int {
		s := must(key)
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s=%q", key, s))
		}
		return n
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		QRPrefix:      envStr("QR_PREFIX", "PARKHERO"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		LogFormat:     envStr("LOG_FORMAT", "json"),
		SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),
		RabbitMQURL:   rabbitURL(),
		AutoMigrate:   envBool("DB_AUTO_MIGRATE", true),
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if len(bad) > 0 {
		return cfg, fmt.Errorf("invalid integer env vars: %s", strings.Join(bad, ", "))
	}
	if strings.Contains(cfg.QRPrefix, "-") {
		return cfg, fmt.Errorf("QR_PREFIX must not contain '-': %q", cfg.QRPrefix)
	}
	if cfg.SweepInterval < time.Second {
		cfg.SweepInterval = time.Second
	}
	return cfg, nil
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
