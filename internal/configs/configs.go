/*
Package configs is responsible for loading and parsing the application's configuration settings.

All settings come from environment variables: the running environment, listen port,
allowed origins, the session token secret, hub timing knobs, per-connection event
rate limits, and the optional call-log database.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	SessionSecret  string
	SessionTTL     time.Duration

	// Hub Settings
	RingTimeout time.Duration
	EventRate   float64
	EventBurst  int

	// Call Log Settings
	DatabaseDSN string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables,
// applying defaults and validating ranges.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	cfg.AllowedOrigins = []string{}
	if originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("SESSION_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		secret = "your_default_insecure_session_secret_change_me"
	}
	cfg.SessionSecret = secret

	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}

	// --- Hub Settings ---
	if cfg.RingTimeout, err = durationEnv("RING_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.RingTimeout < 0 {
		return nil, fmt.Errorf("RING_TIMEOUT must not be negative, got %s", cfg.RingTimeout)
	}

	rateStr := os.Getenv("EVENT_RATE")
	if rateStr == "" {
		rateStr = "20"
	}
	cfg.EventRate, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_RATE environment variable: %w", err)
	}

	if cfg.EventBurst, err = intEnv("EVENT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.EventRate <= 0 || cfg.EventBurst <= 0 {
		return nil, fmt.Errorf("EVENT_RATE and EVENT_BURST must be positive")
	}

	// --- Call Log Settings ---
	// Empty DSN disables the Postgres recorder.
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
