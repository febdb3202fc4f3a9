package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines registration policy.
type Config struct {
	// RedirectDelay is how long the completion screen lingers before the
	// client navigates away.
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	// SessionTTL bounds how long an untouched draft can be resumed.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// SubmitLockTTL bounds how long an in-flight submission marker is
	// honored before it is treated as abandoned.
	SubmitLockTTL time.Duration `yaml:"submit_lock_ttl"`
	// DefaultFlow is used when a session is started without one.
	DefaultFlow string `yaml:"default_flow"`
}

// LoadConfig loads registration config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		RedirectDelay: getenvDuration("REGISTRATION_REDIRECT_DELAY", 2000*time.Millisecond),
		SessionTTL:    getenvDuration("REGISTRATION_SESSION_TTL", 30*24*time.Hour),
		SubmitLockTTL: getenvDuration("REGISTRATION_SUBMIT_LOCK_TTL", 2*time.Minute),
		DefaultFlow:   getenvDefault("REGISTRATION_DEFAULT_FLOW", "wizard"),
	}

	if path := os.Getenv("REGISTRATION_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = 2000 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 2 * time.Minute
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
