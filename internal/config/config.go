// Package config loads environment-backed defaults for the commands.
// Flags always win; env vars (optionally from a .env file) supply the
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file if one exists. Existing env vars are
// never overridden. A missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Env holds the environment-derived settings shared by the commands.
type Env struct {
	PostgresDSN   string
	ClickhouseDSN string
	FeedURL       string
	MetricsAddr   string
	CycleInterval time.Duration
}

// FromEnv reads the shared settings from the environment.
func FromEnv() Env {
	return Env{
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		FeedURL:       os.Getenv("FEED_WS_URL"),
		MetricsAddr:   GetString("METRICS_ADDR", ":9090"),
		CycleInterval: GetDuration("CYCLE_INTERVAL", time.Minute),
	}
}

// GetString returns the env value for key, or fallback if unset.
func GetString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetFloat returns the env value for key parsed as float64, or
// fallback if unset or malformed.
func GetFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// GetInt returns the env value for key parsed as int, or fallback if
// unset or malformed.
func GetInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetDuration returns the env value for key parsed as a duration, or
// fallback if unset or malformed.
func GetDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// RequireDSNs validates that both database DSNs are present when
// durable storage is requested.
func (e Env) RequireDSNs() error {
	if e.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (or use --use-memory)")
	}
	if e.ClickhouseDSN == "" {
		return fmt.Errorf("CLICKHOUSE_DSN is required (or use --use-memory)")
	}
	return nil
}
