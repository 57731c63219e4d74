/*
Package config holds the environment-driven settings.

PURPOSE:
  One Load() call reads everything from the environment with sensible
  defaults for local development. cmd/server runs godotenv.Load() first
  so a .env file works too; flags -port/-db override afterwards.
*/
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	Port      int
	DBPath    string
	SecretKey string
	// DataDir holds the seed TSV files; seeding skips them when unset
	// or missing.
	DataDir string

	TotalBudget float64
	ReserveRate float64

	AlertYellowThreshold   float64
	AlertRedThreshold      float64
	ProgressDelayThreshold float64

	TokenTTL    time.Duration
	CORSOrigins []string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:      envInt("PORT", 8001),
		DBPath:    envString("DB_PATH", "./data/budget.db"),
		SecretKey: envString("SECRET_KEY", "dev-secret-key-change-in-production"),
		DataDir:   envString("DATA_DIR", ""),

		TotalBudget: envFloat("TOTAL_BUDGET", 56397.84),
		ReserveRate: envFloat("RESERVE_RATE", 0.07),

		AlertYellowThreshold:   envFloat("ALERT_YELLOW_THRESHOLD", 0.80),
		AlertRedThreshold:      envFloat("ALERT_RED_THRESHOLD", 0.90),
		ProgressDelayThreshold: envFloat("PROGRESS_DELAY_THRESHOLD", 0.10),

		TokenTTL:    time.Duration(envInt("TOKEN_TTL_MINUTES", 480)) * time.Minute,
		CORSOrigins: envList("CORS_ORIGINS", "*"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envList splits a comma-separated value, trimming whitespace.
func envList(key, fallback string) []string {
	raw := envString(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
