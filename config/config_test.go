package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taneng/budget-control/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 56397.84, cfg.TotalBudget)
	assert.Equal(t, 0.07, cfg.ReserveRate)
	assert.Equal(t, 0.80, cfg.AlertYellowThreshold)
	assert.Equal(t, 0.90, cfg.AlertRedThreshold)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RESERVE_RATE", "0.05")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")

	cfg := config.Load()

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 0.05, cfg.ReserveRate)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	cfg := config.Load()
	assert.Equal(t, 8001, cfg.Port)
}
