package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/expensebot/internal/expense"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Memory.MaxWindow)
	assert.Equal(t, 8, cfg.Memory.Threshold)
	assert.Equal(t, 2*time.Hour, cfg.GuestTTL)
	assert.Equal(t, int64(1_000_000), cfg.Policy.DailyCaps[expense.Meals])
	assert.Equal(t, int64(500_000), cfg.Policy.ReceiptThreshold)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("MEMORY_MAX_WINDOW", "10")
	t.Setenv("MEMORY_SUMMARIZE_THRESHOLD", "6")
	t.Setenv("GUEST_SESSION_TTL", "30m")
	t.Setenv("POLICY_MEAL_DAILY_CAP", "1500000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Memory.MaxWindow)
	assert.Equal(t, 6, cfg.Memory.Threshold)
	assert.Equal(t, 4, cfg.Memory.KeepRecent())
	assert.Equal(t, 30*time.Minute, cfg.GuestTTL)
	assert.Equal(t, int64(1_500_000), cfg.Policy.DailyCaps[expense.Meals])
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MEMORY_MAX_WINDOW", "ten"},
		{"GUEST_SESSION_TTL", "soon"},
		{"MEMORY_SUMMARIZE_THRESHOLD", "11"},
		{"MEMORY_SUMMARIZE_THRESHOLD", "5"},
		{"TIMEZONE", "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("TIMEZONE", "UTC")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
