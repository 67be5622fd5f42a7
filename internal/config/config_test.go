package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.RoomTTL)
	assert.Equal(t, 30*time.Minute, cfg.InviteTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"*"}, cfg.WSOriginPatterns)
	assert.Equal(t, "bombchip_actions", cfg.QueueName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("ROOM_TTL", "10m")
	t.Setenv("WS_ORIGIN_PATTERNS", "example.com,*.example.com")
	t.Setenv("API_RATE_LIMIT", "5")
	t.Setenv("LOG_JSON", "true")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.RoomTTL)
	assert.Equal(t, []string{"example.com", "*.example.com"}, cfg.WSOriginPatterns)
	assert.Equal(t, 5, cfg.APIRateLimit)
	assert.True(t, cfg.Log.JSON)

	t.Setenv("ROOM_TTL", "soon")
	_, err = LoadServer()
	assert.Error(t, err)
}

func TestLoadHistorianRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := LoadHistorian()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bombchip?sslmode=disable")
	cfg, err := LoadHistorian()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FlushInterval)
}

func TestNewLogger(t *testing.T) {
	logger := Log{Level: "debug", JSON: true}.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	logger = Log{Level: "loud"}.NewLogger()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
