package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-player/internal/events"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LMS_API_URL", "DATABASE_URL", "REDIS_URL", "QUIZ_MAX_VIOLATIONS", "QUIZ_TICK_INTERVAL", "EVENTS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 2, cfg.QuizMaxViolations)
	assert.Equal(t, time.Second, cfg.QuizTickInterval)
	assert.Equal(t, 3*time.Second, cfg.QuizAutoRetryDelay)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("QUIZ_MAX_VIOLATIONS", "3")
	t.Setenv("QUIZ_AUTO_RETRY_DELAY", "500ms")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("QUIZ_TICK_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.QuizMaxViolations)
	assert.Equal(t, 500*time.Millisecond, cfg.QuizAutoRetryDelay)
	assert.Equal(t, time.Second, cfg.QuizTickInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestCreateEventPublisher_Mock(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, c := range []EventConfig{
		{Enabled: false, Publisher: "kafka"},
		{Enabled: true, Publisher: "mock"},
		{Enabled: true, Publisher: "carrier-pigeon"},
	} {
		pub, err := c.CreateEventPublisher(logger)
		require.NoError(t, err)
		assert.IsType(t, &events.MockEventPublisher{}, pub)
	}
}
