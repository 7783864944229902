package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/config"
)

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{ServiceName: "entitlements", Store: "memory", LogLevel: "debug"}, "engine-api")

	logger.Debug().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "entitlements", line["service"])
	assert.Equal(t, "engine-api", line["component"])
	assert.Equal(t, "memory", line["store"])
	assert.Equal(t, "hello", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{LogLevel: "loud"}, "worker")

	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("dropped")
	assert.Empty(t, buf.String())
}

func TestNewLogger_EmptyLevel(t *testing.T) {
	logger := newLogger(&bytes.Buffer{}, &config.Config{}, "")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
