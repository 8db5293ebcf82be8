package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(Options{Level: "debug", Format: "json", Output: &buf}), "engine")
	logger.Info().Int("saved", 2).Msg("Sweep finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, float64(2), entry["saved"])
	assert.Equal(t, "Sweep finished", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Format: "json", Output: &buf})
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	logger := New(Options{Level: "loud", Format: "json", Output: &bytes.Buffer{}})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = New(Options{Output: &bytes.Buffer{}})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "info", Output: &buf})
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "INF")
}
