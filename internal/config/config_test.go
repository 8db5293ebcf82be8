package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.75, cfg.Memory.SimilarityThreshold)
	assert.Equal(t, 0.85, cfg.Memory.MergeThreshold)
	assert.Equal(t, 0.90, cfg.Memory.DuplicateThreshold)
	assert.Equal(t, 5, cfg.Memory.MaxResults)
	assert.Equal(t, 0.3, cfg.Memory.MinScore)
	assert.Equal(t, 10, cfg.Memory.WorkingCapacity)
	assert.Equal(t, 100, cfg.Memory.ProcessInterval)
	assert.Equal(t, time.Hour, cfg.Memory.WorkingDecay)
	assert.Equal(t, "*/30 * * * *", cfg.Schedule.Sweep)
	assert.Equal(t, "0 * * * *", cfg.Schedule.Decay)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `db_path: /tmp/test-memory.db
log:
  level: debug
  format: json
embedding:
  provider: ollama
  model: all-minilm
  timeout: 5s
summarizer:
  provider: anthropic
  api_key: $TIERED_MEMORY_TEST_KEY
memory:
  similarity_threshold: 0.8
  working_capacity: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TIERED_MEMORY_TEST_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-memory.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "sk-test", cfg.Summarizer.APIKey)
	assert.Equal(t, 0.8, cfg.Memory.SimilarityThreshold)
	assert.Equal(t, 4, cfg.Memory.WorkingCapacity)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.85, cfg.Memory.MergeThreshold)
	assert.Equal(t, 1000, cfg.Embedding.CacheSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TIERED_MEMORY_DB_PATH", "/tmp/env.db")
	t.Setenv("TIERED_MEMORY_MEMORY_MAX_RESULTS", "9")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 9, cfg.Memory.MaxResults)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad embedding provider", func(c *Config) { c.Embedding.Provider = "bert" }},
		{"bad summarizer provider", func(c *Config) { c.Summarizer.Provider = "gpt" }},
		{"threshold above one", func(c *Config) { c.Memory.MergeThreshold = 1.5 }},
		{"zero capacity", func(c *Config) { c.Memory.WorkingCapacity = 0 }},
		{"zero half life", func(c *Config) { c.Memory.HalfLifeDays = 0 }},
		{"bad cron", func(c *Config) { c.Schedule.Merge = "every night" }},
		{"bad decay cron", func(c *Config) { c.Schedule.Decay = "hourly-ish" }},
		{"zero working decay", func(c *Config) { c.Memory.WorkingDecay = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
