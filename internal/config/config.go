// Package config loads tiered-memory settings from a YAML file and
// TIERED_MEMORY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. TIERED_MEMORY_DB_PATH.
const EnvPrefix = "TIERED_MEMORY"

type Config struct {
	DBPath     string           `yaml:"db_path" mapstructure:"db_path"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Summarizer SummarizerConfig `yaml:"summarizer" mapstructure:"summarizer"`
	Memory     MemoryConfig     `yaml:"memory" mapstructure:"memory"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console | json
}

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai | ollama | "" (disabled)
	Model     string        `yaml:"model" mapstructure:"model"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Dims      int           `yaml:"dims" mapstructure:"dims"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheSize int           `yaml:"cache_size" mapstructure:"cache_size"`
}

type SummarizerConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai | anthropic | ollama | ""
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
}

type MemoryConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MergeThreshold      float64 `yaml:"merge_threshold" mapstructure:"merge_threshold"`
	DuplicateThreshold  float64 `yaml:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	MaxResults          int     `yaml:"max_results" mapstructure:"max_results"`
	MinScore            float64 `yaml:"min_score" mapstructure:"min_score"`
	HalfLifeDays        float64 `yaml:"half_life_days" mapstructure:"half_life_days"`
	WorkingCapacity     int     `yaml:"working_capacity" mapstructure:"working_capacity"`
	ProcessInterval     int     `yaml:"process_interval" mapstructure:"process_interval"`
	ForgetDays          int     `yaml:"forget_days" mapstructure:"forget_days"`
	MaxLongTerm         int     `yaml:"max_long_term" mapstructure:"max_long_term"`
	SweepBatchSize      int     `yaml:"sweep_batch_size" mapstructure:"sweep_batch_size"`
	SweepTurnLimit      int     `yaml:"sweep_turn_limit" mapstructure:"sweep_turn_limit"`
	SweepTurnChars      int     `yaml:"sweep_turn_chars" mapstructure:"sweep_turn_chars"`
	// WorkingDecay is the idle time after which a working item loses priority.
	WorkingDecay time.Duration `yaml:"working_decay" mapstructure:"working_decay"`
}

type ScheduleConfig struct {
	Sweep  string `yaml:"sweep" mapstructure:"sweep"`
	Merge  string `yaml:"merge" mapstructure:"merge"`
	Forget string `yaml:"forget" mapstructure:"forget"`
	Decay  string `yaml:"decay" mapstructure:"decay"`
}

func DefaultConfig() *Config {
	return &Config{
		DBPath: defaultDBPath(),
		Log:    LogConfig{Level: "info", Format: "console"},
		Embedding: EmbeddingConfig{
			Timeout:   30 * time.Second,
			CacheSize: 1000,
		},
		Summarizer: SummarizerConfig{
			Timeout:     60 * time.Second,
			MaxTokens:   500,
			Temperature: 0.2,
		},
		Memory: MemoryConfig{
			SimilarityThreshold: 0.75,
			MergeThreshold:      0.85,
			DuplicateThreshold:  0.90,
			MaxResults:          5,
			MinScore:            0.3,
			HalfLifeDays:        30,
			WorkingCapacity:     10,
			ProcessInterval:     100,
			ForgetDays:          90,
			MaxLongTerm:         1000,
			SweepBatchSize:      10,
			SweepTurnLimit:      100,
			SweepTurnChars:      400,
			WorkingDecay:        time.Hour,
		},
		Schedule: ScheduleConfig{
			Sweep:  "*/30 * * * *",
			Merge:  "0 3 * * *",
			Forget: "0 4 * * 0",
			Decay:  "0 * * * *",
		},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tiered-memory.db"
	}
	return filepath.Join(home, ".tiered-memory", "memory.db")
}

// Load reads configuration. An explicit path must exist; otherwise config.yaml
// is looked up in the working directory and ~/.tiered-memory and may be absent.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tiered-memory"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Embedding.APIKey = os.ExpandEnv(cfg.Embedding.APIKey)
	cfg.Summarizer.APIKey = os.ExpandEnv(cfg.Summarizer.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv registers every key so that AutomaticEnv applies on Unmarshal even
// when the key is absent from the file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"db_path",
		"log.level", "log.format",
		"embedding.provider", "embedding.model", "embedding.base_url", "embedding.api_key",
		"embedding.dims", "embedding.timeout", "embedding.cache_size",
		"summarizer.provider", "summarizer.model", "summarizer.base_url", "summarizer.api_key",
		"summarizer.timeout", "summarizer.max_tokens", "summarizer.temperature",
		"memory.similarity_threshold", "memory.merge_threshold", "memory.duplicate_threshold",
		"memory.max_results", "memory.min_score", "memory.half_life_days", "memory.working_capacity",
		"memory.process_interval", "memory.forget_days", "memory.max_long_term",
		"memory.sweep_batch_size", "memory.sweep_turn_limit", "memory.sweep_turn_chars",
		"memory.working_decay",
		"schedule.sweep", "schedule.merge", "schedule.forget", "schedule.decay",
	} {
		v.BindEnv(key)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path is required")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.format %q is invalid (must be console or json)", c.Log.Format)
	}
	switch c.Embedding.Provider {
	case "", "openai", "ollama":
	default:
		return fmt.Errorf("config: embedding.provider %q is invalid (must be openai, ollama or empty)", c.Embedding.Provider)
	}
	switch c.Summarizer.Provider {
	case "", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("config: summarizer.provider %q is invalid (must be openai, anthropic, ollama or empty)", c.Summarizer.Provider)
	}

	m := c.Memory
	for name, f := range map[string]float64{
		"similarity_threshold": m.SimilarityThreshold,
		"merge_threshold":      m.MergeThreshold,
		"duplicate_threshold":  m.DuplicateThreshold,
		"min_score":            m.MinScore,
	} {
		if f < 0 || f > 1 {
			return fmt.Errorf("config: memory.%s must be within [0, 1], got %v", name, f)
		}
	}
	for name, n := range map[string]int{
		"max_results":      m.MaxResults,
		"working_capacity": m.WorkingCapacity,
		"process_interval": m.ProcessInterval,
		"forget_days":      m.ForgetDays,
		"max_long_term":    m.MaxLongTerm,
		"sweep_batch_size": m.SweepBatchSize,
		"sweep_turn_limit": m.SweepTurnLimit,
		"sweep_turn_chars": m.SweepTurnChars,
	} {
		if n <= 0 {
			return fmt.Errorf("config: memory.%s must be positive, got %d", name, n)
		}
	}
	if m.HalfLifeDays <= 0 {
		return fmt.Errorf("config: memory.half_life_days must be positive, got %v", m.HalfLifeDays)
	}
	if m.WorkingDecay <= 0 {
		return fmt.Errorf("config: memory.working_decay must be positive, got %v", m.WorkingDecay)
	}

	for name, spec := range map[string]string{
		"sweep":  c.Schedule.Sweep,
		"merge":  c.Schedule.Merge,
		"forget": c.Schedule.Forget,
		"decay":  c.Schedule.Decay,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("config: schedule.%s %q: %w", name, spec, err)
		}
	}
	return nil
}
