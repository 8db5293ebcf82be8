// Package cli implements the tiered-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/chunker"
	"github.com/rcliao/tiered-memory/internal/config"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/engine"
	"github.com/rcliao/tiered-memory/internal/logging"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
)

var (
	dbPath     string
	configPath string
	sessionID  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tiered-memory",
	Short: "Semantic memory with working, session and long-term tiers",
	Long: "A memory engine for conversational agents. Deduplicates and merges facts, ranks them with " +
		"vector similarity, keywords and time decay, and sweeps session transcripts into long-term memory.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: db_path from config, $TIERED_MEMORY_DB_PATH or ~/.tiered-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml or ~/.tiered-memory/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session id for transcript turns (default: a new UUID)")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
}

// openEngine wires a store, providers and an engine from configuration. The
// returned func closes the store.
func openEngine(cfg *config.Config, logger zerolog.Logger) (*engine.Engine, func()) {
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		exitErr("open store", err)
	}

	emb, err := embedding.New(embedding.Options{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Dims:     cfg.Embedding.Dims,
		Timeout:  cfg.Embedding.Timeout,
	})
	if err != nil {
		s.Close()
		exitErr("embedding provider", err)
	}

	summ, err := summarize.New(summarize.Options{
		Provider:    cfg.Summarizer.Provider,
		Model:       cfg.Summarizer.Model,
		BaseURL:     cfg.Summarizer.BaseURL,
		APIKey:      cfg.Summarizer.APIKey,
		Timeout:     cfg.Summarizer.Timeout,
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Temperature: cfg.Summarizer.Temperature,
	})
	if err != nil {
		s.Close()
		exitErr("summarizer provider", err)
	}

	m := cfg.Memory
	e, err := engine.New(engine.Options{
		Store:               s,
		DBPath:              cfg.DBPath,
		Embedder:            emb,
		EmbedTimeout:        cfg.Embedding.Timeout,
		CacheSize:           cfg.Embedding.CacheSize,
		Summarizer:          summ,
		SessionID:           sessionID,
		SimilarityThreshold: m.SimilarityThreshold,
		MergeThreshold:      m.MergeThreshold,
		DuplicateThreshold:  m.DuplicateThreshold,
		MaxResults:          m.MaxResults,
		MinScore:            m.MinScore,
		HalfLifeDays:        m.HalfLifeDays,
		WorkingCapacity:     m.WorkingCapacity,
		WorkingDecay:        m.WorkingDecay,
		ProcessInterval:     m.ProcessInterval,
		ForgetDays:          m.ForgetDays,
		MaxLongTerm:         m.MaxLongTerm,
		SweepTurnLimit:      m.SweepTurnLimit,
		SweepBatch:          chunker.Options{BatchSize: m.SweepBatchSize, ItemLimit: m.SweepTurnChars},
		Logger:              logger,
	})
	if err != nil {
		s.Close()
		exitErr("create engine", err)
	}
	return e, func() { s.Close() }
}

// open is the common path for one-shot commands.
func open() (*engine.Engine, func()) {
	cfg := loadConfig()
	return openEngine(cfg, newLogger(cfg))
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
