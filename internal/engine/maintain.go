package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/session"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Process log types written by maintenance jobs.
const (
	ProcessMerge  = "merge_similar"
	ProcessForget = "forget"
)

// SweepSessionToLongTerm extracts facts from pending transcript turns into
// long-term memory. Without force it waits until enough turns are pending.
// Extraction failures are reported in the result, never returned.
func (e *Engine) SweepSessionToLongTerm(ctx context.Context, force bool) *session.Report {
	report, err := e.sweeper.Sweep(ctx, force)
	if err != nil {
		e.logger.Error().Err(err).Msg("Session sweep failed")
		return &session.Report{Error: err.Error()}
	}
	return report
}

// MergeReport summarizes one MergeSimilar pass.
type MergeReport struct {
	RunID    string   `json:"run_id,omitempty"`
	Scanned  int      `json:"scanned"`
	Clusters int      `json:"clusters"`
	Merged   int      `json:"merged"`
	Created  []string `json:"created,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// MergeSimilar coalesces clusters of near-duplicate long-term records. Each
// record seeds at most one cluster of its closest unvisited neighbors above
// the merge threshold; the cluster is replaced by one summarized record.
func (e *Engine) MergeSimilar(ctx context.Context) (*MergeReport, error) {
	started := time.Now()
	records, err := e.store.ListRecords(ctx, store.ListParams{WithEmbedding: true})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	report := &MergeReport{Scanned: len(records)}

	visited := make(map[string]bool, len(records))
	for i, seed := range records {
		if ctx.Err() != nil {
			report.Error = ctx.Err().Error()
			break
		}
		if visited[seed.ID] {
			continue
		}
		visited[seed.ID] = true

		var pool []model.Record
		for _, r := range records[i+1:] {
			if !visited[r.ID] {
				pool = append(pool, r)
			}
		}
		neighbors := rank.Score(ctx, seed.Embedding, "", pool, rank.Options{
			TopK:     DefaultMergeNeighbors,
			MinScore: e.opts.MergeThreshold,
		})
		if len(neighbors) == 0 {
			continue
		}

		cluster := []model.Record{seed}
		for _, n := range neighbors {
			visited[n.Record.ID] = true
			cluster = append(cluster, n.Record)
		}
		report.Clusters++

		id, err := e.mergeCluster(ctx, cluster)
		if err != nil {
			e.logger.Warn().Err(err).Str("seed", seed.ID).Int("size", len(cluster)).Msg("Cluster merge skipped")
			continue
		}
		report.Merged += len(cluster)
		report.Created = append(report.Created, id)
	}

	report.RunID = e.logRun(ctx, ProcessMerge, report.Merged, report.Error, started)
	e.logger.Info().Int("scanned", report.Scanned).Int("clusters", report.Clusters).
		Int("merged", report.Merged).Msg("Merge pass finished")
	return report, nil
}

// mergeCluster replaces cluster with one record and returns its id. Nothing is
// deleted unless the merged text is valid, embedded and written.
func (e *Engine) mergeCluster(ctx context.Context, cluster []model.Record) (string, error) {
	texts := make([]string, len(cluster))
	merged := model.Record{Category: cluster[0].Category, CreatedAt: cluster[0].CreatedAt}
	for i, r := range cluster {
		texts[i] = r.Content
		merged.Importance = max(merged.Importance, r.Importance)
		merged.AccessCount += r.AccessCount
		if r.CreatedAt.Before(merged.CreatedAt) {
			merged.CreatedAt = r.CreatedAt
		}
	}

	merged.Content = e.merger.MergeTexts(ctx, texts)
	if err := dedup.Validate(merged.Content); err != nil {
		return "", err
	}
	if e.embedder == nil {
		return "", embedding.ErrNoEmbedding
	}
	vec, err := e.embedder.Embed(ctx, merged.Content)
	if err != nil {
		return "", fmt.Errorf("embed merged: %w", err)
	}
	merged.Embedding = vec
	merged.ID = embedding.ContentHash(merged.Content)
	merged.LastAccess = time.Now().UTC()

	ids := make([]string, len(cluster))
	for i, r := range cluster {
		ids[i] = r.ID
	}
	if err := e.store.ReplaceRecords(ctx, ids, merged); err != nil {
		return "", fmt.Errorf("write merged: %w", err)
	}
	return merged.ID, nil
}

// ForgetReport summarizes one Forget pass.
type ForgetReport struct {
	RunID      string    `json:"run_id,omitempty"`
	Cutoff     time.Time `json:"cutoff"`
	Turns      int       `json:"turns"`
	Records    int       `json:"records"`
	Trimmed    int       `json:"trimmed"`
	Embeddings int       `json:"embeddings"`
}

// Forget drops processed transcript turns older than days, long-term records
// that are unimportant, never retrieved and idle since the cutoff, and stale
// cached embeddings. It then trims the long-term store to its size limit.
// days <= 0 uses the configured retention.
func (e *Engine) Forget(ctx context.Context, days int) (*ForgetReport, error) {
	if days <= 0 {
		days = e.opts.ForgetDays
	}
	started := time.Now()
	report := &ForgetReport{Cutoff: started.AddDate(0, 0, -days).UTC()}

	var err error
	if report.Turns, err = e.store.PruneTurns(ctx, report.Cutoff); err != nil {
		return nil, err
	}
	if report.Records, err = e.store.ForgetRecords(ctx, store.ForgetParams{
		ImportanceBelow: ForgetImportanceBelow,
		IdleSince:       report.Cutoff,
	}); err != nil {
		return nil, err
	}
	if report.Embeddings, err = e.store.PruneEmbeddingCache(ctx, report.Cutoff); err != nil {
		return nil, err
	}
	if report.Trimmed, err = e.store.TrimRecords(ctx, e.opts.MaxLongTerm); err != nil {
		return nil, err
	}

	report.RunID = e.logRun(ctx, ProcessForget, report.Turns+report.Records+report.Trimmed, "", started)
	e.logger.Info().Int("turns", report.Turns).Int("records", report.Records).
		Int("trimmed", report.Trimmed).Msg("Forget pass finished")
	return report, nil
}

// ClearReport counts what Clear removed.
type ClearReport struct {
	Records    int `json:"records"`
	Turns      int `json:"turns"`
	Working    int `json:"working"`
	Embeddings int `json:"embeddings"`
}

// Clear empties a tier. Short clears the transcript and working memory, cache
// clears cached embeddings, and all clears everything.
func (e *Engine) Clear(ctx context.Context, tier model.Tier) (*ClearReport, error) {
	if !model.ValidTiers[tier] {
		return nil, fmt.Errorf("invalid tier %q (valid: long, short, cache, all)", tier)
	}
	report := &ClearReport{}
	var err error

	if tier == model.TierLong || tier == model.TierAll {
		if report.Records, err = e.store.ClearRecords(ctx); err != nil {
			return nil, err
		}
	}
	if tier == model.TierShort || tier == model.TierAll {
		if report.Turns, err = e.store.ClearTurns(ctx); err != nil {
			return nil, err
		}
		report.Working = e.working.Len()
		e.working.Clear()
	}
	if tier == model.TierCache || tier == model.TierAll {
		if report.Embeddings, err = e.store.ClearEmbeddingCache(ctx); err != nil {
			return nil, err
		}
		if e.cache != nil {
			e.cache.Reset()
		}
	}

	e.logger.Info().Str("tier", string(tier)).Msg("Cleared memory")
	return report, nil
}

func (e *Engine) logRun(ctx context.Context, typ string, count int, errText string, started time.Time) string {
	id, err := e.store.LogProcess(context.WithoutCancel(ctx), store.ProcessEntry{
		Type:      typ,
		Count:     count,
		Error:     errText,
		StartedAt: started,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("type", typ).Msg("Failed to write process log")
	}
	return id
}
