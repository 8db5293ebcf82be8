package store

import (
	"context"
	"testing"

	"github.com/rcliao/tiered-memory/internal/model"
)

func TestFindRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutRecord(ctx, model.Record{ID: "1", Content: "Go is a statically typed language", Category: model.CategoryProject})
	s.PutRecord(ctx, model.Record{ID: "2", Content: "Rust is a systems language"})
	s.PutRecord(ctx, model.Record{ID: "3", Content: "user likes coffee", Category: model.CategoryPreference})

	results, err := s.FindRecords(ctx, FindParams{Contains: "language"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	results, _ = s.FindRecords(ctx, FindParams{Contains: "language", Category: model.CategoryProject})
	if len(results) != 1 || results[0].ID != "1" {
		t.Errorf("expected category filter to narrow to 1, got %+v", results)
	}
}

func TestFindRecordsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		s.PutRecord(ctx, model.Record{ID: id, Content: "note " + id})
	}

	results, _ := s.FindRecords(ctx, FindParams{Contains: "note", Limit: 2})
	if len(results) != 2 {
		t.Errorf("expected limit 2, got %d", len(results))
	}
}
