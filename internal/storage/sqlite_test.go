package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_generations_created", "idx_generations_finish"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("012_add_column.sql")
	if err != nil || v != 12 {
		t.Errorf("parseMigrationVersion = %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("notes.sql"); err == nil {
		t.Error("expected error for unnumbered file")
	}
}

func TestSaveAndGetGeneration(t *testing.T) {
	s := openTestStore(t)

	created := time.Date(2026, 3, 1, 12, 30, 0, 500000000, time.UTC)
	g := Generation{
		ID:           "gen-1",
		CreatedAt:    created,
		Model:        "base",
		Mode:         "chat",
		Stream:       true,
		Structured:   true,
		FinishReason: "tool_calls",
		DurationMs:   1234,
		ToolCalls:    2,
	}
	if err := s.SaveGeneration(g); err != nil {
		t.Fatalf("SaveGeneration: %v", err)
	}

	got, err := s.GetGeneration("gen-1")
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}
	got.CreatedAt = created
	if got != g {
		t.Errorf("got %+v, want %+v", got, g)
	}
}

func TestGetGeneration_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetGeneration("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentGenerations(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.SaveGeneration(Generation{
			ID:           fmt.Sprintf("gen-%d", i),
			CreatedAt:    base.Add(time.Duration(i) * 500 * time.Millisecond),
			Model:        "base",
			Mode:         "completion",
			FinishReason: "stop",
		})
		if err != nil {
			t.Fatalf("SaveGeneration: %v", err)
		}
	}

	recent, err := s.RecentGenerations(3)
	if err != nil {
		t.Fatalf("RecentGenerations: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d generations, want 3", len(recent))
	}
	want := []string{"gen-4", "gen-3", "gen-2"}
	for i, id := range want {
		if recent[i].ID != id {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].ID, id)
		}
	}
}

func TestCountByFinishReason(t *testing.T) {
	s := openTestStore(t)
	reasons := []string{"stop", "stop", "error", "length"}
	for i, r := range reasons {
		if err := s.SaveGeneration(Generation{ID: fmt.Sprint(i), CreatedAt: time.Now(), Model: "base", Mode: "chat", FinishReason: r}); err != nil {
			t.Fatalf("SaveGeneration: %v", err)
		}
	}

	counts, err := s.CountByFinishReason()
	if err != nil {
		t.Fatalf("CountByFinishReason: %v", err)
	}
	if counts["stop"] != 2 || counts["error"] != 1 || counts["length"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
