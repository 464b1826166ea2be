package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tutorgo/pkg/db"
)

func TestSQLiteStore(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	// Init DB
	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	defer d.Close()

	store := NewSQLiteStore(d)
	ctx := context.Background()

	testSessions(t, ctx, store)
	testProgress(t, ctx, store)
	testHistory(t, ctx, store)
	testInsights(t, ctx, store)
	testCache(t, ctx, store)
}

func testSessions(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Sessions", func(t *testing.T) {
		rec := &SessionRecord{
			ID:       "sess-1",
			UserID:   "user-1",
			Topic:    "fractions",
			Snapshot: []byte(`{"xp":10}`),
		}
		if err := store.SaveSession(ctx, rec); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		loaded, err := store.GetSession(ctx, "sess-1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("GetSession returned nil")
		}
		if loaded.Topic != "fractions" || string(loaded.Snapshot) != `{"xp":10}` {
			t.Errorf("session mismatch: %+v", loaded)
		}

		// Missing session is a nil, not an error
		missing, err := store.GetSession(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("missing session = %+v, %v", missing, err)
		}

		// Overwrite keeps the id, replaces the snapshot
		rec.Snapshot = []byte(`{"xp":35}`)
		if err := store.SaveSession(ctx, rec); err != nil {
			t.Fatalf("SaveSession overwrite failed: %v", err)
		}
		loaded, _ = store.GetSession(ctx, "sess-1")
		if string(loaded.Snapshot) != `{"xp":35}` {
			t.Errorf("snapshot not replaced: %s", loaded.Snapshot)
		}

		_ = store.SaveSession(ctx, &SessionRecord{ID: "sess-2", UserID: "user-1", Topic: "algebra"})
		list, err := store.ListSessions(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("expected 2 sessions, got %d", len(list))
		}

		if err := store.DeleteSession(ctx, "sess-2"); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		list, _ = store.ListSessions(ctx, "user-1")
		if len(list) != 1 {
			t.Errorf("expected 1 session after delete, got %d", len(list))
		}
	})
}

func testProgress(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Progress", func(t *testing.T) {
		day1 := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

		// First ever award starts the streak at 1
		p, err := store.AwardXP(ctx, "u1", 10, day1)
		if err != nil {
			t.Fatalf("AwardXP failed: %v", err)
		}
		if p.XP != 10 || p.Streak != 1 {
			t.Errorf("after first award: %+v", p)
		}

		// Second award on the same day adds XP, streak unchanged
		p, _ = store.AwardXP(ctx, "u1", 25, day1.Add(2*time.Hour))
		if p.XP != 35 || p.Streak != 1 {
			t.Errorf("same-day award: %+v", p)
		}

		// Next day extends the streak
		p, _ = store.AwardXP(ctx, "u1", 10, day1.AddDate(0, 0, 1))
		if p.XP != 45 || p.Streak != 2 {
			t.Errorf("next-day award: %+v", p)
		}

		// A gap resets the streak to 1
		p, _ = store.AwardXP(ctx, "u1", 10, day1.AddDate(0, 0, 5))
		if p.XP != 55 || p.Streak != 1 {
			t.Errorf("post-gap award: %+v", p)
		}

		loaded, err := store.GetProgress(ctx, "u1")
		if err != nil || loaded == nil {
			t.Fatalf("GetProgress: %+v, %v", loaded, err)
		}
		if loaded.XP != 55 || loaded.LastActive != "2025-03-15" {
			t.Errorf("persisted progress: %+v", loaded)
		}

		missing, err := store.GetProgress(ctx, "nobody")
		if err != nil || missing != nil {
			t.Errorf("missing progress = %+v, %v", missing, err)
		}
	})
}

func testHistory(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("History", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			role := "user"
			if i%2 == 1 {
				role = "model"
			}
			if err := store.AppendHistory(ctx, "sess-h", role, "turn"); err != nil {
				t.Fatalf("AppendHistory failed: %v", err)
			}
		}

		n, err := store.CountHistory(ctx, "sess-h")
		if err != nil || n != 12 {
			t.Fatalf("CountHistory = %d, %v", n, err)
		}

		if err := store.CompactHistory(ctx, "sess-h", "earlier turns summarized", 5); err != nil {
			t.Fatalf("CompactHistory failed: %v", err)
		}

		entries, err := store.GetHistory(ctx, "sess-h")
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(entries) != 6 {
			t.Fatalf("expected summary + 5 kept entries, got %d", len(entries))
		}
		if !entries[0].IsSummary || entries[0].Content != "earlier turns summarized" {
			t.Errorf("first entry is not the summary: %+v", entries[0])
		}
		for _, e := range entries[1:] {
			if e.IsSummary {
				t.Errorf("unexpected extra summary row: %+v", e)
			}
		}

		// Compacting when nothing is older than the window is a no-op
		if err := store.CompactHistory(ctx, "sess-h", "again", 10); err != nil {
			t.Fatalf("no-op CompactHistory failed: %v", err)
		}
		n, _ = store.CountHistory(ctx, "sess-h")
		if n != 6 {
			t.Errorf("no-op compaction changed count to %d", n)
		}

		// Other sessions are untouched
		_ = store.AppendHistory(ctx, "sess-other", "user", "hi")
		_ = store.CompactHistory(ctx, "sess-h", "s2", 2)
		other, _ := store.GetHistory(ctx, "sess-other")
		if len(other) != 1 {
			t.Errorf("compaction leaked into other session: %d entries", len(other))
		}
	})
}

func testInsights(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Insights", func(t *testing.T) {
		rec := &InsightRecord{
			SessionID:   "sess-1",
			Type:        "struggle",
			Topic:       "improper fractions",
			Observation: "mixes up numerator and denominator",
			Confidence:  0.8,
		}
		if err := store.SaveInsight(ctx, rec); err != nil {
			t.Fatalf("SaveInsight failed: %v", err)
		}
		if rec.ID == 0 {
			t.Error("SaveInsight did not backfill the id")
		}

		list, err := store.GetInsights(ctx, "sess-1")
		if err != nil {
			t.Fatalf("GetInsights failed: %v", err)
		}
		if len(list) != 1 || list[0].Topic != "improper fractions" || list[0].Confidence != 0.8 {
			t.Errorf("insights = %+v", list)
		}
	})
}

func testCache(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Cache", func(t *testing.T) {
		val := []byte(`{"sequences":["generated lesson body"]}`)
		if err := store.SetCache(ctx, "lesson:fractions", val); err != nil {
			t.Fatalf("SetCache failed: %v", err)
		}

		got, ok := store.GetCache(ctx, "lesson:fractions")
		if !ok {
			t.Fatal("GetCache miss after set")
		}
		if string(got) != string(val) {
			t.Errorf("cache round trip mismatch: %s", got)
		}

		has, err := store.HasCache(ctx, "lesson:fractions")
		if err != nil || !has {
			t.Errorf("HasCache = %v, %v", has, err)
		}
		has, err = store.HasCache(ctx, "lesson:missing")
		if err != nil || has {
			t.Errorf("HasCache for missing key = %v, %v", has, err)
		}

		_ = store.SetCache(ctx, "lesson:algebra", []byte("x"))
		_ = store.SetCache(ctx, "material:fractions", []byte("y"))
		keys, err := store.ListCacheKeys(ctx, "lesson:")
		if err != nil {
			t.Fatalf("ListCacheKeys failed: %v", err)
		}
		if len(keys) != 2 {
			t.Errorf("expected 2 lesson keys, got %v", keys)
		}
	})
}
