package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/parley/pkg/history"
	"github.com/MrWong99/parley/pkg/history/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if PARLEY_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("PARLEY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PARLEY_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS utterances"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func seedEntries(t *testing.T, ctx context.Context, store *postgres.Store) {
	t.Helper()
	now := time.Now()
	for _, e := range []history.Entry{
		{
			Engine: "SENDER", SourceLang: "en", TargetLang: "ur",
			SourceText: "Where is the train station?", TranslatedText: "ٹرین اسٹیشن کہاں ہے؟",
			STT: 400 * time.Millisecond, MT: 300 * time.Millisecond,
			TTSFirstByte: 200 * time.Millisecond, Total: 950 * time.Millisecond,
			CreatedAt: now.Add(-3 * time.Minute),
		},
		{
			Engine: "RECEIVER", SourceLang: "ur", TargetLang: "en",
			SourceText: "سیدھا جائیں", TranslatedText: "Go straight ahead",
			CreatedAt: now.Add(-2 * time.Minute),
		},
		{
			Engine: "SENDER", SourceLang: "en", TargetLang: "ur",
			SourceText: "Thank you very much", TranslatedText: "بہت شکریہ",
			CreatedAt: now.Add(-1 * time.Minute),
		},
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntries(t, ctx, store)

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Chronological order, oldest first.
	if entries[0].SourceText != "Where is the train station?" {
		t.Errorf("entries[0] = %q, want the oldest entry", entries[0].SourceText)
	}
	if entries[2].SourceText != "Thank you very much" {
		t.Errorf("entries[2] = %q, want the newest entry", entries[2].SourceText)
	}

	// Latencies round-trip.
	if entries[0].STT != 400*time.Millisecond {
		t.Errorf("STT = %v, want 400ms", entries[0].STT)
	}
	if entries[0].Total != 950*time.Millisecond {
		t.Errorf("Total = %v, want 950ms", entries[0].Total)
	}

	// Limit keeps the newest entries.
	tail, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent(2): %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("got %d entries, want 2", len(tail))
	}
	if tail[0].SourceText != "سیدھا جائیں" {
		t.Errorf("tail[0] = %q, want the second entry", tail[0].SourceText)
	}
}

func TestRecentEmptyTable(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries == nil {
		t.Fatal("Recent returned nil slice, want empty")
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntries(t, ctx, store)

	tests := []struct {
		name      string
		query     string
		opts      history.SearchOpts
		wantCount int
	}{
		{"match source text", "train station", history.SearchOpts{}, 1},
		{"match translated text", "straight", history.SearchOpts{}, 1},
		{"engine filter", "thank", history.SearchOpts{Engine: "SENDER"}, 1},
		{"engine filter excludes", "straight", history.SearchOpts{Engine: "SENDER"}, 0},
		{"no match", "elephant", history.SearchOpts{}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := store.Search(ctx, tc.query, tc.opts)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if results == nil {
				t.Fatal("Search returned nil slice")
			}
			if len(results) != tc.wantCount {
				t.Fatalf("got %d results, want %d", len(results), tc.wantCount)
			}
		})
	}
}

func TestSearchTimeWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedEntries(t, ctx, store)

	// The station entry was recorded 3 minutes ago, so a 150 second window
	// excludes it.
	windowed, err := store.Search(ctx, "station", history.SearchOpts{
		After: time.Now().Add(-150 * time.Second),
	})
	if err != nil {
		t.Fatalf("Search windowed: %v", err)
	}
	if len(windowed) != 0 {
		t.Fatalf("got %d results inside the window, want 0", len(windowed))
	}

	unwindowed, err := store.Search(ctx, "station", history.SearchOpts{})
	if err != nil {
		t.Fatalf("Search unwindowed: %v", err)
	}
	if len(unwindowed) != 1 {
		t.Fatalf("got %d results without a window, want 1", len(unwindowed))
	}
}
