package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/parley/pkg/history"
)

func TestMemoryStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	store := history.NewMemoryStore(10)
	ctx := context.Background()

	err := store.Append(ctx, history.Entry{
		Engine:         "SENDER",
		SourceLang:     "en",
		TargetLang:     "ur",
		SourceText:     "Good morning",
		TranslatedText: "صبح بخیر",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID == uuid.Nil {
		t.Error("Append did not assign an ID")
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("Append did not assign CreatedAt")
	}
}

func TestMemoryStore_EvictsOldestAtCapacity(t *testing.T) {
	store := history.NewMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, history.Entry{
			Engine:     "SENDER",
			SourceText: fmt.Sprintf("utterance %d", i),
		})
		if err != nil {
			t.Fatalf("Append[%d]: %v", i, err)
		}
	}

	if store.Len() != 3 {
		t.Fatalf("Len = %d, want 3", store.Len())
	}
	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries[0].SourceText != "utterance 2" {
		t.Errorf("oldest entry = %q, want utterance 2", entries[0].SourceText)
	}
	if entries[2].SourceText != "utterance 4" {
		t.Errorf("newest entry = %q, want utterance 4", entries[2].SourceText)
	}
}

func TestMemoryStore_RecentReturnsChronologicalTail(t *testing.T) {
	store := history.NewMemoryStore(10)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := store.Append(ctx, history.Entry{SourceText: fmt.Sprintf("u%d", i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SourceText != "u4" || entries[1].SourceText != "u5" {
		t.Errorf("tail = [%s %s], want [u4 u5]", entries[0].SourceText, entries[1].SourceText)
	}
}

func TestMemoryStore_RecentEmptyStore(t *testing.T) {
	store := history.NewMemoryStore(10)

	entries, err := store.Recent(context.Background(), 5)
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

func TestMemoryStore_Search(t *testing.T) {
	store := history.NewMemoryStore(10)
	ctx := context.Background()
	now := time.Now()

	seed := []history.Entry{
		{Engine: "SENDER", SourceText: "Where is the train station?", TranslatedText: "ٹرین اسٹیشن کہاں ہے؟", CreatedAt: now.Add(-3 * time.Minute)},
		{Engine: "RECEIVER", SourceText: "سیدھا جائیں", TranslatedText: "Go straight ahead", CreatedAt: now.Add(-2 * time.Minute)},
		{Engine: "SENDER", SourceText: "Thank you very much", TranslatedText: "بہت شکریہ", CreatedAt: now.Add(-1 * time.Minute)},
	}
	for _, e := range seed {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tests := []struct {
		name      string
		query     string
		opts      history.SearchOpts
		wantCount int
		wantFirst string
	}{
		{
			name:      "match source text",
			query:     "train",
			wantCount: 1,
			wantFirst: "Where is the train station?",
		},
		{
			name:      "match translated text",
			query:     "straight",
			wantCount: 1,
			wantFirst: "سیدھا جائیں",
		},
		{
			name:      "case insensitive",
			query:     "THANK",
			wantCount: 1,
		},
		{
			name:      "engine filter",
			query:     "",
			opts:      history.SearchOpts{Engine: "SENDER"},
			wantCount: 2,
		},
		{
			name:      "time window",
			query:     "",
			opts:      history.SearchOpts{After: now.Add(-150 * time.Second)},
			wantCount: 2,
		},
		{
			name:      "limit",
			query:     "",
			opts:      history.SearchOpts{Limit: 1},
			wantCount: 1,
		},
		{
			name:      "no match",
			query:     "elephant",
			wantCount: 0,
		},
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
			if tc.wantFirst != "" && results[0].SourceText != tc.wantFirst {
				t.Errorf("first result = %q, want %q", results[0].SourceText, tc.wantFirst)
			}
		})
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := history.NewMemoryStore(1000)
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				_ = store.Append(ctx, history.Entry{
					Engine:     "SENDER",
					SourceText: fmt.Sprintf("g%d-u%d", g, i),
				})
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	if store.Len() != 400 {
		t.Fatalf("Len = %d, want 400", store.Len())
	}
}
