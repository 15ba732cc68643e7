package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultCapacity bounds a MemoryStore when the caller does not choose one.
const defaultCapacity = 256

// defaultRecentLimit is applied by Recent when limit is 0 or negative.
const defaultRecentLimit = 50

// MemoryStore is a bounded in-process [Store]. When the capacity is reached,
// appending evicts the oldest entry. It is the store used when no database
// is configured, and doubles as the test store.
type MemoryStore struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
}

// Compile-time interface assertion.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most capacity entries.
// A capacity of 0 or less selects the default of 256.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{cap: capacity}
}

// Append implements [Store]. The oldest entry is evicted once the store is
// at capacity.
func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > s.cap {
		// Shift rather than re-slice so the evicted entry can be collected.
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	return nil
}

// Recent implements [Store].
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Entry, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out, nil
}

// Search implements [Store]. Matching is a case-insensitive substring test
// against both the source and the translated text.
func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOpts) ([]Entry, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Entry{}
	for _, e := range s.entries {
		if opts.Engine != "" && e.Engine != opts.Engine {
			continue
		}
		if !opts.After.IsZero() && !e.CreatedAt.After(opts.After) {
			continue
		}
		if !opts.Before.IsZero() && !e.CreatedAt.Before(opts.Before) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.SourceText), needle) &&
			!strings.Contains(strings.ToLower(e.TranslatedText), needle) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
