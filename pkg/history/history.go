// Package history defines persistent storage for translated utterances.
//
// Every successfully translated utterance produces one [Entry] carrying the
// recognized text, its translation, and the per-stage latencies measured by
// the pipeline. Stores are append-only; entries are never updated.
//
// Two implementations ship with Parley: [MemoryStore], a bounded in-process
// ring used when no database is configured, and the PostgreSQL store in the
// postgres subpackage for durable cross-session history.
//
// Every implementation must be safe for concurrent use. Both translation
// directions write to the same store.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one translated utterance.
type Entry struct {
	// ID uniquely identifies the entry. Stores assign a fresh UUID when the
	// caller leaves it zero.
	ID uuid.UUID

	// Engine names the pipeline that produced the entry, "SENDER" or
	// "RECEIVER".
	Engine string

	// SourceLang is the ISO 639-1 code of the recognized language.
	SourceLang string

	// TargetLang is the ISO 639-1 code of the translation language.
	TargetLang string

	// SourceText is the transcript as recognized.
	SourceText string

	// TranslatedText is the translation that was synthesized.
	TranslatedText string

	// STT is the speech-to-text latency.
	STT time.Duration

	// MT is the machine-translation latency.
	MT time.Duration

	// TTSFirstByte is the delay until the first synthesized audio chunk.
	TTSFirstByte time.Duration

	// Total is the end-to-end latency from segment close to first audio.
	Total time.Duration

	// CreatedAt is when the entry was recorded. Stores set it to the
	// current time when the caller leaves it zero.
	CreatedAt time.Time
}

// SearchOpts narrows a text search over stored entries. All non-zero fields
// are applied as AND conditions.
type SearchOpts struct {
	// Engine restricts results to one pipeline ("SENDER" or "RECEIVER").
	// An empty string matches both.
	Engine string

	// After filters entries recorded after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters entries recorded before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// Store is an append-only log of translated utterances.
//
// Entries are returned in chronological order (oldest first) unless
// otherwise specified. Implementations must be safe for concurrent use.
type Store interface {
	// Append records an entry. A zero ID or CreatedAt is filled in by the
	// store. Returns an error only on persistent storage failure.
	Append(ctx context.Context, entry Entry) error

	// Recent returns the most recent limit entries in chronological order.
	// A limit of 0 or less applies the implementation's default. Returns an
	// empty (non-nil) slice when the store is empty.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Search matches query against both source and translated text.
	// opts refines the result set by engine or time range. Returns an
	// empty (non-nil) slice when no entries match.
	Search(ctx context.Context, query string, opts SearchOpts) ([]Entry, error)
}
