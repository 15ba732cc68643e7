package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/parley/pkg/history"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store is the PostgreSQL-backed utterance log. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying pool. It should be
// called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}

// Append implements [history.Store].
func (s *Store) Append(ctx context.Context, entry history.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO utterances
		    (id, engine, source_lang, target_lang, source_text, translated_text,
		     stt_ns, mt_ns, tts_first_byte_ns, total_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, q,
		entry.ID.String(),
		entry.Engine,
		entry.SourceLang,
		entry.TargetLang,
		entry.SourceText,
		entry.TranslatedText,
		entry.STT.Nanoseconds(),
		entry.MT.Nanoseconds(),
		entry.TTSFirstByte.Nanoseconds(),
		entry.Total.Nanoseconds(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history store: append: %w", err)
	}
	return nil
}

// Recent implements [history.Store]. It returns the most recent limit
// entries in chronological order (oldest first).
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
		SELECT id, engine, source_lang, target_lang, source_text, translated_text,
		       stt_ns, mt_ns, tts_first_byte_ns, total_ns, created_at
		FROM  (SELECT * FROM utterances ORDER BY created_at DESC LIMIT $1) tail
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	return collectEntries(rows)
}

// Search implements [history.Store]. It performs a PostgreSQL full-text
// search over both text columns and applies optional filters from opts.
//
// The query is passed to plainto_tsquery so no special operator syntax is
// required.
func (s *Store) Search(ctx context.Context, query string, opts history.SearchOpts) ([]history.Entry, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('simple', source_text || ' ' || translated_text) @@ plainto_tsquery('simple', $1)",
	}
	if opts.Engine != "" {
		conditions = append(conditions, "engine = "+next(opts.Engine))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(opts.Before))
	}

	q := "SELECT id, engine, source_lang, target_lang, source_text, translated_text,\n" +
		"       stt_ns, mt_ns, tts_first_byte_ns, total_ns, created_at\n" +
		"FROM   utterances\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY created_at"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history store: search: %w", err)
	}
	return collectEntries(rows)
}

// collectEntries scans pgx rows into a slice of Entry values.
func collectEntries(rows pgx.Rows) ([]history.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var (
			e      history.Entry
			idStr  string
			sttNS  int64
			mtNS   int64
			ttfbNS int64
			totNS  int64
		)
		if err := row.Scan(
			&idStr,
			&e.Engine,
			&e.SourceLang,
			&e.TargetLang,
			&e.SourceText,
			&e.TranslatedText,
			&sttNS,
			&mtNS,
			&ttfbNS,
			&totNS,
			&e.CreatedAt,
		); err != nil {
			return history.Entry{}, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return history.Entry{}, fmt.Errorf("parse id %q: %w", idStr, err)
		}
		e.ID = id
		e.STT = time.Duration(sttNS)
		e.MT = time.Duration(mtNS)
		e.TTSFirstByte = time.Duration(ttfbNS)
		e.Total = time.Duration(totNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries, nil
}
