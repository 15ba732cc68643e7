// Package postgres provides a PostgreSQL-backed [history.Store].
//
// The store keeps one row per translated utterance in the utterances table,
// with a GIN full-text index over the source and translated text. The FTS
// configuration is 'simple' rather than 'english' because stored text spans
// every language Parley translates.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Append(ctx, entry)
//	recent, _ := store.Recent(ctx, 20)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id                TEXT         PRIMARY KEY,
    engine            TEXT         NOT NULL,
    source_lang       TEXT         NOT NULL DEFAULT '',
    target_lang       TEXT         NOT NULL DEFAULT '',
    source_text       TEXT         NOT NULL,
    translated_text   TEXT         NOT NULL,
    stt_ns            BIGINT       NOT NULL DEFAULT 0,
    mt_ns             BIGINT       NOT NULL DEFAULT 0,
    tts_first_byte_ns BIGINT       NOT NULL DEFAULT 0,
    total_ns          BIGINT       NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_created_at
    ON utterances (created_at);

CREATE INDEX IF NOT EXISTS idx_utterances_engine
    ON utterances (engine);

CREATE INDEX IF NOT EXISTS idx_utterances_fts
    ON utterances USING GIN (to_tsvector('simple', source_text || ' ' || translated_text));
`

// Migrate creates the utterances table and its indexes if they do not exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUtterances); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
