package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	assistantpkg "telegpt/pkg/assistant"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	chat_id    BIGINT PRIMARY KEY,
	api_key    TEXT NOT NULL DEFAULT '',
	history    JSONB NOT NULL DEFAULT '[]',
	params     JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectSession = `SELECT api_key, history, params FROM chat_sessions WHERE chat_id = $1`

const upsertSession = `
INSERT INTO chat_sessions (chat_id, api_key, history, params, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (chat_id) DO UPDATE
SET api_key = EXCLUDED.api_key,
    history = EXCLUDED.history,
    params = EXCLUDED.params,
    updated_at = EXCLUDED.updated_at`

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: create schema: %w", assistantpkg.ErrStoreUnavailable, err)
	}
	return nil
}

// Get loads a session. The JSONB columns are decoded by pgx, so a corrupt row
// surfaces as a Scan error.
func (s *Store) Get(ctx context.Context, chatID int64) (assistantpkg.Session, error) {
	session := assistantpkg.Session{ChatID: chatID}
	err := s.db.QueryRow(ctx, selectSession, chatID).Scan(&session.APIKey, &session.Messages, &session.Params)
	if errors.Is(err, pgx.ErrNoRows) {
		return assistantpkg.Session{ChatID: chatID}, nil
	}
	if err != nil {
		return assistantpkg.Session{}, fmt.Errorf("%w: get chat %d: %w", assistantpkg.ErrStoreUnavailable, chatID, err)
	}
	return session, nil
}

func (s *Store) Put(ctx context.Context, session assistantpkg.Session) error {
	messages := session.Messages
	if messages == nil {
		messages = make([]assistantpkg.Message, 0)
	}

	if _, err := s.db.Exec(ctx, upsertSession, session.ChatID, session.APIKey, messages, session.Params); err != nil {
		return fmt.Errorf("%w: put chat %d: %w", assistantpkg.ErrStoreUnavailable, session.ChatID, err)
	}
	return nil
}
