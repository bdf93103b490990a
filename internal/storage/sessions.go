package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domerrors "github.com/kewalaka/muffinbot/internal/errors"
	"github.com/kewalaka/muffinbot/internal/session"
)

// GetSession loads the session for chatID. An unknown chatID yields the zero
// session and no error.
func (db *DB) GetSession(ctx context.Context, chatID string) (session.Session, error) {
	query := `SELECT user_name, welcomed, awaiting_name, updated_at FROM sessions WHERE chat_id = ?`

	var (
		s         session.Session
		updatedAt int64
	)
	err := db.reader.QueryRowContext(ctx, query, chatID).Scan(&s.UserName, &s.Welcomed, &s.AwaitingName, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return s, nil
}

// PutSession upserts the session for chatID.
func (db *DB) PutSession(ctx context.Context, chatID string, s session.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (chat_id, user_name, welcomed, awaiting_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			user_name = excluded.user_name,
			welcomed = excluded.welcomed,
			awaiting_name = excluded.awaiting_name,
			updated_at = excluded.updated_at
	`
	_, err := db.writer.ExecContext(ctx, query, chatID, s.UserName, s.Welcomed, s.AwaitingName, db.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteStaleSessions removes sessions not updated since cutoff and returns
// how many were removed.
func (db *DB) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.writer.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}
	return res.RowsAffected()
}

// CountSessions returns the number of stored sessions.
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// SessionStore adapts DB to session.Store. Failures are reported as
// StoreError so callers can match ErrStoreUnavailable.
type SessionStore struct {
	db *DB
}

// NewSessionStore returns a session.Store backed by db.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get implements session.Store.
func (s *SessionStore) Get(ctx context.Context, key string) (session.Session, error) {
	sess, err := s.db.GetSession(ctx, key)
	if err != nil {
		return session.Session{}, domerrors.NewStoreError("get", key, err)
	}
	return sess, nil
}

// Put implements session.Store.
func (s *SessionStore) Put(ctx context.Context, key string, sess session.Session) error {
	if err := s.db.PutSession(ctx, key, sess); err != nil {
		return domerrors.NewStoreError("put", key, err)
	}
	return nil
}

// DeleteStale removes sessions older than cutoff.
func (s *SessionStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.db.DeleteStaleSessions(ctx, cutoff)
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	return s.db.CountSessions(ctx)
}

var _ session.Store = (*SessionStore)(nil)
