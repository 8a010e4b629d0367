package auth

import (
	"context"
	"time"

	"github.com/haven-id/haven-id/internal/platform/db"
)

// SessionStore persists login-session metadata in Postgres for auditing and
// bulk revocation bookkeeping. The authoritative session state lives in
// Redis; these rows record which sessions an account has held.
type SessionStore interface {
	Create(ctx context.Context, q db.Querier, id string, accountID int64, expiresAt time.Time, ip, ua string) error
	Delete(ctx context.Context, q db.Querier, id string) error
	DeleteForAccount(ctx context.Context, q db.Querier, accountID int64) error
}

// SessionRepository implements SessionStore using PostgreSQL.
type SessionRepository struct{}

// NewSessionRepository constructs a PostgreSQL session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

// Create persists a new login session.
func (r *SessionRepository) Create(ctx context.Context, q db.Querier, id string, accountID int64, expiresAt time.Time, ip, ua string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, accountID, time.Now().UTC(), expiresAt.UTC(), ip, ua)
	return err
}

// Delete removes a session record.
func (r *SessionRepository) Delete(ctx context.Context, q db.Querier, id string) error {
	_, err := q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteForAccount removes every session record for an account.
func (r *SessionRepository) DeleteForAccount(ctx context.Context, q db.Querier, accountID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	return err
}

var _ SessionStore = (*SessionRepository)(nil)
