package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/shared"
)

// Store defines persistence operations for accounts. Every method takes the
// querier explicitly so the same store works inside and outside a transaction.
type Store interface {
	Create(ctx context.Context, q db.Querier, email, passwordHash string) (*Account, error)
	FindByEmail(ctx context.Context, q db.Querier, email string) (*Account, error)
	FindByID(ctx context.Context, q db.Querier, id int64) (*Account, error)
	UpdateStatus(ctx context.Context, q db.Querier, id int64, from, to Status) error
	UpdatePasswordHash(ctx context.Context, q db.Querier, id int64, passwordHash string) error
}

// Repository implements Store using PostgreSQL.
type Repository struct{}

// NewRepository constructs a PostgreSQL store.
func NewRepository() *Repository {
	return &Repository{}
}

// Create inserts a new unverified account. A unique violation on the email
// index maps to shared.ErrDuplicateLogin.
func (r *Repository) Create(ctx context.Context, q db.Querier, email, passwordHash string) (*Account, error) {
	now := time.Now().UTC()
	acct := &Account{
		Email:        email,
		PasswordHash: passwordHash,
		Status:       StatusUnverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := q.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING id`,
		email, passwordHash, StatusUnverified, now).Scan(&acct.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrDuplicateLogin
		}
		return nil, err
	}
	return acct, nil
}

// FindByEmail fetches an account by its login identifier.
func (r *Repository) FindByEmail(ctx context.Context, q db.Querier, email string) (*Account, error) {
	return r.scanOne(q.QueryRow(ctx,
		`SELECT id, email, password_hash, status, created_at, updated_at
		 FROM accounts WHERE lower(email) = lower($1)`, email))
}

// FindByID fetches an account by primary key.
func (r *Repository) FindByID(ctx context.Context, q db.Querier, id int64) (*Account, error) {
	return r.scanOne(q.QueryRow(ctx,
		`SELECT id, email, password_hash, status, created_at, updated_at
		 FROM accounts WHERE id = $1`, id))
}

// UpdateStatus moves an account from one status to another. Only forward
// transitions are permitted; anything else fails with ErrInvalidTransition.
// The previous status is part of the WHERE clause so a concurrent transition
// also surfaces as ErrInvalidTransition rather than silently overwriting.
func (r *Repository) UpdateStatus(ctx context.Context, q db.Querier, id int64, from, to Status) error {
	if !from.CanTransitionTo(to) {
		return shared.ErrInvalidTransition
	}
	tag, err := q.Exec(ctx,
		`UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

// UpdatePasswordHash replaces the stored credential material.
func (r *Repository) UpdatePasswordHash(ctx context.Context, q db.Querier, id int64, passwordHash string) error {
	tag, err := q.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Account, error) {
	var acct Account
	err := row.Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

var _ Store = (*Repository)(nil)
