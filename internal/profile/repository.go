package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/shared"
)

// Store defines persistence operations for profiles.
type Store interface {
	Create(ctx context.Context, q db.Querier, accountID int64, name string) error
	FindByAccount(ctx context.Context, q db.Querier, accountID int64) (*Profile, error)
	DeleteByAccount(ctx context.Context, q db.Querier, accountID int64) error
}

// Repository implements Store using PostgreSQL.
type Repository struct{}

// NewRepository constructs a PostgreSQL store.
func NewRepository() *Repository {
	return &Repository{}
}

// Create inserts the profile row for an account.
func (r *Repository) Create(ctx context.Context, q db.Querier, accountID int64, name string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO profiles (account_id, name, created_at) VALUES ($1, $2, $3)`,
		accountID, name, time.Now().UTC())
	return err
}

// FindByAccount fetches the profile for an account.
func (r *Repository) FindByAccount(ctx context.Context, q db.Querier, accountID int64) (*Profile, error) {
	var p Profile
	err := q.QueryRow(ctx,
		`SELECT account_id, name, created_at FROM profiles WHERE account_id = $1`,
		accountID).Scan(&p.AccountID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// DeleteByAccount removes the profile row. Deleting an absent profile is a
// no-op so closure stays idempotent.
func (r *Repository) DeleteByAccount(ctx context.Context, q db.Querier, accountID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM profiles WHERE account_id = $1`, accountID)
	return err
}

var _ Store = (*Repository)(nil)
