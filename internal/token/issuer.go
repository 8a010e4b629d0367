package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/shared"
)

// Issuer generates, stores and consumes one-time tokens. At most one live
// token exists per (account, purpose): issuing a new one removes any prior
// token in the same transaction.
type Issuer struct {
	now func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue creates a token for the account and purpose, replacing any previous
// live token of that purpose, and returns the raw value for out-of-band
// delivery. Callers run Issue inside the transaction of the operation the
// token belongs to.
func (i *Issuer) Issue(ctx context.Context, q db.Querier, accountID int64, purpose Purpose, ttl time.Duration) (string, error) {
	raw, hash, err := generate()
	if err != nil {
		return "", err
	}
	if _, err := q.Exec(ctx,
		`DELETE FROM account_tokens WHERE account_id = $1 AND purpose = $2`,
		accountID, purpose); err != nil {
		return "", err
	}
	now := i.now().UTC()
	if _, err := q.Exec(ctx,
		`INSERT INTO account_tokens (account_id, purpose, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		accountID, purpose, hash, now.Add(ttl), now); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume resolves and deletes the token in one step, returning the owning
// account ID. Unknown or already consumed values fail with ErrTokenNotFound;
// an expired token fails with ErrTokenExpired. Expiry is checked here, at
// consumption time; there is no background sweep. Run Consume in the same
// transaction as the mutation the token authorizes so both commit or roll
// back together.
func (i *Issuer) Consume(ctx context.Context, q db.Querier, raw string, purpose Purpose) (int64, error) {
	hash, err := hashRaw(raw)
	if err != nil {
		return 0, shared.ErrTokenNotFound
	}

	var (
		id        int64
		accountID int64
		expiresAt time.Time
	)
	err = q.QueryRow(ctx,
		`SELECT id, account_id, expires_at FROM account_tokens
		 WHERE token_hash = $1 AND purpose = $2 FOR UPDATE`,
		hash, purpose).Scan(&id, &accountID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrTokenNotFound
		}
		return 0, err
	}

	if _, err := q.Exec(ctx, `DELETE FROM account_tokens WHERE id = $1`, id); err != nil {
		return 0, err
	}
	if i.now().After(expiresAt) {
		return 0, shared.ErrTokenExpired
	}
	return accountID, nil
}

// DeleteAllForAccount removes every outstanding token for the account,
// regardless of purpose. Used when an account is closed.
func (i *Issuer) DeleteAllForAccount(ctx context.Context, q db.Querier, accountID int64) error {
	_, err := q.Exec(ctx, `DELETE FROM account_tokens WHERE account_id = $1`, accountID)
	return err
}

// generate returns a fresh raw token and its stored hash. 32 bytes of
// crypto/rand entropy, base64url on the wire, SHA-256 at rest.
func generate() (string, []byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	raw := base64.RawURLEncoding.EncodeToString(b)
	sum := sha256.Sum256([]byte(raw))
	return raw, sum[:], nil
}

// hashRaw converts a presented raw token into its stored hash, rejecting
// values that are not base64url shaped.
func hashRaw(raw string) ([]byte, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}
	if _, err := base64.RawURLEncoding.DecodeString(raw); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(raw))
	return sum[:], nil
}
