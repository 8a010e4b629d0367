package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haven-id/haven-id/internal/account"
	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/profile"
	"github.com/haven-id/haven-id/internal/shared"
	"github.com/haven-id/haven-id/internal/token"
)

// TokenTTLs configures the lifetime per token purpose.
type TokenTTLs struct {
	Login time.Duration
	Reset time.Duration
}

// Service orchestrates the multi-step authentication flows on top of the
// credential store, the token issuer and the session bookkeeping.
type Service struct {
	runner   db.TxRunner
	accounts *account.Service
	store    account.Store
	profiles profile.Store
	tokens   account.TokenIssuer
	sessions SessionStore
	logger   *slog.Logger
	ttls     TokenTTLs
}

// NewService constructs a new Service.
func NewService(runner db.TxRunner, accounts *account.Service, store account.Store, profiles profile.Store, tokens account.TokenIssuer, sessions SessionStore, logger *slog.Logger, ttls TokenTTLs) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:   runner,
		accounts: accounts,
		store:    store,
		profiles: profiles,
		tokens:   tokens,
		sessions: sessions,
		logger:   logger,
		ttls:     ttls,
	}
}

// Register creates a new account; see account.Service.Register.
func (s *Service) Register(ctx context.Context, email, password string, fields map[string]string) (*account.Registration, error) {
	return s.accounts.Register(ctx, email, password, fields)
}

// Authenticate validates a password credential; see account.Service.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*account.Account, error) {
	return s.accounts.Authenticate(ctx, email, password)
}

// Verify consumes a verification token and marks the account verified. Token
// consumption and the status change commit together or not at all.
func (s *Service) Verify(ctx context.Context, rawToken string) (*account.Account, error) {
	var acct *account.Account
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		accountID, err := s.tokens.Consume(ctx, q, rawToken, token.PurposeVerify)
		if err != nil {
			return err
		}
		if err := s.store.UpdateStatus(ctx, q, accountID, account.StatusUnverified, account.StatusVerified); err != nil {
			return err
		}
		acct, err = s.store.FindByID(ctx, q, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// RequestLoginLink issues a one-time login token for a verified account and
// returns the raw token for delivery. Unknown or ineligible emails return
// ErrNotFound; callers respond identically either way so account existence
// is not revealed.
func (s *Service) RequestLoginLink(ctx context.Context, email string) (string, *account.Account, error) {
	return s.requestToken(ctx, email, token.PurposeLogin, s.ttls.Login)
}

// ConsumeLoginLink consumes a login token and returns the account it belongs
// to, without a password check.
func (s *Service) ConsumeLoginLink(ctx context.Context, rawToken string) (*account.Account, error) {
	var acct *account.Account
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		accountID, err := s.tokens.Consume(ctx, q, rawToken, token.PurposeLogin)
		if err != nil {
			return err
		}
		found, err := s.store.FindByID(ctx, q, accountID)
		if err != nil {
			return err
		}
		if found.Status != account.StatusVerified {
			return shared.ErrAccountNotVerified
		}
		acct = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// RequestPasswordReset issues a reset token for a verified account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, *account.Account, error) {
	return s.requestToken(ctx, email, token.PurposeReset, s.ttls.Reset)
}

// ConfirmPasswordReset consumes a reset token and replaces the account's
// credential material in the same transaction.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) (*account.Account, error) {
	hash, err := account.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	var acct *account.Account
	err = s.runner.RunTx(ctx, func(q db.Querier) error {
		accountID, err := s.tokens.Consume(ctx, q, rawToken, token.PurposeReset)
		if err != nil {
			return err
		}
		if err := s.store.UpdatePasswordHash(ctx, q, accountID, hash); err != nil {
			return err
		}
		acct, err = s.store.FindByID(ctx, q, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// Close confirms the password and closes the account; see account.Service.
func (s *Service) Close(ctx context.Context, accountID int64, password string) (*account.Account, error) {
	var acct *account.Account
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		found, err := s.store.FindByID(ctx, q, accountID)
		if err != nil {
			return err
		}
		acct = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ConfirmPassword(acct, password); err != nil {
		return nil, err
	}
	return s.accounts.Close(ctx, accountID)
}

// Me resolves the current account and its profile.
func (s *Service) Me(ctx context.Context, accountID int64) (*account.Account, *profile.Profile, error) {
	var (
		acct *account.Account
		prof *profile.Profile
	)
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		found, err := s.store.FindByID(ctx, q, accountID)
		if err != nil {
			return err
		}
		acct = found
		p, err := s.profiles.FindByAccount(ctx, q, accountID)
		if err == nil {
			prof = p
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return acct, prof, nil
}

// RecordSession persists the session metadata in Postgres.
func (s *Service) RecordSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error {
	return s.runner.RunTx(ctx, func(q db.Querier) error {
		return s.sessions.Create(ctx, q, id, accountID, expiresAt, ip, ua)
	})
}

// RemoveSession deletes a session record from Postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.runner.RunTx(ctx, func(q db.Querier) error {
		return s.sessions.Delete(ctx, q, id)
	})
}

// RemoveAccountSessions deletes every session record for an account.
func (s *Service) RemoveAccountSessions(ctx context.Context, accountID int64) error {
	return s.runner.RunTx(ctx, func(q db.Querier) error {
		return s.sessions.DeleteForAccount(ctx, q, accountID)
	})
}

func (s *Service) requestToken(ctx context.Context, email string, purpose token.Purpose, ttl time.Duration) (string, *account.Account, error) {
	var (
		raw  string
		acct *account.Account
	)
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		found, err := s.store.FindByEmail(ctx, q, email)
		if err != nil {
			return err
		}
		if found.Status != account.StatusVerified {
			return shared.ErrNotFound
		}
		acct = found
		raw, err = s.tokens.Issue(ctx, q, found.ID, purpose, ttl)
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return raw, acct, nil
}
