package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/shared"
	"github.com/haven-id/haven-id/internal/token"
)

// TokenIssuer is the slice of the token engine the account lifecycle needs.
type TokenIssuer interface {
	Issue(ctx context.Context, q db.Querier, accountID int64, purpose token.Purpose, ttl time.Duration) (string, error)
	Consume(ctx context.Context, q db.Querier, raw string, purpose token.Purpose) (int64, error)
	DeleteAllForAccount(ctx context.Context, q db.Querier, accountID int64) error
}

// Service wraps credential-store business rules: registration, credential
// checks and account closure, with lifecycle hooks at each step.
type Service struct {
	runner    db.TxRunner
	store     Store
	tokens    TokenIssuer
	hooks     *Hooks
	logger    *slog.Logger
	verifyTTL time.Duration
}

// NewService constructs a new Service.
func NewService(runner db.TxRunner, store Store, tokens TokenIssuer, hooks *Hooks, logger *slog.Logger, verifyTTL time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if hooks == nil {
		hooks = NewHooks()
	}
	return &Service{
		runner:    runner,
		store:     store,
		tokens:    tokens,
		hooks:     hooks,
		logger:    logger,
		verifyTTL: verifyTTL,
	}
}

// Hooks exposes the lifecycle registry so extensions can attach callbacks.
func (s *Service) Hooks() *Hooks {
	return s.hooks
}

// Registration is the result of a successful Register call.
type Registration struct {
	Account *Account
	// VerificationToken is the raw single-use token to deliver out of band.
	VerificationToken string
}

// Register creates a new unverified account. BeforeCreate hooks run inside
// the transaction and may abort it before anything is persisted; the
// verification token is issued in the same transaction as the account row.
// AfterCreate hooks run once the transaction has committed and their failures
// never undo the created account.
func (s *Service) Register(ctx context.Context, email, password string, fields map[string]string) (*Registration, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]string)
	}

	hc := &HookContext{Fields: fields}
	var reg Registration
	err = s.runner.RunTx(ctx, func(q db.Querier) error {
		hc.Tx = q
		if err := s.hooks.Dispatch(ctx, BeforeCreate, hc); err != nil {
			return err
		}
		acct, err := s.store.Create(ctx, q, email, string(hash))
		if err != nil {
			return err
		}
		hc.Account = acct
		reg.Account = acct
		raw, err := s.tokens.Issue(ctx, q, acct.ID, token.PurposeVerify, s.verifyTTL)
		if err != nil {
			return err
		}
		reg.VerificationToken = raw
		return nil
	})
	if err != nil {
		return nil, err
	}

	hc.Tx = nil
	if err := s.hooks.Dispatch(ctx, AfterCreate, hc); err != nil {
		s.logger.Warn("after-create hook failed",
			slog.Int64("account_id", reg.Account.ID), slog.Any("error", err))
	}
	return &reg, nil
}

// Authenticate validates email/password credentials. Unknown email, wrong
// password and a closed account all return ErrInvalidCredentials; a correct
// credential on an unverified account returns ErrAccountNotVerified.
// Infrastructure failures pass through untouched.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	var acct *Account
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		found, err := s.store.FindByEmail(ctx, q, email)
		if err != nil {
			return err
		}
		acct = found
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if acct.Status == StatusClosed {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if acct.Status == StatusUnverified {
		return nil, shared.ErrAccountNotVerified
	}
	return acct, nil
}

// Close moves an account to the closed status. BeforeClose hooks may veto the
// closure; the status change and the removal of outstanding tokens commit
// together. AfterClose hooks run post-commit for dependent-record cleanup.
func (s *Service) Close(ctx context.Context, accountID int64) (*Account, error) {
	hc := &HookContext{}
	err := s.runner.RunTx(ctx, func(q db.Querier) error {
		acct, err := s.store.FindByID(ctx, q, accountID)
		if err != nil {
			return err
		}
		hc.Account = acct
		hc.Tx = q
		if err := s.hooks.Dispatch(ctx, BeforeClose, hc); err != nil {
			return err
		}
		if err := s.store.UpdateStatus(ctx, q, acct.ID, acct.Status, StatusClosed); err != nil {
			return err
		}
		acct.Status = StatusClosed
		return s.tokens.DeleteAllForAccount(ctx, q, acct.ID)
	})
	if err != nil {
		return nil, err
	}

	hc.Tx = nil
	if err := s.hooks.Dispatch(ctx, AfterClose, hc); err != nil {
		s.logger.Warn("after-close hook failed",
			slog.Int64("account_id", hc.Account.ID), slog.Any("error", err))
	}
	return hc.Account, nil
}

// ConfirmPassword checks a password against an already loaded account without
// the status rules Authenticate applies.
func (s *Service) ConfirmPassword(acct *Account, password string) error {
	if acct == nil {
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces credential material for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
