package profile

import (
	"context"
	"strings"

	"github.com/haven-id/haven-id/internal/account"
	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/shared"
)

// FieldName is the registration field the profile extension requires.
const FieldName = "name"

// RegisterHooks attaches the profile extension to the account lifecycle:
//
//   - BeforeCreate rejects registrations without a display name, aborting
//     before any row is written.
//   - AfterCreate inserts the profile row once the account has committed.
//   - AfterClose removes the profile row; a missing row is tolerated.
//
// Post-commit hooks run outside the lifecycle transaction, so q is the shared
// pool rather than hc.Tx.
func RegisterHooks(hooks *account.Hooks, store Store, q db.Querier) {
	hooks.Register(account.BeforeCreate, func(ctx context.Context, hc *account.HookContext) error {
		name := strings.TrimSpace(hc.Fields[FieldName])
		if name == "" {
			return &shared.ValidationError{Field: FieldName, Message: "must be present"}
		}
		hc.Fields[FieldName] = name
		return nil
	})

	hooks.Register(account.AfterCreate, func(ctx context.Context, hc *account.HookContext) error {
		return store.Create(ctx, q, hc.Account.ID, hc.Fields[FieldName])
	})

	hooks.Register(account.AfterClose, func(ctx context.Context, hc *account.HookContext) error {
		return store.DeleteByAccount(ctx, q, hc.Account.ID)
	})
}
