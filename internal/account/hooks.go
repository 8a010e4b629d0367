package account

import (
	"context"

	"github.com/haven-id/haven-id/internal/platform/db"
)

// HookPoint names a moment in the account lifecycle where extensions may
// observe or veto the operation.
type HookPoint string

const (
	BeforeCreate HookPoint = "before_create"
	AfterCreate  HookPoint = "after_create"
	BeforeClose  HookPoint = "before_close"
	AfterClose   HookPoint = "after_close"
)

// HookContext carries the state a callback may inspect or mutate. Tx is the
// surrounding transaction for pre-hooks and nil for post-commit hooks.
type HookContext struct {
	Account *Account
	Fields  map[string]string
	Tx      db.Querier
}

// HookFunc is a lifecycle callback. Returning an error from a pre-hook aborts
// the operation before anything is persisted.
type HookFunc func(ctx context.Context, hc *HookContext) error

// Hooks is an ordered registry of lifecycle callbacks. Callbacks run in
// registration order; the first error stops the chain.
type Hooks struct {
	callbacks map[HookPoint][]HookFunc
}

// NewHooks returns an empty registry.
func NewHooks() *Hooks {
	return &Hooks{callbacks: make(map[HookPoint][]HookFunc)}
}

// Register appends fn to the callbacks for point.
func (h *Hooks) Register(point HookPoint, fn HookFunc) {
	if fn == nil {
		return
	}
	h.callbacks[point] = append(h.callbacks[point], fn)
}

// Dispatch invokes the callbacks registered for point in order, returning the
// first failure.
func (h *Hooks) Dispatch(ctx context.Context, point HookPoint, hc *HookContext) error {
	if h == nil {
		return nil
	}
	for _, fn := range h.callbacks[point] {
		if err := fn(ctx, hc); err != nil {
			return err
		}
	}
	return nil
}
