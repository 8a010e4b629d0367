package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/haven-id/haven-id/internal/account"
)

func TestHooksDispatchOrder(t *testing.T) {
	hooks := account.NewHooks()
	var calls []string
	hooks.Register(account.BeforeCreate, func(ctx context.Context, hc *account.HookContext) error {
		calls = append(calls, "first")
		return nil
	})
	hooks.Register(account.BeforeCreate, func(ctx context.Context, hc *account.HookContext) error {
		calls = append(calls, "second")
		return nil
	})

	if err := hooks.Dispatch(context.Background(), account.BeforeCreate, &account.HookContext{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("expected registration order, got %v", calls)
	}
}

func TestHooksDispatchStopsAtFirstError(t *testing.T) {
	hooks := account.NewHooks()
	boom := errors.New("boom")
	var secondRan bool
	hooks.Register(account.BeforeClose, func(ctx context.Context, hc *account.HookContext) error {
		return boom
	})
	hooks.Register(account.BeforeClose, func(ctx context.Context, hc *account.HookContext) error {
		secondRan = true
		return nil
	})

	err := hooks.Dispatch(context.Background(), account.BeforeClose, &account.HookContext{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if secondRan {
		t.Fatal("second callback must not run after a failure")
	}
}

func TestHooksDispatchUnregisteredPoint(t *testing.T) {
	hooks := account.NewHooks()
	if err := hooks.Dispatch(context.Background(), account.AfterClose, &account.HookContext{}); err != nil {
		t.Fatalf("dispatch with no callbacks: %v", err)
	}
}
