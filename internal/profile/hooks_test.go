package profile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haven-id/haven-id/internal/account"
	"github.com/haven-id/haven-id/internal/platform/db"
	"github.com/haven-id/haven-id/internal/profile"
	"github.com/haven-id/haven-id/internal/shared"
	_ "github.com/haven-id/haven-id/testing"
)

type memStore struct {
	byAccount map[int64]*profile.Profile
}

func newMemStore() *memStore {
	return &memStore{byAccount: make(map[int64]*profile.Profile)}
}

func (m *memStore) Create(ctx context.Context, q db.Querier, accountID int64, name string) error {
	m.byAccount[accountID] = &profile.Profile{AccountID: accountID, Name: name, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *memStore) FindByAccount(ctx context.Context, q db.Querier, accountID int64) (*profile.Profile, error) {
	p, ok := m.byAccount[accountID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *memStore) DeleteByAccount(ctx context.Context, q db.Querier, accountID int64) error {
	delete(m.byAccount, accountID)
	return nil
}

func TestBeforeCreateRequiresName(t *testing.T) {
	hooks := account.NewHooks()
	profile.RegisterHooks(hooks, newMemStore(), nil)

	for _, name := range []string{"", "   ", "\t\n"} {
		hc := &account.HookContext{Fields: map[string]string{profile.FieldName: name}}
		err := hooks.Dispatch(context.Background(), account.BeforeCreate, hc)
		var verr *shared.ValidationError
		if !errors.As(err, &verr) || verr.Field != profile.FieldName {
			t.Fatalf("name %q: got %v, want validation error on %s", name, err, profile.FieldName)
		}
	}
}

func TestBeforeCreateTrimsName(t *testing.T) {
	hooks := account.NewHooks()
	profile.RegisterHooks(hooks, newMemStore(), nil)

	hc := &account.HookContext{Fields: map[string]string{profile.FieldName: "  Ann  "}}
	if err := hooks.Dispatch(context.Background(), account.BeforeCreate, hc); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if hc.Fields[profile.FieldName] != "Ann" {
		t.Fatalf("name = %q, want trimmed", hc.Fields[profile.FieldName])
	}
}

func TestAfterCreateWritesProfile(t *testing.T) {
	store := newMemStore()
	hooks := account.NewHooks()
	profile.RegisterHooks(hooks, store, nil)

	hc := &account.HookContext{
		Account: &account.Account{ID: 42},
		Fields:  map[string]string{profile.FieldName: "Ann"},
	}
	if err := hooks.Dispatch(context.Background(), account.AfterCreate, hc); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	p, err := store.FindByAccount(context.Background(), nil, 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.Name != "Ann" {
		t.Fatalf("profile name = %q", p.Name)
	}
}

func TestAfterCloseRemovesProfileAndTolerantOfAbsence(t *testing.T) {
	store := newMemStore()
	hooks := account.NewHooks()
	profile.RegisterHooks(hooks, store, nil)

	if err := store.Create(context.Background(), nil, 42, "Ann"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hc := &account.HookContext{Account: &account.Account{ID: 42}}
	if err := hooks.Dispatch(context.Background(), account.AfterClose, hc); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := store.FindByAccount(context.Background(), nil, 42); !errors.Is(err, shared.ErrNotFound) {
		t.Fatal("profile must be removed on closure")
	}

	// Running the closure hook again must not fail.
	if err := hooks.Dispatch(context.Background(), account.AfterClose, hc); err != nil {
		t.Fatalf("repeat dispatch: %v", err)
	}
}
