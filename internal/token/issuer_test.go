package token

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/haven-id/haven-id/internal/shared"
	_ "github.com/haven-id/haven-id/testing"
)

type execCall struct {
	sql  string
	args []any
}

// scriptQuerier records Exec calls and serves QueryRow from a canned row.
type scriptQuerier struct {
	execs []execCall
	row   func(sql string, args []any) pgx.Row
}

func (s *scriptQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (s *scriptQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query: " + sql)
}

func (s *scriptQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.row == nil {
		return rowFunc(func(dest ...any) error { return pgx.ErrNoRows })
	}
	return s.row(sql, args)
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestGenerateShape(t *testing.T) {
	raw, hash, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw token is not base64url: %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("raw token carries %d bytes of entropy, want 32", len(b))
	}
	sum := sha256.Sum256([]byte(raw))
	if string(hash) != string(sum[:]) {
		t.Fatal("stored hash is not SHA-256 of the raw value")
	}

	raw2, _, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == raw2 {
		t.Fatal("two generated tokens must differ")
	}
}

func TestHashRawRejectsMalformed(t *testing.T) {
	if _, err := hashRaw(""); err == nil {
		t.Fatal("empty token must be rejected")
	}
	if _, err := hashRaw("not base64!!"); err == nil {
		t.Fatal("non-base64url token must be rejected")
	}

	raw, hash, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, err := hashRaw(raw)
	if err != nil {
		t.Fatalf("hashRaw on valid token: %v", err)
	}
	if string(got) != string(hash) {
		t.Fatal("hashRaw must reproduce the stored hash")
	}
}

func TestIssueReplacesPriorToken(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &Issuer{now: func() time.Time { return fixed }}
	q := &scriptQuerier{}

	raw, err := issuer.Issue(context.Background(), q, 42, PurposeReset, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if raw == "" {
		t.Fatal("expected a raw token")
	}

	if len(q.execs) != 2 {
		t.Fatalf("expected delete then insert, got %d statements", len(q.execs))
	}
	del, ins := q.execs[0], q.execs[1]
	if !strings.HasPrefix(strings.TrimSpace(del.sql), "DELETE") {
		t.Fatalf("first statement is not the delete: %s", del.sql)
	}
	if del.args[0] != int64(42) || del.args[1] != PurposeReset {
		t.Fatalf("delete scoped to %v", del.args)
	}
	if !strings.HasPrefix(strings.TrimSpace(ins.sql), "INSERT") {
		t.Fatalf("second statement is not the insert: %s", ins.sql)
	}

	sum := sha256.Sum256([]byte(raw))
	storedHash, ok := ins.args[2].([]byte)
	if !ok || string(storedHash) != string(sum[:]) {
		t.Fatal("insert must store the SHA-256 of the raw token")
	}
	expires, ok := ins.args[3].(time.Time)
	if !ok || !expires.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("expires_at = %v, want %v", ins.args[3], fixed.Add(time.Hour))
	}
}

func TestConsume(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := &Issuer{now: func() time.Time { return fixed }}

	t.Run("unknown token", func(t *testing.T) {
		q := &scriptQuerier{}
		_, err := issuer.Consume(context.Background(), q, "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVowMTIzNDU", PurposeVerify)
		if !errors.Is(err, shared.ErrTokenNotFound) {
			t.Fatalf("got %v, want ErrTokenNotFound", err)
		}
	})

	t.Run("malformed token never reaches the database", func(t *testing.T) {
		q := &scriptQuerier{row: func(sql string, args []any) pgx.Row {
			t.Fatal("query must not run for a malformed token")
			return nil
		}}
		_, err := issuer.Consume(context.Background(), q, "!!", PurposeVerify)
		if !errors.Is(err, shared.ErrTokenNotFound) {
			t.Fatalf("got %v, want ErrTokenNotFound", err)
		}
	})

	t.Run("valid token is deleted and resolves the account", func(t *testing.T) {
		q := &scriptQuerier{row: func(sql string, args []any) pgx.Row {
			return rowFunc(func(dest ...any) error {
				*(dest[0].(*int64)) = 7
				*(dest[1].(*int64)) = 42
				*(dest[2].(*time.Time)) = fixed.Add(time.Minute)
				return nil
			})
		}}
		accountID, err := issuer.Consume(context.Background(), q, "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVowMTIzNDU", PurposeVerify)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if accountID != 42 {
			t.Fatalf("accountID = %d, want 42", accountID)
		}
		if len(q.execs) != 1 || !strings.HasPrefix(strings.TrimSpace(q.execs[0].sql), "DELETE") {
			t.Fatalf("consume must delete the row, got %v", q.execs)
		}
	})

	t.Run("expired token is single use too", func(t *testing.T) {
		q := &scriptQuerier{row: func(sql string, args []any) pgx.Row {
			return rowFunc(func(dest ...any) error {
				*(dest[0].(*int64)) = 7
				*(dest[1].(*int64)) = 42
				*(dest[2].(*time.Time)) = fixed.Add(-time.Minute)
				return nil
			})
		}}
		_, err := issuer.Consume(context.Background(), q, "QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVowMTIzNDU", PurposeVerify)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("got %v, want ErrTokenExpired", err)
		}
		if len(q.execs) != 1 {
			t.Fatal("expired token must still be deleted")
		}
	})
}
