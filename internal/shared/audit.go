package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the authentication flows.
const (
	AuditAccountRegister = "account.register"
	AuditAccountVerify   = "account.verify"
	AuditAccountClose    = "account.close"
	AuditSessionLogin    = "session.login"
	AuditSessionLogout   = "session.logout"
	AuditPasswordReset   = "password.reset"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	AccountID int64
	Action    string
	Meta      map[string]any
	At        time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry. A nil receiver is a no-op so callers can
// audit opportunistically.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return nil
	}
	if log.Action == "" {
		return errors.New("audit log requires an action")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (account_id, action, meta, at) VALUES ($1, $2, $3, $4)`,
		log.AccountID, log.Action, metaJSON, at)
	return err
}
