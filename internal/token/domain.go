// Package token issues and consumes the single-use secrets that authorize
// one account state transition each: email verification, login by link and
// password reset.
package token

import "time"

// Purpose scopes a token to exactly one flow. A token issued for one purpose
// can never be consumed for another.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeLogin  Purpose = "login"
	PurposeReset  Purpose = "reset"
)

// Token is the stored form of a one-time secret. Only the SHA-256 of the raw
// value is persisted; the raw value exists solely in the delivery channel.
type Token struct {
	ID        int64
	AccountID int64
	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
}
