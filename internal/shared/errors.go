package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Unknown email, wrong
	// password and closed account all map here so responses never reveal
	// whether a login exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateLogin indicates the email is already registered.
	ErrDuplicateLogin = errors.New("login already registered")
	// ErrAccountNotVerified rejects a correct credential on an account that
	// has not consumed its verification link yet.
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrTokenNotFound indicates an unknown or already consumed token.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired indicates the token existed but its lifetime has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidTransition is a programming error: an account status update
	// attempted to move backwards through the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// ValidationError is a user-correctable, field-scoped failure. Lifecycle
// pre-hooks return it to abort an operation before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsUserFacing reports whether err belongs to the user-correctable taxonomy
// rather than being an internal failure worth an error-level log.
func IsUserFacing(err error) bool {
	if _, ok := AsValidationError(err); ok {
		return true
	}
	return errors.Is(err, ErrDuplicateLogin) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrAccountNotVerified) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNotFound)
}
