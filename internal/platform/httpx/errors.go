// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/haven-id/haven-id/internal/shared"
)

// RespondError maps domain errors to HTTP responses.
//
// Token errors are deliberately collapsed into one message: a caller must not
// be able to distinguish an unknown link from an expired one.
func RespondError(w http.ResponseWriter, err error) {
	if ve, ok := shared.AsValidationError(err); ok {
		Unprocessable(w, FieldErrors{ve.Field: ve.Message})
		return
	}
	switch {
	case errors.Is(err, shared.ErrDuplicateLogin):
		Unprocessable(w, FieldErrors{"email": "already registered"})
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, shared.ErrAccountNotVerified):
		Problem(w, http.StatusForbidden, "Forbidden", "account not verified")
	case errors.Is(err, shared.ErrTokenNotFound), errors.Is(err, shared.ErrTokenExpired):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "link invalid or expired")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
