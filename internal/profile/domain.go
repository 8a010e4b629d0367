// Package profile holds the non-authentication attributes attached to an
// account. It plugs into the account lifecycle through hooks: the profile row
// is created after an account commits and removed after the account closes,
// and registration is rejected up front when the display name is missing.
package profile

import "time"

// Profile is the one-to-one extension record for an account. It never exists
// without its account.
type Profile struct {
	AccountID int64
	Name      string
	CreatedAt time.Time
}
