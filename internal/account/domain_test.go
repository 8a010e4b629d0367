package account_test

import (
	"testing"

	"github.com/haven-id/haven-id/internal/account"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to account.Status
		want     bool
	}{
		{account.StatusUnverified, account.StatusVerified, true},
		{account.StatusUnverified, account.StatusClosed, true},
		{account.StatusVerified, account.StatusClosed, true},
		{account.StatusVerified, account.StatusUnverified, false},
		{account.StatusClosed, account.StatusVerified, false},
		{account.StatusClosed, account.StatusUnverified, false},
		{account.StatusUnverified, account.StatusUnverified, false},
		{account.StatusVerified, account.StatusVerified, false},
		{account.StatusClosed, account.StatusClosed, false},
		{account.Status("bogus"), account.StatusVerified, false},
		{account.StatusUnverified, account.Status("bogus"), false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
