package account

import "time"

// Status is the lifecycle state of an account. Transitions only ever move
// forward: unverified -> verified -> closed. An account row is never deleted;
// closure flips the status so dependent records keep a valid reference.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusClosed     Status = "closed"
)

var statusRank = map[Status]int{
	StatusUnverified: 0,
	StatusVerified:   1,
	StatusClosed:     2,
}

// CanTransitionTo reports whether moving from s to next is a forward step.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Account is the authenticating identity record.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
