package model

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// OpenStatuses are the statuses of appointments that still need the salon's attention.
var OpenStatuses = []Status{StatusPending, StatusInProgress, StatusConfirmed}

// Valid reports whether s belongs to the lifecycle vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Step is the position of s along the lifecycle; -1 for unknown statuses.
func (s Status) Step() int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next never goes backwards.
// Staying on the same status is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.Step() >= s.Step()
}

// Rank orders statuses for listings: pending first, then in_progress, confirmed, completed,
// and anything unrecognised last. Unlike Step, in_progress sorts above confirmed.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusConfirmed:
		return 2
	case StatusCompleted:
		return 3
	}
	return 4
}
