package model

import "time"

// SlotPrecision is the granularity of a bookable slot. Instants are truncated to it before
// admission, conflict detection and persistence, so two requests inside the same minute
// target the same slot.
const SlotPrecision = time.Minute

type Appointment struct {
	ID         string
	OwnerID    string
	DateTime   time.Time
	Service    string
	ClientName string
	Attribute  string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeSlot truncates t to SlotPrecision in UTC.
func NormalizeSlot(t time.Time) time.Time {
	return t.UTC().Truncate(SlotPrecision)
}
