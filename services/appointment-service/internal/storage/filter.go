package storage

import (
	"errors"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when a write would put two appointments on the same instant.
	ErrSlotTaken = errors.New("time slot already booked")
)

// Filter selects appointments. Zero fields do not constrain. The time range is half-open:
// From <= date_time < To.
type Filter struct {
	OwnerID   string
	Statuses  []model.Status
	From      time.Time
	To        time.Time
	ExcludeID string
}

func (f Filter) matches(a model.Appointment) bool {
	if f.OwnerID != "" && a.OwnerID != f.OwnerID {
		return false
	}
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && a.DateTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.DateTime.Before(f.To) {
		return false
	}
	return true
}
