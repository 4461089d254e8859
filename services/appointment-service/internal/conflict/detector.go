package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

// SlotFinder looks up the appointment holding an exact slot.
type SlotFinder interface {
	FindByExactTime(ctx context.Context, at time.Time, excludeID string) (model.Appointment, bool, error)
}

// Detector reports exact-slot collisions on the single shared calendar. Instants are compared
// at model.SlotPrecision, so 10:00:00 and 10:00:59 are the same slot.
type Detector struct {
	finder SlotFinder
}

func NewDetector(finder SlotFinder) *Detector {
	return &Detector{finder: finder}
}

// HasConflict reports whether another appointment already holds the slot of at. excludeID is
// the appointment being moved, which never conflicts with itself.
func (d *Detector) HasConflict(ctx context.Context, at time.Time, excludeID string) (bool, error) {
	_, found, err := d.finder.FindByExactTime(ctx, model.NormalizeSlot(at), excludeID)
	if err != nil {
		return false, fmt.Errorf("conflict lookup: %w", err)
	}
	return found, nil
}
