package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

// MemoryRepository keeps appointments in process. It enforces the same one-appointment-per-
// instant rule as the appointments table.
type MemoryRepository struct {
	mu    sync.Mutex
	now   func() time.Time
	byID  map[string]model.Appointment
	slots map[int64]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:   time.Now,
		byID:  make(map[string]model.Appointment),
		slots: make(map[int64]string),
	}
}

func slotKey(t time.Time) int64 {
	return model.NormalizeSlot(t).Unix()
}

func (r *MemoryRepository) Create(_ context.Context, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt.DateTime = model.NormalizeSlot(appt.DateTime)
	key := slotKey(appt.DateTime)
	if _, taken := r.slots[key]; taken {
		return ErrSlotTaken
	}
	now := r.now().UTC()
	appt.ID = uuid.NewString()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.byID[appt.ID] = *appt
	r.slots[key] = appt.ID
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (r *MemoryRepository) FindByExactTime(_ context.Context, at time.Time, excludeID string) (model.Appointment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.slots[slotKey(at)]
	if !ok || id == excludeID {
		return model.Appointment{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepository) FindMany(_ context.Context, f Filter) ([]model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Appointment
	for _, appt := range r.byID {
		if f.matches(appt) {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DateTime.After(out[j].DateTime)
	})
	return out, nil
}

// Update never changes the owner or the status; UpdateStatus owns status changes.
func (r *MemoryRepository) Update(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[appt.ID]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	appt.DateTime = model.NormalizeSlot(appt.DateTime)
	newKey := slotKey(appt.DateTime)
	if holder, taken := r.slots[newKey]; taken && holder != appt.ID {
		return model.Appointment{}, ErrSlotTaken
	}

	delete(r.slots, slotKey(current.DateTime))
	r.slots[newKey] = appt.ID
	appt.OwnerID = current.OwnerID
	appt.Status = current.Status
	appt.CreatedAt = current.CreatedAt
	appt.UpdatedAt = r.now().UTC()
	r.byID[appt.ID] = appt
	return appt, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, from, to model.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok || appt.Status != from {
		return false, nil
	}
	appt.Status = to
	appt.UpdatedAt = r.now().UTC()
	r.byID[id] = appt
	return true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byID, id)
	delete(r.slots, slotKey(appt.DateTime))
	return true, nil
}

func (r *MemoryRepository) Count(_ context.Context, f Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, appt := range r.byID {
		if f.matches(appt) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DistinctOwners(_ context.Context, f Filter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	var owners []string
	for _, appt := range r.byID {
		if !f.matches(appt) {
			continue
		}
		if _, ok := seen[appt.OwnerID]; ok {
			continue
		}
		seen[appt.OwnerID] = struct{}{}
		owners = append(owners, appt.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}
