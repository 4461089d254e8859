package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

func seed(t *testing.T, repo *MemoryRepository, owner string, at time.Time, status model.Status) model.Appointment {
	t.Helper()
	appt := &model.Appointment{OwnerID: owner, DateTime: at, Service: "haircut", Attribute: "female", Status: status}
	if err := repo.Create(context.Background(), appt); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return *appt
}

func TestMemoryRepositoryRejectsSameSlot(t *testing.T) {
	repo := NewMemoryRepository()
	at := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	seed(t, repo, "owner-1", at, model.StatusPending)

	err := repo.Create(context.Background(), &model.Appointment{OwnerID: "owner-2", DateTime: at.Add(20 * time.Second)})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken for the same minute, got %v", err)
	}
}

func TestMemoryRepositoryUpdateMovesSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	at := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	a := seed(t, repo, "owner-1", at, model.StatusPending)
	b := seed(t, repo, "owner-2", at.Add(time.Hour), model.StatusPending)

	a.DateTime = b.DateTime
	if _, err := repo.Update(ctx, a); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	a.DateTime = at.Add(2 * time.Hour)
	a.OwnerID = "someone-else"
	updated, err := repo.Update(ctx, a)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.OwnerID != "owner-1" {
		t.Fatalf("owner must be immutable, got %s", updated.OwnerID)
	}
	if _, found, _ := repo.FindByExactTime(ctx, at, ""); found {
		t.Fatal("old slot should be free after the move")
	}
	if _, found, _ := repo.FindByExactTime(ctx, a.DateTime, a.ID); found {
		t.Fatal("an appointment must not conflict with itself")
	}
}

func TestMemoryRepositoryUpdateKeepsStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	stale := seed(t, repo, "owner-1", time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC), model.StatusPending)

	if _, err := repo.UpdateStatus(ctx, stale.ID, model.StatusPending, model.StatusConfirmed); err != nil {
		t.Fatalf("update status: %v", err)
	}
	stale.ClientName = "Ana M."
	updated, err := repo.Update(ctx, stale)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusConfirmed || updated.ClientName != "Ana M." {
		t.Fatalf("expected confirmed with the new name, got %+v", updated)
	}
}

func TestMemoryRepositoryFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	day := time.Date(2025, 6, 2, 5, 0, 0, 0, time.UTC)
	seed(t, repo, "owner-1", day, model.StatusPending)
	seed(t, repo, "owner-1", day.Add(3*time.Hour), model.StatusCompleted)
	seed(t, repo, "owner-2", day.Add(24*time.Hour), model.StatusConfirmed)

	n, err := repo.Count(ctx, Filter{From: day, To: day.Add(24 * time.Hour)})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 in the half-open day, got %d (%v)", n, err)
	}

	owners, err := repo.DistinctOwners(ctx, Filter{Statuses: model.OpenStatuses})
	if err != nil {
		t.Fatalf("distinct owners: %v", err)
	}
	if len(owners) != 2 || owners[0] != "owner-1" || owners[1] != "owner-2" {
		t.Fatalf("unexpected owners %v", owners)
	}

	list, err := repo.FindMany(ctx, Filter{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("find many: %v", err)
	}
	if len(list) != 2 || !list[0].DateTime.After(list[1].DateTime) {
		t.Fatalf("expected most recent first, got %+v", list)
	}
}

func TestMemoryRepositoryUpdateStatusRequiresSource(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := seed(t, repo, "owner-1", time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC), model.StatusConfirmed)

	changed, err := repo.UpdateStatus(ctx, a.ID, model.StatusPending, model.StatusConfirmed)
	if err != nil || changed {
		t.Fatalf("expected no change, got %v %v", changed, err)
	}
	changed, err = repo.UpdateStatus(ctx, a.ID, model.StatusConfirmed, model.StatusInProgress)
	if err != nil || !changed {
		t.Fatalf("expected change, got %v %v", changed, err)
	}
	deleted, err := repo.Delete(ctx, a.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v %v", deleted, err)
	}
	if _, err := repo.FindByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
