package model

import (
	"testing"
	"time"
)

func TestStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCompleted, true},
		{StatusConfirmed, StatusConfirmed, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusPending, Status("activo"), false},
		{Status("activo"), StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusRankPutsUnknownLast(t *testing.T) {
	order := []Status{StatusPending, StatusInProgress, StatusConfirmed, StatusCompleted, Status("activo")}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("expected %s to rank before %s", order[i-1], order[i])
		}
	}
}

func TestNormalizeSlotDropsSeconds(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)
	in := time.Date(2025, 6, 2, 8, 0, 42, 500, bogota)
	got := NormalizeSlot(in)
	want := time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("NormalizeSlot = %s, want %s", got, want)
	}
}
