package services

import (
	"context"
	"sync"
	"testing"

	"github.com/dcode-github/agrirent/backend/models"
)

func TestCreateRentalPricesAndRejectsOverlap(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	first := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))
	if first.TotalHours != 2 || first.TotalPrice != 100 {
		t.Fatalf("expected 2h for 100, got %vh for %v", first.TotalHours, first.TotalPrice)
	}
	if first.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}
	if first.OwnerID != f.owner.ID {
		t.Fatalf("owner not denormalised onto rental")
	}

	_, err := svc.Create(ctx, CreateRentalInput{MachineID: f.machine.ID, RenterID: f.other.ID, Start: at(11, 0), End: at(13, 0)})
	assertKind(t, err, ErrRule)

	if _, err := svc.Transition(ctx, first.ID, f.owner.ID, models.StatusActive); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = svc.Create(ctx, CreateRentalInput{MachineID: f.machine.ID, RenterID: f.other.ID, Start: at(11, 0), End: at(13, 0)})
	assertKind(t, err, ErrRule)
}

func TestCreateRentalAllowsBackToBack(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())

	f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))
	f.book(t, svc, f.other.ID, at(12, 0), at(14, 0))
	f.book(t, svc, f.other.ID, at(8, 0), at(10, 0))
}

func TestCreateRentalRoundsUpToTenthOfHour(t *testing.T) {
	f := newFixture(t, 100)
	svc := NewRentalService(f.store, NewLocalLocker())

	r := f.book(t, svc, f.renter.ID, at(10, 0), at(11, 15))
	if r.TotalHours != 1.3 || r.TotalPrice != 130 {
		t.Fatalf("expected 1.3h for 130, got %vh for %v", r.TotalHours, r.TotalPrice)
	}
}

func TestCreateRentalValidation(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateRentalInput
		kind error
	}{
		{"own listing", CreateRentalInput{MachineID: f.machine.ID, RenterID: f.owner.ID, Start: at(10, 0), End: at(11, 0)}, ErrRule},
		{"end before start", CreateRentalInput{MachineID: f.machine.ID, RenterID: f.renter.ID, Start: at(11, 0), End: at(10, 0)}, ErrValidation},
		{"empty interval", CreateRentalInput{MachineID: f.machine.ID, RenterID: f.renter.ID, Start: at(10, 0), End: at(10, 0)}, ErrValidation},
		{"unknown machine", CreateRentalInput{MachineID: f.owner.ID, RenterID: f.renter.ID, Start: at(10, 0), End: at(11, 0)}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestConcurrentBookingsOnlyOneWins(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateRentalInput{MachineID: f.machine.ID, RenterID: f.renter.ID, Start: at(10, 0), End: at(12, 0)})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly one booking to succeed, got %d", success)
	}
}

func TestTransitions(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	r := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))

	_, err := svc.Transition(ctx, r.ID, f.renter.ID, models.StatusActive)
	assertKind(t, err, ErrForbidden)
	_, err = svc.Transition(ctx, r.ID, f.other.ID, models.StatusCancelled)
	assertKind(t, err, ErrForbidden)

	active, err := svc.Transition(ctx, r.ID, f.owner.ID, models.StatusActive)
	if err != nil || active.Status != models.StatusActive {
		t.Fatalf("approve: %v %v", active, err)
	}
	_, err = svc.Transition(ctx, r.ID, f.owner.ID, models.StatusCancelled)
	assertKind(t, err, ErrForbidden)

	done, err := svc.Transition(ctx, r.ID, f.owner.ID, models.StatusCompleted)
	if err != nil || done.Status != models.StatusCompleted {
		t.Fatalf("complete: %v %v", done, err)
	}
	_, err = svc.Transition(ctx, r.ID, f.renter.ID, models.StatusCancelled)
	assertKind(t, err, ErrRule)

	c := f.book(t, svc, f.renter.ID, at(14, 0), at(15, 0))
	if _, err := svc.Transition(ctx, c.ID, f.renter.ID, models.StatusCancelled); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	_, err = svc.Transition(ctx, c.ID, f.owner.ID, models.StatusActive)
	assertKind(t, err, ErrRule)
}

func TestCompleteRequiresActive(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())

	r := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))
	_, err := svc.Transition(context.Background(), r.ID, f.owner.ID, models.StatusCompleted)
	assertKind(t, err, ErrRule)
}

func TestApprovalRechecksActiveBookings(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	b := f.book(t, svc, f.other.ID, at(11, 0), at(13, 0))
	if _, err := svc.Transition(ctx, b.ID, f.owner.ID, models.StatusActive); err != nil {
		t.Fatalf("approve b: %v", err)
	}

	// a conflicting pending row written around the booking engine
	c := &models.Rental{
		MachineID: f.machine.ID, RenterID: f.renter.ID, OwnerID: f.owner.ID,
		StartTime: at(12, 0), EndTime: at(14, 0), Status: models.StatusPending,
	}
	if err := f.store.Rentals.Create(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := svc.Transition(ctx, c.ID, f.owner.ID, models.StatusActive)
	assertKind(t, err, ErrRule)

	if _, err := svc.Transition(ctx, c.ID, f.owner.ID, models.StatusCancelled); err != nil {
		t.Fatalf("deny: %v", err)
	}
}

func TestExtend(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	r := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))

	_, err := svc.Extend(ctx, r.ID, f.renter.ID, 1, 500)
	assertKind(t, err, ErrRule)

	if _, err := svc.Transition(ctx, r.ID, f.owner.ID, models.StatusActive); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = svc.Extend(ctx, r.ID, f.renter.ID, 0, 500)
	assertKind(t, err, ErrValidation)

	// a later booking starting the next day blocks a two-day extension
	next := f.book(t, svc, f.other.ID, at(12, 0).AddDate(0, 0, 1), at(14, 0).AddDate(0, 0, 1))
	_, err = svc.Extend(ctx, r.ID, f.renter.ID, 2, 500)
	assertKind(t, err, ErrRule)

	if _, err := svc.Transition(ctx, next.ID, f.other.ID, models.StatusCancelled); err != nil {
		t.Fatalf("cancel next: %v", err)
	}
	ext, err := svc.Extend(ctx, r.ID, f.renter.ID, 2, 500)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !ext.EndTime.Equal(at(12, 0).AddDate(0, 0, 2)) {
		t.Fatalf("unexpected end %v", ext.EndTime)
	}
	if ext.TotalPrice != 1100 {
		t.Fatalf("expected price 100+2*500=1100, got %v", ext.TotalPrice)
	}
	if ext.TotalHours != 50 {
		t.Fatalf("expected 2+48 hours, got %v", ext.TotalHours)
	}
}

func TestBookedSlotsOnlyActive(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	a := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))
	f.book(t, svc, f.other.ID, at(13, 0), at(14, 0))
	if _, err := svc.Transition(ctx, a.ID, f.owner.ID, models.StatusActive); err != nil {
		t.Fatalf("approve: %v", err)
	}

	slots, err := svc.BookedSlots(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != a.ID {
		t.Fatalf("expected only the active booking, got %+v", slots)
	}
}

func TestRenterAndOwnerViews(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	r := f.book(t, svc, f.renter.ID, at(10, 0), at(12, 0))

	mine, err := svc.ForRenter(ctx, f.renter.ID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("for renter: %v %v", mine, err)
	}
	if mine[0].Machine == nil || mine[0].Machine.Name != f.machine.Name {
		t.Fatalf("machine not populated: %+v", mine[0].Machine)
	}
	if mine[0].Owner == nil || mine[0].Owner.Name != f.owner.Name {
		t.Fatalf("owner not populated: %+v", mine[0].Owner)
	}

	ids, err := svc.RentalIDsForRenter(ctx, f.renter.ID)
	if err != nil || len(ids) != 1 || ids[0] != r.ID {
		t.Fatalf("rental ids: %v %v", ids, err)
	}

	pending, err := svc.ForOwner(ctx, f.owner.ID, models.StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("owner pending: %v %v", pending, err)
	}
	active, err := svc.ForOwner(ctx, f.owner.ID, models.StatusActive)
	if err != nil || len(active) != 0 {
		t.Fatalf("owner active: %v %v", active, err)
	}
}

func TestOwnerEarnings(t *testing.T) {
	f := newFixture(t, 50)
	svc := NewRentalService(f.store, NewLocalLocker())
	ctx := context.Background()

	for _, h := range []int{8, 12} {
		r := f.book(t, svc, f.renter.ID, at(h, 0), at(h+2, 0))
		if _, err := svc.Transition(ctx, r.ID, f.owner.ID, models.StatusActive); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if _, err := svc.Transition(ctx, r.ID, f.owner.ID, models.StatusCompleted); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	f.book(t, svc, f.renter.ID, at(16, 0), at(17, 0))

	earnings, err := svc.OwnerEarnings(ctx, f.owner.ID)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if earnings.TotalEarnings != 200 || len(earnings.CompletedRentals) != 2 {
		t.Fatalf("unexpected earnings %+v", earnings)
	}
	if !earnings.CompletedRentals[0].EndTime.After(earnings.CompletedRentals[1].EndTime) {
		t.Fatalf("completed rentals not sorted by end time desc")
	}
}
