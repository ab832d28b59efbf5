package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var blocking = []models.RentalStatus{models.StatusPending, models.StatusActive}

func TestMemoryFindOverlapping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	machine := primitive.NewObjectID()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	booked := &models.Rental{MachineID: machine, StartTime: base, EndTime: base.Add(2 * time.Hour), Status: models.StatusPending}
	if err := store.Rentals.Create(ctx, booked); err != nil {
		t.Fatal(err)
	}
	cancelled := &models.Rental{MachineID: machine, StartTime: base.Add(4 * time.Hour), EndTime: base.Add(6 * time.Hour), Status: models.StatusCancelled}
	store.Rentals.Create(ctx, cancelled)

	if _, err := store.Rentals.FindOverlapping(ctx, machine, base.Add(time.Hour), base.Add(3*time.Hour), blocking, primitive.NilObjectID); err != nil {
		t.Errorf("overlap not found: %v", err)
	}
	if _, err := store.Rentals.FindOverlapping(ctx, machine, base.Add(2*time.Hour), base.Add(3*time.Hour), blocking, primitive.NilObjectID); !errors.Is(err, ErrNotFound) {
		t.Errorf("back-to-back reported as overlap: %v", err)
	}
	if _, err := store.Rentals.FindOverlapping(ctx, machine, base.Add(5*time.Hour), base.Add(7*time.Hour), blocking, primitive.NilObjectID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancelled rental blocks the slot: %v", err)
	}
	if _, err := store.Rentals.FindOverlapping(ctx, machine, base, base.Add(time.Hour), blocking, booked.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("excluded rental still reported: %v", err)
	}
}

func TestMemoryUpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := &models.Rental{Status: models.StatusPending}
	store.Rentals.Create(ctx, r)

	if _, err := store.Rentals.UpdateStatus(ctx, r.ID, models.StatusActive, models.StatusCompleted); !errors.Is(err, ErrStale) {
		t.Errorf("stale precondition err = %v", err)
	}
	got, err := store.Rentals.UpdateStatus(ctx, r.ID, models.StatusPending, models.StatusActive)
	if err != nil || got.Status != models.StatusActive {
		t.Fatalf("UpdateStatus = %+v, %v", got, err)
	}
	if _, err := store.Rentals.UpdateStatus(ctx, primitive.NewObjectID(), models.StatusPending, models.StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing rental err = %v", err)
	}
}

func TestMemoryDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Users.Create(ctx, &models.User{Email: "a@farm.in"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Users.Create(ctx, &models.User{Email: " A@Farm.in "}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v", err)
	}
}

func TestMemoryMarkSeen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rental, a, b := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		store.Chats.Create(ctx, &models.ChatMessage{RentalID: rental, SenderID: a, SeenBy: []primitive.ObjectID{a}})
	}

	n, _ := store.Chats.MarkSeen(ctx, rental, b)
	if n != 3 {
		t.Errorf("first MarkSeen changed %d, want 3", n)
	}
	n, _ = store.Chats.MarkSeen(ctx, rental, b)
	if n != 0 {
		t.Errorf("second MarkSeen changed %d, want 0", n)
	}
}
