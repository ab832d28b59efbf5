package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store   *repository.Store
	owner   *models.User
	renter  *models.User
	other   *models.User
	machine *models.Machine
}

func newFixture(t *testing.T, rate float64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	mkUser := func(name, email string, role models.Role) *models.User {
		u := &models.User{Name: name, Email: email, Role: role}
		if err := store.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", email, err)
		}
		return u
	}
	f := &fixture{
		store:  store,
		owner:  mkUser("Ravi", "ravi@example.com", models.RoleOwner),
		renter: mkUser("Asha", "asha@example.com", models.RoleRenter),
		other:  mkUser("Kiran", "kiran@example.com", models.RoleRenter),
	}

	f.machine = &models.Machine{
		OwnerID:     f.owner.ID,
		Name:        "Mahindra 575",
		Type:        models.CategoryTractor,
		Pincode:     "560001",
		RentPerHour: rate,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Machines.Create(ctx, f.machine); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	return f
}

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v error, got %v", kind, err)
	}
}

func (f *fixture) book(t *testing.T, svc *RentalService, renter primitive.ObjectID, start, end time.Time) *models.Rental {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateRentalInput{
		MachineID: f.machine.ID,
		RenterID:  renter,
		Start:     start,
		End:       end,
	})
	if err != nil {
		t.Fatalf("book %s-%s: %v", start.Format("15:04"), end.Format("15:04"), err)
	}
	return r
}
