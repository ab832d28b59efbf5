package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrStale is returned by conditional writes whose precondition no
	// longer holds (for example the status changed underneath).
	ErrStale = errors.New("document changed concurrently")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error)
}

type MachineRepository interface {
	Create(ctx context.Context, m *models.Machine) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Machine, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Machine, error)
	Find(ctx context.Context, f models.MachineFilter) ([]models.Machine, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Machine, error)
	// Update replaces the editable fields of m, scoped to m.OwnerID.
	Update(ctx context.Context, m *models.Machine) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
	// AddRating appends r and recomputes the average in a single atomic
	// write, returning the updated document.
	AddRating(ctx context.Context, id primitive.ObjectID, r models.Rating) (*models.Machine, error)
}

type RentalRepository interface {
	Create(ctx context.Context, r *models.Rental) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Rental, error)
	// FindOverlapping returns the first rental on machineID in one of
	// statuses whose [start,end) intersects the given interval, skipping
	// exclude. It returns ErrNotFound when the slot is free.
	FindOverlapping(ctx context.Context, machineID primitive.ObjectID, start, end time.Time, statuses []models.RentalStatus, exclude primitive.ObjectID) (*models.Rental, error)
	FindByMachine(ctx context.Context, machineID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error)
	FindByRenter(ctx context.Context, renterID primitive.ObjectID) ([]models.Rental, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error)
	// UpdateStatus moves the rental from one status to another only if it
	// is still in from; otherwise ErrStale.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.RentalStatus) (*models.Rental, error)
	// Extend sets a new end and adds to the price while the rental is
	// still active; otherwise ErrStale.
	Extend(ctx context.Context, id primitive.ObjectID, newEnd time.Time, addPrice, addHours float64) (*models.Rental, error)
}

type ChatRepository interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	FindByRental(ctx context.Context, rentalID primitive.ObjectID) ([]models.ChatMessage, error)
	// MarkSeen adds userID to the seen set of every message of the rental
	// that lacks it and returns how many messages changed.
	MarkSeen(ctx context.Context, rentalID, userID primitive.ObjectID) (int64, error)
}

type Store struct {
	Users    UserRepository
	Machines MachineRepository
	Rentals  RentalRepository
	Chats    ChatRepository
}
