package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

var blockingStatuses = []models.RentalStatus{models.StatusPending, models.StatusActive}

type party uint8

const (
	partyOwner party = 1 << iota
	partyRenter
)

// transitions lists, per current status, the reachable statuses and which
// party may trigger each move. Completed and cancelled have no exits.
var transitions = map[models.RentalStatus]map[models.RentalStatus]party{
	models.StatusPending: {
		models.StatusActive:    partyOwner,
		models.StatusCancelled: partyOwner | partyRenter,
	},
	models.StatusActive: {
		models.StatusCompleted: partyOwner,
		models.StatusCancelled: partyRenter,
	},
}

var transitionVerb = map[models.RentalStatus]string{
	models.StatusPending:   "reopen",
	models.StatusActive:    "approve",
	models.StatusCompleted: "complete",
	models.StatusCancelled: "cancel",
}

type RentalService struct {
	rentals  repository.RentalRepository
	machines repository.MachineRepository
	users    repository.UserRepository
	locker   Locker
	now      func() time.Time
}

func NewRentalService(store *repository.Store, locker Locker) *RentalService {
	return &RentalService{
		rentals:  store.Rentals,
		machines: store.Machines,
		users:    store.Users,
		locker:   locker,
		now:      time.Now,
	}
}

type CreateRentalInput struct {
	MachineID primitive.ObjectID
	RenterID  primitive.ObjectID
	Start     time.Time
	End       time.Time
}

// Create books [Start,End) on a machine for a renter. The overlap check and
// the insert run under the machine's lock, so two concurrent requests for
// intersecting slots cannot both succeed.
func (s *RentalService) Create(ctx context.Context, in CreateRentalInput) (*models.Rental, error) {
	if !in.End.After(in.Start) {
		return nil, newError(ErrValidation, "End time must be after start")
	}

	machine, err := s.machines.FindByID(ctx, in.MachineID)
	if err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	if machine.OwnerID == in.RenterID {
		return nil, newError(ErrRule, "Owner cannot rent own machine")
	}
	if _, err := s.users.FindByID(ctx, in.RenterID); err != nil {
		return nil, lookupError(err, "Renter not found")
	}

	unlock, err := s.lockMachine(ctx, machine.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.ensureFree(ctx, machine.ID, in.Start, in.End, blockingStatuses, primitive.NilObjectID); err != nil {
		return nil, err
	}

	hours, price := RentalPrice(in.Start, in.End, machine.RentPerHour)
	now := s.now().UTC()
	rental := &models.Rental{
		MachineID:  machine.ID,
		RenterID:   in.RenterID,
		OwnerID:    machine.OwnerID,
		StartTime:  in.Start.UTC(),
		EndTime:    in.End.UTC(),
		TotalHours: hours,
		TotalPrice: price,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.rentals.Create(ctx, rental); err != nil {
		return nil, fmt.Errorf("RentalService.Create: %w", err)
	}
	return rental, nil
}

// Transition moves a rental to status "to" on behalf of actorID.
func (s *RentalService) Transition(ctx context.Context, id, actorID primitive.ObjectID, to models.RentalStatus) (*models.Rental, error) {
	if !to.Valid() {
		return nil, newError(ErrValidation, "Invalid status")
	}

	rental, err := s.rentals.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Rental not found")
	}
	who := partyOf(rental, actorID)
	if who == 0 {
		return nil, newError(ErrForbidden, "You are not part of this rental")
	}

	verb := transitionVerb[to]
	if rental.Status.Terminal() {
		return nil, newError(ErrRule, "Cannot %s a %s rental", verb, rental.Status)
	}
	allowed, ok := transitions[rental.Status][to]
	if !ok {
		return nil, newError(ErrRule, "Cannot %s a %s rental", verb, rental.Status)
	}
	if allowed&who == 0 {
		return nil, newError(ErrForbidden, "You are not allowed to %s this rental", verb)
	}

	if to == models.StatusActive {
		// two pending requests may share a slot; only one can be approved
		unlock, err := s.lockMachine(ctx, rental.MachineID)
		if err != nil {
			return nil, err
		}
		defer unlock()
		active := []models.RentalStatus{models.StatusActive}
		if err := s.ensureFree(ctx, rental.MachineID, rental.StartTime, rental.EndTime, active, rental.ID); err != nil {
			return nil, err
		}
	}

	updated, err := s.rentals.UpdateStatus(ctx, rental.ID, rental.Status, to)
	if err != nil {
		return nil, staleError(err, "RentalService.Transition")
	}
	return updated, nil
}

// Extend pushes the end of an active rental forward by whole days and adds
// days*dailyRate to its price. The added span must not collide with another
// pending or active booking of the machine.
func (s *RentalService) Extend(ctx context.Context, id, actorID primitive.ObjectID, extraDays int, dailyRate float64) (*models.Rental, error) {
	if extraDays < 1 {
		return nil, newError(ErrValidation, "extraDays must be at least 1")
	}
	if dailyRate < 0 {
		return nil, newError(ErrValidation, "dailyRate cannot be negative")
	}

	rental, err := s.rentals.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Rental not found")
	}
	if partyOf(rental, actorID) == 0 {
		return nil, newError(ErrForbidden, "You are not part of this rental")
	}
	if rental.Status != models.StatusActive {
		return nil, newError(ErrRule, "Only active rentals can be extended")
	}

	unlock, err := s.lockMachine(ctx, rental.MachineID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	newEnd := rental.EndTime.AddDate(0, 0, extraDays)
	if err := s.ensureFree(ctx, rental.MachineID, rental.EndTime, newEnd, blockingStatuses, rental.ID); err != nil {
		return nil, err
	}

	addHours := newEnd.Sub(rental.EndTime).Hours()
	updated, err := s.rentals.Extend(ctx, rental.ID, newEnd, float64(extraDays)*dailyRate, addHours)
	if err != nil {
		return nil, staleError(err, "RentalService.Extend")
	}
	return updated, nil
}

// BookedSlots lists the active bookings of a machine. Pending requests are
// left out and do not block other renters from asking for the same slot.
func (s *RentalService) BookedSlots(ctx context.Context, machineID primitive.ObjectID) ([]models.BookedSlot, error) {
	if _, err := s.machines.FindByID(ctx, machineID); err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	rentals, err := s.rentals.FindByMachine(ctx, machineID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("RentalService.BookedSlots: %w", err)
	}
	slots := make([]models.BookedSlot, 0, len(rentals))
	for _, r := range rentals {
		slots = append(slots, models.BookedSlot{ID: r.ID, StartTime: r.StartTime, EndTime: r.EndTime, Status: r.Status})
	}
	return slots, nil
}

func (s *RentalService) Get(ctx context.Context, id primitive.ObjectID) (*models.Rental, error) {
	rental, err := s.rentals.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Rental not found")
	}
	return rental, nil
}

func (s *RentalService) ForRenter(ctx context.Context, renterID primitive.ObjectID) ([]models.RentalView, error) {
	rentals, err := s.rentals.FindByRenter(ctx, renterID)
	if err != nil {
		return nil, fmt.Errorf("RentalService.ForRenter: %w", err)
	}
	return s.populate(ctx, rentals)
}

// RentalIDsForRenter derives a renter's bookings from the rental index
// rather than a list stored on the account.
func (s *RentalService) RentalIDsForRenter(ctx context.Context, renterID primitive.ObjectID) ([]primitive.ObjectID, error) {
	rentals, err := s.rentals.FindByRenter(ctx, renterID)
	if err != nil {
		return nil, fmt.Errorf("RentalService.RentalIDsForRenter: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(rentals))
	for _, r := range rentals {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *RentalService) ForOwner(ctx context.Context, ownerID primitive.ObjectID, status models.RentalStatus) ([]models.RentalView, error) {
	var statuses []models.RentalStatus
	if status != "" {
		if !status.Valid() {
			return nil, newError(ErrValidation, "Invalid status")
		}
		statuses = append(statuses, status)
	}
	rentals, err := s.rentals.FindByOwner(ctx, ownerID, statuses...)
	if err != nil {
		return nil, fmt.Errorf("RentalService.ForOwner: %w", err)
	}
	return s.populate(ctx, rentals)
}

func (s *RentalService) OwnerEarnings(ctx context.Context, ownerID primitive.ObjectID) (*models.OwnerEarnings, error) {
	rentals, err := s.rentals.FindByOwner(ctx, ownerID, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("RentalService.OwnerEarnings: %w", err)
	}
	sort.SliceStable(rentals, func(i, j int) bool { return rentals[i].EndTime.After(rentals[j].EndTime) })

	var total float64
	for _, r := range rentals {
		total += r.TotalPrice
	}
	views, err := s.populate(ctx, rentals)
	if err != nil {
		return nil, err
	}
	return &models.OwnerEarnings{TotalEarnings: total, CompletedRentals: views}, nil
}

// populate resolves machine and party summaries for a batch of rentals.
func (s *RentalService) populate(ctx context.Context, rentals []models.Rental) ([]models.RentalView, error) {
	machineIDs := make([]primitive.ObjectID, 0, len(rentals))
	userIDs := make([]primitive.ObjectID, 0, 2*len(rentals))
	for _, r := range rentals {
		machineIDs = append(machineIDs, r.MachineID)
		userIDs = append(userIDs, r.RenterID, r.OwnerID)
	}

	var (
		machines []models.Machine
		users    []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		machines, err = s.machines.FindByIDs(gctx, dedupe(machineIDs))
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.users.FindByIDs(gctx, dedupe(userIDs))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("RentalService.populate: %w", err)
	}

	machineByID := make(map[primitive.ObjectID]*models.Machine, len(machines))
	for i := range machines {
		machineByID[machines[i].ID] = &machines[i]
	}
	userByID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}

	views := make([]models.RentalView, 0, len(rentals))
	for _, r := range rentals {
		views = append(views, models.RentalView{
			Rental:  r,
			Machine: machineByID[r.MachineID].Summary(),
			Renter:  userByID[r.RenterID].Summary(),
			Owner:   userByID[r.OwnerID].Summary(),
		})
	}
	return views, nil
}

func (s *RentalService) lockMachine(ctx context.Context, machineID primitive.ObjectID) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "rental:lock:"+machineID.Hex())
	if err != nil {
		return nil, wrapError(ErrBusy, err, "Another booking for this machine is in progress, please retry")
	}
	return unlock, nil
}

func (s *RentalService) ensureFree(ctx context.Context, machineID primitive.ObjectID, start, end time.Time, statuses []models.RentalStatus, exclude primitive.ObjectID) error {
	_, err := s.rentals.FindOverlapping(ctx, machineID, start, end, statuses, exclude)
	switch {
	case err == nil:
		return newError(ErrRule, "Machine already booked for that time range")
	case errors.Is(err, repository.ErrNotFound):
		return nil
	}
	return fmt.Errorf("RentalService.ensureFree: %w", err)
}

func partyOf(r *models.Rental, actorID primitive.ObjectID) party {
	var p party
	if r.OwnerID == actorID {
		p |= partyOwner
	}
	if r.RenterID == actorID {
		p |= partyRenter
	}
	return p
}

func lookupError(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, "%s", msg)
	}
	return err
}

func staleError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrStale):
		return wrapError(ErrBusy, err, "Rental was modified concurrently, please reload and retry")
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrNotFound, "Rental not found")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
