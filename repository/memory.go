package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemoryStore returns a Store backed by process memory. It honours the
// same contracts as the Mongo store and is what the tests run against.
func NewMemoryStore() *Store {
	m := &memory{
		users:    map[primitive.ObjectID]models.User{},
		machines: map[primitive.ObjectID]models.Machine{},
		rentals:  map[primitive.ObjectID]models.Rental{},
		chats:    map[primitive.ObjectID]models.ChatMessage{},
	}
	return &Store{
		Users:    memUsers{m},
		Machines: memMachines{m},
		Rentals:  memRentals{m},
		Chats:    memChats{m},
	}
}

type memory struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]models.User
	machines map[primitive.ObjectID]models.Machine
	rentals  map[primitive.ObjectID]models.Rental
	chats    map[primitive.ObjectID]models.ChatMessage
}

func newID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

type memUsers struct{ m *memory }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	newID(&u.ID)
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	upd.Apply(&u)
	u.UpdatedAt = time.Now().UTC()
	r.m.users[id] = u
	return &u, nil
}

type memMachines struct{ m *memory }

func copyMachine(m models.Machine) models.Machine {
	m.Ratings = slices.Clone(m.Ratings)
	return m
}

func (r memMachines) Create(_ context.Context, m *models.Machine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	newID(&m.ID)
	if m.Ratings == nil {
		m.Ratings = []models.Rating{}
	}
	r.m.machines[m.ID] = copyMachine(*m)
	return nil
}

func (r memMachines) FindByID(_ context.Context, id primitive.ObjectID) (*models.Machine, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	m, ok := r.m.machines[id]
	if !ok {
		return nil, ErrNotFound
	}
	m = copyMachine(m)
	return &m, nil
}

func (r memMachines) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Machine, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.Machine{}
	for _, id := range ids {
		if m, ok := r.m.machines[id]; ok {
			out = append(out, copyMachine(m))
		}
	}
	return out, nil
}

func (r memMachines) Find(_ context.Context, f models.MachineFilter) ([]models.Machine, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.Machine{}
	for _, m := range r.m.machines {
		if matchMachine(&m, f) {
			out = append(out, copyMachine(m))
		}
	}
	sortMachinesNewestFirst(out)
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchMachine(m *models.Machine, f models.MachineFilter) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, m.Type) {
		return false
	}
	if len(f.Pincodes) > 0 && !slices.Contains(f.Pincodes, m.Pincode) {
		return false
	}
	for _, c := range f.Numeric {
		v, ok := m.NumericField(c.Field)
		if !ok || !c.Match(v) {
			return false
		}
	}
	return true
}

func sortMachinesNewestFirst(ms []models.Machine) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID.Hex() > ms[j].ID.Hex()
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}

func (r memMachines) FindByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Machine, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.Machine{}
	for _, m := range r.m.machines {
		if m.OwnerID == ownerID {
			out = append(out, copyMachine(m))
		}
	}
	sortMachinesNewestFirst(out)
	return out, nil
}

func (r memMachines) Update(_ context.Context, m *models.Machine) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	existing, ok := r.m.machines[m.ID]
	if !ok || existing.OwnerID != m.OwnerID {
		return ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	// ratings are only touched through AddRating
	m.Ratings = existing.Ratings
	m.AverageRating = existing.AverageRating
	m.CreatedAt = existing.CreatedAt
	r.m.machines[m.ID] = copyMachine(*m)
	return nil
}

func (r memMachines) Delete(_ context.Context, id, ownerID primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	existing, ok := r.m.machines[id]
	if !ok || existing.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.m.machines, id)
	return nil
}

func (r memMachines) AddRating(_ context.Context, id primitive.ObjectID, rating models.Rating) (*models.Machine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	m, ok := r.m.machines[id]
	if !ok {
		return nil, ErrNotFound
	}
	m = copyMachine(m)
	m.Ratings = append(m.Ratings, rating)
	total := 0
	for _, rt := range m.Ratings {
		total += rt.Rating
	}
	m.AverageRating = float64(total) / float64(len(m.Ratings))
	m.UpdatedAt = time.Now().UTC()
	r.m.machines[id] = m
	out := copyMachine(m)
	return &out, nil
}

type memRentals struct{ m *memory }

func (r memRentals) Create(_ context.Context, rental *models.Rental) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	newID(&rental.ID)
	r.m.rentals[rental.ID] = *rental
	return nil
}

func (r memRentals) FindByID(_ context.Context, id primitive.ObjectID) (*models.Rental, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	rental, ok := r.m.rentals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rental, nil
}

func (r memRentals) FindOverlapping(_ context.Context, machineID primitive.ObjectID, start, end time.Time, statuses []models.RentalStatus, exclude primitive.ObjectID) (*models.Rental, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, rental := range r.m.rentals {
		if rental.MachineID != machineID || rental.ID == exclude {
			continue
		}
		if !slices.Contains(statuses, rental.Status) {
			continue
		}
		if rental.Overlaps(start, end) {
			return &rental, nil
		}
	}
	return nil, ErrNotFound
}

func (r memRentals) filter(keep func(models.Rental) bool, less func(a, b models.Rental) bool) []models.Rental {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.Rental{}
	for _, rental := range r.m.rentals {
		if keep(rental) {
			out = append(out, rental)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func newestRentalFirst(a, b models.Rental) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID.Hex() > b.ID.Hex()
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func statusIn(s models.RentalStatus, statuses []models.RentalStatus) bool {
	return len(statuses) == 0 || slices.Contains(statuses, s)
}

func (r memRentals) FindByMachine(_ context.Context, machineID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error) {
	return r.filter(
		func(x models.Rental) bool { return x.MachineID == machineID && statusIn(x.Status, statuses) },
		func(a, b models.Rental) bool { return a.StartTime.Before(b.StartTime) },
	), nil
}

func (r memRentals) FindByRenter(_ context.Context, renterID primitive.ObjectID) ([]models.Rental, error) {
	return r.filter(func(x models.Rental) bool { return x.RenterID == renterID }, newestRentalFirst), nil
}

func (r memRentals) FindByOwner(_ context.Context, ownerID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error) {
	return r.filter(
		func(x models.Rental) bool { return x.OwnerID == ownerID && statusIn(x.Status, statuses) },
		newestRentalFirst,
	), nil
}

func (r memRentals) UpdateStatus(_ context.Context, id primitive.ObjectID, from, to models.RentalStatus) (*models.Rental, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rental, ok := r.m.rentals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rental.Status != from {
		return nil, ErrStale
	}
	rental.Status = to
	rental.UpdatedAt = time.Now().UTC()
	r.m.rentals[id] = rental
	return &rental, nil
}

func (r memRentals) Extend(_ context.Context, id primitive.ObjectID, newEnd time.Time, addPrice, addHours float64) (*models.Rental, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rental, ok := r.m.rentals[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rental.Status != models.StatusActive {
		return nil, ErrStale
	}
	rental.EndTime = newEnd
	rental.TotalPrice += addPrice
	rental.TotalHours += addHours
	rental.UpdatedAt = time.Now().UTC()
	r.m.rentals[id] = rental
	return &rental, nil
}

type memChats struct{ m *memory }

func (r memChats) Create(_ context.Context, msg *models.ChatMessage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	newID(&msg.ID)
	cp := *msg
	cp.SeenBy = slices.Clone(msg.SeenBy)
	r.m.chats[msg.ID] = cp
	return nil
}

func (r memChats) FindByRental(_ context.Context, rentalID primitive.ObjectID) ([]models.ChatMessage, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := []models.ChatMessage{}
	for _, msg := range r.m.chats {
		if msg.RentalID == rentalID {
			msg.SeenBy = slices.Clone(msg.SeenBy)
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r memChats) MarkSeen(_ context.Context, rentalID, userID primitive.ObjectID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, msg := range r.m.chats {
		if msg.RentalID != rentalID || msg.SeenByUser(userID) {
			continue
		}
		msg.SeenBy = append(slices.Clone(msg.SeenBy), userID)
		r.m.chats[id] = msg
		n++
	}
	return n, nil
}
