package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"github.com/dcode-github/agrirent/backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const defaultListLimit = 100

// coreFields are the form keys stored on the listing itself. Everything else
// is offered to the category's attribute variant.
var coreFields = map[string]bool{
	"ownerId": true, "name": true, "type": true, "machine_type": true, "horsepower": true,
	"ageYears": true, "hoursUsed": true, "pincode": true, "maintenance_cost": true,
	"fuel_price": true, "rentPerHour": true, "last_year_price": true,
}

var numericFields = map[string]bool{
	"rentPerHour": true, "horsepower": true, "ageYears": true, "hoursUsed": true, "averageRating": true,
}

type MachineService struct {
	machines repository.MachineRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewMachineService(store *repository.Store) *MachineService {
	return &MachineService{machines: store.Machines, users: store.Users, now: time.Now}
}

// MachineDetail is a listing together with its owner and the owner's other
// listings.
type MachineDetail struct {
	Machine                *models.Machine     `json:"machine"`
	Owner                  *models.UserSummary `json:"owner"`
	OtherMachinesFromOwner []models.Machine    `json:"otherMachinesFromOwner"`
}

// Attach stores a pending upload and returns its public URL. It is called
// only once a write has passed every check.
type Attach func(ctx context.Context) (string, error)

func (a Attach) run(ctx context.Context) (string, error) {
	if a == nil {
		return "", nil
	}
	url, err := a(ctx)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return url, nil
}

// Create builds a listing from loosely typed form fields. attach may be nil.
func (s *MachineService) Create(ctx context.Context, ownerID primitive.ObjectID, fields map[string]string, attach Attach) (*models.Machine, error) {
	name := strings.TrimSpace(fields["name"])
	pincode := strings.TrimSpace(fields["pincode"])
	if name == "" || pincode == "" {
		return nil, newError(ErrValidation, "name and pincode are required")
	}
	category, err := categoryFrom(fields)
	if err != nil {
		return nil, err
	}
	rate := utils.ToFloat(fields["rentPerHour"])
	if rate <= 0 {
		return nil, newError(ErrValidation, "rentPerHour must be a positive number")
	}
	meta, err := models.BuildMeta(category, extraFields(fields))
	if err != nil {
		return nil, wrapError(ErrValidation, err, err.Error())
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, lookupError(err, "Owner not found")
	}
	if owner.Role != models.RoleOwner {
		return nil, newError(ErrForbidden, "Only owners can list machines")
	}
	imageURL, err := attach.run(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &models.Machine{
		OwnerID:         ownerID,
		Name:            name,
		Type:            category,
		Horsepower:      utils.ToFloat(fields["horsepower"]),
		AgeYears:        utils.ToFloat(fields["ageYears"]),
		HoursUsed:       utils.ToFloat(fields["hoursUsed"]),
		Pincode:         pincode,
		MaintenanceCost: utils.ToFloat(fields["maintenance_cost"]),
		FuelPrice:       utils.ToFloat(fields["fuel_price"]),
		RentPerHour:     rate,
		LastYearPrice:   utils.ToFloat(fields["last_year_price"]),
		Meta:            meta,
		ImageURL:        imageURL,
		Ratings:         []models.Rating{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.machines.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("MachineService.Create: %w", err)
	}
	return m, nil
}

// Update applies only the fields present in the form. Numeric fields that
// do not parse become zero; the hourly rate must stay positive.
func (s *MachineService) Update(ctx context.Context, id, ownerID primitive.ObjectID, fields map[string]string, attach Attach) (*models.Machine, error) {
	m, err := s.machines.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	if m.OwnerID != ownerID {
		return nil, newError(ErrForbidden, "You do not own this machine")
	}

	if v, ok := fields["name"]; ok && strings.TrimSpace(v) != "" {
		m.Name = strings.TrimSpace(v)
	}
	if v, ok := fields["pincode"]; ok && strings.TrimSpace(v) != "" {
		m.Pincode = strings.TrimSpace(v)
	}
	setNum := func(dst *float64, key string) {
		if v, ok := fields[key]; ok {
			*dst = utils.ToFloat(v)
		}
	}
	setNum(&m.Horsepower, "horsepower")
	setNum(&m.AgeYears, "ageYears")
	setNum(&m.HoursUsed, "hoursUsed")
	setNum(&m.MaintenanceCost, "maintenance_cost")
	setNum(&m.FuelPrice, "fuel_price")
	setNum(&m.LastYearPrice, "last_year_price")
	if v, ok := fields["rentPerHour"]; ok {
		rate := utils.ToFloat(v)
		if rate <= 0 {
			return nil, newError(ErrValidation, "rentPerHour must be a positive number")
		}
		m.RentPerHour = rate
	}

	category := m.Type
	if _, ok := fields["type"]; ok {
		if category, err = categoryFrom(fields); err != nil {
			return nil, err
		}
	}
	meta, err := m.Meta.Merge(category, extraFields(fields))
	if err != nil {
		return nil, wrapError(ErrValidation, err, err.Error())
	}
	m.Type = category
	m.Meta = meta
	imageURL, err := attach.run(ctx)
	if err != nil {
		return nil, err
	}
	if imageURL != "" {
		m.ImageURL = imageURL
	}

	if err := s.machines.Update(ctx, m); err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	return m, nil
}

func (s *MachineService) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	m, err := s.machines.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "Machine not found")
	}
	if m.OwnerID != ownerID {
		return newError(ErrForbidden, "You do not own this machine")
	}
	if err := s.machines.Delete(ctx, id, ownerID); err != nil {
		return lookupError(err, "Machine not found")
	}
	return nil
}

func (s *MachineService) List(ctx context.Context, f models.MachineFilter) ([]models.Machine, error) {
	machines, err := s.machines.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("MachineService.List: %w", err)
	}
	return machines, nil
}

func (s *MachineService) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Machine, error) {
	machines, err := s.machines.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("MachineService.ListByOwner: %w", err)
	}
	return machines, nil
}

func (s *MachineService) Get(ctx context.Context, id primitive.ObjectID) (*models.Machine, error) {
	m, err := s.machines.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	return m, nil
}

// Detail loads the listing, then its owner and the owner's other listings
// concurrently.
func (s *MachineService) Detail(ctx context.Context, id primitive.ObjectID) (*MachineDetail, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		owner  *models.User
		others []models.Machine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.FindByID(gctx, m.OwnerID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		owner = u
		return err
	})
	g.Go(func() error {
		all, err := s.machines.FindByOwner(gctx, m.OwnerID)
		if err != nil {
			return err
		}
		others = make([]models.Machine, 0, len(all))
		for _, o := range all {
			if o.ID != m.ID {
				others = append(others, o)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("MachineService.Detail: %w", err)
	}

	return &MachineDetail{Machine: m, Owner: owner.Summary(), OtherMachinesFromOwner: others}, nil
}

// Rate appends a 1..5 rating by renterID. A renter may rate the same
// machine more than once; every rating counts toward the average.
func (s *MachineService) Rate(ctx context.Context, machineID, renterID primitive.ObjectID, rating int, review string) (*models.Machine, error) {
	if rating < 1 || rating > 5 {
		return nil, newError(ErrValidation, "Rating must be between 1 and 5")
	}
	m, err := s.machines.FindByID(ctx, machineID)
	if err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	if m.OwnerID == renterID {
		return nil, newError(ErrRule, "Owners cannot rate their own machine")
	}

	updated, err := s.machines.AddRating(ctx, machineID, models.Rating{
		RenterID:  renterID,
		Rating:    rating,
		Review:    strings.TrimSpace(review),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, lookupError(err, "Machine not found")
	}
	return updated, nil
}

// ParseMachineFilter reads type/pincode lists and "field[op]=value" numeric
// conditions from a query string. Unknown keys and malformed values are
// logged and skipped; an unknown type is kept as-is so it matches nothing.
func ParseMachineFilter(query url.Values) models.MachineFilter {
	f := models.MachineFilter{Limit: defaultListLimit}

	for rawKey, queryValues := range query {
		if len(queryValues) == 0 || queryValues[0] == "" {
			continue
		}
		queryValue := queryValues[0]

		fieldKey := rawKey
		op := "eq"
		if strings.Contains(rawKey, "[") && strings.HasSuffix(rawKey, "]") {
			parts := strings.SplitN(rawKey, "[", 2)
			fieldKey = parts[0]
			op = strings.TrimSuffix(parts[1], "]")
		}

		switch {
		case fieldKey == "type":
			for _, v := range splitList(queryValue) {
				c, ok := models.ParseCategory(v)
				if !ok {
					log.Printf("Unknown machine type in filter: %s", v)
					c = models.Category(v)
				}
				f.Types = append(f.Types, c)
			}
		case fieldKey == "pincode":
			f.Pincodes = append(f.Pincodes, splitList(queryValue)...)
		case fieldKey == "limit":
			if n, err := strconv.ParseInt(queryValue, 10, 64); err == nil && n > 0 && n <= defaultListLimit {
				f.Limit = n
			}
		case numericFields[fieldKey]:
			v, err := strconv.ParseFloat(queryValue, 64)
			if err != nil {
				log.Printf("Invalid numeric value for %s[%s]: %s", fieldKey, op, queryValue)
				continue
			}
			cond := models.NumericCondition{Field: fieldKey, Op: op, Value: v}
			if !validOp(op) {
				log.Printf("Unknown operator key: %s in query param %s", op, rawKey)
				continue
			}
			f.Numeric = append(f.Numeric, cond)
		default:
			log.Printf("Unhandled query parameter: %s", rawKey)
		}
	}
	return f
}

func validOp(op string) bool {
	switch op {
	case "eq", "ne", "gt", "gte", "lt", "lte":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func categoryFrom(fields map[string]string) (models.Category, error) {
	raw := fields["type"]
	if raw == "" {
		raw = fields["machine_type"]
	}
	if strings.TrimSpace(raw) == "" {
		return "", newError(ErrValidation, "type is required")
	}
	c, ok := models.ParseCategory(raw)
	if !ok {
		return "", newError(ErrValidation, "Unknown machine type %q", raw)
	}
	return c, nil
}

func extraFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if !coreFields[k] {
			out[k] = v
		}
	}
	return out
}
