package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const topMachinesLimit = 5

// AnalyticsService aggregates an account's bookings on every request.
type AnalyticsService struct {
	rentals  repository.RentalRepository
	machines repository.MachineRepository
}

func NewAnalyticsService(store *repository.Store) *AnalyticsService {
	return &AnalyticsService{rentals: store.Rentals, machines: store.Machines}
}

// monthKey formats t as "month-year" without zero padding, e.g. "3-2024".
func monthKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d-%d", int(t.Month()), t.Year())
}

// Owner groups the owner's completed rentals by the month they were booked
// and ranks the listings by what they earned.
func (s *AnalyticsService) Owner(ctx context.Context, ownerID primitive.ObjectID) (*models.OwnerAnalytics, error) {
	rentals, err := s.rentals.FindByOwner(ctx, ownerID, models.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("AnalyticsService.Owner: %w", err)
	}

	report := &models.OwnerAnalytics{
		MonthlyEarnings: map[string]float64{},
		MonthlyRentals:  map[string]int{},
		TopMachines:     []models.MachineEarning{},
	}
	perMachine := map[primitive.ObjectID]float64{}
	for _, r := range rentals {
		key := monthKey(r.CreatedAt)
		report.MonthlyEarnings[key] += r.TotalPrice
		report.MonthlyRentals[key]++
		perMachine[r.MachineID] += r.TotalPrice
	}
	if len(perMachine) == 0 {
		return report, nil
	}

	ids := make([]primitive.ObjectID, 0, len(perMachine))
	for id := range perMachine {
		ids = append(ids, id)
	}
	machines, err := s.machines.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("AnalyticsService.Owner: %w", err)
	}

	// deleted listings drop out of the ranking
	for _, m := range machines {
		report.TopMachines = append(report.TopMachines, models.MachineEarning{
			MachineID: m.ID.Hex(),
			Name:      m.Name,
			Earnings:  perMachine[m.ID],
		})
	}
	sort.SliceStable(report.TopMachines, func(i, j int) bool {
		a, b := report.TopMachines[i], report.TopMachines[j]
		if a.Earnings != b.Earnings {
			return a.Earnings > b.Earnings
		}
		return a.Name < b.Name
	})
	if len(report.TopMachines) > topMachinesLimit {
		report.TopMachines = report.TopMachines[:topMachinesLimit]
	}
	return report, nil
}

// Renter groups all of the renter's bookings by the month they start in and
// counts them per machine category.
func (s *AnalyticsService) Renter(ctx context.Context, renterID primitive.ObjectID) (*models.RenterAnalytics, error) {
	rentals, err := s.rentals.FindByRenter(ctx, renterID)
	if err != nil {
		return nil, fmt.Errorf("AnalyticsService.Renter: %w", err)
	}

	report := &models.RenterAnalytics{
		MonthlyRentals:  map[string]int{},
		MonthlySpending: map[string]float64{},
		MostRentedTypes: []models.TypeCount{},
	}
	if len(rentals) == 0 {
		return report, nil
	}

	ids := make([]primitive.ObjectID, 0, len(rentals))
	for _, r := range rentals {
		ids = append(ids, r.MachineID)
	}
	machines, err := s.machines.FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("AnalyticsService.Renter: %w", err)
	}
	typeOf := make(map[primitive.ObjectID]models.Category, len(machines))
	for _, m := range machines {
		typeOf[m.ID] = m.Type
	}

	counts := map[string]int{}
	for _, r := range rentals {
		key := monthKey(r.StartTime)
		report.MonthlyRentals[key]++
		report.MonthlySpending[key] += r.TotalPrice

		category := "Other"
		if c, ok := typeOf[r.MachineID]; ok && c != "" {
			category = string(c)
		}
		counts[category]++
	}
	for t, n := range counts {
		report.MostRentedTypes = append(report.MostRentedTypes, models.TypeCount{Type: t, Count: n})
	}
	sort.Slice(report.MostRentedTypes, func(i, j int) bool {
		a, b := report.MostRentedTypes[i], report.MostRentedTypes[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})
	return report, nil
}
