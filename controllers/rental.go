package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clientTime accepts RFC 3339 and the zone-less forms browsers send from
// datetime-local inputs. Zone-less values are taken as UTC.
type clientTime struct{ time.Time }

var clientTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *clientTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range clientTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid time %q", s)
}

type createRentalRequest struct {
	MachineID string     `json:"machineId" validate:"required"`
	RenterID  string     `json:"renterId"`
	StartTime clientTime `json:"startTime"`
	EndTime   clientTime `json:"endTime"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active completed cancelled"`
}

type extendRequest struct {
	ExtraDays int     `json:"extraDays"`
	DailyRate float64 `json:"dailyRate"`
}

func CreateRental(rentals *services.RentalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renterID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req createRentalRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeMessage(w, http.StatusBadRequest, "Missing required fields")
			return
		}
		machineID, err := primitive.ObjectIDFromHex(req.MachineID)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid machineId")
			return
		}
		if req.RenterID != "" && req.RenterID != renterID.Hex() {
			writeMessage(w, http.StatusForbidden, "You can only book for yourself")
			return
		}

		rental, err := rentals.Create(r.Context(), services.CreateRentalInput{
			MachineID: machineID,
			RenterID:  renterID,
			Start:     req.StartTime.Time,
			End:       req.EndTime.Time,
		})
		if err != nil {
			writeError(w, err, "Booking failed")
			return
		}
		writeSuccess(w, http.StatusCreated, payload{"rental": rental})
	}
}

func GetBookedSlots(rentals *services.RentalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machineID, ok := pathID(w, r, "machineId")
		if !ok {
			return
		}
		slots, err := rentals.BookedSlots(r.Context(), machineID)
		if err != nil {
			writeError(w, err, "Failed to fetch booked slots")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"slots": slots})
	}
}

// GetRenterRentals serves both /my/{renterId} and the older /user/{userId}.
func GetRenterRentals(rentals *services.RentalService, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renterID, ok := requireSelf(w, r, param)
		if !ok {
			return
		}
		views, err := rentals.ForRenter(r.Context(), renterID)
		if err != nil {
			writeError(w, err, "Failed to load rentals")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"rentals": views})
	}
}

func GetOwnerRentals(rentals *services.RentalService, status models.RentalStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireSelf(w, r, "ownerId")
		if !ok {
			return
		}
		views, err := rentals.ForOwner(r.Context(), ownerID, status)
		if err != nil {
			writeError(w, err, fmt.Sprintf("Failed to load %s rentals", status))
			return
		}
		writeSuccess(w, http.StatusOK, payload{"rentals": views})
	}
}

func GetOwnerEarnings(rentals *services.RentalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireSelf(w, r, "ownerId")
		if !ok {
			return
		}
		earnings, err := rentals.OwnerEarnings(r.Context(), ownerID)
		if err != nil {
			writeError(w, err, "Failed to load earnings")
			return
		}
		writeSuccess(w, http.StatusOK, payload{
			"totalEarnings":    earnings.TotalEarnings,
			"completedRentals": earnings.CompletedRentals,
		})
	}
}

// TransitionRental moves a rental to a fixed status, as the complete and
// cancel endpoints do.
func TransitionRental(rentals *services.RentalService, param string, to models.RentalStatus, done string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, param)
		if !ok {
			return
		}
		rental, err := rentals.Transition(r.Context(), id, actor, to)
		if err != nil {
			writeError(w, err, "Failed to update rental")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"message": done, "rental": rental})
	}
}

func UpdateRentalStatus(rentals *services.RentalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "rentalId")
		if !ok {
			return
		}
		var req statusRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		rental, err := rentals.Transition(r.Context(), id, actor, models.RentalStatus(req.Status))
		if err != nil {
			writeError(w, err, "Failed to update status")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"rental": rental})
	}
}

func ExtendRental(rentals *services.RentalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "rentalId")
		if !ok {
			return
		}
		var req extendRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		rental, err := rentals.Extend(r.Context(), id, actor, req.ExtraDays, req.DailyRate)
		if err != nil {
			writeError(w, err, "Failed to extend rental")
			return
		}
		writeSuccess(w, http.StatusOK, payload{"rental": rental})
	}
}

func GetOwnerAnalytics(analytics *services.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireSelf(w, r, "ownerId")
		if !ok {
			return
		}
		report, err := analytics.Owner(r.Context(), ownerID)
		if err != nil {
			writeError(w, err, "Analytics failed")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func GetRenterAnalytics(analytics *services.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renterID, ok := requireSelf(w, r, "renterId")
		if !ok {
			return
		}
		report, err := analytics.Renter(r.Context(), renterID)
		if err != nil {
			writeError(w, err, "Failed to load analytics")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
