package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RentalStatus string

const (
	StatusPending   RentalStatus = "pending"
	StatusActive    RentalStatus = "active"
	StatusCompleted RentalStatus = "completed"
	StatusCancelled RentalStatus = "cancelled"
)

func (s RentalStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s RentalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Rental struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	MachineID  primitive.ObjectID `bson:"machineId" json:"machineId"`
	RenterID   primitive.ObjectID `bson:"renterId" json:"renterId"`
	OwnerID    primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	StartTime  time.Time          `bson:"startTime" json:"startTime"`
	EndTime    time.Time          `bson:"endTime" json:"endTime"`
	TotalHours float64            `bson:"totalHours" json:"totalHours"`
	TotalPrice float64            `bson:"totalPrice" json:"totalPrice"`
	Status     RentalStatus       `bson:"status" json:"status"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Overlaps applies the half-open rule: [s1,e1) and [s2,e2) intersect iff
// s1 < e2 and s2 < e1.
func (r *Rental) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// RentalView is a rental with the documents it references resolved.
type RentalView struct {
	Rental
	Machine *MachineSummary `json:"machine,omitempty"`
	Renter  *UserSummary    `json:"renter,omitempty"`
	Owner   *UserSummary    `json:"owner,omitempty"`
}

type BookedSlot struct {
	ID        primitive.ObjectID `json:"_id"`
	StartTime time.Time          `json:"startTime"`
	EndTime   time.Time          `json:"endTime"`
	Status    RentalStatus       `json:"status"`
}
