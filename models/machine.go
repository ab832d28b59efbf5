package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Rating struct {
	RenterID  primitive.ObjectID `bson:"renterId" json:"renterId"`
	Rating    int                `bson:"rating" json:"rating"`
	Review    string             `bson:"review,omitempty" json:"review,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Machine struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	OwnerID         primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name            string             `bson:"name" json:"name"`
	Type            Category           `bson:"type" json:"type"`
	Horsepower      float64            `bson:"horsepower" json:"horsepower"`
	AgeYears        float64            `bson:"ageYears" json:"ageYears"`
	HoursUsed       float64            `bson:"hoursUsed" json:"hoursUsed"`
	Pincode         string             `bson:"pincode" json:"pincode"`
	MaintenanceCost float64            `bson:"maintenance_cost" json:"maintenance_cost"`
	FuelPrice       float64            `bson:"fuel_price" json:"fuel_price"`
	RentPerHour     float64            `bson:"rentPerHour" json:"rentPerHour"`
	LastYearPrice   float64            `bson:"last_year_price,omitempty" json:"last_year_price,omitempty"`
	Meta            Meta               `bson:"meta" json:"meta"`
	ImageURL        string             `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Ratings         []Rating           `bson:"ratings" json:"ratings"`
	AverageRating   float64            `bson:"averageRating" json:"averageRating"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NumericField resolves the filterable numeric fields by their wire name.
func (m *Machine) NumericField(name string) (float64, bool) {
	switch name {
	case "rentPerHour":
		return m.RentPerHour, true
	case "horsepower":
		return m.Horsepower, true
	case "ageYears":
		return m.AgeYears, true
	case "hoursUsed":
		return m.HoursUsed, true
	case "averageRating":
		return m.AverageRating, true
	}
	return 0, false
}

type MachineSummary struct {
	ID          primitive.ObjectID `json:"_id"`
	Name        string             `json:"name"`
	Type        Category           `json:"type"`
	ImageURL    string             `json:"image_url,omitempty"`
	RentPerHour float64            `json:"rentPerHour"`
}

func (m *Machine) Summary() *MachineSummary {
	if m == nil {
		return nil
	}
	return &MachineSummary{
		ID:          m.ID,
		Name:        m.Name,
		Type:        m.Type,
		ImageURL:    m.ImageURL,
		RentPerHour: m.RentPerHour,
	}
}

// NumericCondition is one "field[op]=value" filter on a listing query.
type NumericCondition struct {
	Field string
	Op    string
	Value float64
}

func (c NumericCondition) Match(v float64) bool {
	switch c.Op {
	case "eq":
		return v == c.Value
	case "ne":
		return v != c.Value
	case "gt":
		return v > c.Value
	case "gte":
		return v >= c.Value
	case "lt":
		return v < c.Value
	case "lte":
		return v <= c.Value
	}
	return false
}

type MachineFilter struct {
	Types    []Category
	Pincodes []string
	Numeric  []NumericCondition
	Limit    int64
}
