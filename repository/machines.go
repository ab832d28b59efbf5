package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoOperators = map[string]string{
	"eq": "$eq", "ne": "$ne", "gt": "$gt", "gte": "$gte", "lt": "$lt", "lte": "$lte",
}

type mongoMachines struct {
	coll *mongo.Collection
}

func (r *mongoMachines) Create(ctx context.Context, m *models.Machine) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.Ratings == nil {
		m.Ratings = []models.Rating{}
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("MachineRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoMachines) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Machine, error) {
	var m models.Machine
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("MachineRepository.FindByID: %w", err)
	}
	return &m, nil
}

func (r *mongoMachines) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Machine, error) {
	if len(ids) == 0 {
		return []models.Machine{}, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("MachineRepository.FindByIDs: %w", err)
	}
	return decodeAll[models.Machine](ctx, cursor, "MachineRepository.FindByIDs")
}

func (r *mongoMachines) Find(ctx context.Context, f models.MachineFilter) ([]models.Machine, error) {
	var andConditions []bson.M
	if len(f.Types) > 0 {
		andConditions = append(andConditions, bson.M{"type": bson.M{"$in": f.Types}})
	}
	if len(f.Pincodes) > 0 {
		andConditions = append(andConditions, bson.M{"pincode": bson.M{"$in": f.Pincodes}})
	}

	fieldSpecificConditions := make(map[string]bson.M)
	for _, c := range f.Numeric {
		op, ok := mongoOperators[c.Op]
		if !ok {
			continue
		}
		if _, ok := fieldSpecificConditions[c.Field]; !ok {
			fieldSpecificConditions[c.Field] = bson.M{}
		}
		fieldSpecificConditions[c.Field][op] = c.Value
	}
	for field, conditions := range fieldSpecificConditions {
		andConditions = append(andConditions, bson.M{field: conditions})
	}

	query := bson.M{}
	if len(andConditions) > 0 {
		query["$and"] = andConditions
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("MachineRepository.Find: %w", err)
	}
	return decodeAll[models.Machine](ctx, cursor, "MachineRepository.Find")
}

func (r *mongoMachines) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Machine, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("MachineRepository.FindByOwner: %w", err)
	}
	return decodeAll[models.Machine](ctx, cursor, "MachineRepository.FindByOwner")
}

func (r *mongoMachines) Update(ctx context.Context, m *models.Machine) error {
	m.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"name":             m.Name,
		"type":             m.Type,
		"horsepower":       m.Horsepower,
		"ageYears":         m.AgeYears,
		"hoursUsed":        m.HoursUsed,
		"pincode":          m.Pincode,
		"maintenance_cost": m.MaintenanceCost,
		"fuel_price":       m.FuelPrice,
		"rentPerHour":      m.RentPerHour,
		"last_year_price":  m.LastYearPrice,
		"meta":             m.Meta,
		"image_url":        m.ImageURL,
		"updatedAt":        m.UpdatedAt,
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": m.ID, "ownerId": m.OwnerID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("MachineRepository.Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMachines) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "ownerId": ownerID})
	if err != nil {
		return fmt.Errorf("MachineRepository.Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoMachines) AddRating(ctx context.Context, id primitive.ObjectID, rating models.Rating) (*models.Machine, error) {
	// Append and average in one pipeline update so concurrent ratings
	// cannot overwrite each other.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"ratings": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$ratings", bson.A{}}},
				bson.A{bson.M{"$literal": rating}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"averageRating": bson.M{"$avg": "$ratings.rating"},
			"updatedAt":     time.Now().UTC(),
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Machine
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&m); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("MachineRepository.AddRating: %w", err)
	}
	return &m, nil
}
