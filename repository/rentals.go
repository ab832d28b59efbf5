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

type mongoRentals struct {
	coll *mongo.Collection
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

func (r *mongoRentals) Create(ctx context.Context, rental *models.Rental) error {
	if rental.ID.IsZero() {
		rental.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, rental); err != nil {
		return fmt.Errorf("RentalRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoRentals) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Rental, error) {
	var rental models.Rental
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rental); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("RentalRepository.FindByID: %w", err)
	}
	return &rental, nil
}

func (r *mongoRentals) FindOverlapping(ctx context.Context, machineID primitive.ObjectID, start, end time.Time, statuses []models.RentalStatus, exclude primitive.ObjectID) (*models.Rental, error) {
	filter := bson.M{
		"machineId": machineID,
		"status":    bson.M{"$in": statuses},
		"startTime": bson.M{"$lt": end},
		"endTime":   bson.M{"$gt": start},
	}
	if !exclude.IsZero() {
		filter["_id"] = bson.M{"$ne": exclude}
	}

	var rental models.Rental
	if err := r.coll.FindOne(ctx, filter).Decode(&rental); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("RentalRepository.FindOverlapping: %w", err)
	}
	return &rental, nil
}

func (r *mongoRentals) FindByMachine(ctx context.Context, machineID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error) {
	filter := bson.M{"machineId": machineID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("RentalRepository.FindByMachine: %w", err)
	}
	return decodeAll[models.Rental](ctx, cursor, "RentalRepository.FindByMachine")
}

func (r *mongoRentals) FindByRenter(ctx context.Context, renterID primitive.ObjectID) ([]models.Rental, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"renterId": renterID}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("RentalRepository.FindByRenter: %w", err)
	}
	return decodeAll[models.Rental](ctx, cursor, "RentalRepository.FindByRenter")
}

func (r *mongoRentals) FindByOwner(ctx context.Context, ownerID primitive.ObjectID, statuses ...models.RentalStatus) ([]models.Rental, error) {
	filter := bson.M{"ownerId": ownerID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("RentalRepository.FindByOwner: %w", err)
	}
	return decodeAll[models.Rental](ctx, cursor, "RentalRepository.FindByOwner")
}

func (r *mongoRentals) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.RentalStatus) (*models.Rental, error) {
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}}
	return r.conditionalUpdate(ctx, bson.M{"_id": id, "status": from}, update, "RentalRepository.UpdateStatus")
}

func (r *mongoRentals) Extend(ctx context.Context, id primitive.ObjectID, newEnd time.Time, addPrice, addHours float64) (*models.Rental, error) {
	update := bson.M{
		"$set": bson.M{"endTime": newEnd, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"totalPrice": addPrice, "totalHours": addHours},
	}
	return r.conditionalUpdate(ctx, bson.M{"_id": id, "status": models.StatusActive}, update, "RentalRepository.Extend")
}

func (r *mongoRentals) conditionalUpdate(ctx context.Context, filter, update bson.M, op string) (*models.Rental, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var rental models.Rental
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rental)
	if err == nil {
		return &rental, nil
	}
	if !notFound(err) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// Distinguish a missing rental from one whose status moved on.
	if _, err := r.FindByID(ctx, filter["_id"].(primitive.ObjectID)); err != nil {
		return nil, err
	}
	return nil, ErrStale
}
