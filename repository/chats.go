package repository

import (
	"context"
	"fmt"

	"github.com/dcode-github/agrirent/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoChats struct {
	coll *mongo.Collection
}

func (r *mongoChats) Create(ctx context.Context, m *models.ChatMessage) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("ChatRepository.Create: %w", err)
	}
	return nil
}

func (r *mongoChats) FindByRental(ctx context.Context, rentalID primitive.ObjectID) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"rentalId": rentalID}, opts)
	if err != nil {
		return nil, fmt.Errorf("ChatRepository.FindByRental: %w", err)
	}
	return decodeAll[models.ChatMessage](ctx, cursor, "ChatRepository.FindByRental")
}

func (r *mongoChats) MarkSeen(ctx context.Context, rentalID, userID primitive.ObjectID) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"rentalId": rentalID, "seenBy": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"seenBy": userID}},
	)
	if err != nil {
		return 0, fmt.Errorf("ChatRepository.MarkSeen: %w", err)
	}
	return res.ModifiedCount, nil
}
