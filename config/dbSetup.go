package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Users    *mongo.Collection
	Machines *mongo.Collection
	Rentals  *mongo.Collection
	Chats    *mongo.Collection
}

func ConnectDB(cfg Config) (*mongo.Client, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI not set in environment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.MongoURI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	log.Println("Connected to MongoDB")
	return client, nil
}

func InitCollections(client *mongo.Client, cfg Config) Collections {
	db := client.Database(cfg.DBName)
	return Collections{
		Users:    db.Collection("users"),
		Machines: db.Collection("machines"),
		Rentals:  db.Collection("rentals"),
		Chats:    db.Collection("chats"),
	}
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// call on every boot.
func EnsureIndexes(ctx context.Context, c Collections) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{c.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{c.Machines, []mongo.IndexModel{
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "pincode", Value: 1}}},
		}},
		{c.Rentals, []mongo.IndexModel{
			{Keys: bson.D{{Key: "machineId", Value: 1}, {Key: "status", Value: 1}, {Key: "startTime", Value: 1}}},
			{Keys: bson.D{{Key: "renterId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "status", Value: 1}}},
		}},
		{c.Chats, []mongo.IndexModel{
			{Keys: bson.D{{Key: "rentalId", Value: 1}, {Key: "createdAt", Value: 1}}},
		}},
	}

	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

func CloseDBConnection(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("Error closing database connection: %v", err)
		return
	}
	log.Println("MongoDB connection closed")
}
