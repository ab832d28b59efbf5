package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dcode-github/agrirent/backend/config"
	"go.mongodb.org/mongo-driver/mongo"
)

func NewMongoStore(c config.Collections) *Store {
	return &Store{
		Users:    &mongoUsers{coll: c.Users},
		Machines: &mongoMachines{coll: c.Machines},
		Rentals:  &mongoRentals{coll: c.Rentals},
		Chats:    &mongoChats{coll: c.Chats},
	}
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, op string) ([]T, error) {
	defer cursor.Close(ctx)
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return out, nil
}

func notFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
