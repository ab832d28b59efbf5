package storage

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("file not found")

// Bucket is a flat file store keyed by ObjectID.
type Bucket interface {
	Upload(ctx context.Context, filename string, r io.Reader) (primitive.ObjectID, error)
	// Download returns the stored content and the name it was uploaded under.
	Download(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, string, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
