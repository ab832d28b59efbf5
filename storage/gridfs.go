package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSBucket keeps uploads in the application database so every instance
// behind the load balancer serves the same files.
type GridFSBucket struct {
	bucket *gridfs.Bucket
}

func NewGridFSBucket(db *mongo.Database, name string) (*GridFSBucket, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", name, err)
	}
	return &GridFSBucket{bucket: bucket}, nil
}

func (b *GridFSBucket) Upload(ctx context.Context, filename string, r io.Reader) (primitive.ObjectID, error) {
	stream, err := b.bucket.OpenUploadStream(filename)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		stream.SetWriteDeadline(deadline)
	}
	if _, err := io.Copy(stream, r); err != nil {
		stream.Abort()
		return primitive.NilObjectID, fmt.Errorf("write %s: %w", filename, err)
	}
	if err := stream.Close(); err != nil {
		return primitive.NilObjectID, fmt.Errorf("close %s: %w", filename, err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected file id %T", stream.FileID)
	}
	return id, nil
}

func (b *GridFSBucket) Download(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, string, error) {
	stream, err := b.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("open download stream %s: %w", id.Hex(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		stream.SetReadDeadline(deadline)
	}
	return stream, stream.GetFile().Name, nil
}

func (b *GridFSBucket) Delete(ctx context.Context, id primitive.ObjectID) error {
	err := b.bucket.DeleteContext(ctx, id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return ErrNotFound
	}
	return err
}
