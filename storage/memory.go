package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryFile struct {
	name string
	data []byte
}

// MemoryBucket is the Bucket used by tests and by local runs without Mongo.
type MemoryBucket struct {
	mu    sync.Mutex
	files map[primitive.ObjectID]memoryFile
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{files: make(map[primitive.ObjectID]memoryFile)}
}

func (b *MemoryBucket) Upload(ctx context.Context, filename string, r io.Reader) (primitive.ObjectID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id := primitive.NewObjectID()
	b.mu.Lock()
	b.files[id] = memoryFile{name: filename, data: data}
	b.mu.Unlock()
	return id, nil
}

func (b *MemoryBucket) Download(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, string, error) {
	b.mu.Lock()
	f, ok := b.files[id]
	b.mu.Unlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.name, nil
}

func (b *MemoryBucket) Delete(ctx context.Context, id primitive.ObjectID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[id]; !ok {
		return ErrNotFound
	}
	delete(b.files, id)
	return nil
}

// Len reports how many files are stored.
func (b *MemoryBucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}
