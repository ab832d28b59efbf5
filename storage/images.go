package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PublicPrefix is the URL path stored images are served under.
const PublicPrefix = "/uploads/"

var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// ImageStore accepts image uploads and hands out their public URLs.
type ImageStore struct {
	bucket Bucket
}

func NewImageStore(bucket Bucket) *ImageStore {
	return &ImageStore{bucket: bucket}
}

// CheckName rejects file names without an image extension.
func CheckName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExt[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return nil
}

// Save stores r and returns the URL it is served at.
func (s *ImageStore) Save(ctx context.Context, r io.Reader, name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	id, err := s.bucket.Upload(ctx, filepath.Base(name), r)
	if err != nil {
		return "", err
	}
	return PublicPrefix + id.Hex(), nil
}

// Open returns the image behind a file id together with its content type.
func (s *ImageStore) Open(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, "", ErrNotFound
	}
	rc, name, err := s.bucket.Download(ctx, id)
	if err != nil {
		return nil, "", err
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

// Delete removes the image a URL returned by Save points at.
func (s *ImageStore) Delete(ctx context.Context, url string) error {
	id, err := primitive.ObjectIDFromHex(strings.TrimPrefix(url, PublicPrefix))
	if err != nil {
		return ErrNotFound
	}
	return s.bucket.Delete(ctx, id)
}
