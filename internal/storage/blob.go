package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
)

// BlobStore writes run artifacts to a gocloud bucket.
type BlobStore struct {
	bucket  *blob.Bucket
	uriBase string // "gs://bucket", "s3://bucket", "mem://"
	prefix  string
}

// NewBlobStore wraps an open bucket. The store owns the bucket and closes it.
func NewBlobStore(bucket *blob.Bucket, uriBase, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, uriBase: uriBase, prefix: keyPrefix(prefix)}
}

// NewMemStore creates an in-memory store, used for dry runs and tests.
func NewMemStore(prefix string) *BlobStore {
	return NewBlobStore(memblob.OpenBucket(nil), "mem://", prefix)
}

// Key returns the object key of an artifact name.
func (s *BlobStore) Key(name string) string {
	return s.prefix + name
}

// WriteTemp writes data to a temporary object.
func (s *BlobStore) WriteTemp(ctx context.Context, name string, data []byte) (string, error) {
	tempKey := s.Key(name) + ".tmp." + uuid.New().String()

	w, err := s.bucket.NewWriter(ctx, tempKey, nil)
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", tempKey, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write data to %s: %w", tempKey, err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", tempKey, err)
	}

	return tempKey, nil
}

// Finalize moves temp objects to their final keys using copy + delete.
func (s *BlobStore) Finalize(ctx context.Context, pending []Pending) error {
	for i, p := range pending {
		if err := s.copyObject(ctx, p.TempKey, p.Key); err != nil {
			// Rollback: delete any copied objects
			for _, done := range pending[:i] {
				s.bucket.Delete(ctx, done.Key)
			}
			s.Abort(ctx, tempKeys(pending))
			return fmt.Errorf("finalize %s -> %s: %w", p.TempKey, p.Key, err)
		}
	}

	// Delete all temp files after successful copy
	for _, p := range pending {
		s.bucket.Delete(ctx, p.TempKey) // ignore errors
	}
	return nil
}

// copyObject copies an object within the bucket.
func (s *BlobStore) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}

	return w.Close()
}

// Abort removes temporary objects without publishing.
func (s *BlobStore) Abort(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := s.bucket.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Exists checks if an artifact has already been published.
func (s *BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.bucket.Exists(ctx, s.Key(name))
}

// Head returns metadata about a stored object.
func (s *BlobStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get attributes for %s: %w", key, err)
	}

	return &ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ETag:    attrs.ETag,
		ModTime: attrs.ModTime,
	}, nil
}

// Read returns the contents of a stored object.
func (s *BlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// List returns all keys with the given prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{
		Prefix: prefix,
	})

	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	if s.uriBase == "mem://" {
		return s.uriBase + key
	}
	return s.uriBase + "/" + key
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

var _ Store = (*BlobStore)(nil)
