package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes run artifacts to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  keyPrefix(prefix),
	}, nil
}

// Key returns the key of name relative to the base directory.
func (s *LocalStore) Key(name string) string {
	return s.prefix + name
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// WriteTemp writes data to a temporary file next to its final path.
func (s *LocalStore) WriteTemp(ctx context.Context, name string, data []byte) (string, error) {
	tempKey := s.Key(name) + ".tmp." + uuid.New().String()
	path := s.path(tempKey)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", path, err)
	}
	return tempKey, nil
}

// Finalize renames every temp file to its final path.
func (s *LocalStore) Finalize(ctx context.Context, pending []Pending) error {
	for i, p := range pending {
		if err := os.Rename(s.path(p.TempKey), s.path(p.Key)); err != nil {
			// Rollback: remove files already published
			for _, done := range pending[:i] {
				os.Remove(s.path(done.Key))
			}
			s.Abort(ctx, tempKeys(pending[i:]))
			return fmt.Errorf("rename %s to %s: %w", p.TempKey, p.Key, err)
		}
	}
	return nil
}

// Abort removes temporary files without publishing.
func (s *LocalStore) Abort(ctx context.Context, keys []string) error {
	var lastErr error
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}

// Exists checks if an artifact has already been published.
func (s *LocalStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(s.Key(name)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Head returns metadata about a stored file.
func (s *LocalStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return &ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Read returns the contents of a stored file.
func (s *LocalStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	absPath, err := filepath.Abs(s.path(key))
	if err != nil {
		absPath = s.path(key)
	}
	return "file://" + filepath.ToSlash(absPath)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

func tempKeys(pending []Pending) []string {
	keys := make([]string, len(pending))
	for i, p := range pending {
		keys[i] = p.TempKey
	}
	return keys
}

var _ Store = (*LocalStore)(nil)
