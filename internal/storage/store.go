package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StampLayout formats the run timestamp shared by every artifact of a run.
const StampLayout = "20060102_150405"

// ErrUnknownBackend is returned by NewStore for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// RunRef identifies the artifacts of one pipeline run.
type RunRef struct {
	Dataset   string // "ncr_ride_bookings"
	RunID     string
	Source    string // input location
	Timestamp time.Time
}

// Stamp returns the YYYYMMDD_HHMMSS run timestamp.
func (r RunRef) Stamp() string {
	return r.Timestamp.Format(StampLayout)
}

// ProcessedName returns the file name of the full table.
func (r RunRef) ProcessedName(ext string) string {
	return fmt.Sprintf("%s_processed_%s.%s", r.Dataset, r.Stamp(), ext)
}

// NoOutliersName returns the file name of the outlier-filtered table.
func (r RunRef) NoOutliersName(ext string) string {
	return fmt.Sprintf("%s_no_outliers_%s.%s", r.Dataset, r.Stamp(), ext)
}

// SummaryName returns the file name of the text summary.
func (r RunRef) SummaryName() string {
	return fmt.Sprintf("processing_summary_%s.txt", r.Stamp())
}

// ManifestName returns the file name of the run manifest.
func (r RunRef) ManifestName() string {
	return fmt.Sprintf("_manifest_%s.json", r.Stamp())
}

// Manifest describes the artifacts published by a run.
type Manifest struct {
	Run       RunInfo        `json:"run"`
	Artifacts []ArtifactInfo `json:"artifacts"`
	Producer  ProducerInfo   `json:"producer"`
	CreatedAt time.Time      `json:"created_at"`
}

// RunInfo describes the run that produced the artifacts.
type RunInfo struct {
	Dataset string `json:"dataset"`
	RunID   string `json:"run_id"`
	Stamp   string `json:"stamp"`
	Source  string `json:"source"`
}

// ArtifactInfo describes a single published file.
type ArtifactInfo struct {
	File     string `json:"file"`
	Kind     string `json:"kind"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count,omitempty"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo describes the software that produced the artifacts.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// Pending pairs a temporary key with the key it is published under.
type Pending struct {
	TempKey string
	Key     string
}

// Store writes run artifacts with a temp -> finalize publish.
type Store interface {
	// Key returns the full storage key for an artifact name.
	Key(name string) string

	// WriteTemp writes data next to Key(name) under a unique temporary key.
	WriteTemp(ctx context.Context, name string, data []byte) (tempKey string, err error)

	// Finalize moves every temp key to its final key. If one move fails the
	// already-moved files are removed and the temps are aborted.
	Finalize(ctx context.Context, pending []Pending) error

	// Abort removes temporary files without publishing.
	Abort(ctx context.Context, tempKeys []string) error

	// Exists reports whether an artifact name is already published.
	Exists(ctx context.Context, name string) (bool, error)

	// Head returns metadata about a stored object.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Read returns the contents of a stored object.
	Read(ctx context.Context, key string) ([]byte, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string // MD5 for S3/GCS, empty for local
	ModTime time.Time
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "gcs" | "s3" | "mem"

	// Local filesystem
	LocalDir string

	// GCS or S3 bucket name
	Bucket string

	// S3 (also works for B2, R2, MinIO)
	S3Endpoint string
	S3Region   string

	// Common
	Prefix string // path prefix within bucket or local dir
}

// NewStore creates a storage backend based on configuration.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for gcs backend")
		}
		return NewGCSStore(cfg.Bucket, cfg.Prefix)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("Bucket required for s3 backend")
		}
		return NewS3Store(cfg.Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	case "mem":
		return NewMemStore(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// keyPrefix makes a non-empty prefix end in a single slash.
func keyPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
