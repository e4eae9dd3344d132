package metadata

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type CatalogConfig struct {
	PostgresDSN string
	Namespace   string
}

// Writer records pipeline runs in the catalog.
type Writer interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	Close() error
}

// RunRecord is the lineage of one pipeline run.
type RunRecord struct {
	RunID             string
	Dataset           string
	SchemaVersion     string
	SourceLocation    string
	Status            string
	FailedStage       string
	ErrorMessage      string
	RowsOriginal      int64
	RowsFull          int64
	RowsClean         int64
	DuplicatesRemoved int64
	OutliersRemoved   int64
	ProducerVersion   string
	StartedAt         time.Time
	FinishedAt        time.Time
	Artifacts         []ArtifactRecord
	Bounds            []BoundsRecord
}

// ArtifactRecord describes one published file.
type ArtifactRecord struct {
	Kind     string
	Key      string
	URI      string
	Checksum string
	ByteSize int64
	Rows     int64
}

// BoundsRecord is the outlier screen of one column, in screening order.
type BoundsRecord struct {
	Column    string
	Skipped   bool
	Q1        float64
	Q3        float64
	Lower     float64
	Upper     float64
	Removed   int64
	Remaining int64
}

// NewWriter returns a PostgreSQL writer when a DSN is configured and a no-op
// writer otherwise.
func NewWriter(cfg CatalogConfig) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{cfg: cfg}, nil
	}
	w, err := NewPostgresWriter(cfg)
	if err != nil {
		return nil, err
	}
	return w, nil
}

type noopWriter struct {
	cfg CatalogConfig
}

func (n noopWriter) RecordRun(_ context.Context, _ RunRecord) error { return nil }
func (n noopWriter) Close() error                                  { return nil }
