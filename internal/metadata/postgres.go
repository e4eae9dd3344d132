package metadata

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool         *pgxpool.Pool
	cfg          CatalogConfig
	log          *slog.Logger
	mu           sync.RWMutex
	datasetCache map[string]int64 // cache dataset IDs
}

// ParseConfig parses the DSN and applies the pool limits used by the writer.
func ParseConfig(dsn string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	// A run writes one record; keep the pool small.
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	return poolCfg, nil
}

// NewPostgresWriter creates a new PostgreSQL catalog writer.
func NewPostgresWriter(cfg CatalogConfig) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool:         pool,
		cfg:          cfg,
		log:          slog.With("component", "metadata"),
		datasetCache: make(map[string]int64),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to PostgreSQL catalog")
	return w, nil
}

// initSchema creates the _meta_* tables if they don't exist.
func (w *PostgresWriter) initSchema(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// EnsureDataset registers or retrieves a dataset entry.
func (w *PostgresWriter) EnsureDataset(ctx context.Context, dataset, schemaVersion string) (int64, error) {
	cacheKey := fmt.Sprintf("%s.%s.%s", w.cfg.Namespace, dataset, schemaVersion)
	w.mu.RLock()
	if id, ok := w.datasetCache[cacheKey]; ok {
		w.mu.RUnlock()
		return id, nil
	}
	w.mu.RUnlock()

	query := `
		INSERT INTO _meta_datasets (namespace, dataset, schema_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, dataset, schema_version)
		DO UPDATE SET updated_at = NOW()
		RETURNING id
	`

	var id int64
	if err := w.pool.QueryRow(ctx, query, w.cfg.Namespace, dataset, schemaVersion).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure dataset: %w", err)
	}

	w.mu.Lock()
	w.datasetCache[cacheKey] = id
	w.mu.Unlock()

	return id, nil
}

// RecordRun writes the run, its artifacts and its outlier bounds in one
// transaction.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	datasetID, err := w.EnsureDataset(ctx, rec.Dataset, rec.SchemaVersion)
	if err != nil {
		return err
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if err := insertRun(ctx, tx, datasetID, rec); err != nil {
		return err
	}

	for _, a := range rec.Artifacts {
		_, err := tx.Exec(ctx, `
			INSERT INTO _meta_artifacts (run_id, kind, storage_key, storage_uri, checksum, byte_size, row_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, rec.RunID, a.Kind, a.Key, a.URI, a.Checksum, a.ByteSize, a.Rows)
		if err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Key, err)
		}
	}

	for i, b := range rec.Bounds {
		_, err := tx.Exec(ctx, `
			INSERT INTO _meta_outlier_bounds (
				run_id, position, column_name, skipped, q1, q3, lower_bound, upper_bound, removed, remaining
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, rec.RunID, i, b.Column, b.Skipped,
			nullable(b.Skipped, b.Q1), nullable(b.Skipped, b.Q3),
			nullable(b.Skipped, b.Lower), nullable(b.Skipped, b.Upper),
			b.Removed, b.Remaining)
		if err != nil {
			return fmt.Errorf("insert bounds %s: %w", b.Column, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	w.log.Debug("recorded run", "run_id", rec.RunID, "status", rec.Status, "artifacts", len(rec.Artifacts))
	return nil
}

func insertRun(ctx context.Context, tx pgx.Tx, datasetID int64, rec RunRecord) error {
	query := `
		INSERT INTO _meta_runs (
			dataset_id, run_id, source_location, status, failed_stage, error_message,
			rows_original, rows_full, rows_clean, duplicates_removed, outliers_removed,
			producer_version, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var failedStage, errMsg *string
	if rec.FailedStage != "" {
		failedStage = &rec.FailedStage
	}
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := tx.Exec(ctx, query,
		datasetID,
		rec.RunID,
		rec.SourceLocation,
		rec.Status,
		failedStage,
		errMsg,
		rec.RowsOriginal,
		rec.RowsFull,
		rec.RowsClean,
		rec.DuplicatesRemoved,
		rec.OutliersRemoved,
		rec.ProducerVersion,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// nullable stores skipped or non-finite bounds as NULL.
func nullable(skipped bool, v float64) *float64 {
	if skipped || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

var _ Writer = (*PostgresWriter)(nil)
