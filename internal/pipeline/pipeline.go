package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/config"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/logging"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/metadata"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/metrics"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/source"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/storage"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/tables"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// ProducerName identifies this program in manifests and the catalog.
const ProducerName = "ride-pipeline"

// Pipeline orchestrates one run: load, process, validate, persist, catalog.
type Pipeline struct {
	cfg     config.Config
	src     source.TableSource
	store   storage.Store
	catalog metadata.Writer
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New creates a pipeline. catalog and m may be nil.
func New(cfg config.Config, src source.TableSource, store storage.Store, catalog metadata.Writer, m *metrics.Metrics) *Pipeline {
	if catalog == nil {
		catalog, _ = metadata.NewWriter(metadata.CatalogConfig{})
	}
	return &Pipeline{
		cfg:     cfg,
		src:     src,
		store:   store,
		catalog: catalog,
		metrics: m,
		log:     logging.Component("pipeline"),
		now:     time.Now,
	}
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Ref        storage.RunRef
	Outcome    *Outcome
	Validation ValidationResult
	Published  *storage.PublishResult
	Summary    []byte
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run executes every stage on input. The first failing stage halts the run
// and is named by the returned *StageError. A failed run publishes nothing.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	started := p.now().UTC()
	res := &Result{
		RunID:     runID,
		StartedAt: started,
		Ref: storage.RunRef{
			Dataset:   p.cfg.Output.Dataset,
			RunID:     runID,
			Source:    input,
			Timestamp: started,
		},
	}
	log := logging.RunLogger(p.log, runID, p.cfg.Output.Dataset, input)
	log.Info("run started")

	err := p.run(ctx, log, input, res)
	res.FinishedAt = p.now().UTC()

	status := metadata.StatusSucceeded
	if err != nil {
		status = metadata.StatusFailed
		log.Error("run failed", "stage", FailedStage(err), "error", err)
	} else {
		log.Info("run complete",
			"rows_full", res.Outcome.Full.Len(),
			"rows_clean", res.Outcome.Clean.Len(),
			"manifest", res.Published.ManifestURI,
			"duration", res.FinishedAt.Sub(started).String(),
		)
	}

	p.record(ctx, log, res, err)
	if m := p.metrics; m != nil {
		m.IncRuns(p.labels(), status, float64(res.FinishedAt.Unix()))
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, input string, res *Result) error {
	observe := func(stage string, elapsed time.Duration, err error) {
		if m := p.metrics; m != nil {
			m.ObserveStage(p.labels(), stage, elapsed.Seconds(), err != nil)
		}
		if err == nil {
			log.Debug("stage done", "stage", stage, "duration", elapsed.String())
		}
	}

	var raw *table.Table
	err := runStage(StageLoad, observe, func() (err error) {
		raw, err = p.src.Load(ctx, input)
		return err
	})
	if err != nil {
		return err
	}
	log.Info("dataset loaded",
		"rows", raw.Len(),
		"columns", raw.Width(),
		"memory_mb", fmt.Sprintf("%.2f", float64(raw.MemoryFootprint())/(1024*1024)),
	)

	out, err := process(raw, observe)
	if err != nil {
		return err
	}
	res.Outcome = out
	p.logOutcome(log, out)

	err = runStage(StageValidation, observe, func() error {
		res.Validation = Validate(out)
		for _, w := range res.Validation.Warnings {
			log.Warn("validation warning", "warning", w)
		}
		if !res.Validation.Passed {
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(res.Validation.Errors, "; "))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return runStage(StagePersist, observe, func() error {
		artifacts, summary, err := p.buildArtifacts(res.Ref, out)
		if err != nil {
			return err
		}
		res.Summary = summary

		producer := storage.ProducerInfo{Name: ProducerName, Version: Version, GitSHA: GitSHA}
		published, err := storage.Publish(ctx, p.store, res.Ref, producer, artifacts)
		if err != nil {
			return err
		}
		res.Published = published

		for _, a := range published.Artifacts {
			log.Info("artifact published", "kind", a.Kind, "uri", a.URI, "bytes", a.ByteSize, "checksum", a.Checksum)
			if m := p.metrics; m != nil {
				m.SetArtifactBytes(p.labels(), a.Kind, float64(a.ByteSize))
			}
		}
		return nil
	})
}

// logOutcome narrates the stage reports and updates the table metrics.
func (p *Pipeline) logOutcome(log *slog.Logger, out *Outcome) {
	std := out.Standardize
	log.Info("standardized",
		"renamed_columns", len(std.RenamedColumns),
		"date_layout", std.DateLayout,
		"numeric_columns", len(std.NumericColumns),
	)

	dedup := out.Features.Dedup
	log.Info("temporal features built",
		"missing_timestamps", out.Features.MissingTimestamps,
		"duplicate_rows", dedup.DuplicateRows,
		"duplicate_groups", dedup.DuplicateGroups,
		"duplicates_removed", dedup.Removed,
		"rows", dedup.RowsAfter,
	)

	for _, c := range out.Outliers.Columns {
		if c.Skipped {
			log.Info("outlier column skipped", "column", c.Column)
			continue
		}
		log.Info("outliers removed",
			"column", c.Column,
			"lower", c.Bounds.Lower,
			"upper", c.Bounds.Upper,
			"removed", c.Removed,
			"remaining", c.Remaining,
		)
	}

	full, clean := out.Metrics.Full, out.Metrics.Clean
	log.Info("business metrics",
		"total_revenue_full", full.TotalRevenue,
		"total_revenue_clean", clean.TotalRevenue,
		"cancellation_rate_full", full.CancellationRate,
		"cancellation_rate_clean", clean.CancellationRate,
		"retained_pct", out.Metrics.Comparison.RetainedPct,
	)

	if m := p.metrics; m != nil {
		l := p.labels()
		m.SetTableRows(l, "raw", float64(out.RowsLoaded))
		m.SetTableRows(l, "full", float64(out.Full.Len()))
		m.SetTableRows(l, "clean", float64(out.Clean.Len()))
		m.AddDuplicatesRemoved(l, float64(dedup.Removed))
		for _, c := range out.Outliers.Columns {
			m.AddOutliersRemoved(l, c.Column, float64(c.Removed))
		}
	}
}

// record writes the run to the catalog. Failures are logged, never returned.
func (p *Pipeline) record(ctx context.Context, log *slog.Logger, res *Result, runErr error) {
	rec := metadata.RunRecord{
		RunID:           res.RunID,
		Dataset:         p.cfg.Output.Dataset,
		SchemaVersion:   tables.SchemaVersion,
		SourceLocation:  res.Ref.Source,
		Status:          metadata.StatusSucceeded,
		ProducerVersion: Version,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
	if runErr != nil {
		rec.Status = metadata.StatusFailed
		rec.FailedStage = FailedStage(runErr)
		rec.ErrorMessage = runErr.Error()
	}

	if out := res.Outcome; out != nil {
		rec.RowsOriginal = int64(out.RowsLoaded)
		rec.RowsFull = int64(out.Full.Len())
		rec.RowsClean = int64(out.Clean.Len())
		rec.DuplicatesRemoved = int64(out.Features.Dedup.Removed)
		rec.OutliersRemoved = int64(out.Outliers.TotalRemoved)
		for _, c := range out.Outliers.Columns {
			rec.Bounds = append(rec.Bounds, metadata.BoundsRecord{
				Column:    c.Column,
				Skipped:   c.Skipped,
				Q1:        c.Bounds.Q1,
				Q3:        c.Bounds.Q3,
				Lower:     c.Bounds.Lower,
				Upper:     c.Bounds.Upper,
				Removed:   int64(c.Removed),
				Remaining: int64(c.Remaining),
			})
		}
	}
	if pub := res.Published; pub != nil {
		for _, a := range pub.Artifacts {
			rec.Artifacts = append(rec.Artifacts, metadata.ArtifactRecord{
				Kind:     a.Kind,
				Key:      a.Key,
				URI:      a.URI,
				Checksum: a.Checksum,
				ByteSize: a.ByteSize,
				Rows:     a.Rows,
			})
		}
	}

	if err := p.catalog.RecordRun(ctx, rec); err != nil {
		log.Warn("failed to record run in catalog", "error", err)
		if m := p.metrics; m != nil {
			m.IncCatalogErrors(p.labels())
		}
	}
}

func (p *Pipeline) labels() metrics.Labels {
	return metrics.Labels{Dataset: p.cfg.Output.Dataset}
}
