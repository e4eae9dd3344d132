// Package pipeline runs the ride bookings stages in order and halts at the
// first failure.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/analytics"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/features"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/outlier"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/standardize"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// Stage names, in execution order.
const (
	StageLoad             = "load"
	StageStandardize      = "standardize"
	StageTemporalFeatures = "temporal_features"
	StageOutlierFilter    = "outlier_filter"
	StageBusinessMetrics  = "business_metrics"
	StageValidation       = "validation"
	StagePersist          = "persist"
)

// ErrValidation is returned when the processed tables fail their checks.
var ErrValidation = errors.New("validation failed")

// StageError names the stage a run halted at.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage named by err, or "" if err carries none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Outcome holds the tables and reports of stages standardize through
// business_metrics.
type Outcome struct {
	RowsLoaded  int
	Full        *table.Table
	Clean       *table.Table
	Standardize standardize.Report
	Features    features.Report
	Outliers    outlier.Report
	Metrics     analytics.Report
}

// observer is told about every finished stage.
type observer func(stage string, elapsed time.Duration, err error)

// Process runs standardization, temporal features, outlier filtering and
// business metrics on a loaded table. raw is not modified.
func Process(raw *table.Table) (*Outcome, error) {
	return process(raw, nil)
}

func process(raw *table.Table, observe observer) (*Outcome, error) {
	out := &Outcome{RowsLoaded: raw.Len()}

	var std *table.Table
	err := runStage(StageStandardize, observe, func() (err error) {
		std, out.Standardize, err = standardize.Standardize(raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StageTemporalFeatures, observe, func() (err error) {
		out.Full, out.Features, err = features.Build(std)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StageOutlierFilter, observe, func() (err error) {
		out.Clean, out.Outliers, err = outlier.Filter(out.Full)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StageBusinessMetrics, observe, func() (err error) {
		out.Metrics, err = analytics.Build(out.Full, out.Clean)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// runStage runs fn as stage, turning an error or a panic into a StageError.
func runStage(stage string, observe observer, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
		if err != nil {
			err = &StageError{Stage: stage, Err: err}
		}
		if observe != nil {
			observe(stage, time.Since(start), err)
		}
	}()
	return fn()
}
