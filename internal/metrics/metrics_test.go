package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStage(t *testing.T) {
	m := New("test")
	l := Labels{Dataset: "ncr_ride_bookings"}

	m.ObserveStage(l, "standardize", 0.02, false)
	m.ObserveStage(l, "outlier_filter", 0.01, true)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.StageFailures.WithLabelValues(l.Dataset, "standardize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues(l.Dataset, "outlier_filter")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a := New("test")
	b := New("test")
	l := Labels{Dataset: "d"}

	a.AddOutliersRemoved(l, "ride_distance", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.OutliersRemoved.WithLabelValues("d", "ride_distance")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.OutliersRemoved))
}

func TestWriteTextfile(t *testing.T) {
	m := Init("ride_pipeline")
	require.Same(t, m, Get())

	l := Labels{Dataset: "ncr_ride_bookings"}
	m.SetTableRows(l, "clean", 8)
	m.AddDuplicatesRemoved(l, 1)
	m.IncRuns(l, "succeeded", 1700000000)

	path := filepath.Join(t.TempDir(), "ride_pipeline.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ride_pipeline_table_rows{dataset="ncr_ride_bookings",table="clean"} 8`)
	assert.Contains(t, string(data), `ride_pipeline_runs_total{dataset="ncr_ride_bookings",status="succeeded"} 1`)
}
