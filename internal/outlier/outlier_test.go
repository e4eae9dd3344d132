package outlier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

func numbers(vals ...float64) []table.Value {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = table.Missing()
			continue
		}
		out[i] = table.Number(v)
	}
	return out
}

// build makes a table from columns of equal length.
func build(t *testing.T, cols map[string][]table.Value) *table.Table {
	t.Helper()
	names := make([]string, 0, len(cols))
	n := -1
	for _, c := range append([]string{"booking_id"}, Columns...) {
		if c == "booking_id" {
			names = append(names, c)
			continue
		}
		if v, ok := cols[c]; ok {
			names = append(names, c)
			n = len(v)
		}
	}
	rows := make([]table.Row, n)
	for i := range rows {
		row := table.Row{table.String(string(rune('a' + i)))}
		for _, c := range names[1:] {
			row = append(row, cols[c][i])
		}
		rows[i] = row
	}
	tbl, err := table.New(names, rows)
	require.NoError(t, err)
	return tbl
}

func TestQuantileLinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 3.25, Quantile(sorted, 0.75), 1e-12)
	assert.InDelta(t, 2.5, Quantile(sorted, 0.5), 1e-12)
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 4.0, Quantile(sorted, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.25))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestComputeBounds(t *testing.T) {
	b := ComputeBounds([]float64{4, 1, 3, 2})
	assert.InDelta(t, 1.75, b.Q1, 1e-12)
	assert.InDelta(t, 3.25, b.Q3, 1e-12)
	assert.InDelta(t, 1.5, b.IQR, 1e-12)
	assert.InDelta(t, -0.5, b.Lower, 1e-12)
	assert.InDelta(t, 5.5, b.Upper, 1e-12)
	assert.True(t, b.Contains(5.5), "upper bound is inclusive")
	assert.False(t, b.Contains(5.51))
}

func TestFilterRemovesOutlierAndKeepsMissing(t *testing.T) {
	nan := math.NaN()
	tbl := build(t, map[string][]table.Value{
		"ride_distance": numbers(10, 11, 12, 13, nan, 14, 500),
	})

	out, report, err := Filter(tbl)
	require.NoError(t, err)

	assert.Equal(t, 6, out.Len())
	assert.Equal(t, 1, report.TotalRemoved)
	assert.True(t, out.Value(4, "ride_distance").IsMissing(), "missing ride_distance passes the screen")
	assert.InDelta(t, 6.0/7.0*100, report.RetainedPct, 1e-9)

	require.Len(t, report.Columns, len(Columns))
	for _, c := range report.Columns {
		if c.Column == "ride_distance" {
			assert.False(t, c.Skipped)
			assert.Equal(t, 1, c.Removed)
			assert.Equal(t, 6, c.Remaining)
			continue
		}
		assert.True(t, c.Skipped, c.Column)
	}
}

func TestFilterSkipsAllMissingColumn(t *testing.T) {
	nan := math.NaN()
	tbl := build(t, map[string][]table.Value{
		"avg_vtat":      numbers(nan, nan, nan),
		"booking_value": numbers(1, 2, 3),
	})

	out, report, err := Filter(tbl)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.True(t, report.Columns[0].Skipped)
	_, ok := report.Bounds("avg_vtat")
	assert.False(t, ok)
	_, ok = report.Bounds("booking_value")
	assert.True(t, ok)
}

func TestFilterRetainedValuesWithinBounds(t *testing.T) {
	tbl := build(t, map[string][]table.Value{
		"avg_vtat":        numbers(5, 6, 7, 8, 9, 60, 7, 6, 5, 8),
		"booking_value":   numbers(100, 120, 130, 90, 2000, 110, 105, 95, 115, 125),
		"ride_distance":   numbers(10, 12, 11, 13, 12, 11, 90, 10, 12, 11),
		"customer_rating": numbers(4.5, 4.6, 4.7, 4.8, 4.4, 4.9, 4.5, 1.0, 4.6, 4.7),
	})

	out, report, err := Filter(tbl)
	require.NoError(t, err)
	require.LessOrEqual(t, out.Len(), tbl.Len())

	for _, col := range Columns {
		b, ok := report.Bounds(col)
		if !ok {
			continue
		}
		vals, err := out.Floats(col)
		require.NoError(t, err)
		for _, v := range vals {
			assert.True(t, b.Contains(v), "%s=%v outside [%v, %v]", col, v, b.Lower, b.Upper)
		}
	}
}

func TestFilterIsSequential(t *testing.T) {
	// Removing the avg_vtat outlier (row 5) also removes booking_value 40, so
	// booking_value's quartiles are computed without it.
	tbl := build(t, map[string][]table.Value{
		"avg_vtat":      numbers(1, 2, 3, 4, 5, 100),
		"booking_value": numbers(10, 11, 12, 13, 14, 40),
	})

	_, report, err := Filter(tbl)
	require.NoError(t, err)

	b, ok := report.Bounds("booking_value")
	require.True(t, ok)
	want := ComputeBounds([]float64{10, 11, 12, 13, 14})
	assert.Equal(t, want, b)
}

func TestRepeatedPassesNeverGrow(t *testing.T) {
	tbl := build(t, map[string][]table.Value{
		"avg_vtat":      numbers(1, 2, 3, 4, 5, 6, 7, 8, 30, 9, 10, 45),
		"avg_ctat":      numbers(20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 80, 30),
		"booking_value": numbers(100, 150, 200, 250, 300, 350, 400, 900, 450, 500, 550, 600),
		"ride_distance": numbers(1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 19),
	})

	prev := tbl.Len()
	current := tbl
	for pass := 0; pass < 5; pass++ {
		out, _, err := Filter(current)
		require.NoError(t, err)
		assert.LessOrEqual(t, out.Len(), prev, "pass %d", pass)
		prev = out.Len()
		current = out
	}
}

func TestFilterFixedPointForStableColumn(t *testing.T) {
	tbl := build(t, map[string][]table.Value{
		"ride_distance": numbers(10, 11, 12, 13, 14, 15, 100),
	})

	once, _, err := Filter(tbl)
	require.NoError(t, err)
	twice, report, err := Filter(once)
	require.NoError(t, err)

	assert.Equal(t, once.Len(), twice.Len())
	assert.Equal(t, 0, report.TotalRemoved)
}

func TestFilterEmptyTable(t *testing.T) {
	tbl, err := table.New([]string{"ride_distance"}, nil)
	require.NoError(t, err)

	out, report, err := Filter(tbl)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.True(t, math.IsNaN(report.RetainedPct))
}
