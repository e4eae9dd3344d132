// Package outlier removes rows outside per-column interquartile-range bounds.
//
// Columns are screened one after another: each column's quartiles are computed
// on the table already reduced by the columns before it. Missing values are
// never treated as outliers.
package outlier

import (
	"math"
	"slices"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// Columns are screened in this order.
var Columns = []string{"avg_vtat", "avg_ctat", "booking_value", "ride_distance", "driver_ratings", "customer_rating"}

// Multiplier scales the IQR to get the fences.
const Multiplier = 1.5

// Bounds are the inclusive fences of one column.
type Bounds struct {
	Q1    float64
	Q3    float64
	IQR   float64
	Lower float64
	Upper float64
}

// Contains reports whether v lies within [Lower, Upper].
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// ColumnResult records the screen of one column.
type ColumnResult struct {
	Column    string
	Skipped   bool // absent or every value missing
	Bounds    Bounds
	Removed   int
	Remaining int
}

// Report is the ordered log of one filtering pass.
type Report struct {
	Columns      []ColumnResult
	RowsBefore   int
	RowsAfter    int
	TotalRemoved int
	RetainedPct  float64 // NaN when the input was empty
}

// Bounds returns the bounds used for column, if it was screened.
func (r Report) Bounds(column string) (Bounds, bool) {
	for _, c := range r.Columns {
		if c.Column == column && !c.Skipped {
			return c.Bounds, true
		}
	}
	return Bounds{}, false
}

// Filter runs one sequential pass over Columns and returns the reduced table.
// Absent columns are skipped.
func Filter(t *table.Table) (*table.Table, Report, error) {
	report := Report{RowsBefore: t.Len()}
	current := t

	for _, col := range Columns {
		res := ColumnResult{Column: col}
		values, err := current.Floats(col)
		if err != nil || len(values) == 0 {
			res.Skipped = true
			res.Remaining = current.Len()
			report.Columns = append(report.Columns, res)
			continue
		}

		bounds := ComputeBounds(values)
		c, _ := current.Index(col)
		before := current.Len()
		current = current.Filter(func(_ int, r table.Row) bool {
			f, ok := r[c].Float()
			return !ok || bounds.Contains(f)
		})

		res.Bounds = bounds
		res.Removed = before - current.Len()
		res.Remaining = current.Len()
		report.Columns = append(report.Columns, res)
	}

	report.RowsAfter = current.Len()
	report.TotalRemoved = report.RowsBefore - report.RowsAfter
	report.RetainedPct = percent(report.RowsAfter, report.RowsBefore)
	return current, report, nil
}

// ComputeBounds returns the quartile fences of values. values must not be empty.
func ComputeBounds(values []float64) Bounds {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - Multiplier*iqr,
		Upper: q3 + Multiplier*iqr,
	}
}

// Quantile returns the p-quantile of sorted values using linear interpolation
// between closest ranks (h = p*(n-1)). It returns NaN for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := p * float64(n-1)
	lower := int(math.Floor(h))
	upper := int(math.Ceil(h))
	if lower == upper {
		return sorted[lower]
	}
	weight := h - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return math.NaN()
	}
	return float64(part) / float64(whole) * 100
}
