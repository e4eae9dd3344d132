// Package analytics computes business metrics over a booking table and compares
// the full table with its outlier-filtered subset.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// ErrMissingColumn is returned when a column needed for a metric is absent.
var ErrMissingColumn = errors.New("missing required column")

// RequiredColumns must be present for Compute.
var RequiredColumns = []string{
	"booking_value", "ride_distance", "booking_status",
	"avg_vtat", "avg_ctat", "driver_ratings", "customer_rating",
}

// StatusShare is one entry of the booking_status frequency table.
type StatusShare struct {
	Status  string
	Count   int
	Percent float64
}

// Metrics are the descriptive statistics of one table. Means and sums over a
// column without any value are NaN.
type Metrics struct {
	Rows              int
	TotalRevenue      float64 // sum of booking_value
	AvgBookingValue   float64
	TotalDistance     float64 // sum of ride_distance
	AvgRideDistance   float64
	CancelledBookings int     // rows whose status mentions "cancel"
	CancellationRate  float64 // CancelledBookings as a percent of Rows
	AvgVTAT           float64
	AvgCTAT           float64
	AvgDriverRating   float64
	AvgCustomerRating float64
	StatusBreakdown   []StatusShare
}

// Comparison relates the clean table to the full one.
type Comparison struct {
	RowsFull    int
	RowsClean   int
	RowsRemoved int
	RetainedPct float64
}

// Report holds metrics for both tables and their comparison.
type Report struct {
	Full       Metrics
	Clean      Metrics
	Comparison Comparison
}

// Compute returns the metrics of t.
func Compute(t *table.Table) (Metrics, error) {
	m := Metrics{Rows: t.Len()}
	for _, col := range RequiredColumns {
		if !t.Has(col) {
			return m, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	col := func(name string) []float64 {
		v, _ := t.Floats(name)
		return v
	}

	bookingValue := col("booking_value")
	rideDistance := col("ride_distance")
	m.TotalRevenue = sum(bookingValue)
	m.AvgBookingValue = mean(bookingValue)
	m.TotalDistance = sum(rideDistance)
	m.AvgRideDistance = mean(rideDistance)
	m.AvgVTAT = mean(col("avg_vtat"))
	m.AvgCTAT = mean(col("avg_ctat"))
	m.AvgDriverRating = mean(col("driver_ratings"))
	m.AvgCustomerRating = mean(col("customer_rating"))

	statuses, err := t.Column("booking_status")
	if err != nil {
		return m, fmt.Errorf("%w: booking_status", ErrMissingColumn)
	}
	m.CancelledBookings = CountCancelled(statuses)
	m.CancellationRate = CancellationRate(statuses)
	m.StatusBreakdown = Breakdown(statuses)
	return m, nil
}

// CancellationRate is the percent of values whose text contains "cancel",
// ignoring case. Missing values count as not cancelled. NaN for no values.
func CancellationRate(statuses []table.Value) float64 {
	if len(statuses) == 0 {
		return math.NaN()
	}
	return float64(CountCancelled(statuses)) / float64(len(statuses)) * 100
}

// CountCancelled counts the values whose text contains "cancel", ignoring case.
func CountCancelled(statuses []table.Value) int {
	cancelled := 0
	for _, v := range statuses {
		s, ok := v.Str()
		if ok && strings.Contains(strings.ToLower(s), "cancel") {
			cancelled++
		}
	}
	return cancelled
}

// Breakdown counts the distinct non-missing values, most frequent first and
// ties in order of first appearance. Percentages are of all values.
func Breakdown(values []table.Value) []StatusShare {
	index := make(map[string]int)
	var shares []StatusShare
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		s := v.Text()
		i, ok := index[s]
		if !ok {
			i = len(shares)
			index[s] = i
			shares = append(shares, StatusShare{Status: s})
		}
		shares[i].Count++
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Count > shares[j].Count })
	for i := range shares {
		shares[i].Percent = float64(shares[i].Count) / float64(len(values)) * 100
	}
	return shares
}

// Compare returns the row-count delta between full and clean.
func Compare(full, clean *table.Table) Comparison {
	c := Comparison{
		RowsFull:    full.Len(),
		RowsClean:   clean.Len(),
		RowsRemoved: full.Len() - clean.Len(),
		RetainedPct: math.NaN(),
	}
	if c.RowsFull > 0 {
		c.RetainedPct = float64(c.RowsClean) / float64(c.RowsFull) * 100
	}
	return c
}

// Build computes metrics for both tables and compares them.
func Build(full, clean *table.Table) (Report, error) {
	var report Report
	var err error
	if report.Full, err = Compute(full); err != nil {
		return report, fmt.Errorf("full table: %w", err)
	}
	if report.Clean, err = Compute(clean); err != nil {
		return report, fmt.Errorf("clean table: %w", err)
	}
	report.Comparison = Compare(full, clean)
	return report, nil
}

func sum(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return floats.Sum(x)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}
