// Package features derives the booking timestamp and its calendar fields and
// removes duplicate bookings.
package features

import (
	"errors"
	"fmt"
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// Derived column names, appended in this order.
const (
	ColumnDateTime  = "datetime"
	ColumnHour      = "hour"
	ColumnDayOfWeek = "day_of_week"
	ColumnMonth     = "month"
	ColumnQuarter   = "quarter"
)

// KeyColumn identifies a booking.
const KeyColumn = "booking_id"

// Report describes the feature and deduplication step.
type Report struct {
	MissingTimestamps int // rows whose date or time is missing
	Dedup             DedupReport
}

// DedupReport describes a deduplication.
type DedupReport struct {
	Key                 string
	RowsBefore          int
	DuplicateRows       int // every row sharing its key with another row
	DuplicateGroups     int // keys that occur more than once
	Removed             int
	RowsAfter           int
	RemainingDuplicates int
}

// Build appends datetime, hour, day_of_week, month and quarter and then drops
// duplicate bookings. Rows missing a date or time keep missing features.
func Build(t *table.Table) (*table.Table, Report, error) {
	var report Report
	for _, col := range []string{"date", "time", KeyColumn} {
		if !t.Has(col) {
			return nil, report, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	out := t.Clone()
	out.SetColumn(ColumnDateTime, func(r table.Row) table.Value {
		ts, ok := combine(out, r)
		if !ok {
			report.MissingTimestamps++
			return table.Missing()
		}
		return table.DateTime(ts)
	})

	dt, _ := out.Index(ColumnDateTime)
	derive := func(name string, fn func(time.Time) table.Value) {
		out.SetColumn(name, func(r table.Row) table.Value {
			ts, ok := r[dt].Time()
			if !ok {
				return table.Missing()
			}
			return fn(ts)
		})
	}
	derive(ColumnHour, func(ts time.Time) table.Value { return table.Number(float64(ts.Hour())) })
	derive(ColumnDayOfWeek, func(ts time.Time) table.Value { return table.String(ts.Weekday().String()) })
	derive(ColumnMonth, func(ts time.Time) table.Value { return table.Number(float64(ts.Month())) })
	derive(ColumnQuarter, func(ts time.Time) table.Value { return table.Number(float64(Quarter(ts))) })

	deduped, dedup, err := Deduplicate(out, KeyColumn)
	if err != nil {
		return nil, report, err
	}
	report.Dedup = dedup
	return deduped, report, nil
}

// combine joins a row's date and time columns into one timestamp.
func combine(t *table.Table, r table.Row) (time.Time, bool) {
	di, _ := t.Index("date")
	ti, _ := t.Index("time")
	d, ok := r[di].Time()
	if !ok {
		return time.Time{}, false
	}
	tod, ok := r[ti].Time()
	if !ok {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), time.UTC), true
}

// Quarter returns the calendar quarter (1-4) of ts.
func Quarter(ts time.Time) int {
	return (int(ts.Month())-1)/3 + 1
}

// Deduplicate keeps the first row for every value of key, in original order.
// Missing keys compare equal to each other.
func Deduplicate(t *table.Table, key string) (*table.Table, DedupReport, error) {
	report := DedupReport{Key: key, RowsBefore: t.Len()}
	values, err := t.Column(key)
	if err != nil {
		return nil, report, fmt.Errorf("%w: %s", ErrMissingColumn, key)
	}

	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[dedupKey(v)]++
	}
	for _, n := range counts {
		if n > 1 {
			report.DuplicateGroups++
			report.DuplicateRows += n
		}
	}

	seen := make(map[string]struct{}, len(counts))
	out := t.Filter(func(i int, _ table.Row) bool {
		k := dedupKey(values[i])
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})

	report.RowsAfter = out.Len()
	report.Removed = report.RowsBefore - report.RowsAfter
	report.RemainingDuplicates = countDuplicates(out, key)
	return out, report, nil
}

func countDuplicates(t *table.Table, key string) int {
	values, err := t.Column(key)
	if err != nil {
		return 0
	}
	seen := make(map[string]struct{}, len(values))
	dups := 0
	for _, v := range values {
		k := dedupKey(v)
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

func dedupKey(v table.Value) string {
	return v.Kind().String() + "\x00" + v.Text()
}
