// Package standardize normalizes column names, parses dates and times,
// coerces numeric columns and normalizes categorical and identifier text.
package standardize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrParse is returned when a date or time column does not follow a
	// single uniform format.
	ErrParse = errors.New("uniform format parse failed")
)

// MissingText is what a missing categorical or identifier value becomes.
const MissingText = "nan"

var (
	// NumericColumns are coerced to numbers when present.
	NumericColumns = []string{
		"avg_vtat", "avg_ctat",
		"cancelled_rides_by_customer", "cancelled_rides_by_driver", "incomplete_rides",
		"booking_value", "ride_distance", "driver_ratings", "customer_rating",
	}

	// CategoricalColumns are lowercased, trimmed and snake-cased when present.
	CategoricalColumns = []string{
		"booking_status", "vehicle_type", "pickup_location", "drop_location",
		"reason_for_cancelling_by_customer", "driver_cancellation_reason",
		"incomplete_rides_reason", "payment_method",
	}

	// IDColumns are trimmed and stripped of quote characters when present.
	IDColumns = []string{"booking_id", "customer_id"}

	// dateLayouts are tried against the first non-missing date; the one that
	// matches must then match every other row.
	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"2006-01-02 15:04:05",
	}
)

const timeLayout = "15:04:05"

// Report describes what standardization did.
type Report struct {
	RenamedColumns     map[string]string // original -> normalized, only changed names
	DateLayout         string
	NumericColumns     []string
	CoercedToMissing   map[string]int // numeric column -> unparsable values turned missing
	CategoricalColumns []string
	IDColumns          []string
	Rows               int
	Columns            int
}

// NormalizeColumnName lowercases a name and replaces spaces and hyphens with
// underscores.
func NormalizeColumnName(name string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(name))
}

// NormalizeCategory lowercases a value and joins its whitespace-separated
// words with underscores.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// CleanID trims an identifier and removes embedded double quotes.
func CleanID(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), `"`, "")
}

// Standardize returns a standardized copy of raw.
func Standardize(raw *table.Table) (*table.Table, Report, error) {
	t := raw.Clone()
	report := Report{
		RenamedColumns:   make(map[string]string),
		CoercedToMissing: make(map[string]int),
	}

	before := t.Columns()
	if err := t.Rename(NormalizeColumnName); err != nil {
		return nil, report, fmt.Errorf("normalize column names: %w", err)
	}
	for i, name := range t.Columns() {
		if name != before[i] {
			report.RenamedColumns[before[i]] = name
		}
	}

	for _, col := range []string{"date", "time"} {
		if !t.Has(col) {
			return nil, report, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	layout, err := parseDates(t)
	if err != nil {
		return nil, report, err
	}
	report.DateLayout = layout

	if err := parseTimes(t); err != nil {
		return nil, report, err
	}

	for _, col := range NumericColumns {
		if !t.Has(col) {
			continue
		}
		coerced := 0
		err := t.MapColumn(col, func(v table.Value) (table.Value, error) {
			n, ok := toNumber(v)
			if !ok && !v.IsMissing() {
				coerced++
			}
			return n, nil
		})
		if err != nil {
			return nil, report, fmt.Errorf("coerce %s: %w", col, err)
		}
		report.NumericColumns = append(report.NumericColumns, col)
		report.CoercedToMissing[col] = coerced
	}

	for _, col := range CategoricalColumns {
		if !t.Has(col) {
			continue
		}
		err := t.MapColumn(col, func(v table.Value) (table.Value, error) {
			return table.String(NormalizeCategory(asText(v))), nil
		})
		if err != nil {
			return nil, report, fmt.Errorf("normalize %s: %w", col, err)
		}
		report.CategoricalColumns = append(report.CategoricalColumns, col)
	}

	for _, col := range IDColumns {
		if !t.Has(col) {
			continue
		}
		err := t.MapColumn(col, func(v table.Value) (table.Value, error) {
			return table.String(CleanID(asText(v))), nil
		})
		if err != nil {
			return nil, report, fmt.Errorf("clean %s: %w", col, err)
		}
		report.IDColumns = append(report.IDColumns, col)
	}

	report.Rows = t.Len()
	report.Columns = t.Width()
	return t, report, nil
}

// parseDates converts the date column to calendar dates using one layout
// detected from the first non-missing value.
func parseDates(t *table.Table) (string, error) {
	var layout string
	err := t.MapColumn("date", func(v table.Value) (table.Value, error) {
		if v.Kind() == table.KindDate || v.IsMissing() {
			return v, nil
		}
		s := strings.TrimSpace(asText(v))
		if s == "" {
			return table.Missing(), nil
		}
		if layout == "" {
			layout = detectLayout(s)
			if layout == "" {
				return v, fmt.Errorf("%w: date %q matches no known layout", ErrParse, s)
			}
		}
		d, err := time.Parse(layout, s)
		if err != nil {
			return v, fmt.Errorf("%w: date %q does not match layout %s", ErrParse, s, layout)
		}
		return table.Date(d), nil
	})
	return layout, err
}

func detectLayout(s string) string {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return layout
		}
	}
	return ""
}

// parseTimes converts the time column to time-of-day values (HH:MM:SS).
func parseTimes(t *table.Table) error {
	return t.MapColumn("time", func(v table.Value) (table.Value, error) {
		if v.Kind() == table.KindTime || v.IsMissing() {
			return v, nil
		}
		s := strings.TrimSpace(asText(v))
		if s == "" {
			return table.Missing(), nil
		}
		tod, err := time.Parse(timeLayout, s)
		if err != nil {
			return v, fmt.Errorf("%w: time %q is not HH:MM:SS", ErrParse, s)
		}
		return table.TimeOfDay(tod), nil
	})
}

// decimalPattern matches plain decimal and scientific notation. ParseFloat
// alone would also accept hex floats, digit separators, Inf and NaN.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// toNumber coerces a value to a finite number; anything else is missing.
func toNumber(v table.Value) (table.Value, bool) {
	if f, ok := v.Float(); ok {
		if math.IsInf(f, 0) {
			return table.Missing(), false
		}
		return v, true
	}
	s, ok := v.Str()
	if !ok {
		return table.Missing(), false
	}
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return table.Missing(), false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return table.Missing(), false
	}
	return table.Number(f), true
}

// asText renders a value as text; missing becomes MissingText.
func asText(v table.Value) string {
	if v.IsMissing() {
		return MissingText
	}
	return v.Text()
}
