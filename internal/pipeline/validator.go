package pipeline

import (
	"fmt"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/features"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/outlier"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// ValidationResult contains the outcome of checking an Outcome before it is
// persisted.
type ValidationResult struct {
	Passed   bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Passed = false
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate performs quality checks on the processed tables.
// This validates:
// - clean table is no larger than the full table
// - booking_id is unique in the full table
// - every clean row is an unchanged full row
// - every retained value lies within its column's bounds
func Validate(o *Outcome) ValidationResult {
	result := ValidationResult{Passed: true}
	if o == nil || o.Full == nil || o.Clean == nil {
		result.fail("no processed tables")
		return result
	}
	full, clean := o.Full, o.Clean

	// Check 1: row-count invariant
	if clean.Len() > full.Len() {
		result.fail("clean table has %d rows, more than the full table's %d", clean.Len(), full.Len())
	}

	// Check 2: unique keys
	byKey, dups := indexByKey(full, features.KeyColumn)
	if dups > 0 {
		result.fail("%d duplicate %s values in full table", dups, features.KeyColumn)
	}
	if o.Features.Dedup.RemainingDuplicates != 0 {
		result.fail("deduplication left %d duplicate rows", o.Features.Dedup.RemainingDuplicates)
	}

	// Check 3: clean is a subset of full
	if clean.Width() != full.Width() {
		result.fail("clean table has %d columns, full table has %d", clean.Width(), full.Width())
	} else if k, ok := clean.Index(features.KeyColumn); ok {
		for i := 0; i < clean.Len(); i++ {
			r := clean.Row(i)
			j, found := byKey[r[k].Text()]
			if !found {
				result.fail("clean row %d (%s=%s) not in full table", i, features.KeyColumn, r[k].Text())
				continue
			}
			if !rowsEqual(r, full.Row(j)) {
				result.fail("clean row %d (%s=%s) differs from full table", i, features.KeyColumn, r[k].Text())
			}
		}
	}

	// Check 4: retained values within bounds
	for _, col := range outlier.Columns {
		bounds, ok := o.Outliers.Bounds(col)
		if !ok {
			if clean.Has(col) {
				result.warn("column %s was not screened for outliers", col)
			}
			continue
		}
		values, err := clean.Floats(col)
		if err != nil {
			result.fail("read %s: %v", col, err)
			continue
		}
		for _, v := range values {
			if !bounds.Contains(v) {
				result.fail("%s value %g outside [%g, %g]", col, v, bounds.Lower, bounds.Upper)
				break
			}
		}
	}

	// Warnings
	if o.Features.MissingTimestamps > 0 {
		result.warn("%d rows have no timestamp features", o.Features.MissingTimestamps)
	}
	for col, n := range o.Standardize.CoercedToMissing {
		if n > 0 {
			result.warn("%d values of %s were not numeric", n, col)
		}
	}
	if clean.Len() == 0 {
		result.warn("clean table is empty")
	}

	return result
}

// indexByKey maps each key's text to its first row and counts repeats.
func indexByKey(t *table.Table, key string) (map[string]int, int) {
	k, ok := t.Index(key)
	if !ok {
		return nil, 0
	}
	index := make(map[string]int, t.Len())
	dups := 0
	for i := 0; i < t.Len(); i++ {
		id := t.Row(i)[k].Text()
		if _, seen := index[id]; seen {
			dups++
			continue
		}
		index[id] = i
	}
	return index, dups
}

func rowsEqual(a, b table.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
