package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/analytics"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/features"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/outlier"
)

func TestRender(t *testing.T) {
	s := Summary{
		ProcessedAt: time.Date(2024, 7, 1, 9, 30, 5, 0, time.UTC),
		Source:      "/data/ncr_ride_bookings.csv",
		RowsLoaded:  150001,
		RowsFull:    150000,
		RowsClean:   148500,
		Columns:     26,
		MemoryBytes: 3 * 1024 * 1024 / 2,
		Dedup:       features.DedupReport{Key: "booking_id", DuplicateRows: 2, DuplicateGroups: 1, Removed: 1},
		Outliers: outlier.Report{
			Columns: []outlier.ColumnResult{
				{Column: "avg_vtat", Skipped: true},
				{Column: "ride_distance", Bounds: outlier.Bounds{Lower: -1.5, Upper: 42.25}, Removed: 1500, Remaining: 148500},
			},
			TotalRemoved: 1500,
			RetainedPct:  99,
		},
		Metrics: analytics.Report{
			Full: analytics.Metrics{
				Rows:              150000,
				TotalRevenue:      1234567.891,
				CancelledBookings: 37500,
				CancellationRate:  25,
				StatusBreakdown:   []analytics.StatusShare{{Status: "completed", Count: 93000, Percent: 62}},
			},
			Comparison: analytics.Comparison{RowsFull: 150000, RowsClean: 148500, RowsRemoved: 1500, RetainedPct: 99},
		},
	}

	out := string(Render(s))

	for _, want := range []string{
		"Processed at: 2024-07-01 09:30:05",
		"Source file: /data/ncr_ride_bookings.csv",
		"Rows original: 150,000",
		"Rows after cleaning: 148,500",
		"Rows removed: 1,500",
		"Total columns: 26",
		"Memory used: 1.50 MB",
		"avg_vtat: skipped (no values)",
		"  - Bounds: [-1.50, 42.25]",
		"Total revenue: $1,234,567.89",
		"Cancellation rate: 25.00%",
		"  - Cancelled bookings: 37,500 of 150,000",
		"  - completed: 93,000 (62.0%)",
		"Data retained: 99.00%",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasPrefix(out, "RIDE BOOKINGS PROCESSING SUMMARY\n"))
}
