// Package summary renders the plain-text processing summary of a run.
package summary

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/analytics"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/features"
	"github.com/withObsrvr/ride-bookings-pipeline/internal/outlier"
)

// TimestampLayout formats the processing time in the summary.
const TimestampLayout = "2006-01-02 15:04:05"

// Summary is everything the summary file reports.
type Summary struct {
	ProcessedAt time.Time
	Source      string
	RowsLoaded  int
	RowsFull    int
	RowsClean   int
	Columns     int
	MemoryBytes int64
	Dedup       features.DedupReport
	Outliers    outlier.Report
	Metrics     analytics.Report
}

// Render writes the summary as text. Counts use thousands separators.
func Render(s Summary) []byte {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("RIDE BOOKINGS PROCESSING SUMMARY\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	p.Fprintf(&b, "Processed at: %s\n", s.ProcessedAt.Format(TimestampLayout))
	p.Fprintf(&b, "Source file: %s\n", s.Source)
	p.Fprintf(&b, "Rows original: %d\n", s.RowsFull)
	p.Fprintf(&b, "Rows after cleaning: %d\n", s.RowsClean)
	p.Fprintf(&b, "Rows removed: %d\n", s.RowsFull-s.RowsClean)
	p.Fprintf(&b, "Total columns: %d\n", s.Columns)
	p.Fprintf(&b, "Memory used: %.2f MB\n", float64(s.MemoryBytes)/(1024*1024))

	b.WriteString("\nDEDUPLICATION\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	p.Fprintf(&b, "Rows loaded: %d\n", s.RowsLoaded)
	p.Fprintf(&b, "Rows sharing a %s: %d in %d groups\n", s.Dedup.Key, s.Dedup.DuplicateRows, s.Dedup.DuplicateGroups)
	p.Fprintf(&b, "Duplicates removed: %d\n", s.Dedup.Removed)

	b.WriteString("\n")
	b.WriteString(RenderOutliers(s.Outliers))
	b.WriteString("\n")
	b.WriteString(RenderMetrics("FULL DATASET (WITH OUTLIERS)", s.Metrics.Full))
	b.WriteString("\n")
	b.WriteString(RenderMetrics("CLEAN DATASET (WITHOUT OUTLIERS)", s.Metrics.Clean))
	b.WriteString("\n")
	b.WriteString(RenderComparison(s.Metrics.Comparison))
	return []byte(b.String())
}

// RenderOutliers writes the per-column outlier log.
func RenderOutliers(r outlier.Report) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("OUTLIER REMOVAL BY COLUMN\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	for _, c := range r.Columns {
		if c.Skipped {
			p.Fprintf(&b, "%s: skipped (no values)\n", c.Column)
			continue
		}
		p.Fprintf(&b, "%s:\n", c.Column)
		p.Fprintf(&b, "  - Bounds: [%.2f, %.2f]\n", c.Bounds.Lower, c.Bounds.Upper)
		p.Fprintf(&b, "  - Rows removed: %d\n", c.Removed)
		p.Fprintf(&b, "  - Rows remaining: %d\n", c.Remaining)
	}
	p.Fprintf(&b, "Total removed: %d\n", r.TotalRemoved)
	p.Fprintf(&b, "Data retained: %.2f%%\n", r.RetainedPct)
	return b.String()
}

// RenderMetrics writes the metrics of one table under a title.
func RenderMetrics(title string, m analytics.Metrics) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	p.Fprintf(&b, "Rows analysed: %d\n", m.Rows)
	p.Fprintf(&b, "Total revenue: $%.2f\n", m.TotalRevenue)
	p.Fprintf(&b, "Average ride distance: %.2f km\n", m.AvgRideDistance)
	p.Fprintf(&b, "Cancellation rate: %.2f%%\n", m.CancellationRate)
	p.Fprintf(&b, "  - Cancelled bookings: %d of %d\n", m.CancelledBookings, m.Rows)
	p.Fprintf(&b, "  - Average revenue per ride: $%.2f\n", m.AvgBookingValue)
	p.Fprintf(&b, "  - Total distance: %.2f km\n", m.TotalDistance)
	p.Fprintf(&b, "  - Average VTAT: %.2f min\n", m.AvgVTAT)
	p.Fprintf(&b, "  - Average CTAT: %.2f min\n", m.AvgCTAT)
	p.Fprintf(&b, "  - Average driver rating: %.2f/5\n", m.AvgDriverRating)
	p.Fprintf(&b, "  - Average customer rating: %.2f/5\n", m.AvgCustomerRating)

	b.WriteString("Bookings by status:\n")
	for _, s := range m.StatusBreakdown {
		p.Fprintf(&b, "  - %s: %d (%.1f%%)\n", s.Status, s.Count, s.Percent)
	}
	return b.String()
}

// RenderComparison writes the full versus clean comparison.
func RenderComparison(c analytics.Comparison) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("COMPARISON\n")
	b.WriteString(strings.Repeat("-", 40) + "\n")
	p.Fprintf(&b, "Rows original: %d\n", c.RowsFull)
	p.Fprintf(&b, "Rows after cleaning: %d\n", c.RowsClean)
	p.Fprintf(&b, "Rows removed: %d\n", c.RowsRemoved)
	p.Fprintf(&b, "Data retained: %.2f%%\n", c.RetainedPct)
	return b.String()
}
