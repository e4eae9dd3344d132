package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

func day(y int, m time.Month, d int) table.Value {
	return table.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func clock(h, m, s int) table.Value {
	return table.TimeOfDay(time.Date(0, 1, 1, h, m, s, 0, time.UTC))
}

func bookings(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		[]string{"date", "time", "booking_id", "booking_value"},
		[]table.Row{
			{day(2024, 3, 23), clock(12, 29, 38), table.String("CNR1"), table.Number(100)},
			{day(2024, 11, 29), clock(18, 1, 39), table.String("CNR2"), table.Number(200)},
			{day(2024, 3, 23), clock(12, 29, 38), table.String("CNR1"), table.Number(999)},
			{table.Missing(), clock(9, 0, 0), table.String("CNR3"), table.Number(300)},
			{day(2024, 8, 23), clock(8, 56, 10), table.String("CNR1"), table.Number(555)},
		})
	require.NoError(t, err)
	return tbl
}

func TestBuildDerivesCalendarFields(t *testing.T) {
	out, report, err := Build(bookings(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "time", "booking_id", "booking_value",
		"datetime", "hour", "day_of_week", "month", "quarter"}, out.Columns())

	ts, ok := out.Value(0, ColumnDateTime).Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 23, 12, 29, 38, 0, time.UTC), ts)
	assert.Equal(t, table.Number(12), out.Value(0, ColumnHour))
	assert.Equal(t, table.String("Saturday"), out.Value(0, ColumnDayOfWeek))
	assert.Equal(t, table.Number(3), out.Value(0, ColumnMonth))
	assert.Equal(t, table.Number(1), out.Value(0, ColumnQuarter))
	assert.Equal(t, table.Number(4), out.Value(1, ColumnQuarter))

	assert.Equal(t, 1, report.MissingTimestamps)
}

func TestBuildKeepsRowsWithoutTimestamp(t *testing.T) {
	out, _, err := Build(bookings(t))
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, table.String("CNR3"), out.Value(2, KeyColumn))
	for _, col := range []string{ColumnDateTime, ColumnHour, ColumnDayOfWeek, ColumnMonth, ColumnQuarter} {
		assert.True(t, out.Value(2, col).IsMissing(), col)
	}
}

func TestBuildDeduplicatesKeepingFirst(t *testing.T) {
	out, report, err := Build(bookings(t))
	require.NoError(t, err)

	assert.Equal(t, DedupReport{
		Key:                 KeyColumn,
		RowsBefore:          5,
		DuplicateRows:       3,
		DuplicateGroups:     1,
		Removed:             2,
		RowsAfter:           3,
		RemainingDuplicates: 0,
	}, report.Dedup)
	assert.Equal(t, table.Number(100), out.Value(0, "booking_value"))
	assert.Equal(t, table.String("CNR2"), out.Value(1, KeyColumn))
}

func TestBuildBookingIDsAreUnique(t *testing.T) {
	out, _, err := Build(bookings(t))
	require.NoError(t, err)

	ids, err := out.Column(KeyColumn)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id.Text()], "duplicate %s", id.Text())
		seen[id.Text()] = true
	}
}

func TestBuildRequiresKey(t *testing.T) {
	tbl, err := table.New([]string{"date", "time"}, nil)
	require.NoError(t, err)

	_, _, err = Build(tbl)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestQuarter(t *testing.T) {
	for m, want := range map[time.Month]int{time.January: 1, time.March: 1, time.April: 2, time.September: 3, time.December: 4} {
		assert.Equal(t, want, Quarter(time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)), m.String())
	}
}
