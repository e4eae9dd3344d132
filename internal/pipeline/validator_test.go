package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

func processed(t *testing.T) *Outcome {
	t.Helper()
	out, err := Process(rawBookings(t))
	require.NoError(t, err)
	return out
}

func TestValidate_Valid(t *testing.T) {
	result := Validate(processed(t))

	assert.True(t, result.Passed, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestValidate_NoTables(t *testing.T) {
	result := Validate(&Outcome{})

	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_DuplicateKeys(t *testing.T) {
	out := processed(t)
	out.Full = out.Full.Clone()
	k, _ := out.Full.Index("booking_id")
	out.Full.Row(1)[k] = out.Full.Row(0)[k]

	result := Validate(out)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Errors[0], "duplicate booking_id")
}

func TestValidate_CleanRowChanged(t *testing.T) {
	out := processed(t)
	out.Clean = out.Clean.Clone()
	v, _ := out.Clean.Index("booking_value")
	out.Clean.Row(2)[v] = table.Number(101)

	result := Validate(out)

	assert.False(t, result.Passed)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "differs from full table")
}

func TestValidate_ValueOutsideBounds(t *testing.T) {
	out := processed(t)
	out.Full = out.Full.Clone()
	out.Clean = out.Clean.Clone()
	d, _ := out.Clean.Index("ride_distance")
	out.Clean.Row(0)[d] = table.Number(1000)
	out.Full.Row(0)[d] = table.Number(1000)

	result := Validate(out)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Errors, "ride_distance value 1000 outside [1, 17]")
}

func TestValidate_CleanLargerThanFull(t *testing.T) {
	out := processed(t)
	out.Full, out.Clean = out.Clean, out.Full

	result := Validate(out)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Errors[0], "more than the full table")
}

func TestValidate_Warnings(t *testing.T) {
	raw := rawBookings(t)
	d, _ := raw.Index("Time")
	raw.Row(4)[d] = table.Missing()
	v, _ := raw.Index("Avg VTAT")
	raw.Row(5)[v] = table.String("n/a")

	out, err := Process(raw)
	require.NoError(t, err)
	result := Validate(out)

	assert.True(t, result.Passed, result.Errors)
	assert.Contains(t, result.Warnings, "1 rows have no timestamp features")
	assert.Contains(t, result.Warnings, "1 values of avg_vtat were not numeric")
}
