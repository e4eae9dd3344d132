package tables

import (
	"time"
)

// BookingRow represents a single row of the processed and no-outliers tables.
// Pointer fields are optional columns; nil means the value was missing.
type BookingRow struct {
	// Identifiers
	BookingID  string `parquet:"booking_id"`
	CustomerID string `parquet:"customer_id"`

	// Temporal fields
	Date      string     `parquet:"date"` // YYYY-MM-DD
	Time      string     `parquet:"time"` // HH:MM:SS
	DateTime  *time.Time `parquet:"datetime"`
	Hour      *int32     `parquet:"hour"`
	DayOfWeek string     `parquet:"day_of_week"`
	Month     *int32     `parquet:"month"`
	Quarter   *int32     `parquet:"quarter"`

	// Categorical fields
	BookingStatus                 string `parquet:"booking_status"`
	VehicleType                   string `parquet:"vehicle_type"`
	PickupLocation                string `parquet:"pickup_location"`
	DropLocation                  string `parquet:"drop_location"`
	ReasonForCancellingByCustomer string `parquet:"reason_for_cancelling_by_customer"`
	DriverCancellationReason      string `parquet:"driver_cancellation_reason"`
	IncompleteRidesReason         string `parquet:"incomplete_rides_reason"`
	PaymentMethod                 string `parquet:"payment_method"`

	// Numeric fields
	AvgVTAT                  *float64 `parquet:"avg_vtat"`
	AvgCTAT                  *float64 `parquet:"avg_ctat"`
	CancelledRidesByCustomer *float64 `parquet:"cancelled_rides_by_customer"`
	CancelledRidesByDriver   *float64 `parquet:"cancelled_rides_by_driver"`
	IncompleteRides          *float64 `parquet:"incomplete_rides"`
	BookingValue             *float64 `parquet:"booking_value"`
	RideDistance             *float64 `parquet:"ride_distance"`
	DriverRatings            *float64 `parquet:"driver_ratings"`
	CustomerRating           *float64 `parquet:"customer_rating"`

	// Run metadata
	RunID       string    `parquet:"run_id"`
	ProcessedAt time.Time `parquet:"processed_at,timestamp(millisecond)"`
}

// ParquetConfig configures parquet output generation.
type ParquetConfig struct {
	RunID       string
	ProcessedAt time.Time
	Compression string // "snappy" | "zstd" | "none"
}

// DefaultParquetConfig stamps rows with the current time and uses snappy.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		ProcessedAt: time.Now().UTC(),
		Compression: "snappy",
	}
}

// SchemaVersion returns the version of the schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
