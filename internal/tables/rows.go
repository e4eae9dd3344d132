package tables

import (
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

// rowReader reads typed fields out of table rows by column name. Absent
// columns read as missing.
type rowReader struct {
	index map[string]int
}

func newRowReader(t *table.Table) rowReader {
	index := make(map[string]int, t.Width())
	for i, c := range t.Columns() {
		index[c] = i
	}
	return rowReader{index: index}
}

func (rr rowReader) value(r table.Row, col string) table.Value {
	i, ok := rr.index[col]
	if !ok {
		return table.Missing()
	}
	return r[i]
}

func (rr rowReader) text(r table.Row, col string) string {
	return rr.value(r, col).Text()
}

func (rr rowReader) float(r table.Row, col string) *float64 {
	f, ok := rr.value(r, col).Float()
	if !ok {
		return nil
	}
	return &f
}

func (rr rowReader) integer(r table.Row, col string) *int32 {
	f, ok := rr.value(r, col).Float()
	if !ok {
		return nil
	}
	n := int32(f)
	return &n
}

func (rr rowReader) timestamp(r table.Row, col string) *time.Time {
	ts, ok := rr.value(r, col).Time()
	if !ok {
		return nil
	}
	return &ts
}

// ToBookingRows converts a booking table into parquet rows.
func ToBookingRows(t *table.Table, cfg ParquetConfig) []BookingRow {
	rr := newRowReader(t)
	rows := make([]BookingRow, t.Len())
	for i := range rows {
		r := t.Row(i)
		rows[i] = BookingRow{
			BookingID:  rr.text(r, "booking_id"),
			CustomerID: rr.text(r, "customer_id"),

			Date:      rr.text(r, "date"),
			Time:      rr.text(r, "time"),
			DateTime:  rr.timestamp(r, "datetime"),
			Hour:      rr.integer(r, "hour"),
			DayOfWeek: rr.text(r, "day_of_week"),
			Month:     rr.integer(r, "month"),
			Quarter:   rr.integer(r, "quarter"),

			BookingStatus:                 rr.text(r, "booking_status"),
			VehicleType:                   rr.text(r, "vehicle_type"),
			PickupLocation:                rr.text(r, "pickup_location"),
			DropLocation:                  rr.text(r, "drop_location"),
			ReasonForCancellingByCustomer: rr.text(r, "reason_for_cancelling_by_customer"),
			DriverCancellationReason:      rr.text(r, "driver_cancellation_reason"),
			IncompleteRidesReason:         rr.text(r, "incomplete_rides_reason"),
			PaymentMethod:                 rr.text(r, "payment_method"),

			AvgVTAT:                  rr.float(r, "avg_vtat"),
			AvgCTAT:                  rr.float(r, "avg_ctat"),
			CancelledRidesByCustomer: rr.float(r, "cancelled_rides_by_customer"),
			CancelledRidesByDriver:   rr.float(r, "cancelled_rides_by_driver"),
			IncompleteRides:          rr.float(r, "incomplete_rides"),
			BookingValue:             rr.float(r, "booking_value"),
			RideDistance:             rr.float(r, "ride_distance"),
			DriverRatings:            rr.float(r, "driver_ratings"),
			CustomerRating:           rr.float(r, "customer_rating"),

			RunID:       cfg.RunID,
			ProcessedAt: cfg.ProcessedAt,
		}
	}
	return rows
}
