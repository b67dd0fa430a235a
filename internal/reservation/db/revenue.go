package db

import (
	"context"
	"time"

	"ms-reservations/internal/models"
)

// AddRevenue records a confirmed payment against the trip's departure date.
// One row per trip/date, enforced by the unique (trip_id, date) key; a
// single upsert creates or accumulates, so concurrent confirmations for
// the same trip cannot split the aggregate across two rows.
func (d *DB) AddRevenue(ctx context.Context, tripID string, date time.Time, amount float64) error {
	row := models.TripRevenue{
		TripID:      tripID,
		Date:        date.Truncate(24 * time.Hour),
		AmountTotal: amount,
		PaidCount:   1,
	}
	_, err := d.Bun.NewInsert().
		Model(&row).
		On("CONFLICT (trip_id, date) DO UPDATE").
		Set("amount_total = trip_revenue.amount_total + EXCLUDED.amount_total").
		Set("paid_count = trip_revenue.paid_count + 1").
		Exec(ctx)
	return err
}

// RevenueByDate returns the paid-amount aggregates for a trip, one row per
// departure date.
func (d *DB) RevenueByDate(ctx context.Context, tripID string) ([]models.TripRevenue, error) {
	var rows []models.TripRevenue
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("trip_id = ?", tripID).
		Order("date ASC").
		Scan(ctx)
	return rows, err
}

// PendingCount returns how many reservations for the trip are still
// holding seats.
func (d *DB) PendingCount(ctx context.Context, tripID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("trip_id = ?", tripID).
		Where("state = ?", models.ReservationPending).
		Count(ctx)
}
