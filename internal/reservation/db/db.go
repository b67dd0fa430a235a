package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-reservations/internal/ledger"
	"ms-reservations/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- RESERVATIONS ----------------

// CreateReservation claims the seats in the inventory ledger and inserts
// the PENDING row in one transaction, so a failed insert can never leak a
// hold. Populates the generated id on success.
func (d *DB) CreateReservation(ctx context.Context, res *models.Reservation) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ledger.HoldSeats(ctx, tx, res.TripID, res.SeatCount); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(res).Exec(ctx)
		return err
	})
}

// GetReservationByID fetches one reservation by its id. Returns
// sql.ErrNoRows (wrapped by bun) when the id is unknown.
func (d *DB) GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error) {
	var res models.Reservation
	err := d.Bun.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// MarkPaid transitions PENDING -> PAID iff the hold deadline has not
// passed, and moves the reservation's seats from held to sold. Both writes
// run in one transaction: if the seat commit fails, the state change rolls
// back and the row stays PENDING for a retry. The state check and its
// write are one UPDATE, so a racing expire cannot also win; the returned
// bool reports whether this call won the transition.
func (d *DB) MarkPaid(ctx context.Context, id int64, amount float64, tripID string, seatCount int, now time.Time) (bool, error) {
	won := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Reservation)(nil)).
			Set("state = ?", models.ReservationPaid).
			Set("amount = ?", amount).
			Where("id = ?", id).
			Where("state = ?", models.ReservationPending).
			Where("expires_at > ?", now).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if err := ledger.SellSeats(ctx, tx, tripID, seatCount); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

// MarkCancelled transitions PENDING -> CANCELLED and releases the held
// seats in the same transaction.
func (d *DB) MarkCancelled(ctx context.Context, id int64, tripID string, seatCount int) (bool, error) {
	won := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Reservation)(nil)).
			Set("state = ?", models.ReservationCancelled).
			Where("id = ?", id).
			Where("state = ?", models.ReservationPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if err := ledger.ReleaseSeats(ctx, tx, tripID, seatCount); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

// MarkExpired transitions PENDING -> EXPIRED, but only once the deadline
// has actually passed, and releases the held seats in the same
// transaction. A failed release rolls the state change back, so the row
// stays PENDING and the next sweep retries it. The mirror image of
// MarkPaid: exactly one of the two can win for a given reservation.
func (d *DB) MarkExpired(ctx context.Context, id int64, tripID string, seatCount int, now time.Time) (bool, error) {
	won := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Reservation)(nil)).
			Set("state = ?", models.ReservationExpired).
			Where("id = ?", id).
			Where("state = ?", models.ReservationPending).
			Where("expires_at <= ?", now).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		if err := ledger.ReleaseSeats(ctx, tx, tripID, seatCount); err != nil {
			return err
		}
		won = true
		return nil
	})
	return won, err
}

// ListExpired returns PENDING reservations whose hold deadline has passed,
// oldest first.
func (d *DB) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var out []models.Reservation
	q := d.Bun.NewSelect().
		Model(&out).
		Where("state = ?", models.ReservationPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ListExpiredByTrip is the lazy-reap variant scoped to one trip.
func (d *DB) ListExpiredByTrip(ctx context.Context, tripID string, now time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	err := d.Bun.NewSelect().
		Model(&out).
		Where("trip_id = ?", tripID).
		Where("state = ?", models.ReservationPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCustomer returns all reservations for a customer email, newest
// first. Used by office-counter lookups.
func (d *DB) ListByCustomer(ctx context.Context, email string) ([]models.Reservation, error) {
	var out []models.Reservation
	err := d.Bun.NewSelect().
		Model(&out).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------- TRIPS ----------------

// GetTrip fetches a trip reference row. Trips are owned by the schedule
// catalog; this engine only reads them.
func (d *DB) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip models.Trip
	err := d.Bun.NewSelect().
		Model(&trip).
		Where("id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &trip, nil
}
