package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-reservations/internal/models"
)

// ErrInsufficientCapacity is returned by TryHold when the requested seats
// would push held+sold past the trip's total capacity.
var ErrInsufficientCapacity = errors.New("insufficient seat capacity")

// ErrUnknownTrip is returned when no inventory entry exists for a trip id.
var ErrUnknownTrip = errors.New("unknown trip")

// Ledger is the single choke point for seat allocation. Every mutation is a
// conditional UPDATE on the trip_inventory row, so concurrent holds,
// releases and commits for the same trip serialize on the database row and
// the held+sold <= total invariant can never be violated.
type Ledger struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *Ledger {
	return &Ledger{Bun: bunDB}
}

// EnsureEntry creates the inventory row for a trip from the trip's capacity
// if it does not exist yet. Safe to call concurrently.
func (l *Ledger) EnsureEntry(ctx context.Context, tripID string) error {
	exists, err := l.Bun.NewSelect().
		Model((*models.TripInventory)(nil)).
		Where("trip_id = ?", tripID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check inventory for trip %s: %w", tripID, err)
	}
	if exists {
		return nil
	}

	var trip models.Trip
	err = l.Bun.NewSelect().
		Model(&trip).
		Where("id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %s: %w", tripID, ErrUnknownTrip)
	}
	if err != nil {
		return fmt.Errorf("load trip %s: %w", tripID, err)
	}

	entry := &models.TripInventory{
		TripID:     tripID,
		TotalSeats: trip.Capacity,
	}
	_, err = l.Bun.NewInsert().
		Model(entry).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create inventory for trip %s: %w", tripID, err)
	}
	return nil
}

// HoldSeats atomically claims seatCount seats for the trip. The capacity
// check and the increment happen in one UPDATE; if they would overflow
// capacity, nothing changes and ErrInsufficientCapacity is returned.
// Takes a bun.IDB so a caller can run it inside the same transaction as a
// reservation-state write.
func HoldSeats(ctx context.Context, idb bun.IDB, tripID string, seatCount int) error {
	if seatCount <= 0 {
		return fmt.Errorf("seat count must be positive, got %d", seatCount)
	}

	res, err := idb.NewUpdate().
		Model((*models.TripInventory)(nil)).
		Set("seats_held = seats_held + ?", seatCount).
		Where("trip_id = ?", tripID).
		Where("seats_held + seats_sold + ? <= total_seats", seatCount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("hold %d seats on trip %s: %w", seatCount, tripID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		exists, err := idb.NewSelect().
			Model((*models.TripInventory)(nil)).
			Where("trip_id = ?", tripID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("trip %s: %w", tripID, ErrUnknownTrip)
		}
		return ErrInsufficientCapacity
	}
	return nil
}

// ReleaseSeats returns held seats to the available pool. Called when a
// pending reservation is cancelled or expired.
func ReleaseSeats(ctx context.Context, idb bun.IDB, tripID string, seatCount int) error {
	if seatCount <= 0 {
		return fmt.Errorf("seat count must be positive, got %d", seatCount)
	}

	res, err := idb.NewUpdate().
		Model((*models.TripInventory)(nil)).
		Set("seats_held = seats_held - ?", seatCount).
		Where("trip_id = ?", tripID).
		Where("seats_held >= ?", seatCount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release %d seats on trip %s: %w", seatCount, tripID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("release %d seats on trip %s: held count too low", seatCount, tripID)
	}
	return nil
}

// SellSeats converts held seats into sold seats after payment. No capacity
// check is needed: the seats were already counted while held.
func SellSeats(ctx context.Context, idb bun.IDB, tripID string, seatCount int) error {
	if seatCount <= 0 {
		return fmt.Errorf("seat count must be positive, got %d", seatCount)
	}

	res, err := idb.NewUpdate().
		Model((*models.TripInventory)(nil)).
		Set("seats_held = seats_held - ?", seatCount).
		Set("seats_sold = seats_sold + ?", seatCount).
		Where("trip_id = ?", tripID).
		Where("seats_held >= ?", seatCount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("commit %d seats on trip %s: %w", seatCount, tripID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("commit %d seats on trip %s: held count too low", seatCount, tripID)
	}
	return nil
}

// TryHold claims seats outside any surrounding transaction and returns an
// opaque hold token on success.
func (l *Ledger) TryHold(ctx context.Context, tripID string, seatCount int) (string, error) {
	if err := HoldSeats(ctx, l.Bun, tripID, seatCount); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// Release is ReleaseSeats outside any surrounding transaction.
func (l *Ledger) Release(ctx context.Context, tripID string, seatCount int) error {
	return ReleaseSeats(ctx, l.Bun, tripID, seatCount)
}

// Commit is SellSeats outside any surrounding transaction.
func (l *Ledger) Commit(ctx context.Context, tripID string, seatCount int) error {
	return SellSeats(ctx, l.Bun, tripID, seatCount)
}

// Available returns total - held - sold for the trip.
func (l *Ledger) Available(ctx context.Context, tripID string) (int, error) {
	entry, err := l.Snapshot(ctx, tripID)
	if err != nil {
		return 0, err
	}
	return entry.Available(), nil
}

// Snapshot returns the current inventory counters for a trip.
func (l *Ledger) Snapshot(ctx context.Context, tripID string) (*models.TripInventory, error) {
	var entry models.TripInventory
	err := l.Bun.NewSelect().
		Model(&entry).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, ErrUnknownTrip)
	}
	if err != nil {
		return nil, fmt.Errorf("load inventory for trip %s: %w", tripID, err)
	}
	return &entry, nil
}
