package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-reservations/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreatePass inserts one boarding pass row.
func (d *DB) CreatePass(ctx context.Context, pass *models.BoardingPass) error {
	_, err := d.Bun.NewInsert().Model(pass).Exec(ctx)
	return err
}

// GetPassByCode fetches a pass by its code. Returns sql.ErrNoRows for an
// unknown code.
func (d *DB) GetPassByCode(ctx context.Context, code string) (*models.BoardingPass, error) {
	var pass models.BoardingPass
	err := d.Bun.NewSelect().
		Model(&pass).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &pass, nil
}

// GetPassesByReservation returns all passes minted for a reservation.
func (d *DB) GetPassesByReservation(ctx context.Context, reservationID int64) ([]models.BoardingPass, error) {
	var passes []models.BoardingPass
	err := d.Bun.NewSelect().
		Model(&passes).
		Where("reservation_id = ?", reservationID).
		Order("seat_label ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return passes, nil
}

// ConsumePass flips ISSUED -> CONSUMED in a single conditional UPDATE.
// Exactly one of any number of concurrent scans of the same code gets
// affected=1; the rest see affected=0.
func (d *DB) ConsumePass(ctx context.Context, code string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.BoardingPass)(nil)).
		Set("status = ?", models.PassConsumed).
		Set("consumed_at = ?", now).
		Where("code = ?", code).
		Where("status = ?", models.PassIssued).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
