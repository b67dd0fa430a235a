package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open in-memory database")
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Trip)(nil),
		(*models.TripInventory)(nil),
		(*models.Reservation)(nil),
		(*models.TripRevenue)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func seedInventory(t *testing.T, bunDB *bun.DB, tripID string, total int) {
	entry := models.TripInventory{TripID: tripID, TotalSeats: total}
	_, err := bunDB.NewInsert().Model(&entry).Exec(context.Background())
	require.NoError(t, err)
}

func inventory(t *testing.T, bunDB *bun.DB, tripID string) models.TripInventory {
	var entry models.TripInventory
	err := bunDB.NewSelect().
		Model(&entry).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(context.Background())
	require.NoError(t, err)
	return entry
}

func setHeld(t *testing.T, bunDB *bun.DB, tripID string, held int) {
	_, err := bunDB.NewUpdate().
		Model((*models.TripInventory)(nil)).
		Set("seats_held = ?", held).
		Where("trip_id = ?", tripID).
		Exec(context.Background())
	require.NoError(t, err)
}

func insertPending(t *testing.T, d *db.DB, tripID string, seats int, expiresAt time.Time) *models.Reservation {
	res := &models.Reservation{
		TripID:        tripID,
		CustomerEmail: "maria@example.com",
		SeatLabels:    []string{"A1", "A2", "A3", "A4"}[:seats],
		SeatCount:     seats,
		State:         models.ReservationPending,
		CreatedAt:     time.Now(),
		ExpiresAt:     expiresAt,
	}
	require.NoError(t, d.CreateReservation(context.Background(), res))
	require.NotZero(t, res.ID, "insert must populate the generated id")
	return res
}

func TestCreateReservationHoldsInventory(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	insertPending(t, d, "trip-1", 2, time.Now().Add(15*time.Minute))

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 2, entry.SeatsHeld, "the insert and the hold are one unit")
	assert.Equal(t, 0, entry.SeatsSold)
}

func TestMarkPaidWinsOnlyOnce(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 2, now.Add(15*time.Minute))
	ctx := context.Background()

	won, err := d.MarkPaid(ctx, res.ID, 24.50, res.TripID, res.SeatCount, now)
	assert.NoError(t, err)
	assert.True(t, won)

	// The CAS already fired; a second attempt must lose without touching
	// the inventory again.
	won, err = d.MarkPaid(ctx, res.ID, 24.50, res.TripID, res.SeatCount, now)
	assert.NoError(t, err)
	assert.False(t, won)

	stored, err := d.GetReservationByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPaid, stored.State)
	require.NotNil(t, stored.Amount)
	assert.Equal(t, 24.50, *stored.Amount)

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld)
	assert.Equal(t, 2, entry.SeatsSold, "seats committed exactly once")
}

func TestMarkPaidRejectsPastDeadline(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 1, now.Add(-time.Minute))

	won, err := d.MarkPaid(context.Background(), res.ID, 10.0, res.TripID, res.SeatCount, now)
	assert.NoError(t, err)
	assert.False(t, won, "payment after the deadline must not win")
}

func TestMarkPaidRollsBackWhenSeatCommitFails(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 2, now.Add(15*time.Minute))
	ctx := context.Background()

	// Knock the held counter out from under the commit so the inventory
	// write inside the transaction fails.
	setHeld(t, bunDB, "trip-1", 0)

	won, err := d.MarkPaid(ctx, res.ID, 24.50, res.TripID, res.SeatCount, now)
	assert.Error(t, err)
	assert.False(t, won)

	// The state change must have rolled back with it: the row is still
	// PENDING and retryable, not PAID with unsold seats.
	stored, err := d.GetReservationByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, stored.State)

	setHeld(t, bunDB, "trip-1", 2)
	won, err = d.MarkPaid(ctx, res.ID, 24.50, res.TripID, res.SeatCount, now)
	require.NoError(t, err)
	assert.True(t, won, "the retry succeeds once the inventory write can")

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld)
	assert.Equal(t, 2, entry.SeatsSold)
}

func TestMarkExpiredOnlyAfterDeadline(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 2, now.Add(10*time.Minute))
	ctx := context.Background()

	won, err := d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now)
	assert.NoError(t, err)
	assert.False(t, won, "deadline not reached yet")

	won, err = d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now.Add(11*time.Minute))
	assert.NoError(t, err)
	assert.True(t, won)

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld, "expiry releases the held seats")

	// Terminal; a second expire is a no-op.
	won, err = d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now.Add(12*time.Minute))
	assert.NoError(t, err)
	assert.False(t, won)
}

func TestMarkExpiredRollsBackWhenReleaseFails(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 2, now.Add(-time.Minute))
	ctx := context.Background()

	setHeld(t, bunDB, "trip-1", 0)

	won, err := d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now)
	assert.Error(t, err)
	assert.False(t, won)

	// Still PENDING, so the next sweep sees the row again instead of
	// stranding the seats in seats_held forever.
	stored, err := d.GetReservationByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationPending, stored.State)

	setHeld(t, bunDB, "trip-1", 2)
	won, err = d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now)
	require.NoError(t, err)
	assert.True(t, won)

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld)
	assert.Equal(t, 0, entry.SeatsSold)
}

func TestMarkExpiredAndMarkPaidAreExclusive(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 2, now)
	ctx := context.Background()

	expired, err := d.MarkExpired(ctx, res.ID, res.TripID, res.SeatCount, now)
	require.NoError(t, err)
	require.True(t, expired)

	paid, err := d.MarkPaid(ctx, res.ID, 30.0, res.TripID, res.SeatCount, now)
	assert.NoError(t, err)
	assert.False(t, paid, "an expired reservation can never become paid")

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld)
	assert.Equal(t, 0, entry.SeatsSold, "exactly one ledger outcome")
}

func TestMarkCancelledReleasesSeats(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	res := insertPending(t, d, "trip-1", 3, now.Add(10*time.Minute))
	ctx := context.Background()

	won, err := d.MarkCancelled(ctx, res.ID, res.TripID, res.SeatCount)
	require.NoError(t, err)
	require.True(t, won)

	entry := inventory(t, bunDB, "trip-1")
	assert.Equal(t, 0, entry.SeatsHeld)

	won, err = d.MarkCancelled(ctx, res.ID, res.TripID, res.SeatCount)
	assert.NoError(t, err)
	assert.False(t, won, "cancel of a terminal row is a no-op")
}

func TestListExpired(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)
	seedInventory(t, bunDB, "trip-2", 10)

	now := time.Now()
	overdue := insertPending(t, d, "trip-1", 1, now.Add(-2*time.Minute))
	insertPending(t, d, "trip-1", 1, now.Add(10*time.Minute))
	other := insertPending(t, d, "trip-2", 2, now.Add(-time.Minute))

	rows, err := d.ListExpired(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, overdue.ID, rows[0].ID, "oldest deadline first")
	assert.Equal(t, other.ID, rows[1].ID)

	byTrip, err := d.ListExpiredByTrip(context.Background(), "trip-2", now)
	require.NoError(t, err)
	require.Len(t, byTrip, 1)
	assert.Equal(t, other.ID, byTrip[0].ID)
}

func TestAddRevenueAccumulates(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	date := time.Date(2025, 7, 14, 8, 30, 0, 0, time.UTC)

	require.NoError(t, d.AddRevenue(ctx, "trip-1", date, 12.50))
	require.NoError(t, d.AddRevenue(ctx, "trip-1", date, 7.25))
	require.NoError(t, d.AddRevenue(ctx, "trip-1", date.Add(24*time.Hour), 5.00))

	rows, err := d.RevenueByDate(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, rows, 2, "the unique trip/date key keeps one row per date")
	assert.Equal(t, 19.75, rows[0].AmountTotal)
	assert.Equal(t, 2, rows[0].PaidCount)
	assert.Equal(t, 5.00, rows[1].AmountTotal)
	assert.Equal(t, 1, rows[1].PaidCount)
}

func TestAddRevenueConcurrentSameDate(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()
	date := time.Date(2025, 7, 14, 8, 30, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.AddRevenue(ctx, "trip-1", date, 10.00))
		}()
	}
	wg.Wait()

	rows, err := d.RevenueByDate(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "concurrent payments must not split the aggregate")
	assert.Equal(t, 100.00, rows[0].AmountTotal)
	assert.Equal(t, 10, rows[0].PaidCount)
}

func TestPendingCount(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)

	now := time.Now()
	insertPending(t, d, "trip-1", 1, now.Add(10*time.Minute))
	insertPending(t, d, "trip-1", 2, now.Add(10*time.Minute))
	paid := insertPending(t, d, "trip-1", 1, now.Add(10*time.Minute))

	won, err := d.MarkPaid(context.Background(), paid.ID, 9.99, paid.TripID, paid.SeatCount, now)
	require.NoError(t, err)
	require.True(t, won)

	count, err := d.PendingCount(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListByCustomer(t *testing.T) {
	d, bunDB := setupTestDB(t)
	defer bunDB.Close()
	seedInventory(t, bunDB, "trip-1", 10)
	seedInventory(t, bunDB, "trip-2", 10)

	now := time.Now()
	insertPending(t, d, "trip-1", 1, now.Add(10*time.Minute))
	insertPending(t, d, "trip-2", 2, now.Add(10*time.Minute))

	rows, err := d.ListByCustomer(context.Background(), "maria@example.com")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = d.ListByCustomer(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
