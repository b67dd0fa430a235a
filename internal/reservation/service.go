package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-reservations/internal/ledger"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
)

type DBLayer interface {
	CreateReservation(ctx context.Context, res *models.Reservation) error
	GetReservationByID(ctx context.Context, id int64) (*models.Reservation, error)
	MarkPaid(ctx context.Context, id int64, amount float64, tripID string, seatCount int, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id int64, tripID string, seatCount int) (bool, error)
	MarkExpired(ctx context.Context, id int64, tripID string, seatCount int, now time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
	ListExpiredByTrip(ctx context.Context, tripID string, now time.Time) ([]models.Reservation, error)
	ListByCustomer(ctx context.Context, email string) ([]models.Reservation, error)
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	AddRevenue(ctx context.Context, tripID string, date time.Time, amount float64) error
	RevenueByDate(ctx context.Context, tripID string) ([]models.TripRevenue, error)
	PendingCount(ctx context.Context, tripID string) (int, error)
}

// SeatLedger is the read-side slice of the inventory ledger the service
// needs directly. The mutations (hold, release, sell) run inside the DB
// layer's transactions so they are atomic with the state transitions.
type SeatLedger interface {
	EnsureEntry(ctx context.Context, tripID string) error
	Available(ctx context.Context, tripID string) (int, error)
}

type TripLock interface {
	LockTrip(ctx context.Context, tripID string) (token string, ok bool, err error)
	UnlockTrip(ctx context.Context, tripID, token string) error
}

type EventPublisher interface {
	PublishReservationCreated(res models.Reservation) error
	PublishReservationPaid(res models.Reservation) error
	PublishReservationCancelled(res models.Reservation) error
	PublishReservationExpired(res models.Reservation) error
}

// Service drives the reservation state machine. Every state transition is
// a conditional update that runs in one transaction with its seat-ledger
// mutation, so racing callers resolve to exactly one winner and a partial
// failure can never strand seats in the wrong counter.
type Service struct {
	DB         DBLayer
	Ledger     SeatLedger
	Lock       TripLock
	Events     EventPublisher
	Logger     *logger.Logger
	HoldWindow time.Duration

	// Now is the clock used for hold deadlines. Overridable in tests.
	Now func() time.Time
}

func NewService(db DBLayer, seatLedger SeatLedger, lock TripLock, events EventPublisher, log *logger.Logger, holdWindow time.Duration) *Service {
	return &Service{
		DB:         db,
		Ledger:     seatLedger,
		Lock:       lock,
		Events:     events,
		Logger:     log,
		HoldWindow: holdWindow,
		Now:        time.Now,
	}
}

// CreateReservation holds seats for a trip and records a PENDING
// reservation with a fixed hold deadline. The trip lock serializes the
// lazy-reap-then-hold sequence across instances; the hold itself is atomic
// in the ledger either way.
func (s *Service) CreateReservation(ctx context.Context, tripID string, seatLabels []string, customerEmail string) (*models.Reservation, error) {
	if tripID == "" {
		return nil, fmt.Errorf("trip id is required")
	}
	if len(seatLabels) == 0 {
		return nil, fmt.Errorf("at least one seat label is required")
	}
	seatCount := len(seatLabels)

	lockToken, locked, err := s.Lock.LockTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("trip lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("trip %s is busy, retry", tripID)
	}
	defer func() {
		_ = s.Lock.UnlockTrip(ctx, tripID, lockToken)
	}()

	if err := s.Ledger.EnsureEntry(ctx, tripID); err != nil {
		if errors.Is(err, ledger.ErrUnknownTrip) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.Now()
	res := &models.Reservation{
		TripID:        tripID,
		CustomerEmail: customerEmail,
		SeatLabels:    seatLabels,
		SeatCount:     seatCount,
		State:         models.ReservationPending,
		HoldToken:     uuid.NewString(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.HoldWindow),
	}

	// The hold and the insert are one transaction in the DB layer, so a
	// failure here leaves no seats claimed.
	err = s.DB.CreateReservation(ctx, res)
	if errors.Is(err, ErrInsufficientCapacity) {
		// Capacity may be eaten by stale holds; reap this trip and retry
		// once before giving up.
		s.reapTrip(ctx, tripID)
		err = s.DB.CreateReservation(ctx, res)
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientCapacity) {
			return nil, err
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if s.Logger != nil {
		s.Logger.LogReservation("CREATE", res.ID, fmt.Sprintf("%d seats on trip %s, expires %s", seatCount, tripID, res.ExpiresAt.Format(time.RFC3339)))
	}
	if s.Events != nil {
		if err := s.Events.PublishReservationCreated(*res); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation created: %v", err))
		}
	}
	return res, nil
}

// ConfirmPayment transitions a PENDING reservation to PAID and commits its
// held seats. Idempotent for an already-PAID id so payment webhooks can
// retry safely.
func (s *Service) ConfirmPayment(ctx context.Context, id int64, amount float64) (*models.Reservation, error) {
	res, err := s.getOrNotFound(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.State == models.ReservationPaid {
		return res, nil
	}

	now := s.Now()
	won, err := s.DB.MarkPaid(ctx, id, amount, res.TripID, res.SeatCount, now)
	if err != nil {
		// The transaction rolled back: the row is still PENDING and the
		// webhook retry takes the same path again.
		return nil, fmt.Errorf("mark reservation %d paid: %w", id, err)
	}
	if !won {
		// Lost the race or wrong state; a fresh read explains which.
		cur, err := s.getOrNotFound(ctx, id)
		if err != nil {
			return nil, err
		}
		switch cur.State {
		case models.ReservationPaid:
			// A concurrent confirmation won. Same idempotent answer.
			return cur, nil
		case models.ReservationExpired:
			return nil, ErrAlreadyExpired
		case models.ReservationPending:
			if !now.Before(cur.ExpiresAt) {
				// Deadline passed but the reaper has not swept it yet.
				return nil, ErrAlreadyExpired
			}
			return nil, ErrInvalidState
		default:
			return nil, ErrInvalidState
		}
	}

	if trip, tripErr := s.DB.GetTrip(ctx, res.TripID); tripErr == nil {
		if revErr := s.DB.AddRevenue(ctx, res.TripID, trip.DepartureAt, amount); revErr != nil && s.Logger != nil {
			s.Logger.Error("DATABASE", fmt.Sprintf("record revenue for trip %s: %v", res.TripID, revErr))
		}
	}

	res.State = models.ReservationPaid
	res.Amount = &amount

	if s.Logger != nil {
		s.Logger.LogReservation("PAID", id, fmt.Sprintf("%d seats committed on trip %s", res.SeatCount, res.TripID))
	}
	if s.Events != nil {
		if err := s.Events.PublishReservationPaid(*res); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation paid: %v", err))
		}
	}
	return res, nil
}

// CancelReservation releases a PENDING reservation's seats. Best-effort:
// cancelling a reservation that already left PENDING reports
// ErrInvalidState without touching the ledger.
func (s *Service) CancelReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := s.getOrNotFound(ctx, id)
	if err != nil {
		return nil, err
	}

	won, err := s.DB.MarkCancelled(ctx, id, res.TripID, res.SeatCount)
	if err != nil {
		return nil, fmt.Errorf("cancel reservation %d: %w", id, err)
	}
	if !won {
		return nil, ErrInvalidState
	}

	res.State = models.ReservationCancelled
	if s.Logger != nil {
		s.Logger.LogReservation("CANCEL", id, fmt.Sprintf("%d seats released on trip %s", res.SeatCount, res.TripID))
	}
	if s.Events != nil {
		if err := s.Events.PublishReservationCancelled(*res); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation cancelled: %v", err))
		}
	}
	return res, nil
}

// Expire moves one overdue PENDING reservation to EXPIRED and releases its
// seats. Idempotent: a reservation that already left PENDING, or whose
// deadline has not passed, is a no-op.
func (s *Service) Expire(ctx context.Context, id int64) error {
	res, err := s.DB.GetReservationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reservation %d: %w", id, err)
	}

	won, err := s.DB.MarkExpired(ctx, id, res.TripID, res.SeatCount, s.Now())
	if err != nil {
		// Rolled back: the row is still PENDING and the next sweep
		// retries it.
		return fmt.Errorf("expire reservation %d: %w", id, err)
	}
	if !won {
		// Paid, cancelled or already expired in the meantime.
		return nil
	}

	res.State = models.ReservationExpired
	if s.Logger != nil {
		s.Logger.LogReservation("EXPIRE", id, fmt.Sprintf("%d seats released on trip %s", res.SeatCount, res.TripID))
	}
	if s.Events != nil {
		if err := s.Events.PublishReservationExpired(*res); err != nil && s.Logger != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish reservation expired: %v", err))
		}
	}
	return nil
}

// SweepExpired expires every overdue PENDING reservation, up to limit.
// Each expiry is independent: a failure is logged and the sweep moves on,
// leaving the row for the next interval.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	overdue, err := s.DB.ListExpired(ctx, s.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	expired := 0
	for _, res := range overdue {
		if err := s.Expire(ctx, res.ID); err != nil {
			if s.Logger != nil {
				s.Logger.Error("REAPER", fmt.Sprintf("expire reservation %d: %v", res.ID, err))
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// reapTrip expires overdue holds for a single trip before a retry of
// TryHold. Errors are logged only; a failed reap just means the retry
// still sees the stale hold.
func (s *Service) reapTrip(ctx context.Context, tripID string) {
	overdue, err := s.DB.ListExpiredByTrip(ctx, tripID, s.Now())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("REAPER", fmt.Sprintf("lazy reap of trip %s: %v", tripID, err))
		}
		return
	}
	for _, res := range overdue {
		if err := s.Expire(ctx, res.ID); err != nil && s.Logger != nil {
			s.Logger.Error("REAPER", fmt.Sprintf("lazy expire reservation %d: %v", res.ID, err))
		}
	}
}

// GetReservation fetches a reservation by id.
func (s *Service) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.getOrNotFound(ctx, id)
}

// ReservationsByCustomer lists a customer's reservations, newest first.
func (s *Service) ReservationsByCustomer(ctx context.Context, email string) ([]models.Reservation, error) {
	return s.DB.ListByCustomer(ctx, email)
}

// AvailableSeats reports total - held - sold for a trip.
func (s *Service) AvailableSeats(ctx context.Context, tripID string) (int, error) {
	if err := s.Ledger.EnsureEntry(ctx, tripID); err != nil {
		if errors.Is(err, ledger.ErrUnknownTrip) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return s.Ledger.Available(ctx, tripID)
}

// RevenueByDate exposes paid-amount aggregates per trip date for the
// reporting collaborator.
func (s *Service) RevenueByDate(ctx context.Context, tripID string) ([]models.TripRevenue, error) {
	return s.DB.RevenueByDate(ctx, tripID)
}

// PendingCount exposes the number of active holds for a trip.
func (s *Service) PendingCount(ctx context.Context, tripID string) (int, error) {
	return s.DB.PendingCount(ctx, tripID)
}

func (s *Service) getOrNotFound(ctx context.Context, id int64) (*models.Reservation, error) {
	res, err := s.DB.GetReservationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return res, nil
}
