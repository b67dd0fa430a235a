package boarding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservations/internal/boarding/qr"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/utils"
)

// ScanResult is the gate-facing outcome of a boarding scan. ALREADY_USED
// and INVALID_CODE are normal outcomes, not errors.
type ScanResult string

const (
	ScanValidFirstUse ScanResult = "VALID_FIRST_USE"
	ScanAlreadyUsed   ScanResult = "ALREADY_USED"
	ScanInvalidCode   ScanResult = "INVALID_CODE"
)

type PassDBLayer interface {
	CreatePass(ctx context.Context, pass *models.BoardingPass) error
	GetPassByCode(ctx context.Context, code string) (*models.BoardingPass, error)
	GetPassesByReservation(ctx context.Context, reservationID int64) ([]models.BoardingPass, error)
	ConsumePass(ctx context.Context, code string, now time.Time) (bool, error)
}

// ReservationReader is the slice of the reservation service the validator
// needs: state lookups only.
type ReservationReader interface {
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
}

type BoardingPublisher interface {
	PublishPassengerBoarded(pass models.BoardingPass) error
}

// Service mints boarding passes for paid reservations and enforces
// at-most-once consumption of each pass at the gate.
type Service struct {
	DB           PassDBLayer
	Reservations ReservationReader
	Events       BoardingPublisher
	QR           *qr.QRGenerator
	Logger       *logger.Logger

	// Now is the clock stamped onto consumed passes. Overridable in tests.
	Now func() time.Time
}

func NewService(db PassDBLayer, reservations ReservationReader, events BoardingPublisher, qrGen *qr.QRGenerator, log *logger.Logger) *Service {
	return &Service{
		DB:           db,
		Reservations: reservations,
		Events:       events,
		QR:           qrGen,
		Logger:       log,
		Now:          time.Now,
	}
}

// IssueTickets mints one boarding pass per seat of a PAID reservation.
// Calling it again returns the already-minted passes instead of minting
// duplicates.
func (s *Service) IssueTickets(ctx context.Context, reservationID int64) ([]models.BoardingPass, error) {
	res, err := s.Reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.State != models.ReservationPaid {
		return nil, reservation.ErrInvalidState
	}

	existing, err := s.DB.GetPassesByReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load passes for reservation %d: %w", reservationID, err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	now := s.Now()
	passes := make([]models.BoardingPass, 0, len(res.SeatLabels))
	for _, seatLabel := range res.SeatLabels {
		code := utils.GenerateBoardingCode()

		pass := models.BoardingPass{
			Code:          code,
			ReservationID: reservationID,
			TripID:        res.TripID,
			SeatLabel:     seatLabel,
			Status:        models.PassIssued,
			IssuedAt:      now,
		}

		if s.QR != nil {
			qrBytes, err := s.QR.GenerateBoardingQR(qr.Payload{
				Code:      code,
				TripID:    res.TripID,
				SeatLabel: seatLabel,
				IssuedAt:  now,
			})
			if err != nil {
				return nil, fmt.Errorf("generate QR for seat %s: %w", seatLabel, err)
			}
			pass.QRCode = qrBytes
		}

		if err := s.DB.CreatePass(ctx, &pass); err != nil {
			return nil, fmt.Errorf("create boarding pass for seat %s: %w", seatLabel, err)
		}
		passes = append(passes, pass)
	}

	if s.Logger != nil {
		s.Logger.LogReservation("ISSUE", reservationID, fmt.Sprintf("%d boarding passes minted for trip %s", len(passes), res.TripID))
	}
	return passes, nil
}

// Scan consumes a boarding pass. Concurrent scans of the same code resolve
// to exactly one VALID_FIRST_USE; the rest see ALREADY_USED. Unknown codes
// return INVALID_CODE without touching any state.
func (s *Service) Scan(ctx context.Context, code string) (ScanResult, *models.BoardingPass, error) {
	if code == "" {
		return ScanInvalidCode, nil, nil
	}

	won, err := s.DB.ConsumePass(ctx, code, s.Now())
	if err != nil {
		return "", nil, fmt.Errorf("consume pass: %w", err)
	}

	if won {
		pass, err := s.DB.GetPassByCode(ctx, code)
		if err != nil {
			// Consumption already happened; the lookup is display-only.
			if s.Logger != nil {
				s.Logger.Error("BOARDING", fmt.Sprintf("load consumed pass %s: %v", code, err))
			}
			return ScanValidFirstUse, nil, nil
		}
		if s.Logger != nil {
			s.Logger.LogBoarding("SCAN", code, fmt.Sprintf("seat %s boarded on trip %s", pass.SeatLabel, pass.TripID))
		}
		if s.Events != nil {
			if err := s.Events.PublishPassengerBoarded(*pass); err != nil && s.Logger != nil {
				s.Logger.Error("KAFKA", fmt.Sprintf("publish passenger boarded: %v", err))
			}
		}
		return ScanValidFirstUse, pass, nil
	}

	pass, err := s.DB.GetPassByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanInvalidCode, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("look up pass: %w", err)
	}
	if s.Logger != nil {
		s.Logger.LogBoarding("SCAN", code, "rejected: already used")
	}
	return ScanAlreadyUsed, pass, nil
}

// PassesByReservation returns the minted passes for a reservation, if any.
func (s *Service) PassesByReservation(ctx context.Context, reservationID int64) ([]models.BoardingPass, error) {
	return s.DB.GetPassesByReservation(ctx, reservationID)
}
