package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reservation states. Terminal states (PAID, CANCELLED, EXPIRED) are final;
// a reservation never re-enters PENDING.
const (
	ReservationPending   = "PENDING"
	ReservationPaid      = "PAID"
	ReservationCancelled = "CANCELLED"
	ReservationExpired   = "EXPIRED"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	TripID        string    `bun:"trip_id,notnull" json:"trip_id"`
	CustomerEmail string    `bun:"customer_email" json:"customer_email,omitempty"`
	SeatLabels    []string  `bun:"seat_labels" json:"seat_labels"`
	SeatCount     int       `bun:"seat_count,notnull" json:"seat_count"`
	Amount        *float64  `bun:"amount" json:"amount,omitempty"`
	State         string    `bun:"state,notnull" json:"state"`
	HoldToken     string    `bun:"hold_token" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at" json:"expires_at"`
}

type ReservationRequest struct {
	TripID        string   `json:"trip_id"`
	SeatLabels    []string `json:"seat_labels"`
	CustomerEmail string   `json:"customer_email"`
}

type ReservationResponse struct {
	ReservationID int64     `json:"reservation_id"`
	TripID        string    `json:"trip_id"`
	SeatLabels    []string  `json:"seat_labels"`
	State         string    `json:"state"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type PaymentRequest struct {
	Amount float64 `json:"amount"`
}
