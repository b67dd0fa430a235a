package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Boarding pass usage states. A pass moves ISSUED -> CONSUMED exactly once.
const (
	PassIssued   = "ISSUED"
	PassConsumed = "CONSUMED"
)

type BoardingPass struct {
	bun.BaseModel `bun:"table:boarding_passes"`

	Code          string    `bun:"code,pk" json:"code"`
	ReservationID int64     `bun:"reservation_id,notnull" json:"reservation_id"`
	TripID        string    `bun:"trip_id,notnull" json:"trip_id"`
	SeatLabel     string    `bun:"seat_label" json:"seat_label"`
	Status        string    `bun:"status,notnull" json:"status"`
	QRCode        []byte    `bun:"qr_code" json:"qr_code,omitempty"`
	IssuedAt      time.Time `bun:"issued_at,notnull" json:"issued_at"`
	ConsumedAt    time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
}

type ScanRequest struct {
	Code string `json:"code"`
}

type ScanResponse struct {
	Result    string `json:"result"`
	SeatLabel string `json:"seat_label,omitempty"`
	TripID    string `json:"trip_id,omitempty"`
}
