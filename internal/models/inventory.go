package models

import (
	"github.com/uptrace/bun"
)

// TripInventory is the authoritative seat counter for one trip.
// Invariant: seats_held + seats_sold <= total_seats at all times.
type TripInventory struct {
	bun.BaseModel `bun:"table:trip_inventory"`

	TripID     string `bun:"trip_id,pk" json:"trip_id"`
	TotalSeats int    `bun:"total_seats,notnull" json:"total_seats"`
	SeatsHeld  int    `bun:"seats_held,notnull,default:0" json:"seats_held"`
	SeatsSold  int    `bun:"seats_sold,notnull,default:0" json:"seats_sold"`
}

// Available returns the number of seats that can still be held.
func (i *TripInventory) Available() int {
	return i.TotalSeats - i.SeatsHeld - i.SeatsSold
}
