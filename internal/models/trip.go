package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Trip is a read-only reference owned by the schedule catalog. The engine
// only consumes its capacity and departure time.
type Trip struct {
	bun.BaseModel `bun:"table:trips"`

	ID          string    `bun:"id,pk" json:"id"`
	Origin      string    `bun:"origin" json:"origin"`
	Destination string    `bun:"destination" json:"destination"`
	DepartureAt time.Time `bun:"departure_at,notnull" json:"departure_at"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity"`
}
