package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TripRevenue is a per trip-date accounting row, incremented each time a
// reservation for that trip is paid. Consumed by reporting dashboards.
type TripRevenue struct {
	bun.BaseModel `bun:"table:trip_revenue"`

	ID          int64     `bun:"id,pk,autoincrement"`
	TripID      string    `bun:"trip_id,unique:trip_date" json:"trip_id"`
	Date        time.Time `bun:"date,unique:trip_date" json:"date"`
	AmountTotal float64   `bun:"amount_total" json:"amount_total"`
	PaidCount   int       `bun:"paid_count" json:"paid_count"`
}
