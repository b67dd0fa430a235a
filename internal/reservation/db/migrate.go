package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"ms-reservations/internal/models"
)

// Migrate creates the engine's tables if they do not exist yet. Trips are
// included so a standalone deployment can be seeded by the catalog import.
func Migrate(db *bun.DB) {
	ctx := context.Background()

	tables := []interface{}{
		(*models.Trip)(nil),
		(*models.TripInventory)(nil),
		(*models.Reservation)(nil),
		(*models.BoardingPass)(nil),
		(*models.TripRevenue)(nil),
	}

	for _, model := range tables {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("reservation schema ready")
}
