package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	boardingapi "ms-reservations/internal/boarding/api"
	boardingdb "ms-reservations/internal/boarding/db"
	"ms-reservations/internal/boarding/qr"

	"ms-reservations/internal/boarding"
	"ms-reservations/internal/config"
	"ms-reservations/internal/ledger"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/reaper"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/reservation/api"
	"ms-reservations/internal/reservation/db"
	"ms-reservations/internal/reservation/kafka"
	rediswrap "ms-reservations/internal/reservation/redis"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	appLogger := logger.NewLogger()
	defer appLogger.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open Postgres: %v", err)
	}
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	db.Migrate(bunDB)

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	// --- Kafka ---
	var events reservation.EventPublisher
	var boarded boarding.BoardingPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicExists(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			appLogger.Warn("KAFKA", "topic setup failed: "+err.Error())
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		boarded = producer
	}

	// --- Services ---
	seatLedger := ledger.New(bunDB)
	tripLock := rediswrap.NewRedis(redisClient)

	reservations := reservation.NewService(
		&db.DB{Bun: bunDB},
		seatLedger,
		tripLock,
		events,
		appLogger,
		cfg.Reservation.HoldWindow,
	)

	boardingSvc := boarding.NewService(
		&boardingdb.DB{Bun: bunDB},
		reservations,
		boarded,
		qr.NewQRGenerator(cfg.Reservation.QRSecret),
		appLogger,
	)

	// --- Reaper ---
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	holdReaper := reaper.New(reservations, cfg.Reservation.ReaperInterval, cfg.Reservation.ReaperBatch, appLogger)
	go holdReaper.Run(reaperCtx)

	// --- Router ---
	resHandler := api.NewHandler(reservations, appLogger)
	passHandler := boardingapi.NewHandler(boardingSvc, appLogger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reservations", resHandler.CreateReservation)
		r.Get("/reservations/{reservationID}", resHandler.GetReservation)
		r.Post("/reservations/{reservationID}/payment", resHandler.ConfirmPayment)
		r.Delete("/reservations/{reservationID}", resHandler.CancelReservation)
		r.Post("/reservations/{reservationID}/tickets", passHandler.IssueTickets)
		r.Post("/boarding/scan", passHandler.Scan)
		r.Get("/trips/{tripID}/availability", resHandler.AvailableSeats)
		r.Get("/trips/{tripID}/revenue", resHandler.Revenue)
		r.Get("/customers/{email}/reservations", resHandler.CustomerReservations)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("SERVER", "Reservation service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP error: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopReaper()
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	appLogger.Info("SERVER", "Reservation service shutdown complete")
}
