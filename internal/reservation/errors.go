package reservation

import (
	"errors"

	"ms-reservations/internal/ledger"
)

// Sentinel errors for the reservation state machine. Callers classify
// failures with errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrInsufficientCapacity: no seats available at hold time. Retryable
	// on a different trip.
	ErrInsufficientCapacity = ledger.ErrInsufficientCapacity

	// ErrAlreadyExpired: payment arrived after the hold window. The caller
	// must start a fresh reservation; seats may already be resold.
	ErrAlreadyExpired = errors.New("reservation hold has expired")

	// ErrInvalidState: transition attempted from a terminal or wrong state.
	// Usually means a race was lost or the client is stale.
	ErrInvalidState = errors.New("reservation is not in a valid state for this operation")

	// ErrNotFound: unknown reservation id.
	ErrNotFound = errors.New("reservation not found")
)
