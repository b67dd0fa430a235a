package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/utils"
)

type Handler struct {
	Service *reservation.Service
	Logger  *logger.Logger
}

func NewHandler(service *reservation.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// CreateReservation handles POST /api/v1/reservations.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req models.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: invalid body: %v", err))
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	res, err := h.Service.CreateReservation(r.Context(), req.TripID, req.SeatLabels, req.CustomerEmail)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateReservation: %v", err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("could not create reservation", err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("reservation created", models.ReservationResponse{
		ReservationID: res.ID,
		TripID:        res.TripID,
		SeatLabels:    res.SeatLabels,
		State:         res.State,
		ExpiresAt:     res.ExpiresAt,
	}))
}

// GetReservation handles GET /api/v1/reservations/{reservationID}.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reservationID(w, r)
	if !ok {
		return
	}

	res, err := h.Service.GetReservation(r.Context(), id)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("could not load reservation", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("reservation", res))
}

// ConfirmPayment handles POST /api/v1/reservations/{reservationID}/payment.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reservationID(w, r)
	if !ok {
		return
	}

	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid amount", "amount must be positive"))
		return
	}

	res, err := h.Service.ConfirmPayment(r.Context(), id, req.Amount)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ConfirmPayment: reservation %d: %v", id, err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("could not confirm payment", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("payment confirmed", res))
}

// CancelReservation handles DELETE /api/v1/reservations/{reservationID}.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reservationID(w, r)
	if !ok {
		return
	}

	res, err := h.Service.CancelReservation(r.Context(), id)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelReservation: reservation %d: %v", id, err))
		writeJSON(w, statusForError(err), utils.ErrorResponse("could not cancel reservation", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("reservation cancelled", res))
}

// AvailableSeats handles GET /api/v1/trips/{tripID}/availability.
func (h *Handler) AvailableSeats(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	available, err := h.Service.AvailableSeats(r.Context(), tripID)
	if err != nil {
		writeJSON(w, statusForError(err), utils.ErrorResponse("could not load availability", err.Error()))
		return
	}

	pending, err := h.Service.PendingCount(r.Context(), tripID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load pending count", err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("availability", map[string]interface{}{
		"trip_id":   tripID,
		"available": available,
		"pending":   pending,
	}))
}

// Revenue handles GET /api/v1/trips/{tripID}/revenue.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	rows, err := h.Service.RevenueByDate(r.Context(), tripID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load revenue", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("revenue by date", rows))
}

// CustomerReservations handles GET /api/v1/customers/{email}/reservations.
func (h *Handler) CustomerReservations(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	rows, err := h.Service.ReservationsByCustomer(r.Context(), email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not load reservations", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("reservations", rows))
}

func (h *Handler) reservationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "reservationID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid reservation id", raw))
		return 0, false
	}
	return id, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrInsufficientCapacity):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrAlreadyExpired):
		return http.StatusGone
	case errors.Is(err, reservation.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
