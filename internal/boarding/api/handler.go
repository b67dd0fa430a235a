package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-reservations/internal/boarding"
	"ms-reservations/internal/logger"
	"ms-reservations/internal/models"
	"ms-reservations/internal/reservation"
	"ms-reservations/internal/utils"
)

type Handler struct {
	Service *boarding.Service
	Logger  *logger.Logger
}

func NewHandler(service *boarding.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// IssueTickets handles POST /api/v1/reservations/{reservationID}/tickets.
func (h *Handler) IssueTickets(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "reservationID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid reservation id", raw))
		return
	}

	passes, err := h.Service.IssueTickets(r.Context(), id)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("IssueTickets: reservation %d: %v", id, err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, reservation.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, reservation.ErrInvalidState):
			status = http.StatusConflict
		}
		writeJSON(w, status, utils.ErrorResponse("could not issue tickets", err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("boarding passes issued", passes))
}

// Scan handles POST /api/v1/boarding/scan.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	result, pass, err := h.Service.Scan(r.Context(), req.Code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Scan: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("scan failed", err.Error()))
		return
	}

	resp := models.ScanResponse{Result: string(result)}
	if pass != nil {
		resp.SeatLabel = pass.SeatLabel
		resp.TripID = pass.TripID
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("scan processed", resp))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
