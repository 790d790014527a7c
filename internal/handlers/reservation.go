package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/internal/storage"
	"github.com/roomdesk/apiserver/types"
)

// ReservationHandler provides HTTP handlers for the reservation lifecycle.
// Every response uses the Envelope shape.
type ReservationHandler struct {
	reservations *services.ReservationService
	exports      *services.ExportService
	clock        services.Clock
	logger       *slog.Logger
}

func NewReservationHandler(reservations *services.ReservationService, exports *services.ExportService, clock services.Clock, logger *slog.Logger) *ReservationHandler {
	if clock == nil {
		clock = services.SystemClock
	}
	return &ReservationHandler{
		reservations: reservations,
		exports:      exports,
		clock:        clock,
		logger:       logger,
	}
}

// ReservationRouter registers reservation routes.
func ReservationRouter(r chi.Router, handler *ReservationHandler, auth *AuthHandler) {
	r.Post("/", handler.Create)
	r.Get("/{roomID}", handler.Weekly)
	r.Get("/day/{date}/{roomID}", handler.Daily)
	r.Get("/confirm/{code}", handler.Confirm)
	r.Delete("/cancel/{code}", handler.Cancel)
	r.Post("/validate", handler.Validate)
	r.Post("/upcoming", handler.Upcoming)
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAuth, auth.RequireAdmin)
		r.Get("/upcoming", handler.AdminUpcoming)
		if handler.exports != nil {
			r.Post("/snapshots", handler.ExportWeek)
			r.Get("/snapshots/{date}", handler.Snapshots)
			r.Get("/snapshots/{date}/{roomID}", handler.Snapshot)
		}
	})
}

// Create registers a pending reservation and returns its confirmation code.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.ReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: "Invalid reservation request"})
		return
	}

	reservation, err := h.reservations.Create(r.Context(), req)
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Code: reservation.Code})
}

// Weekly lists a room's reservations for the current week.
func (h *ReservationHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseIDParam(r, "roomID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: err.Error()})
		return
	}

	week, err := h.reservations.WeeklySchedule(r.Context(), roomID)
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: week})
}

// Daily lists a room's pending and confirmed reservations on one date.
func (h *ReservationHandler) Daily(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseIDParam(r, "roomID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: err.Error()})
		return
	}

	entries, err := h.reservations.DailySchedule(r.Context(), roomID, chi.URLParam(r, "date"))
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: entries})
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if _, err := h.reservations.Confirm(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeEnvelopeError(w, r, h.logger, err, "Reservation not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Msg: "Reservation confirmed"})
}

// Cancel always succeeds unless the store fails; Data.removed tells whether
// a reservation was actually deleted.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	removed, err := h.reservations.Cancel(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "Reservation not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		OK:   true,
		Msg:  "Reservation cancelled",
		Data: CancelResponse{Removed: removed},
	})
}

// Validate reports the pending reservations of an email that can still be
// confirmed.
func (h *ReservationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: "Invalid request"})
		return
	}

	holds, err := h.reservations.OutstandingHolds(r.Context(), req.Email)
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		OK:   true,
		Data: HoldsResponse{Pending: len(holds) > 0, Reservations: holds},
	})
}

// Upcoming lists the confirmed reservations of an email for the next week.
func (h *ReservationHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: "Invalid request"})
		return
	}

	items, err := h.reservations.UpcomingForRequester(r.Context(), req.Email)
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: items})
}

// AdminUpcoming lists every pending and confirmed reservation for the next week.
func (h *ReservationHandler) AdminUpcoming(w http.ResponseWriter, r *http.Request) {
	items, err := h.reservations.UpcomingAll(r.Context())
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: items})
}

// ExportWeek archives the current week of every room.
func (h *ReservationHandler) ExportWeek(w http.ResponseWriter, r *http.Request) {
	keys, err := h.exports.ExportWeek(r.Context(), h.clock.Now())
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: keys})
}

// Snapshots lists the archived schedules of the week containing date.
func (h *ReservationHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	objects, err := h.exports.ListSnapshots(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeEnvelopeError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: objects})
}

// Snapshot returns the archived schedule of a room for the week containing date.
func (h *ReservationHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseIDParam(r, "roomID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Msg: err.Error()})
		return
	}

	snapshot, err := h.exports.LoadSnapshot(r.Context(), chi.URLParam(r, "date"), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeJSON(w, http.StatusNotFound, Envelope{Msg: "Snapshot not found"})
			return
		}
		writeEnvelopeError(w, r, h.logger, err, "Snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{OK: true, Data: snapshot})
}

type EmailRequest struct {
	Email string `json:"email"`
}

type CancelResponse struct {
	Removed bool `json:"removed"`
}

type HoldsResponse struct {
	Pending      bool                `json:"pending"`
	Reservations []types.Reservation `json:"reservations"`
}
