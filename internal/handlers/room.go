package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/types"
)

// RoomHandler provides HTTP handlers for rooms.
type RoomHandler struct {
	roomService *services.RoomService
	logger      *slog.Logger
}

func NewRoomHandler(roomService *services.RoomService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{roomService: roomService, logger: logger}
}

// RoomRouter registers room routes. Reads are public, writes need an admin.
func RoomRouter(r chi.Router, handler *RoomHandler, auth *AuthHandler) {
	r.Get("/", handler.ListRooms)
	r.With(auth.RequireAuth, auth.RequireAdmin).Post("/", handler.CreateRoom)
	r.Route("/{roomID}", func(r chi.Router) {
		r.Get("/", handler.GetRoom)
		r.With(auth.RequireAuth, auth.RequireAdmin).Put("/", handler.UpdateRoom)
		r.With(auth.RequireAuth, auth.RequireAdmin).Delete("/", handler.DeleteRoom)
	})
}

func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.roomService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "roomID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.roomService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "room not found", "failed to fetch room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	room, err := h.roomService.Create(r.Context(), types.Room{
		Name:             req.Name,
		Description:      req.Description,
		Responsible:      req.Responsible,
		ResponsibleEmail: req.ResponsibleEmail,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "room not found", "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "roomID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	room, err := h.roomService.Update(r.Context(), types.Room{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "room not found", "failed to update room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "roomID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.roomService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "room not found", "failed to delete room")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type RoomRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Responsible      string `json:"responsible"`
	ResponsibleEmail string `json:"responsible_email"`
}
