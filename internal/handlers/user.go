package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/types"
)

// UserHandler provides HTTP handlers for user accounts.
type UserHandler struct {
	userService *services.UserService
	auth        *AuthHandler
	logger      *slog.Logger
}

func NewUserHandler(userService *services.UserService, auth *AuthHandler, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, auth: auth, logger: logger}
}

// UserRouter registers user routes. Registration is public, listing needs
// an admin, and a single account is reachable by its owner or an admin.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Post("/", handler.Register)
	r.With(handler.auth.RequireAuth, handler.auth.RequireAdmin).Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Use(handler.auth.RequireAuth)
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

// Register creates a new user account and returns a JWT.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found", "failed to create user")
		return
	}
	h.auth.writeToken(w, http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found", "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	var req services.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found", "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "user not found", "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeTarget parses the user id from the path and checks that the
// caller is that user or an admin.
func (h *UserHandler) authorizeTarget(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}

	caller, ok := h.auth.currentUser(w, r)
	if !ok {
		return 0, false
	}
	if caller.ID != id && caller.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return 0, false
	}
	return id, true
}
