package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/internal/store"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextSubjectKey contextKey = "sub"

func userIDFromContext(ctx context.Context) (int, error) {
	value := ctx.Value(contextSubjectKey)
	switch subject := value.(type) {
	case int:
		if subject < 1 {
			return 0, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(subject))
		if err != nil || parsed < 1 {
			return 0, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return 0, errors.New("missing subject")
	}
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Envelope is the payload of every reservation route.
type Envelope struct {
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// failure is the HTTP rendering of a service error.
type failure struct {
	status  int
	message string
}

// classify maps service and store errors to a status and a client message.
// Anything unrecognised is an internal error and the fallback is shown.
func classify(err error, notFound, fallback string) failure {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return failure{http.StatusBadRequest, verr.Message}
	case errors.Is(err, services.ErrInvalidOrExpiredCode):
		return failure{http.StatusBadRequest, "Invalid or expired confirmation code"}
	case errors.Is(err, services.ErrAlreadyConfirmed):
		return failure{http.StatusBadRequest, "The reservation is already confirmed"}
	case errors.Is(err, services.ErrRoomNameTaken):
		return failure{http.StatusBadRequest, "room name already exists"}
	case errors.Is(err, services.ErrEmailTaken):
		return failure{http.StatusBadRequest, "user already exists"}
	case errors.Is(err, services.ErrConflict):
		return failure{http.StatusBadRequest, "conflict"}
	case errors.Is(err, store.ErrNotFound):
		return failure{http.StatusNotFound, notFound}
	case errors.Is(err, context.DeadlineExceeded):
		return failure{http.StatusGatewayTimeout, "request timed out"}
	default:
		return failure{http.StatusInternalServerError, fallback}
	}
}

func logFailure(logger *slog.Logger, r *http.Request, f failure, err error) {
	if f.status < http.StatusInternalServerError {
		return
	}
	logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
}

// writeServiceError renders err as an ErrorResponse.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound, fallback string) {
	f := classify(err, notFound, fallback)
	logFailure(logger, r, f, err)
	writeError(w, f.status, f.message)
}

// writeEnvelopeError renders err as a failed Envelope.
func writeEnvelopeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound string) {
	f := classify(err, notFound, "Something went wrong")
	logFailure(logger, r, f, err)
	writeJSON(w, f.status, Envelope{OK: false, Msg: f.message})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
