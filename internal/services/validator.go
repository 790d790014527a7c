package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
)

const (
	msgInvalidInput = "Invalid reservation request"
	msgWeekend      = "Invalid date and time: reservations cannot be made on Saturday or Sunday"
	msgPast         = "Invalid date and time: the requested start is earlier than the current time"
	msgLeadTime     = "Invalid date and time: reservations require at least 15 minutes of lead time"
	msgOrdering     = "Invalid date and time: the end time must be later than the start time"
	msgPendingHold  = "You have reservations pending confirmation"
	msgOverlap      = "The room is already reserved during the selected time"
)

// ReservationRequest is the input of a booking.
type ReservationRequest struct {
	RoomID         int    `json:"room_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	Area           string `json:"area"`
	Description    string `json:"description"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
}

func (r *ReservationRequest) normalize() {
	r.RequesterName = strings.TrimSpace(r.RequesterName)
	r.RequesterEmail = strings.TrimSpace(r.RequesterEmail)
	r.Area = strings.TrimSpace(r.Area)
	r.Description = strings.TrimSpace(r.Description)
	r.Date = strings.TrimSpace(r.Date)
	r.Start = strings.TrimSpace(r.Start)
	r.End = strings.TrimSpace(r.End)
}

// Validator applies the booking rules to a reservation request. The first
// failing rule determines the rejection.
type Validator struct {
	loc      *time.Location
	leadTime time.Duration
	blocking []types.ReservationStatus
}

// NewValidator builds a Validator. Unknown statuses in blocking are ignored;
// an empty list falls back to pending and confirmed.
func NewValidator(loc *time.Location, leadTime time.Duration, blocking []string) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	statuses := make([]types.ReservationStatus, 0, len(blocking))
	for _, value := range blocking {
		status := types.ReservationStatus(strings.ToLower(strings.TrimSpace(value)))
		if status.Valid() {
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		statuses = []types.ReservationStatus{types.ReservationPending, types.ReservationConfirmed}
	}
	return &Validator{loc: loc, leadTime: leadTime, blocking: statuses}
}

// Location is the timezone reservation dates and times are interpreted in.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// CheckRequest runs the rules that need no store access: well-formed input,
// weekday, future start, lead time and time ordering.
func (v *Validator) CheckRequest(req ReservationRequest, now time.Time) error {
	if req.RoomID < 1 || req.RequesterName == "" || req.Date == "" {
		return reject(ReasonInvalidInput, msgInvalidInput)
	}
	if _, err := mail.ParseAddress(req.RequesterEmail); err != nil {
		return reject(ReasonInvalidInput, msgInvalidInput)
	}

	start, err := schedule.Compose(req.Date, req.Start, v.loc)
	if err != nil {
		return reject(ReasonInvalidInput, msgInvalidInput)
	}
	end, err := schedule.Compose(req.Date, req.End, v.loc)
	if err != nil {
		return reject(ReasonInvalidInput, msgInvalidInput)
	}

	if schedule.IsWeekend(start) {
		return reject(ReasonWeekend, msgWeekend)
	}
	if !start.After(now) {
		return reject(ReasonPast, msgPast)
	}
	if now.Add(v.leadTime).After(start) {
		return reject(ReasonLeadTime, msgLeadTime)
	}
	if !end.After(start) {
		return reject(ReasonOrdering, msgOrdering)
	}
	return nil
}

// HoldsAndOverlaps is the set of queries the store-backed rules need.
type HoldsAndOverlaps interface {
	ListOutstandingHolds(ctx context.Context, email string, now time.Time) ([]types.Reservation, error)
	ListBlocking(ctx context.Context, roomID int, date string, statuses []types.ReservationStatus, now time.Time) ([]types.Reservation, error)
}

// CheckAvailability rejects a requester with a still-valid pending hold and a
// slot overlapping a blocking reservation. It runs inside the booking
// transaction so both reads see the state the insert commits against.
func (v *Validator) CheckAvailability(ctx context.Context, q HoldsAndOverlaps, req ReservationRequest, now time.Time) error {
	holds, err := q.ListOutstandingHolds(ctx, req.RequesterEmail, now)
	if err != nil {
		return storageError("list outstanding holds", err)
	}
	if len(holds) > 0 {
		return reject(ReasonPendingHold, msgPendingHold)
	}

	requested, err := schedule.ParseInterval(req.Start, req.End)
	if err != nil {
		return reject(ReasonInvalidInput, msgInvalidInput)
	}
	existing, err := q.ListBlocking(ctx, req.RoomID, req.Date, v.blocking, now)
	if err != nil {
		return storageError("list blocking reservations", err)
	}
	for _, reservation := range existing {
		if reservation.Expired(now) {
			continue
		}
		booked, err := schedule.ParseInterval(reservation.Start, reservation.End)
		if err != nil {
			return storageError("parse stored interval", err)
		}
		if schedule.Overlaps(requested, booked) {
			return reject(ReasonOverlap, msgOverlap)
		}
	}
	return nil
}

func isOverlap(err error) bool {
	return errors.Is(err, store.ErrOverlap)
}
