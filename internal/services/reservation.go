package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
)

const (
	// maxCreateAttempts bounds how often a booking is retried after its
	// confirmation code lost a race for the unique index.
	maxCreateAttempts = 3
	upcomingWindow    = 7
)

// ReservationRepository defines persistence operations for reservations.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(tx store.ReservationTx) error) error
	FindValidByCode(ctx context.Context, code string, now time.Time) (types.Reservation, error)
	Confirm(ctx context.Context, id int64) error
	DeleteUpcomingByCode(ctx context.Context, code string, now time.Time) (types.Reservation, bool, error)
	ListOutstandingHolds(ctx context.Context, email string, now time.Time) ([]types.Reservation, error)
	ListSchedule(ctx context.Context, roomID int, from, to string, statuses []types.ReservationStatus) ([]types.ScheduleEntry, error)
	ListUpcoming(ctx context.Context, email, from, to string, statuses []types.ReservationStatus) ([]types.UpcomingReservation, error)
}

// RoomLookup resolves visible rooms.
type RoomLookup interface {
	Get(ctx context.Context, id int) (types.Room, error)
}

// ReservationService runs the reservation lifecycle: create, confirm and
// cancel, plus the read-only schedule views.
type ReservationService struct {
	repo      ReservationRepository
	rooms     RoomLookup
	validator *Validator
	codes     *CodeGenerator
	notifier  *Notifier
	clock     Clock
	holdTTL   time.Duration
	logger    *slog.Logger
}

// ReservationServiceConfig carries the collaborators of a ReservationService.
type ReservationServiceConfig struct {
	Validator *Validator
	Codes     *CodeGenerator
	Notifier  *Notifier
	Clock     Clock
	HoldTTL   time.Duration
	Logger    *slog.Logger
}

func NewReservationService(repo ReservationRepository, rooms RoomLookup, cfg ReservationServiceConfig) *ReservationService {
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(time.UTC, 15*time.Minute, nil)
	}
	if cfg.Codes == nil {
		cfg.Codes = NewCodeGenerator(0, 0)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ReservationService{
		repo:      repo,
		rooms:     rooms,
		validator: cfg.Validator,
		codes:     cfg.Codes,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		holdTTL:   cfg.HoldTTL,
		logger:    cfg.Logger,
	}
}

// Create validates a booking request and stores it as a pending
// reservation. The requester and the room responsible are mailed once the
// reservation is committed.
func (s *ReservationService) Create(ctx context.Context, req ReservationRequest) (types.Reservation, error) {
	req.normalize()
	now := s.clock.Now()
	if err := s.validator.CheckRequest(req, now); err != nil {
		return types.Reservation{}, err
	}
	interval, err := schedule.ParseInterval(req.Start, req.End)
	if err != nil {
		return types.Reservation{}, reject(ReasonInvalidInput, msgInvalidInput)
	}
	req.Start = schedule.FormatClock(interval.Start)
	req.End = schedule.FormatClock(interval.End)

	room, err := s.room(ctx, req.RoomID)
	if err != nil {
		return types.Reservation{}, err
	}

	var created types.Reservation
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		err = s.repo.WithTx(ctx, func(tx store.ReservationTx) error {
			if err := s.validator.CheckAvailability(ctx, tx, req, now); err != nil {
				return err
			}
			code, err := s.codes.Generate(ctx, tx)
			if err != nil {
				return err
			}
			created, err = tx.Insert(ctx, types.Reservation{
				RoomID:         req.RoomID,
				Code:           code,
				RequesterName:  req.RequesterName,
				RequesterEmail: req.RequesterEmail,
				Area:           req.Area,
				Description:    req.Description,
				Date:           req.Date,
				Start:          req.Start,
				End:            req.End,
				Status:         types.ReservationPending,
				Validity:       now.Add(s.holdTTL),
				CreatedAt:      now,
			})
			return err
		})
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		s.logger.WarnContext(ctx, "confirmation code collided on insert", "attempt", attempt+1)
	}
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrCodeSpaceExhausted) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return types.Reservation{}, err
		}
		if isOverlap(err) {
			return types.Reservation{}, reject(ReasonOverlap, msgOverlap)
		}
		return types.Reservation{}, storageError("create reservation", err)
	}

	s.logger.InfoContext(ctx, "reservation created",
		"reservation_id", created.ID,
		"room_id", created.RoomID,
		"date", created.Date,
		"start", created.Start,
		"end", created.End,
	)
	s.notifier.ReservationCreated(ctx, room, created)
	return created, nil
}

// Confirm redeems a confirmation code. Unknown and expired codes are
// reported as ErrInvalidOrExpiredCode, a second redemption as
// ErrAlreadyConfirmed.
func (s *ReservationService) Confirm(ctx context.Context, code string) (types.Reservation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.Reservation{}, ErrInvalidOrExpiredCode
	}
	now := s.clock.Now()

	reservation, err := s.repo.FindValidByCode(ctx, code, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Reservation{}, ErrInvalidOrExpiredCode
		}
		return types.Reservation{}, storageError("find reservation by code", err)
	}
	if reservation.Status == types.ReservationConfirmed {
		return types.Reservation{}, ErrAlreadyConfirmed
	}

	if err := s.repo.Confirm(ctx, reservation.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.Reservation{}, ErrAlreadyConfirmed
		case isOverlap(err):
			return types.Reservation{}, reject(ReasonOverlap, msgOverlap)
		default:
			return types.Reservation{}, storageError("confirm reservation", err)
		}
	}
	reservation.Status = types.ReservationConfirmed

	s.logger.InfoContext(ctx, "reservation confirmed", "reservation_id", reservation.ID)
	if room, err := s.rooms.Get(ctx, reservation.RoomID); err == nil {
		s.notifier.ReservationConfirmed(ctx, room, reservation)
	} else {
		s.logger.WarnContext(ctx, "skipping confirmation mails", "room_id", reservation.RoomID, "err", err)
	}
	return reservation, nil
}

// Cancel deletes the reservation holding code if it has not started yet.
// It reports whether anything was removed; a missing or past reservation is
// not an error.
func (s *ReservationService) Cancel(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	now := s.clock.Now().In(s.validator.Location())

	reservation, removed, err := s.repo.DeleteUpcomingByCode(ctx, code, now)
	if err != nil {
		return false, storageError("cancel reservation", err)
	}
	if !removed {
		return false, nil
	}

	s.logger.InfoContext(ctx, "reservation cancelled", "reservation_id", reservation.ID)
	if room, err := s.rooms.Get(ctx, reservation.RoomID); err == nil {
		s.notifier.ReservationCancelled(ctx, room, reservation)
	}
	return true, nil
}

// WeeklySchedule is a room's schedule for the current Sunday–Saturday week.
type WeeklySchedule struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	Entries []types.ScheduleEntry `json:"reservations"`
}

// WeeklySchedule lists every reservation of a room in the current week,
// regardless of status.
func (s *ReservationService) WeeklySchedule(ctx context.Context, roomID int) (WeeklySchedule, error) {
	if _, err := s.room(ctx, roomID); err != nil {
		return WeeklySchedule{}, err
	}
	from, to := schedule.WeekOf(s.clock.Now(), s.validator.Location()).Dates()
	entries, err := s.repo.ListSchedule(ctx, roomID, from, to, nil)
	if err != nil {
		return WeeklySchedule{}, storageError("list weekly schedule", err)
	}
	return WeeklySchedule{From: from, To: to, Entries: entries}, nil
}

// DailySchedule lists the pending and confirmed reservations of a room on date.
func (s *ReservationService) DailySchedule(ctx context.Context, roomID int, date string) ([]types.ScheduleEntry, error) {
	day, err := schedule.ParseDate(date, s.validator.Location())
	if err != nil {
		return nil, reject(ReasonInvalidInput, msgInvalidInput)
	}
	if _, err := s.room(ctx, roomID); err != nil {
		return nil, err
	}
	value := day.Format(schedule.DateLayout)
	entries, err := s.repo.ListSchedule(ctx, roomID, value, value, activeStatuses())
	if err != nil {
		return nil, storageError("list daily schedule", err)
	}
	return entries, nil
}

// UpcomingForRequester lists the confirmed reservations of email over the
// next seven days, today included.
func (s *ReservationService) UpcomingForRequester(ctx context.Context, email string) ([]types.UpcomingReservation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, reject(ReasonInvalidInput, msgInvalidInput)
	}
	from, to := s.upcomingRange()
	items, err := s.repo.ListUpcoming(ctx, email, from, to, []types.ReservationStatus{types.ReservationConfirmed})
	if err != nil {
		return nil, storageError("list upcoming reservations", err)
	}
	return items, nil
}

// UpcomingAll lists the pending and confirmed reservations of every room
// over the next seven days.
func (s *ReservationService) UpcomingAll(ctx context.Context) ([]types.UpcomingReservation, error) {
	from, to := s.upcomingRange()
	items, err := s.repo.ListUpcoming(ctx, "", from, to, activeStatuses())
	if err != nil {
		return nil, storageError("list upcoming reservations", err)
	}
	return items, nil
}

// OutstandingHolds returns the pending reservations of email that can still
// be confirmed.
func (s *ReservationService) OutstandingHolds(ctx context.Context, email string) ([]types.Reservation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, reject(ReasonInvalidInput, msgInvalidInput)
	}
	holds, err := s.repo.ListOutstandingHolds(ctx, email, s.clock.Now())
	if err != nil {
		return nil, storageError("list outstanding holds", err)
	}
	return holds, nil
}

func (s *ReservationService) upcomingRange() (string, string) {
	today := s.clock.Now().In(s.validator.Location())
	return today.Format(schedule.DateLayout), today.AddDate(0, 0, upcomingWindow).Format(schedule.DateLayout)
}

func (s *ReservationService) room(ctx context.Context, id int) (types.Room, error) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Room{}, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
		}
		return types.Room{}, storageError("get room", err)
	}
	return room, nil
}

func activeStatuses() []types.ReservationStatus {
	return []types.ReservationStatus{types.ReservationPending, types.ReservationConfirmed}
}
