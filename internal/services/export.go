package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/storage"
	"github.com/roomdesk/apiserver/types"
)

// SnapshotArchive persists JSON documents by key.
type SnapshotArchive interface {
	SaveJSON(ctx context.Context, key string, value any, metadata map[string]string) (string, error)
	LoadJSON(ctx context.Context, key string, value any) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// ScheduleLister is the read side of the reservation store used by exports.
type ScheduleLister interface {
	ListSchedule(ctx context.Context, roomID int, from, to string, statuses []types.ReservationStatus) ([]types.ScheduleEntry, error)
}

// RoomLister lists visible rooms.
type RoomLister interface {
	List(ctx context.Context) ([]types.Room, error)
}

// Snapshot is the archived weekly schedule of one room.
type Snapshot struct {
	RoomID      int                   `json:"room_id"`
	RoomName    string                `json:"room"`
	From        string                `json:"from"`
	To          string                `json:"to"`
	GeneratedAt time.Time             `json:"generated_at"`
	Entries     []types.ScheduleEntry `json:"reservations"`
}

// ExportService archives weekly schedules to object storage.
type ExportService struct {
	reservations ScheduleLister
	rooms        RoomLister
	archive      SnapshotArchive
	clock        Clock
	loc          *time.Location
	logger       *slog.Logger
}

func NewExportService(reservations ScheduleLister, rooms RoomLister, archive SnapshotArchive, clock Clock, loc *time.Location, logger *slog.Logger) *ExportService {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		reservations: reservations,
		rooms:        rooms,
		archive:      archive,
		clock:        clock,
		loc:          loc,
		logger:       logger,
	}
}

// SnapshotKey is the archive key of a room's schedule for the week starting
// on weekStart.
func SnapshotKey(weekStart string, roomID int) string {
	return fmt.Sprintf("%s/room-%d.json", weekStart, roomID)
}

// ExportWeek archives the schedule of every visible room for the week
// containing at. It returns the keys written.
func (s *ExportService) ExportWeek(ctx context.Context, at time.Time) ([]string, error) {
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, storageError("list rooms", err)
	}
	from, to := schedule.WeekOf(at, s.loc).Dates()
	generated := s.clock.Now()

	keys := make([]string, 0, len(rooms))
	for _, room := range rooms {
		entries, err := s.reservations.ListSchedule(ctx, room.ID, from, to, nil)
		if err != nil {
			return keys, storageError("list weekly schedule", err)
		}
		snapshot := Snapshot{
			RoomID:      room.ID,
			RoomName:    room.Name,
			From:        from,
			To:          to,
			GeneratedAt: generated,
			Entries:     entries,
		}
		key, err := s.archive.SaveJSON(ctx, SnapshotKey(from, room.ID), snapshot, map[string]string{
			"room-id":    strconv.Itoa(room.ID),
			"week-start": from,
			"week-end":   to,
		})
		if err != nil {
			return keys, fmt.Errorf("archive room %d: %w", room.ID, err)
		}
		s.logger.InfoContext(ctx, "schedule archived", "room_id", room.ID, "key", key, "reservations", len(entries))
		keys = append(keys, key)
	}
	return keys, nil
}

// ListSnapshots lists the archived room schedules of the week containing date.
func (s *ExportService) ListSnapshots(ctx context.Context, date string) ([]storage.ObjectInfo, error) {
	day, err := schedule.ParseDate(date, s.loc)
	if err != nil {
		return nil, reject(ReasonInvalidInput, msgInvalidInput)
	}
	from, _ := schedule.WeekOf(day, s.loc).Dates()
	return s.archive.List(ctx, from+"/")
}

// LoadSnapshot reads back the archived schedule of a room for the week
// containing date.
func (s *ExportService) LoadSnapshot(ctx context.Context, date string, roomID int) (Snapshot, error) {
	day, err := schedule.ParseDate(date, s.loc)
	if err != nil {
		return Snapshot{}, reject(ReasonInvalidInput, msgInvalidInput)
	}
	from, _ := schedule.WeekOf(day, s.loc).Dates()

	var snapshot Snapshot
	if err := s.archive.LoadJSON(ctx, SnapshotKey(from, roomID), &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}
