package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// memoryReservations is an in-memory ReservationRepository. Transactions run
// inline against the same state.
type memoryReservations struct {
	items       []types.Reservation
	nextID      int64
	taken       map[string]bool
	duplicates  int
	codeChecks  int
	failListing error
}

func newMemoryReservations() *memoryReservations {
	return &memoryReservations{taken: map[string]bool{}}
}

func (m *memoryReservations) WithTx(ctx context.Context, fn func(tx store.ReservationTx) error) error {
	return fn(m)
}

func (m *memoryReservations) CodeExists(_ context.Context, code string) (bool, error) {
	m.codeChecks++
	if m.taken[code] {
		return true, nil
	}
	for _, item := range m.items {
		if item.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryReservations) ListOutstandingHolds(_ context.Context, email string, now time.Time) ([]types.Reservation, error) {
	if m.failListing != nil {
		return nil, m.failListing
	}
	var holds []types.Reservation
	for _, item := range m.items {
		if strings.EqualFold(item.RequesterEmail, email) && item.Status == types.ReservationPending && !item.Validity.Before(now) {
			holds = append(holds, item)
		}
	}
	return holds, nil
}

func (m *memoryReservations) ListBlocking(_ context.Context, roomID int, date string, statuses []types.ReservationStatus, now time.Time) ([]types.Reservation, error) {
	var blocking []types.Reservation
	for _, item := range m.items {
		if item.RoomID != roomID || item.Date != date || !hasStatus(statuses, item.Status) {
			continue
		}
		if item.Status == types.ReservationPending && item.Validity.Before(now) {
			continue
		}
		blocking = append(blocking, item)
	}
	return blocking, nil
}

func (m *memoryReservations) Insert(_ context.Context, reservation types.Reservation) (types.Reservation, error) {
	if m.duplicates > 0 {
		m.duplicates--
		return types.Reservation{}, store.ErrDuplicate
	}
	m.nextID++
	reservation.ID = m.nextID
	m.items = append(m.items, reservation)
	return reservation, nil
}

func (m *memoryReservations) FindValidByCode(_ context.Context, code string, now time.Time) (types.Reservation, error) {
	for _, item := range m.items {
		if item.Code == code && !item.Validity.Before(now) {
			return item, nil
		}
	}
	return types.Reservation{}, store.ErrNotFound
}

func (m *memoryReservations) Confirm(_ context.Context, id int64) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].Status == types.ReservationPending {
			m.items[i].Status = types.ReservationConfirmed
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memoryReservations) DeleteUpcomingByCode(_ context.Context, code string, now time.Time) (types.Reservation, bool, error) {
	for i, item := range m.items {
		if item.Code != code {
			continue
		}
		start, err := schedule.Compose(item.Date, item.Start, now.Location())
		if err != nil {
			return types.Reservation{}, false, err
		}
		if !start.After(now) {
			return types.Reservation{}, false, nil
		}
		m.items = append(m.items[:i], m.items[i+1:]...)
		return item, true, nil
	}
	return types.Reservation{}, false, nil
}

func (m *memoryReservations) ListSchedule(_ context.Context, roomID int, from, to string, statuses []types.ReservationStatus) ([]types.ScheduleEntry, error) {
	entries := make([]types.ScheduleEntry, 0)
	for _, item := range m.items {
		if item.RoomID != roomID || item.Date < from || item.Date > to {
			continue
		}
		if statuses != nil && !hasStatus(statuses, item.Status) {
			continue
		}
		entries = append(entries, types.ScheduleEntry{Date: item.Date, Start: item.Start, End: item.End, Status: item.Status})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date+entries[i].Start < entries[j].Date+entries[j].Start
	})
	return entries, nil
}

func (m *memoryReservations) ListUpcoming(_ context.Context, email, from, to string, statuses []types.ReservationStatus) ([]types.UpcomingReservation, error) {
	items := make([]types.UpcomingReservation, 0)
	for _, item := range m.items {
		if item.Date < from || item.Date > to || !hasStatus(statuses, item.Status) {
			continue
		}
		if email != "" && !strings.EqualFold(email, item.RequesterEmail) {
			continue
		}
		items = append(items, types.UpcomingReservation{
			RoomID:         item.RoomID,
			Date:           item.Date,
			Start:          item.Start,
			End:            item.End,
			Description:    item.Description,
			RequesterName:  item.RequesterName,
			RequesterEmail: item.RequesterEmail,
			Status:         item.Status,
		})
	}
	return items, nil
}

func hasStatus(statuses []types.ReservationStatus, status types.ReservationStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type memoryRooms struct {
	rooms map[int]types.Room
}

func newMemoryRooms(rooms ...types.Room) *memoryRooms {
	m := &memoryRooms{rooms: map[int]types.Room{}}
	for _, room := range rooms {
		room.Visible = true
		m.rooms[room.ID] = room
	}
	return m
}

func (m *memoryRooms) List(context.Context) ([]types.Room, error) {
	rooms := make([]types.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		if room.Visible {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (m *memoryRooms) Get(_ context.Context, id int) (types.Room, error) {
	room, ok := m.rooms[id]
	if !ok || !room.Visible {
		return types.Room{}, store.ErrNotFound
	}
	return room, nil
}

func (m *memoryRooms) Create(_ context.Context, room types.Room) (types.Room, error) {
	for _, existing := range m.rooms {
		if existing.Visible && strings.EqualFold(existing.Name, room.Name) {
			return types.Room{}, store.ErrDuplicate
		}
	}
	room.ID = len(m.rooms) + 1
	room.Visible = true
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memoryRooms) Update(_ context.Context, room types.Room) (types.Room, error) {
	current, ok := m.rooms[room.ID]
	if !ok || !current.Visible {
		return types.Room{}, store.ErrNotFound
	}
	for id, existing := range m.rooms {
		if id != room.ID && existing.Visible && strings.EqualFold(existing.Name, room.Name) {
			return types.Room{}, store.ErrDuplicate
		}
	}
	current.Name = room.Name
	current.Description = room.Description
	m.rooms[room.ID] = current
	return current, nil
}

func (m *memoryRooms) Delete(_ context.Context, id int) error {
	room, ok := m.rooms[id]
	if !ok || !room.Visible {
		return store.ErrNotFound
	}
	room.Visible = false
	m.rooms[id] = room
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type recordingSender struct {
	sent []sentMail
	err  error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var errBoom = errors.New("boom")
