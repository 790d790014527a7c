package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/internal/schedule"
	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
)

type stubReservations struct {
	items  []types.Reservation
	nextID int64
}

func (s *stubReservations) WithTx(_ context.Context, fn func(tx store.ReservationTx) error) error {
	return fn(s)
}

func (s *stubReservations) CodeExists(_ context.Context, code string) (bool, error) {
	for _, item := range s.items {
		if item.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubReservations) ListOutstandingHolds(_ context.Context, email string, now time.Time) ([]types.Reservation, error) {
	holds := make([]types.Reservation, 0)
	for _, item := range s.items {
		if strings.EqualFold(item.RequesterEmail, email) && item.Status == types.ReservationPending && !item.Validity.Before(now) {
			holds = append(holds, item)
		}
	}
	return holds, nil
}

func (s *stubReservations) ListBlocking(_ context.Context, roomID int, date string, _ []types.ReservationStatus, now time.Time) ([]types.Reservation, error) {
	var blocking []types.Reservation
	for _, item := range s.items {
		if item.RoomID == roomID && item.Date == date && !item.Expired(now) {
			blocking = append(blocking, item)
		}
	}
	return blocking, nil
}

func (s *stubReservations) Insert(_ context.Context, reservation types.Reservation) (types.Reservation, error) {
	s.nextID++
	reservation.ID = s.nextID
	s.items = append(s.items, reservation)
	return reservation, nil
}

func (s *stubReservations) FindValidByCode(_ context.Context, code string, now time.Time) (types.Reservation, error) {
	for _, item := range s.items {
		if item.Code == code && !item.Validity.Before(now) {
			return item, nil
		}
	}
	return types.Reservation{}, store.ErrNotFound
}

func (s *stubReservations) Confirm(_ context.Context, id int64) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].Status == types.ReservationPending {
			s.items[i].Status = types.ReservationConfirmed
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubReservations) DeleteUpcomingByCode(_ context.Context, code string, now time.Time) (types.Reservation, bool, error) {
	for i, item := range s.items {
		if item.Code != code {
			continue
		}
		start, err := schedule.Compose(item.Date, item.Start, now.Location())
		if err != nil || !start.After(now) {
			return types.Reservation{}, false, err
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return item, true, nil
	}
	return types.Reservation{}, false, nil
}

func (s *stubReservations) ListSchedule(_ context.Context, roomID int, from, to string, _ []types.ReservationStatus) ([]types.ScheduleEntry, error) {
	entries := make([]types.ScheduleEntry, 0)
	for _, item := range s.items {
		if item.RoomID == roomID && item.Date >= from && item.Date <= to {
			entries = append(entries, types.ScheduleEntry{Date: item.Date, Start: item.Start, End: item.End, Status: item.Status})
		}
	}
	return entries, nil
}

func (s *stubReservations) ListUpcoming(_ context.Context, email, from, to string, _ []types.ReservationStatus) ([]types.UpcomingReservation, error) {
	items := make([]types.UpcomingReservation, 0)
	for _, item := range s.items {
		if item.Date < from || item.Date > to {
			continue
		}
		if email != "" && !strings.EqualFold(email, item.RequesterEmail) {
			continue
		}
		items = append(items, types.UpcomingReservation{RoomID: item.RoomID, Date: item.Date, Start: item.Start, End: item.End, Status: item.Status})
	}
	return items, nil
}

type stubRooms struct {
	rooms []types.Room
}

func (s *stubRooms) List(context.Context) ([]types.Room, error) {
	visible := make([]types.Room, 0)
	for _, room := range s.rooms {
		if room.Visible {
			visible = append(visible, room)
		}
	}
	return visible, nil
}

func (s *stubRooms) Get(_ context.Context, id int) (types.Room, error) {
	for _, room := range s.rooms {
		if room.ID == id && room.Visible {
			return room, nil
		}
	}
	return types.Room{}, store.ErrNotFound
}

func (s *stubRooms) Create(_ context.Context, room types.Room) (types.Room, error) {
	for _, existing := range s.rooms {
		if existing.Visible && strings.EqualFold(existing.Name, room.Name) {
			return types.Room{}, store.ErrDuplicate
		}
	}
	room.ID = len(s.rooms) + 1
	room.Visible = true
	s.rooms = append(s.rooms, room)
	return room, nil
}

func (s *stubRooms) Update(_ context.Context, room types.Room) (types.Room, error) {
	for i := range s.rooms {
		if s.rooms[i].ID == room.ID && s.rooms[i].Visible {
			s.rooms[i].Name = room.Name
			s.rooms[i].Description = room.Description
			return s.rooms[i], nil
		}
	}
	return types.Room{}, store.ErrNotFound
}

func (s *stubRooms) Delete(_ context.Context, id int) error {
	for i := range s.rooms {
		if s.rooms[i].ID == id && s.rooms[i].Visible {
			s.rooms[i].Visible = false
			return nil
		}
	}
	return store.ErrNotFound
}

type stubUsers struct {
	users []types.User
}

func (s *stubUsers) List(context.Context) ([]types.User, error) {
	return s.users, nil
}

func (s *stubUsers) GetByID(_ context.Context, id int) (types.User, error) {
	for _, user := range s.users {
		if user.ID == id && user.Status == types.UserStatusActive {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) && user.Status == types.UserStatusActive {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *stubUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	if _, err := s.GetByEmail(ctx, user.Email); err == nil {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = len(s.users) + 1
	user.Status = types.UserStatusActive
	s.users = append(s.users, user)
	return user, nil
}

func (s *stubUsers) Update(_ context.Context, user types.User) (types.User, error) {
	for i := range s.users {
		if s.users[i].ID == user.ID && s.users[i].Status == types.UserStatusActive && !s.users[i].IsAdmin() {
			s.users[i].Email = user.Email
			s.users[i].Name = user.Name
			s.users[i].Area = user.Area
			return s.users[i], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (s *stubUsers) Deactivate(_ context.Context, id int) error {
	for i := range s.users {
		if s.users[i].ID == id && s.users[i].Status == types.UserStatusActive && !s.users[i].IsAdmin() {
			s.users[i].Status = types.UserStatusInactive
			return nil
		}
	}
	return store.ErrNotFound
}

type nopSender struct {
	count int
}

func (s *nopSender) Send(context.Context, string, string, string) error {
	s.count++
	return nil
}
