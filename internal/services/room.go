package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
)

// RoomRepository defines persistence operations for rooms.
type RoomRepository interface {
	List(ctx context.Context) ([]types.Room, error)
	Get(ctx context.Context, id int) (types.Room, error)
	Create(ctx context.Context, room types.Room) (types.Room, error)
	Update(ctx context.Context, room types.Room) (types.Room, error)
	Delete(ctx context.Context, id int) error
}

// RoomService encapsulates room use-cases.
type RoomService struct {
	repo RoomRepository
}

func NewRoomService(repo RoomRepository) *RoomService {
	return &RoomService{repo: repo}
}

func (s *RoomService) List(ctx context.Context) ([]types.Room, error) {
	return s.repo.List(ctx)
}

func (s *RoomService) Get(ctx context.Context, id int) (types.Room, error) {
	return s.repo.Get(ctx, id)
}

func (s *RoomService) Create(ctx context.Context, room types.Room) (types.Room, error) {
	room.Name = strings.TrimSpace(room.Name)
	room.Description = strings.TrimSpace(room.Description)
	room.Responsible = strings.TrimSpace(room.Responsible)
	room.ResponsibleEmail = strings.TrimSpace(room.ResponsibleEmail)
	if room.Name == "" || room.Responsible == "" {
		return types.Room{}, reject(ReasonInvalidInput, "missing required fields")
	}
	if _, err := mail.ParseAddress(room.ResponsibleEmail); err != nil {
		return types.Room{}, reject(ReasonInvalidInput, "invalid responsible email")
	}

	created, err := s.repo.Create(ctx, room)
	if errors.Is(err, store.ErrDuplicate) {
		return types.Room{}, ErrRoomNameTaken
	}
	return created, err
}

// Update renames a visible room or changes its description.
func (s *RoomService) Update(ctx context.Context, room types.Room) (types.Room, error) {
	room.Name = strings.TrimSpace(room.Name)
	room.Description = strings.TrimSpace(room.Description)
	if room.Name == "" {
		return types.Room{}, reject(ReasonInvalidInput, "missing required fields")
	}

	updated, err := s.repo.Update(ctx, room)
	if errors.Is(err, store.ErrDuplicate) {
		return types.Room{}, ErrRoomNameTaken
	}
	return updated, err
}

// Delete hides a room. Its reservations are kept.
func (s *RoomService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
