package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roomdesk/apiserver/types"
)

// RoomRepository handles persistence for rooms.
type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `id, name, description, responsible, responsible_email, visible, created_at, updated_at`

func (r *RoomRepository) List(ctx context.Context) ([]types.Room, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE visible
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	rooms := make([]types.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return rooms, nil
}

func (r *RoomRepository) Get(ctx context.Context, id int) (types.Room, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE id = $1 AND visible`
	room, err := scanRoom(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room types.Room) (types.Room, error) {
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	room.Visible = true

	const query = `
		INSERT INTO rooms (name, description, responsible, responsible_email, visible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		room.Name,
		room.Description,
		room.Responsible,
		room.ResponsibleEmail,
		room.CreatedAt,
		room.UpdatedAt,
	).Scan(&room.ID); err != nil {
		return types.Room{}, translateError(err)
	}
	return room, nil
}

// Update changes the name and description of a visible room and returns the
// stored row.
func (r *RoomRepository) Update(ctx context.Context, room types.Room) (types.Room, error) {
	const query = `
		UPDATE rooms
		SET name = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4 AND visible
		RETURNING ` + roomColumns
	updated, err := scanRoom(r.db.QueryRowContext(
		ctx,
		query,
		room.Name,
		room.Description,
		time.Now(),
		room.ID,
	))
	if err != nil {
		return types.Room{}, err
	}
	return updated, nil
}

// Delete hides a room. Its reservations are kept as history.
func (r *RoomRepository) Delete(ctx context.Context, id int) error {
	const query = `UPDATE rooms SET visible = FALSE, updated_at = $1 WHERE id = $2 AND visible`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (types.Room, error) {
	var room types.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.Responsible,
		&room.ResponsibleEmail,
		&room.Visible,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return types.Room{}, translateError(err)
	}
	return room, nil
}
