package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/roomdesk/apiserver/types"
)

const maxTxAttempts = 3

// localTimestampLayout renders a wall-clock instant for comparison with
// date + time columns, which carry no zone.
const localTimestampLayout = "2006-01-02 15:04:05"

// ReservationTx is the set of reservation queries that run inside a booking
// transaction.
type ReservationTx interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	ListOutstandingHolds(ctx context.Context, email string, now time.Time) ([]types.Reservation, error)
	ListBlocking(ctx context.Context, roomID int, date string, statuses []types.ReservationStatus, now time.Time) ([]types.Reservation, error)
	Insert(ctx context.Context, reservation types.Reservation) (types.Reservation, error)
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ReservationRepository handles persistence for reservations.
type ReservationRepository struct {
	reservationQueries
	pool *sql.DB
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{
		reservationQueries: reservationQueries{db: db},
		pool:               db,
	}
}

// WithTx runs fn in a serializable transaction. The transaction is retried
// when Postgres reports a serialization failure, so fn must not have side
// effects outside the database.
func (r *ReservationRepository) WithTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.runTx(ctx, fn)
		if !errors.Is(err, ErrSerialization) {
			return err
		}
	}
	return err
}

func (r *ReservationRepository) runTx(ctx context.Context, fn func(tx ReservationTx) error) error {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return translateError(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(reservationQueries{db: tx}); err != nil {
		return err
	}
	return translateError(tx.Commit())
}

// FindValidByCode returns the reservation holding code whose validity has not
// elapsed at now.
func (r *ReservationRepository) FindValidByCode(ctx context.Context, code string, now time.Time) (types.Reservation, error) {
	const query = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE code = $1 AND validity >= $2`
	return scanReservation(r.db.QueryRowContext(ctx, query, code, now))
}

// Confirm moves a pending reservation to confirmed. ErrNotFound means the
// reservation was no longer pending.
func (r *ReservationRepository) Confirm(ctx context.Context, id int64) error {
	const query = `UPDATE reservations SET status = 'confirmed' WHERE id = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id)
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

// DeleteUpcomingByCode removes the reservation holding code if it has not
// started yet at now. The boolean reports whether a row was removed.
func (r *ReservationRepository) DeleteUpcomingByCode(ctx context.Context, code string, now time.Time) (types.Reservation, bool, error) {
	const query = `
		DELETE FROM reservations
		WHERE code = $1 AND (date + start_time) > $2::timestamp
		RETURNING ` + reservationColumns
	reservation, err := scanReservation(r.db.QueryRowContext(ctx, query, code, now.Format(localTimestampLayout)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Reservation{}, false, nil
		}
		return types.Reservation{}, false, err
	}
	return reservation, true, nil
}

// ListSchedule returns every reservation of a room between two dates, inclusive.
// A nil statuses slice matches every status.
func (r *ReservationRepository) ListSchedule(ctx context.Context, roomID int, from, to string, statuses []types.ReservationStatus) ([]types.ScheduleEntry, error) {
	const query = `
		SELECT to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), status
		FROM reservations
		WHERE room_id = $1
			AND date BETWEEN $2::date AND $3::date
			AND ($4::text[] IS NULL OR status = ANY($4))
		ORDER BY date, start_time`
	rows, err := r.db.QueryContext(ctx, query, roomID, from, to, statusArray(statuses))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	entries := make([]types.ScheduleEntry, 0)
	for rows.Next() {
		var entry types.ScheduleEntry
		if err := rows.Scan(&entry.Date, &entry.Start, &entry.End, &entry.Status); err != nil {
			return nil, translateError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

// ListUpcoming joins reservations between two dates with their rooms. An
// empty email matches every requester.
func (r *ReservationRepository) ListUpcoming(ctx context.Context, email, from, to string, statuses []types.ReservationStatus) ([]types.UpcomingReservation, error) {
	const query = `
		SELECT rm.id, rm.name, to_char(rs.date, 'YYYY-MM-DD'), to_char(rs.start_time, 'HH24:MI'),
		       to_char(rs.end_time, 'HH24:MI'), rs.description, rs.requester_name, rs.requester_email,
		       rs.status, rm.responsible, rm.responsible_email
		FROM reservations rs
		JOIN rooms rm ON rm.id = rs.room_id
		WHERE rs.date BETWEEN $1::date AND $2::date
			AND rs.status = ANY($3)
			AND ($4 = '' OR lower(rs.requester_email) = lower($4))
		ORDER BY rs.date, rs.start_time, rm.id`
	rows, err := r.db.QueryContext(ctx, query, from, to, statusArray(statuses), email)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	items := make([]types.UpcomingReservation, 0)
	for rows.Next() {
		var item types.UpcomingReservation
		if err := rows.Scan(
			&item.RoomID,
			&item.RoomName,
			&item.Date,
			&item.Start,
			&item.End,
			&item.Description,
			&item.RequesterName,
			&item.RequesterEmail,
			&item.Status,
			&item.Responsible,
			&item.ResponsibleEmail,
		); err != nil {
			return nil, translateError(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return items, nil
}

const reservationColumns = `id, room_id, code, requester_name, requester_email, area, description,
	to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	status, validity, created_at`

// reservationQueries runs against either the pool or a transaction.
type reservationQueries struct {
	db dbtx
}

func (q reservationQueries) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reservations WHERE code = $1)`
	var exists bool
	if err := q.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, translateError(err)
	}
	return exists, nil
}

// ListOutstandingHolds returns the pending reservations of a requester that
// are still confirmable at now, validity included.
func (q reservationQueries) ListOutstandingHolds(ctx context.Context, email string, now time.Time) ([]types.Reservation, error) {
	const query = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE lower(requester_email) = lower($1) AND status = 'pending' AND validity >= $2
		ORDER BY validity`
	return q.list(ctx, query, email, now)
}

// ListBlocking returns the reservations of a room on date whose status is in
// statuses. Pending reservations past their validity are skipped.
func (q reservationQueries) ListBlocking(ctx context.Context, roomID int, date string, statuses []types.ReservationStatus, now time.Time) ([]types.Reservation, error) {
	const query = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1
			AND date = $2::date
			AND status = ANY($3)
			AND (status <> 'pending' OR validity >= $4)
		ORDER BY start_time`
	return q.list(ctx, query, roomID, date, statusArray(statuses), now)
}

func (q reservationQueries) Insert(ctx context.Context, reservation types.Reservation) (types.Reservation, error) {
	const query = `
		INSERT INTO reservations (
			room_id, code, requester_name, requester_email, area, description,
			date, start_time, end_time, status, validity, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::time, $9::time, $10, $11, $12)
		RETURNING id`
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now()
	}
	if err := q.db.QueryRowContext(
		ctx,
		query,
		reservation.RoomID,
		reservation.Code,
		reservation.RequesterName,
		reservation.RequesterEmail,
		reservation.Area,
		reservation.Description,
		reservation.Date,
		reservation.Start,
		reservation.End,
		reservation.Status,
		reservation.Validity,
		reservation.CreatedAt,
	).Scan(&reservation.ID); err != nil {
		return types.Reservation{}, translateError(err)
	}
	return reservation, nil
}

func (q reservationQueries) list(ctx context.Context, query string, args ...any) ([]types.Reservation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	reservations := make([]types.Reservation, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (types.Reservation, error) {
	var reservation types.Reservation
	if err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.Code,
		&reservation.RequesterName,
		&reservation.RequesterEmail,
		&reservation.Area,
		&reservation.Description,
		&reservation.Date,
		&reservation.Start,
		&reservation.End,
		&reservation.Status,
		&reservation.Validity,
		&reservation.CreatedAt,
	); err != nil {
		return types.Reservation{}, translateError(err)
	}
	return reservation, nil
}

// statusArray encodes statuses for `= ANY($n)`; nil stays NULL.
func statusArray(statuses []types.ReservationStatus) any {
	if statuses == nil {
		return nil
	}
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	return pq.Array(values)
}
