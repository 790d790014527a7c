package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roomdesk/apiserver/types"
)

// UserRepository handles persistence for users. Only active users are
// visible, and admin accounts are never modified by Update or Deactivate.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, area, role, status, password_hash, created_at, updated_at`

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE status = 'Active'
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND status = 'Active'`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1) AND status = 'Active'`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	user.Status = types.UserStatusActive

	const query = `
		INSERT INTO users (email, name, area, role, status, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Area,
		user.Role,
		user.Status,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

// Update rewrites the profile of an active, non-admin user. An empty
// PasswordHash keeps the stored hash.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			area = $3,
			password_hash = COALESCE(NULLIF($4, ''), password_hash),
			updated_at = $5
		WHERE id = $6 AND status = 'Active' AND role <> 'admin'
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Area,
		user.PasswordHash,
		time.Now(),
		user.ID,
	))
}

// Deactivate soft-deletes an active, non-admin user.
func (r *UserRepository) Deactivate(ctx context.Context, id int) error {
	const query = `
		UPDATE users
		SET status = 'Inactive', updated_at = $1
		WHERE id = $2 AND status = 'Active' AND role <> 'admin'`
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

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Area,
		&user.Role,
		&user.Status,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}
