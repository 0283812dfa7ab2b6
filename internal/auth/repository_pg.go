package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollsite/backend/internal/models"
)

const uniqueViolation = "23505"

// PostgresRepository stores users in the auth_user table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a users repository backed by pgx.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new user. u.Password must already be hashed.
func (r *PostgresRepository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO auth_user (username, password, is_staff, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, date_joined`
	err := r.pool.QueryRow(ctx, q, u.Username, u.Password, u.IsStaff, u.IsActive).Scan(&u.ID, &u.DateJoined)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUsernameTaken
	}
	return err
}

// GetByID returns a user by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `SELECT id, username, password, is_staff, is_active, date_joined, last_login
		FROM auth_user WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

// GetByUsername returns a user by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	const q = `SELECT id, username, password, is_staff, is_active, date_joined, last_login
		FROM auth_user WHERE username = $1`
	return r.scanUser(r.pool.QueryRow(ctx, q, username))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.IsStaff, &u.IsActive, &u.DateJoined, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateLastLogin records a successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE auth_user SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by username.
func (r *PostgresRepository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, is_staff, date_joined, last_login
		FROM auth_user ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Username, &u.IsStaff, &u.DateJoined, &u.LastLogin); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
