package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// UserRepository is the SQLite user store.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user; a taken username yields [shared.ErrUserExists].
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = shared.GenerateID()
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, username, password_hash, is_vip, register_time, last_login_time) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.IsVIP, user.RegisterTime, nullTime(user.LastLoginTime))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", shared.ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, is_vip, register_time, last_login_time
		FROM users
		WHERE username = ?
	`

	var (
		user         models.User
		registerTime time.Time
		lastLogin    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsVIP, &registerTime, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.RegisterTime = registerTime.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLoginTime = &t
	}

	return &user, nil
}

// UpdateLastLogin sets the last login time of username.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	return r.update(ctx, `UPDATE users SET last_login_time = ? WHERE username = ?`, at, username)
}

// SetVIP sets the VIP flag of username.
func (r *UserRepository) SetVIP(ctx context.Context, username string, vip bool) error {
	return r.update(ctx, `UPDATE users SET is_vip = ? WHERE username = ?`, vip, username)
}

func (r *UserRepository) update(ctx context.Context, query string, value any, username string) error {
	result, err := r.db.ExecContext(ctx, query, value, username)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}

	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (r *UserRepository) Close(ctx context.Context) error {
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
