package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weighttracker/weighttracker/internal/database"
	"github.com/weighttracker/weighttracker/internal/model"
)

// UserRepository handles user data persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// userRow mirrors the users table; locked_until is Unix milliseconds, 0 when unlocked
type userRow struct {
	ID             int64  `db:"id"`
	Email          string `db:"email"`
	Username       string `db:"username"`
	Phone          string `db:"phone"`
	PasswordHash   string `db:"password_hash"`
	FailedAttempts int    `db:"failed_attempts"`
	LockedUntil    int64  `db:"locked_until"`
}

func (r userRow) toModel() *model.User {
	u := &model.User{
		ID:             r.ID,
		Email:          r.Email,
		Username:       r.Username,
		Phone:          r.Phone,
		PasswordHash:   r.PasswordHash,
		FailedAttempts: r.FailedAttempts,
	}
	if r.LockedUntil > 0 {
		t := time.UnixMilli(r.LockedUntil)
		u.LockedUntil = &t
	}
	return u
}

const userColumns = `id, email, username, phone, password_hash, failed_attempts, locked_until`

// Create inserts a new user and returns its ID. Unique collisions come back
// as *DuplicateError naming username, email or phone.
func (r *UserRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	query := r.db.Rebind(`
		INSERT INTO users (email, username, password_hash, phone, failed_attempts, locked_until)
		VALUES (?, ?, ?, ?, 0, 0)
		RETURNING id
	`)
	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Phone,
	).Scan(&id)
	if err != nil {
		if dup := duplicateFromDriver(err, "username", "email", "phone"); dup != nil {
			return 0, dup
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return r.get(ctx, query, id)
}

// GetByLogin retrieves the user whose username or email equals login.
// login must already be lowercased.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE username = ? OR email = ?
		ORDER BY id
		LIMIT 1
	`)
	return r.get(ctx, query, login, login)
}

// ExistsByUsername checks if a user with the given username exists
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

// ExistsByEmail checks if a user with the given email exists
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// ExistsByPhone checks if a user with the given phone exists
func (r *UserRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	return r.exists(ctx, "phone", phone)
}

// GetPhone returns the phone number of a user
func (r *UserRepository) GetPhone(ctx context.Context, id int64) (string, error) {
	var phone string
	err := r.db.GetContext(ctx, &phone, r.db.Rebind(`SELECT phone FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get phone: %w", err)
	}
	return phone, nil
}

// IncrementFailedAttempts increments the failed login attempts counter
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id int64) (int, error) {
	query := r.db.Rebind(`
		UPDATE users
		SET failed_attempts = failed_attempts + 1
		WHERE id = ?
		RETURNING failed_attempts
	`)
	var attempts int
	err := r.db.QueryRowxContext(ctx, query, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment failed attempts: %w", err)
	}
	return attempts, nil
}

// ResetFailedAttempts resets the failed login attempts counter and clears the lockout
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id int64) error {
	query := r.db.Rebind(`UPDATE users SET failed_attempts = 0, locked_until = 0 WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset failed attempts: %w", err)
	}
	return nil
}

// LockUntil locks the user account until the specified time
func (r *UserRepository) LockUntil(ctx context.Context, id int64, until time.Time) error {
	query := r.db.Rebind(`UPDATE users SET locked_until = ? WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, query, until.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

// UpdatePasswordHash updates the user's password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Credentials is the id/hash pair scanned by the legacy password migration
type Credentials struct {
	ID           int64  `db:"id"`
	PasswordHash string `db:"password_hash"`
}

// ListCredentials returns the stored hash of every user
func (r *UserRepository) ListCredentials(ctx context.Context) ([]Credentials, error) {
	var creds []Credentials
	err := r.db.SelectContext(ctx, &creds, `SELECT id, password_hash FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

func (r *UserRepository) get(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toModel(), nil
}

func (r *UserRepository) exists(ctx context.Context, column, value string) (bool, error) {
	// column is one of a fixed set chosen by the callers above
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE ` + column + ` = ?)`)
	var exists bool
	err := r.db.QueryRowxContext(ctx, query, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", column, err)
	}
	return exists, nil
}
