package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/weighttracker/weighttracker/internal/database"
)

// PreferenceStore is a small device-wide key/value store
type PreferenceStore interface {
	// Get returns the value and whether it was set
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, names ...string) error
}

// PreferenceRepository keeps preferences in the preferences table
type PreferenceRepository struct {
	db *database.DB
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(db *database.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Get implements PreferenceStore
func (r *PreferenceRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, r.db.Rebind(`SELECT value FROM preferences WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference %s: %w", name, err)
	}
	return value, true, nil
}

// Set implements PreferenceStore
func (r *PreferenceRepository) Set(ctx context.Context, name, value string) error {
	query := r.db.Rebind(`
		INSERT INTO preferences (name, value)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`)
	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", name, err)
	}
	return nil
}

// Delete implements PreferenceStore
func (r *PreferenceRepository) Delete(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM preferences WHERE name IN (?)`, names)
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}
