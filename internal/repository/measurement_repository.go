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

// MeasurementRepository persists weight entries
type MeasurementRepository struct {
	db  *database.DB
	loc *time.Location
}

// NewMeasurementRepository creates a MeasurementRepository. Dates are stored
// as wall-clock text in loc; nil means time.Local.
func NewMeasurementRepository(db *database.DB, loc *time.Location) *MeasurementRepository {
	if loc == nil {
		loc = time.Local
	}
	return &MeasurementRepository{db: db, loc: loc}
}

type measurementRow struct {
	ID     int64   `db:"id"`
	UserID int64   `db:"user_id"`
	Weight float64 `db:"weight"`
	Date   string  `db:"date"`
}

func (r *MeasurementRepository) toModel(row measurementRow) (model.Measurement, error) {
	at, err := time.ParseInLocation(model.DateLayout, row.Date, r.loc)
	if err != nil {
		return model.Measurement{}, fmt.Errorf("failed to parse date of entry %d: %w", row.ID, err)
	}
	return model.Measurement{
		ID:         row.ID,
		UserID:     row.UserID,
		Weight:     row.Weight,
		RecordedAt: at,
	}, nil
}

// Create appends a weight entry and returns its ID
func (r *MeasurementRepository) Create(ctx context.Context, userID int64, weight float64, recordedAt time.Time) (int64, error) {
	query := r.db.Rebind(`
		INSERT INTO weight_entries (user_id, weight, date)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	var id int64
	err := r.db.QueryRowxContext(ctx, query, userID, weight, recordedAt.In(r.loc).Format(model.DateLayout)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create weight entry: %w", err)
	}
	return id, nil
}

// GetByID retrieves a single entry
func (r *MeasurementRepository) GetByID(ctx context.Context, id int64) (*model.Measurement, error) {
	var row measurementRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, user_id, weight, date FROM weight_entries WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weight entry: %w", err)
	}
	m, err := r.toModel(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByUser returns all entries of a user, newest first
func (r *MeasurementRepository) ListByUser(ctx context.Context, userID int64) ([]model.Measurement, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, weight, date
		FROM weight_entries
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
	`)
	var rows []measurementRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list weight entries: %w", err)
	}

	result := make([]model.Measurement, 0, len(rows))
	for _, row := range rows {
		m, err := r.toModel(row)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// UpdateWeight changes the weight of an entry; false when no row matched
func (r *MeasurementRepository) UpdateWeight(ctx context.Context, id int64, weight float64) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE weight_entries SET weight = ? WHERE id = ?`), weight, id)
	if err != nil {
		return false, fmt.Errorf("failed to update weight entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete removes an entry; false when no row matched
func (r *MeasurementRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM weight_entries WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete weight entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
