package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weighttracker/weighttracker/internal/database"
	"github.com/weighttracker/weighttracker/internal/model"
)

// GoalRepository persists the single goal row of each user
type GoalRepository struct {
	db *database.DB
}

// NewGoalRepository creates a new GoalRepository
func NewGoalRepository(db *database.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Upsert sets the goal weight, inserting the row on first use.
// An existing direction is kept.
func (r *GoalRepository) Upsert(ctx context.Context, userID int64, weight float64) error {
	query := r.db.Rebind(`
		INSERT INTO goals (user_id, goal_weight)
		VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET goal_weight = excluded.goal_weight
	`)
	if _, err := r.db.ExecContext(ctx, query, userID, weight); err != nil {
		return fmt.Errorf("failed to upsert goal: %w", err)
	}
	return nil
}

// SetDirection changes the trigger direction; false when the user has no goal
func (r *GoalRepository) SetDirection(ctx context.Context, userID int64, direction model.Direction) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE goals SET direction = ? WHERE user_id = ?`), string(direction), userID)
	if err != nil {
		return false, fmt.Errorf("failed to update goal direction: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// GetByUser returns the user's goal, or nil when none is set
func (r *GoalRepository) GetByUser(ctx context.Context, userID int64) (*model.Goal, error) {
	var row struct {
		UserID    int64   `db:"user_id"`
		Weight    float64 `db:"goal_weight"`
		Direction string  `db:"direction"`
	}
	query := r.db.Rebind(`SELECT user_id, goal_weight, direction FROM goals WHERE user_id = ?`)
	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Goal is optional
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	direction, err := model.ParseDirection(row.Direction)
	if err != nil {
		direction = model.DirectionBelow
	}
	return &model.Goal{UserID: row.UserID, Weight: row.Weight, Direction: direction}, nil
}
