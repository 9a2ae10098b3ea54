package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/notify"
	"github.com/weighttracker/weighttracker/internal/repository"
)

// TrackerService manages a user's measurements and goal
type TrackerService struct {
	measurements *repository.MeasurementRepository
	goals        *repository.GoalRepository
	alerter      *notify.Alerter
	now          func() time.Time
	log          *logger.Logger
}

// NewTrackerService creates a new TrackerService. alerter may be nil.
func NewTrackerService(
	measurements *repository.MeasurementRepository,
	goals *repository.GoalRepository,
	alerter *notify.Alerter,
	log *logger.Logger,
) *TrackerService {
	return &TrackerService{
		measurements: measurements,
		goals:        goals,
		alerter:      alerter,
		now:          time.Now,
		log:          log.WithComponent("tracker_service"),
	}
}

// WithClock replaces the clock used to timestamp new measurements
func (s *TrackerService) WithClock(now func() time.Time) *TrackerService {
	s.now = now
	return s
}

// Snapshot is the state after a change: the full measurement list
// (newest first), the goal and the evaluation it triggered
type Snapshot struct {
	Measurements []model.Measurement `json:"measurements"`
	Goal         *model.Goal         `json:"goal,omitempty"`
	Decision     Decision            `json:"decision"`
}

// Latest returns the newest measurement, if any
func (s *Snapshot) Latest() (model.Measurement, bool) {
	if len(s.Measurements) == 0 {
		return model.Measurement{}, false
	}
	return s.Measurements[0], true
}

// AddMeasurement records a weight at the current time and evaluates the goal against it
func (s *TrackerService) AddMeasurement(ctx context.Context, userID int64, weight float64) (*Snapshot, error) {
	if err := validateWeight("weight", weight); err != nil {
		return nil, err
	}

	id, err := s.measurements.Create(ctx, userID, weight, s.now())
	if err != nil {
		return nil, persistence("add weight", err)
	}
	s.log.Debug().Int64("user_id", userID).Int64("entry_id", id).Msg("weight entry added")

	return s.snapshot(ctx, userID, &weight)
}

// ListMeasurements returns the user's entries, newest first
func (s *TrackerService) ListMeasurements(ctx context.Context, userID int64) ([]model.Measurement, error) {
	list, err := s.measurements.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list weights", err)
	}
	return list, nil
}

// UpdateMeasurement changes the weight of one of the user's entries
func (s *TrackerService) UpdateMeasurement(ctx context.Context, userID, entryID int64, weight float64) (*Snapshot, error) {
	if err := validateWeight("weight", weight); err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, userID, entryID); err != nil {
		return nil, err
	}

	ok, err := s.measurements.UpdateWeight(ctx, entryID, weight)
	if err != nil {
		return nil, persistence("update weight", err)
	}
	if !ok {
		return nil, ErrMeasurementNotFound
	}

	return s.snapshot(ctx, userID, nil)
}

// DeleteMeasurement removes one of the user's entries
func (s *TrackerService) DeleteMeasurement(ctx context.Context, userID, entryID int64) (*Snapshot, error) {
	if err := s.checkOwner(ctx, userID, entryID); err != nil {
		return nil, err
	}

	ok, err := s.measurements.Delete(ctx, entryID)
	if err != nil {
		return nil, persistence("delete weight", err)
	}
	if !ok {
		return nil, ErrMeasurementNotFound
	}

	return s.snapshot(ctx, userID, nil)
}

// SetGoal sets the user's goal weight, keeping the trigger direction
func (s *TrackerService) SetGoal(ctx context.Context, userID int64, weight float64) (*Snapshot, error) {
	if err := validateWeight("goal", weight); err != nil {
		return nil, err
	}
	if err := s.goals.Upsert(ctx, userID, weight); err != nil {
		return nil, persistence("set goal", err)
	}
	s.log.AuditLog(userID, "goal.set", map[string]interface{}{"goal": weight})

	return s.snapshot(ctx, userID, nil)
}

// SetGoalDirection switches between alerting below or above the goal
func (s *TrackerService) SetGoalDirection(ctx context.Context, userID int64, direction model.Direction) (*Snapshot, error) {
	if direction != model.DirectionBelow && direction != model.DirectionAbove {
		return nil, invalid("direction", "direction must be below or above")
	}

	ok, err := s.goals.SetDirection(ctx, userID, direction)
	if err != nil {
		return nil, persistence("set goal direction", err)
	}
	if !ok {
		return nil, ErrNoGoal
	}
	s.log.AuditLog(userID, "goal.direction", map[string]interface{}{"direction": string(direction)})

	return s.snapshot(ctx, userID, nil)
}

// GetGoal returns the goal, or nil when none is set
func (s *TrackerService) GetGoal(ctx context.Context, userID int64) (*model.Goal, error) {
	goal, err := s.goals.GetByUser(ctx, userID)
	if err != nil {
		return nil, persistence("get goal", err)
	}
	return goal, nil
}

// Trend returns the measurement series oldest to newest with summary figures
func (s *TrackerService) Trend(ctx context.Context, userID int64) (*model.Trend, error) {
	list, err := s.ListMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	goal, err := s.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}

	trend := &model.Trend{
		Points: make([]model.TrendPoint, 0, len(list)),
		Goal:   goal,
	}
	if len(list) == 0 {
		return trend, nil
	}

	trend.Min, trend.Max = math.Inf(1), math.Inf(-1)
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		trend.Points = append(trend.Points, model.TrendPoint{RecordedAt: m.RecordedAt, Weight: m.Weight})
		trend.Min = math.Min(trend.Min, m.Weight)
		trend.Max = math.Max(trend.Max, m.Weight)
	}
	trend.First = trend.Points[0].Weight
	trend.Latest = trend.Points[len(trend.Points)-1].Weight
	trend.Change = trend.Latest - trend.First
	return trend, nil
}

func (s *TrackerService) checkOwner(ctx context.Context, userID, entryID int64) error {
	m, err := s.measurements.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMeasurementNotFound
		}
		return persistence("get weight", err)
	}
	// Other users' entries are reported as missing
	if m.UserID != userID {
		return ErrMeasurementNotFound
	}
	return nil
}

// snapshot re-reads the user's state and evaluates the goal against weight,
// or against the latest measurement when weight is nil
func (s *TrackerService) snapshot(ctx context.Context, userID int64, weight *float64) (*Snapshot, error) {
	list, err := s.ListMeasurements(ctx, userID)
	if err != nil {
		return nil, err
	}
	goal, err := s.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Measurements: list, Goal: goal}
	if weight == nil {
		if latest, ok := snap.Latest(); ok {
			weight = &latest.Weight
		}
	}
	snap.Decision = evaluate(weight, goal)

	if s.alerter != nil && snap.Decision.Evaluated {
		outcome, err := s.alerter.Evaluate(ctx, notify.Trigger{
			UserID:    userID,
			Weight:    snap.Decision.Weight,
			Direction: snap.Decision.Direction,
			Notify:    snap.Decision.Notify,
		})
		if err != nil {
			// The change itself is saved; a failed alert is reported, not returned
			s.log.Error().Err(err).Int64("user_id", userID).Msg("goal alert failed")
		}
		snap.Decision.Alert = string(outcome)
	}
	return snap, nil
}

func validateWeight(field string, weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return invalid(field, "must be a positive number")
	}
	return nil
}
