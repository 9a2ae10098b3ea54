package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/notify"
)

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		current, goal float64
		direction     model.Direction
		want          bool
	}{
		{149, 150, model.DirectionBelow, true},
		{150, 150, model.DirectionBelow, true},
		{151, 150, model.DirectionBelow, false},
		{151, 150, model.DirectionAbove, true},
		{150, 150, model.DirectionAbove, true},
		{149, 150, model.DirectionAbove, false},
		{149, 150, model.Direction(""), true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldNotify(tt.current, tt.goal, tt.direction),
			"ShouldNotify(%v, %v, %q)", tt.current, tt.goal, tt.direction)
	}
}

func newTracker(env *testEnv, alerter *notify.Alerter) *TrackerService {
	return NewTrackerService(env.measurements, env.goals, alerter, logger.Nop()).WithClock(env.clock.Now)
}

func TestTrackerService_AddAndList(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	ctx := context.Background()
	uid := env.register(t, "alice")

	snap, err := tracker.AddMeasurement(ctx, uid, 180.5)
	require.NoError(t, err)
	require.Len(t, snap.Measurements, 1)
	assert.False(t, snap.Decision.Evaluated, "no goal, no evaluation")

	env.clock.Advance(24 * time.Hour)
	snap, err = tracker.AddMeasurement(ctx, uid, 179)
	require.NoError(t, err)
	require.Len(t, snap.Measurements, 2)
	assert.Equal(t, 179.0, snap.Measurements[0].Weight, "newest first")
	assert.Equal(t, env.clock.Now(), snap.Measurements[0].RecordedAt.UTC())

	list, err := tracker.ListMeasurements(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, snap.Measurements, list)
}

func TestTrackerService_RejectsBadWeights(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	uid := env.register(t, "alice")

	for _, w := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		_, err := tracker.AddMeasurement(context.Background(), uid, w)
		assert.ErrorIs(t, err, ErrValidation, "weight %v", w)
		_, err = tracker.SetGoal(context.Background(), uid, w)
		assert.ErrorIs(t, err, ErrValidation, "goal %v", w)
	}
}

func TestTrackerService_SetGoalTwice(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	ctx := context.Background()
	uid := env.register(t, "alice")

	goal, err := tracker.GetGoal(ctx, uid)
	require.NoError(t, err)
	assert.Nil(t, goal)

	_, err = tracker.SetGoal(ctx, uid, 150)
	require.NoError(t, err)
	_, err = tracker.SetGoal(ctx, uid, 150)
	require.NoError(t, err)

	var rows int
	require.NoError(t, env.db.Get(&rows, `SELECT COUNT(*) FROM goals WHERE user_id = ?`, uid))
	assert.Equal(t, 1, rows)

	goal, err = tracker.GetGoal(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, goal)
	assert.Equal(t, 150.0, goal.Weight)
	assert.Equal(t, model.DirectionBelow, goal.Direction)
}

func TestTrackerService_GoalEvaluation(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	ctx := context.Background()
	uid := env.register(t, "alice")

	_, err := tracker.SetGoal(ctx, uid, 150)
	require.NoError(t, err)

	snap, err := tracker.AddMeasurement(ctx, uid, 151)
	require.NoError(t, err)
	assert.True(t, snap.Decision.Evaluated)
	assert.False(t, snap.Decision.Notify)

	env.clock.Advance(time.Hour)
	snap, err = tracker.AddMeasurement(ctx, uid, 149)
	require.NoError(t, err)
	assert.True(t, snap.Decision.Notify)
	assert.Equal(t, 149.0, snap.Decision.Weight)

	// Direction flip re-evaluates against the latest weight
	snap, err = tracker.SetGoalDirection(ctx, uid, model.DirectionAbove)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionAbove, snap.Goal.Direction)
	assert.False(t, snap.Decision.Notify)

	// Editing the newest entry re-evaluates with the latest weight
	snap, err = tracker.UpdateMeasurement(ctx, uid, snap.Measurements[0].ID, 155)
	require.NoError(t, err)
	assert.Equal(t, 155.0, snap.Decision.Weight)
	assert.True(t, snap.Decision.Notify)

	// Changing the goal keeps the direction
	snap, err = tracker.SetGoal(ctx, uid, 160)
	require.NoError(t, err)
	assert.Equal(t, model.DirectionAbove, snap.Goal.Direction)
	assert.False(t, snap.Decision.Notify)
}

func TestTrackerService_SetGoalDirectionWithoutGoal(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	uid := env.register(t, "alice")

	_, err := tracker.SetGoalDirection(context.Background(), uid, model.DirectionAbove)
	assert.ErrorIs(t, err, ErrNoGoal)

	_, err = tracker.SetGoalDirection(context.Background(), uid, model.Direction("sideways"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTrackerService_UpdateDeleteOwnership(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	snap, err := tracker.AddMeasurement(ctx, alice, 170)
	require.NoError(t, err)
	entryID := snap.Measurements[0].ID

	_, err = tracker.UpdateMeasurement(ctx, bob, entryID, 100)
	assert.ErrorIs(t, err, ErrMeasurementNotFound)
	_, err = tracker.DeleteMeasurement(ctx, bob, entryID)
	assert.ErrorIs(t, err, ErrMeasurementNotFound)
	_, err = tracker.UpdateMeasurement(ctx, alice, 9999, 100)
	assert.ErrorIs(t, err, ErrMeasurementNotFound)

	snap, err = tracker.UpdateMeasurement(ctx, alice, entryID, 168.4)
	require.NoError(t, err)
	assert.Equal(t, 168.4, snap.Measurements[0].Weight)

	_, err = tracker.SetGoal(ctx, alice, 200)
	require.NoError(t, err)

	snap, err = tracker.DeleteMeasurement(ctx, alice, entryID)
	require.NoError(t, err)
	assert.Empty(t, snap.Measurements)
	assert.False(t, snap.Decision.Evaluated, "nothing to evaluate without measurements")

	_, err = tracker.DeleteMeasurement(ctx, alice, entryID)
	assert.ErrorIs(t, err, ErrMeasurementNotFound)
}

func TestTrackerService_Trend(t *testing.T) {
	env := newTestEnv(t)
	tracker := newTracker(env, nil)
	ctx := context.Background()
	uid := env.register(t, "alice")

	trend, err := tracker.Trend(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, trend.Points)
	assert.Nil(t, trend.Goal)

	for _, w := range []float64{182, 185, 178, 176} {
		_, err := tracker.AddMeasurement(ctx, uid, w)
		require.NoError(t, err)
		env.clock.Advance(24 * time.Hour)
	}
	_, err = tracker.SetGoal(ctx, uid, 170)
	require.NoError(t, err)

	trend, err = tracker.Trend(ctx, uid)
	require.NoError(t, err)
	require.Len(t, trend.Points, 4)
	assert.Equal(t, 182.0, trend.Points[0].Weight, "oldest first")
	assert.Equal(t, 176.0, trend.Points[3].Weight)
	assert.True(t, trend.Points[0].RecordedAt.Before(trend.Points[3].RecordedAt))
	assert.Equal(t, 182.0, trend.First)
	assert.Equal(t, 176.0, trend.Latest)
	assert.Equal(t, -6.0, trend.Change)
	assert.Equal(t, 176.0, trend.Min)
	assert.Equal(t, 185.0, trend.Max)
	require.NotNil(t, trend.Goal)
	assert.Equal(t, 170.0, trend.Goal.Weight)
}

type recordingGateway struct {
	messages []string
}

func (g *recordingGateway) SendSMS(_ context.Context, _, message string) error {
	g.messages = append(g.messages, message)
	return nil
}

func TestTrackerService_Alerts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gw := &recordingGateway{}
	alerter := notify.NewAlerter(gw, env.prefs, env.users, notify.Templates{Below: "at %.1f", Above: "over %.1f"}, logger.Nop())
	tracker := newTracker(env, alerter)
	uid := env.register(t, "alice")

	_, err := tracker.SetGoal(ctx, uid, 150)
	require.NoError(t, err)

	snap, err := tracker.AddMeasurement(ctx, uid, 149)
	require.NoError(t, err)
	assert.Equal(t, string(notify.OutcomeDisabled), snap.Decision.Alert)

	require.NoError(t, alerter.SetEnabled(ctx, true))
	snap, err = tracker.AddMeasurement(ctx, uid, 148)
	require.NoError(t, err)
	assert.Equal(t, string(notify.OutcomePermissionRequested), snap.Decision.Alert)
	assert.Empty(t, gw.messages)

	require.NoError(t, alerter.SetPermission(ctx, true))
	snap, err = tracker.AddMeasurement(ctx, uid, 147.5)
	require.NoError(t, err)
	assert.Equal(t, string(notify.OutcomeSent), snap.Decision.Alert)
	assert.Equal(t, []string{"at 147.5"}, gw.messages)

	snap, err = tracker.AddMeasurement(ctx, uid, 152)
	require.NoError(t, err)
	assert.Equal(t, string(notify.OutcomeNotTriggered), snap.Decision.Alert)
	assert.Len(t, gw.messages, 1)
}
