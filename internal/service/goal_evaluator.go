package service

import "github.com/weighttracker/weighttracker/internal/model"

// ShouldNotify reports whether current has crossed goal in the given direction.
// Unknown directions behave like below.
func ShouldNotify(current, goal float64, direction model.Direction) bool {
	if direction == model.DirectionAbove {
		return current >= goal
	}
	return current <= goal
}

// Decision is the outcome of evaluating a goal after a change
type Decision struct {
	Evaluated bool            `json:"evaluated"`
	Weight    float64         `json:"weight,omitempty"`
	Goal      float64         `json:"goal,omitempty"`
	Direction model.Direction `json:"direction,omitempty"`
	Notify    bool            `json:"notify"`
	// Alert is filled in by the alerter when one is configured
	Alert string `json:"alert,omitempty"`
}

// evaluate builds a Decision; nothing is evaluated without a goal or a weight
func evaluate(weight *float64, goal *model.Goal) Decision {
	if weight == nil || goal == nil {
		return Decision{}
	}
	return Decision{
		Evaluated: true,
		Weight:    *weight,
		Goal:      goal.Weight,
		Direction: goal.Direction,
		Notify:    ShouldNotify(*weight, goal.Weight, goal.Direction),
	}
}
