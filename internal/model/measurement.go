package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage format of measurement timestamps (local time)
const DateLayout = "2006-01-02 15:04:05"

// Measurement is a single weight sample owned by a user
type Measurement struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Weight     float64   `json:"weight"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Direction is the goal trigger direction
type Direction string

const (
	// DirectionBelow alerts when the current weight is at or below the goal (weight loss)
	DirectionBelow Direction = "below"
	// DirectionAbove alerts when the current weight is at or above the goal (weight gain)
	DirectionAbove Direction = "above"
)

// ParseDirection accepts "below"/"above" in any case
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBelow:
		return DirectionBelow, nil
	case DirectionAbove:
		return DirectionAbove, nil
	}
	return "", fmt.Errorf("unknown goal direction %q", s)
}

// Goal is the single active target weight of a user
type Goal struct {
	UserID    int64     `json:"userId"`
	Weight    float64   `json:"weight"`
	Direction Direction `json:"direction"`
}

// TrendPoint is one sample of the chronological series
type TrendPoint struct {
	RecordedAt time.Time `json:"recordedAt"`
	Weight     float64   `json:"weight"`
}

// Trend summarizes measurements oldest to newest
type Trend struct {
	Points []TrendPoint `json:"points"`
	First  float64      `json:"first"`
	Latest float64      `json:"latest"`
	Change float64      `json:"change"`
	Min    float64      `json:"min"`
	Max    float64      `json:"max"`
	Goal   *Goal        `json:"goal,omitempty"`
}
