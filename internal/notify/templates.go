package notify

import (
	"fmt"

	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/model"
)

const (
	defaultBelowTemplate = "Goal reached! Your weight of %.1f is at or below your goal."
	defaultAboveTemplate = "Goal reached! Your weight of %.1f is at or above your goal."
)

// Templates holds the direction-specific alert texts; each takes the weight as its only verb
type Templates struct {
	Below string
	Above string
}

// TemplatesFromConfig reads the templates, filling blanks with the defaults
func TemplatesFromConfig(cfg config.NotificationsConfig) Templates {
	t := Templates{Below: cfg.BelowTemplate, Above: cfg.AboveTemplate}
	if t.Below == "" {
		t.Below = defaultBelowTemplate
	}
	if t.Above == "" {
		t.Above = defaultAboveTemplate
	}
	return t
}

// Format renders the alert for the current weight
func (t Templates) Format(weight float64, direction model.Direction) string {
	if direction == model.DirectionAbove {
		return fmt.Sprintf(t.Above, weight)
	}
	return fmt.Sprintf(t.Below, weight)
}
