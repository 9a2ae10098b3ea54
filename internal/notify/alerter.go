package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/weighttracker/weighttracker/internal/logger"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/repository"
)

// Preference keys
const (
	PrefSMSEnabled             = "sms_alerts_enabled"
	PrefSMSPermissionGranted   = "sms_permission_granted"
	PrefSMSPermissionRequested = "sms_permission_requested"
)

// Outcome is what happened to an alert
type Outcome string

const (
	OutcomeSent                Outcome = "sent"
	OutcomeDisabled            Outcome = "disabled"
	OutcomeNotTriggered        Outcome = "not_triggered"
	OutcomePermissionRequested Outcome = "permission_requested"
	OutcomeNoPhone             Outcome = "no_phone"
	OutcomeFailed              Outcome = "failed"
)

// Trigger is an evaluated goal crossing for one user
type Trigger struct {
	UserID    int64
	Weight    float64
	Direction model.Direction
	Notify    bool
}

// PhoneDirectory resolves a user's phone number
type PhoneDirectory interface {
	GetPhone(ctx context.Context, userID int64) (string, error)
}

// Settings are the user-controlled alert switches
type Settings struct {
	Enabled             bool `json:"enabled"`
	PermissionGranted   bool `json:"permissionGranted"`
	PermissionRequested bool `json:"permissionRequested"`
}

// Alerter sends goal alerts through a Gateway when the user allows it
type Alerter struct {
	gateway   Gateway
	prefs     repository.PreferenceStore
	phones    PhoneDirectory
	templates Templates
	log       *logger.Logger
}

// NewAlerter creates an Alerter
func NewAlerter(gateway Gateway, prefs repository.PreferenceStore, phones PhoneDirectory, templates Templates, log *logger.Logger) *Alerter {
	return &Alerter{
		gateway:   gateway,
		prefs:     prefs,
		phones:    phones,
		templates: templates,
		log:       log.WithComponent("alerter"),
	}
}

// Evaluate sends the alert for t if alerts are enabled, the goal was
// crossed, the user has a phone and sending is permitted. A missing
// permission is recorded as a pending request and nothing is sent.
func (a *Alerter) Evaluate(ctx context.Context, t Trigger) (Outcome, error) {
	enabled, err := a.flag(ctx, PrefSMSEnabled)
	if err != nil {
		return OutcomeFailed, err
	}
	if !enabled {
		return OutcomeDisabled, nil
	}
	if !t.Notify {
		return OutcomeNotTriggered, nil
	}

	phone, err := a.phones.GetPhone(ctx, t.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return OutcomeFailed, fmt.Errorf("failed to get phone: %w", err)
	}
	if phone == "" {
		return OutcomeNoPhone, nil
	}

	granted, err := a.flag(ctx, PrefSMSPermissionGranted)
	if err != nil {
		return OutcomeFailed, err
	}
	if !granted {
		if err := a.prefs.Set(ctx, PrefSMSPermissionRequested, "true"); err != nil {
			return OutcomeFailed, fmt.Errorf("failed to record permission request: %w", err)
		}
		a.log.Info().Int64("user_id", t.UserID).Msg("sms permission requested, alert suppressed")
		return OutcomePermissionRequested, nil
	}

	message := a.templates.Format(t.Weight, t.Direction)
	if err := a.gateway.SendSMS(ctx, phone, message); err != nil {
		a.log.Error().Err(err).Int64("user_id", t.UserID).Msg("failed to send sms alert")
		return OutcomeFailed, err
	}

	a.log.AuditLog(t.UserID, "alert.sent", map[string]interface{}{
		"weight":    t.Weight,
		"direction": string(t.Direction),
	})
	return OutcomeSent, nil
}

// Settings reads the current switches
func (a *Alerter) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	var err error
	if s.Enabled, err = a.flag(ctx, PrefSMSEnabled); err != nil {
		return s, err
	}
	if s.PermissionGranted, err = a.flag(ctx, PrefSMSPermissionGranted); err != nil {
		return s, err
	}
	if s.PermissionRequested, err = a.flag(ctx, PrefSMSPermissionRequested); err != nil {
		return s, err
	}
	return s, nil
}

// SetEnabled turns alerts on or off
func (a *Alerter) SetEnabled(ctx context.Context, enabled bool) error {
	return a.setFlag(ctx, PrefSMSEnabled, enabled)
}

// SetPermission records the send permission; granting clears a pending request
func (a *Alerter) SetPermission(ctx context.Context, granted bool) error {
	if err := a.setFlag(ctx, PrefSMSPermissionGranted, granted); err != nil {
		return err
	}
	if granted {
		if err := a.prefs.Delete(ctx, PrefSMSPermissionRequested); err != nil {
			return fmt.Errorf("failed to clear permission request: %w", err)
		}
	}
	return nil
}

func (a *Alerter) flag(ctx context.Context, name string) (bool, error) {
	value, ok, err := a.prefs.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		a.log.Warn().Str("preference", name).Str("value", value).Msg("ignoring malformed preference")
		return false, nil
	}
	return b, nil
}

func (a *Alerter) setFlag(ctx context.Context, name string, value bool) error {
	if err := a.prefs.Set(ctx, name, strconv.FormatBool(value)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}
