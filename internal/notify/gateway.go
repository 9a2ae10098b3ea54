package notify

import (
	"context"

	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/logger"
)

// Gateway is the interface that all SMS providers must implement.
type Gateway interface {
	// SendSMS delivers message to the phone number.
	SendSMS(ctx context.Context, phone, message string) error
}

// LogGateway writes alerts to the log instead of sending them
type LogGateway struct {
	log *logger.Logger
}

// NewLogGateway creates a LogGateway
func NewLogGateway(log *logger.Logger) *LogGateway {
	return &LogGateway{log: log.WithComponent("sms_log_gateway")}
}

// SendSMS logs the message
func (g *LogGateway) SendSMS(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.log.Info().Str("to", phone).Str("body", message).Msg("sms alert")
	return nil
}

// NewGateway builds the gateway selected by notifications.provider
func NewGateway(cfg config.NotificationsConfig, log *logger.Logger) (Gateway, error) {
	if cfg.Provider == "twilio" {
		gw, err := NewTwilioGateway(cfg.Twilio)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
	return NewLogGateway(log), nil
}
