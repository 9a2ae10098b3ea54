package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/weighttracker/weighttracker/internal/config"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway implements Gateway using the Twilio Messages API.
type TwilioGateway struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioGateway creates a new TwilioGateway.
func NewTwilioGateway(cfg config.TwilioConfig) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio: from number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioGateway{
		api:        client.Api,
		fromNumber: cfg.FromNumber,
	}, nil
}

// SendSMS implements Gateway
func (g *TwilioGateway) SendSMS(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(g.fromNumber)
	params.SetBody(message)

	if _, err := g.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: failed to send SMS: %w", err)
	}
	return nil
}
