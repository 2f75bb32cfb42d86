package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"hakobite/internal/models"
)

// MessageCreator sends an SMS. The Api field of a twilio.RestClient satisfies it.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// NewTwilioClient returns the message API for a Twilio account.
func NewTwilioClient(accountSID, authToken string) MessageCreator {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return client.Api
}

// TwilioSMS texts the operator's phone.
type TwilioSMS struct {
	api  MessageCreator
	from string
	to   string
}

func NewTwilioSMS(api MessageCreator, from, to string) *TwilioSMS {
	return &TwilioSMS{api: api, from: from, to: to}
}

func (s *TwilioSMS) Name() string { return "sms" }

func (s *TwilioSMS) Notify(ctx context.Context, r models.BookingRecord) error {
	if s.to == "" {
		return fmt.Errorf("%w: no operator phone", ErrSkipped)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(operatorText(r))

	return withContext(ctx, func() error {
		if _, err := s.api.CreateMessage(params); err != nil {
			return fmt.Errorf("send sms: %w", err)
		}
		return nil
	})
}

// withContext runs a blocking call that takes no context and stops waiting
// when ctx is done. The call itself keeps running in the background.
func withContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
