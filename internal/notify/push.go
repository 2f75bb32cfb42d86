package notify

import (
	"context"
	"fmt"

	"github.com/9ssi7/exponent"

	"hakobite/internal/models"
)

// PushSender publishes Expo push messages. *exponent.Client satisfies it.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
}

// NewExpoClient returns an Expo push client authenticated with accessToken.
func NewExpoClient(accessToken string) *exponent.Client {
	if accessToken == "" {
		return exponent.NewClient()
	}
	return exponent.NewClient(exponent.WithAccessToken(accessToken))
}

// ExpoPush alerts the operator's devices about a new booking.
type ExpoPush struct {
	sender PushSender
	tokens []string
}

func NewExpoPush(sender PushSender, tokens []string) *ExpoPush {
	return &ExpoPush{sender: sender, tokens: tokens}
}

func (p *ExpoPush) Name() string { return "push" }

func (p *ExpoPush) Notify(ctx context.Context, r models.BookingRecord) error {
	if len(p.tokens) == 0 {
		return fmt.Errorf("%w: no operator push tokens", ErrSkipped)
	}

	body := operatorText(r)
	msgs := make([]*exponent.Message, 0, len(p.tokens))
	for _, t := range p.tokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: "New booking",
			Body:  body,
			Data: map[string]string{
				"type":      "booking",
				"bookingId": r.BookingID,
				"eventId":   r.EventID,
				"reference": r.Reference,
			},
		})
	}

	responses, err := p.sender.Publish(ctx, msgs)
	if err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	failed := 0
	for _, resp := range responses {
		if resp != nil && resp.Status == "error" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("expo rejected %d of %d push messages", failed, len(msgs))
	}
	return nil
}
