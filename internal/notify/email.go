package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/mail.v2"

	"hakobite/internal/models"
)

const inviteContentType = `text/calendar; charset="utf-8"; method=REQUEST`

// EmailOptions is shared by the customer email channels.
type EmailOptions struct {
	FromAddress  string
	FromName     string
	Subject      string
	Signature    string
	AttachInvite bool
}

// MailSender delivers a composed message. *mail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// NewSMTPDialer returns a dialer for authenticated STARTTLS submission.
func NewSMTPDialer(host string, port int, username, password string, timeout time.Duration) *mail.Dialer {
	d := mail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	if timeout > 0 {
		d.Timeout = timeout
	}
	return d
}

// SMTPEmail sends the customer a confirmation over SMTP.
type SMTPEmail struct {
	sender MailSender
	opts   EmailOptions
}

func NewSMTPEmail(sender MailSender, opts EmailOptions) *SMTPEmail {
	return &SMTPEmail{sender: sender, opts: opts}
}

func (e *SMTPEmail) Name() string { return "email" }

func (e *SMTPEmail) Notify(ctx context.Context, r models.BookingRecord) error {
	if r.Request.Email == "" {
		return fmt.Errorf("%w: customer gave no email", ErrSkipped)
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", e.opts.FromAddress, e.opts.FromName)
	m.SetAddressHeader("To", r.Request.Email, r.Request.Name)
	m.SetHeader("Subject", e.opts.Subject)
	m.SetBody("text/plain", confirmationBody(r, e.opts.Signature))

	if e.opts.AttachInvite {
		invite := Invite(r, e.opts.FromAddress, e.opts.FromName)
		m.Attach("booking.ics",
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.WriteString(w, invite)
				return err
			}),
			mail.SetHeader(map[string][]string{"Content-Type": {inviteContentType}}),
		)
	}

	return withContext(ctx, func() error {
		if err := e.sender.DialAndSend(m); err != nil {
			return fmt.Errorf("send email to %s: %w", r.Request.Email, err)
		}
		return nil
	})
}

// SendGridEmail sends the customer a confirmation through the SendGrid API.
type SendGridEmail struct {
	client *sendgrid.Client
	opts   EmailOptions
}

func NewSendGridEmail(apiKey string, opts EmailOptions) *SendGridEmail {
	return &SendGridEmail{client: sendgrid.NewSendClient(apiKey), opts: opts}
}

func (e *SendGridEmail) Name() string { return "email" }

func (e *SendGridEmail) Notify(ctx context.Context, r models.BookingRecord) error {
	if r.Request.Email == "" {
		return fmt.Errorf("%w: customer gave no email", ErrSkipped)
	}

	from := sgmail.NewEmail(e.opts.FromName, e.opts.FromAddress)
	to := sgmail.NewEmail(r.Request.Name, r.Request.Email)
	message := sgmail.NewSingleEmail(from, e.opts.Subject, to, confirmationBody(r, e.opts.Signature), "")

	if e.opts.AttachInvite {
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString([]byte(Invite(r, e.opts.FromAddress, e.opts.FromName))))
		a.SetType("text/calendar")
		a.SetFilename("booking.ics")
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}

	return withContext(ctx, func() error {
		resp, err := e.client.Send(message)
		if err != nil {
			return fmt.Errorf("sendgrid send: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
		}
		return nil
	})
}
