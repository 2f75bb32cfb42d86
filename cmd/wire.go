package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"hakobite/internal/api"
	"hakobite/internal/availability"
	"hakobite/internal/booking"
	"hakobite/internal/caldav"
	"hakobite/internal/config"
	"hakobite/internal/google"
	"hakobite/internal/notify"
	"hakobite/internal/reconcile"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg         config.Config
	logger      *slog.Logger
	calendar    *google.CalendarClient
	engine      *availability.Engine
	ledger      *reconcile.Ledger
	sweeper     *reconcile.Sweeper
	dispatcher  *notify.Dispatcher
	coordinator *booking.Coordinator
}

// loadConfig reads the YAML file and overlays the environment.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newCalendarClient(ctx context.Context, logger *slog.Logger, cfg config.Config) (*google.CalendarClient, error) {
	httpClient, err := google.HTTPClient(ctx, google.Credentials{
		ServiceAccount: cfg.Calendar.ServiceAccount,
		ClientID:       cfg.Calendar.ClientID,
		ClientSecret:   cfg.Calendar.ClientSecret,
		Account:        cfg.Calendar.Account,
	})
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return google.NewClient(ctx, logger, httpClient, cfg.Calendar.ID, cfg.Calendar.TimeZone, cfg.Zone())
}

func buildApp(ctx context.Context, logger *slog.Logger, cfg config.Config) (*app, error) {
	cal, err := newCalendarClient(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	closures, err := buildClosures(cfg)
	if err != nil {
		return nil, err
	}
	engine := availability.New(cal, logger, availability.Options{
		Zone:          cfg.Zone(),
		Grid:          cfg.Grid(),
		HorizonDays:   cfg.HorizonDays,
		MaxWindowDays: cfg.MaxWindowDays,
		Timeout:       cfg.UpstreamTimeout(),
		Closures:      closures,
	})

	ledger, err := reconcile.OpenLedger(cfg.Reconcile.StateFile)
	if err != nil {
		return nil, fmt.Errorf("open reconciliation ledger: %w", err)
	}
	sweeper := reconcile.NewSweeper(logger, ledger, cal, cfg.UpstreamTimeout())

	channels, err := buildChannels(logger, cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(logger, cfg.NotifyTimeout(), channels...)
	logger.Info("Notification channels configured", "channels", dispatcher.Channels())

	refs, err := booking.NewReferences(cfg.Reference.Salt, cfg.Reference.MinLength)
	if err != nil {
		return nil, err
	}
	coordinator := booking.New(logger, cal, engine, dispatcher, ledger, refs, booking.Options{
		Zone:             cfg.Zone(),
		Grid:             cfg.Grid(),
		AllowedDurations: cfg.AllowedDurations,
		HorizonDays:      cfg.HorizonDays,
		BufferMinutes:    cfg.BufferMinutes,
		Timeout:          cfg.UpstreamTimeout(),
	})

	return &app{
		cfg:         cfg,
		logger:      logger,
		calendar:    cal,
		engine:      engine,
		ledger:      ledger,
		sweeper:     sweeper,
		dispatcher:  dispatcher,
		coordinator: coordinator,
	}, nil
}

func buildClosures(cfg config.Config) ([]availability.Closure, error) {
	closures := make([]availability.Closure, 0, len(cfg.Closures))
	for _, c := range cfg.Closures {
		start, err := config.ParseClock(c.Start)
		if err != nil {
			return nil, err
		}
		closure, err := availability.NewClosure(c.Label, c.RRule, start, minutes(c.DurationMinutes), cfg.Zone())
		if err != nil {
			return nil, err
		}
		closures = append(closures, closure)
	}
	return closures, nil
}

// buildChannels creates a channel for every notification destination that
// has credentials configured.
func buildChannels(logger *slog.Logger, cfg config.Config) ([]notify.Channel, error) {
	n := cfg.Notify
	var channels []notify.Channel

	if len(n.Push.Tokens) > 0 {
		channels = append(channels, notify.NewExpoPush(notify.NewExpoClient(n.Push.AccessToken), n.Push.Tokens))
	}
	if n.SMS.AccountSID != "" && n.SMS.To != "" {
		channels = append(channels, notify.NewTwilioSMS(notify.NewTwilioClient(n.SMS.AccountSID, n.SMS.AuthToken), n.SMS.From, n.SMS.To))
	}

	emailOpts := notify.EmailOptions{
		FromAddress:  n.Email.FromAddress,
		FromName:     n.Email.FromName,
		Subject:      n.Email.Subject,
		Signature:    n.Email.Signature,
		AttachInvite: n.Email.AttachInvite,
	}
	switch n.Email.Provider {
	case "smtp":
		smtp := n.Email.SMTP
		dialer := notify.NewSMTPDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password, cfg.NotifyTimeout())
		channels = append(channels, notify.NewSMTPEmail(dialer, emailOpts))
	case "sendgrid":
		channels = append(channels, notify.NewSendGridEmail(n.Email.SendGridAPIKey, emailOpts))
	}

	if n.Webhook.URL != "" {
		client := &http.Client{Timeout: cfg.NotifyTimeout()}
		channels = append(channels, notify.NewWebhook(client, n.Webhook.URL, n.Webhook.Token))
	}

	if n.CalDAV.Endpoint != "" {
		mirror, err := caldav.NewMirror(logger, caldav.Options{
			Endpoint:     n.CalDAV.Endpoint,
			Username:     n.CalDAV.Username,
			Password:     n.CalDAV.Password,
			CalendarName: n.CalDAV.CalendarName,
		})
		if err != nil {
			return nil, fmt.Errorf("caldav mirror: %w", err)
		}
		channels = append(channels, mirror)
	}
	return channels, nil
}

func (a *app) publicConfig() api.PublicConfig {
	o := a.cfg.Options
	return api.PublicConfig{
		Services:         o.Services,
		Wheelchair:       o.Wheelchair,
		Care:             o.Care,
		Passengers:       o.Passengers,
		DurationsMinutes: a.cfg.AllowedDurations,
		SlotMinutes:      a.cfg.SlotMinutes,
		OpenHour:         a.cfg.Hours.Start,
		CloseHour:        a.cfg.Hours.End,
		HorizonDays:      a.cfg.HorizonDays,
		MaxWindowDays:    a.cfg.MaxWindowDays,
		UTCOffsetMinutes: a.cfg.UTCOffsetMinutes,
	}
}
