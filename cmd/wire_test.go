package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hakobite/internal/config"
)

func channelNames(t *testing.T, cfg config.Config) []string {
	t.Helper()
	channels, err := buildChannels(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	require.NoError(t, err)
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	return names
}

func TestBuildChannelsOnlyConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Empty(t, channelNames(t, cfg))

	cfg.Notify.Push.Tokens = []string{"ExponentPushToken[a]"}
	cfg.Notify.SMS = config.SMSConfig{AccountSID: "AC123", AuthToken: "t", From: "+1555", To: "+8190"}
	cfg.Notify.Email.Provider = "smtp"
	cfg.Notify.Webhook.URL = "https://sync.example.com/hook"
	cfg.Notify.CalDAV = config.CalDAVConfig{Endpoint: "https://caldav.example.com/", CalendarName: "Bookings"}
	assert.Equal(t, []string{"push", "sms", "email", "webhook", "caldav"}, channelNames(t, cfg))

	cfg = config.DefaultConfig()
	cfg.Notify.Email.Provider = "sendgrid"
	assert.Equal(t, []string{"email"}, channelNames(t, cfg))
}

func TestBuildClosures(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Closures = []config.Closure{{Label: "sunday", RRule: "FREQ=WEEKLY;BYDAY=SU", Start: "00:00", DurationMinutes: 1440}}
	closures, err := buildClosures(cfg)
	require.NoError(t, err)
	require.Len(t, closures, 1)
	assert.Equal(t, "sunday", closures[0].Label)

	cfg.Closures[0].Start = "25:99"
	_, err = buildClosures(cfg)
	require.Error(t, err)

	cfg.Closures[0].Start = "08:00"
	cfg.Closures[0].RRule = "FREQ=NEVER"
	_, err = buildClosures(cfg)
	require.Error(t, err)
}

func TestSetupLoggerLevels(t *testing.T) {
	assert.True(t, setupLogger("debug").Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, setupLogger("").Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, setupLogger("error").Enabled(t.Context(), slog.LevelWarn))
}
