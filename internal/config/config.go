package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hakobite/internal/slot"
)

// Config is the deployment configuration for the booking service.
type Config struct {
	Listen      string   `yaml:"listen"`
	CORSOrigins []string `yaml:"cors_origins"`

	Calendar CalendarConfig `yaml:"calendar"`

	// UTCOffsetMinutes is the fixed offset every instant is normalised to.
	UTCOffsetMinutes int `yaml:"utc_offset_minutes"`

	Hours            HoursConfig `yaml:"business_hours"`
	SlotMinutes      int         `yaml:"slot_minutes"`
	AllowedDurations []int       `yaml:"allowed_durations"`
	HorizonDays      int         `yaml:"horizon_days"`
	MaxWindowDays    int         `yaml:"max_window_days"`
	BufferMinutes    int         `yaml:"buffer_minutes"`

	UpstreamTimeoutSeconds int `yaml:"upstream_timeout_seconds"`

	Closures []Closure     `yaml:"closures"`
	Options  OptionsConfig `yaml:"options"`

	Notify    NotifyConfig    `yaml:"notify"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Reference ReferenceConfig `yaml:"reference"`
}

// CalendarConfig identifies the single calendar bookings are written to.
type CalendarConfig struct {
	ID       string `yaml:"id"`
	TimeZone string `yaml:"time_zone"`
	// Account selects token-<account>.json when no service account is configured.
	Account string `yaml:"account"`
	// ServiceAccount is inline JSON or a path to the key file.
	ServiceAccount string `yaml:"service_account"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
}

// HoursConfig is the bookable part of the day, in whole hours.
type HoursConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Closure blocks a recurring period, e.g. every Sunday.
type Closure struct {
	Label           string `yaml:"label"`
	RRule           string `yaml:"rrule"`
	Start           string `yaml:"start"` // HH:MM local
	DurationMinutes int    `yaml:"duration_minutes"`
}

// OptionsConfig lists the choices offered on the booking form.
type OptionsConfig struct {
	Services   []string `yaml:"services" json:"services"`
	Wheelchair []string `yaml:"wheelchair" json:"wheelchair"`
	Care       []string `yaml:"care" json:"care"`
	Passengers []string `yaml:"passengers" json:"passengers"`
}

type NotifyConfig struct {
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Push           PushConfig    `yaml:"push"`
	SMS            SMSConfig     `yaml:"sms"`
	Email          EmailConfig   `yaml:"email"`
	Webhook        WebhookConfig `yaml:"webhook"`
	CalDAV         CalDAVConfig  `yaml:"caldav"`
}

type PushConfig struct {
	AccessToken string   `yaml:"access_token"`
	Tokens      []string `yaml:"tokens"`
}

type SMSConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

type EmailConfig struct {
	// Provider is "smtp", "sendgrid" or empty to disable customer mail.
	Provider       string     `yaml:"provider"`
	FromAddress    string     `yaml:"from_address"`
	FromName       string     `yaml:"from_name"`
	Subject        string     `yaml:"subject"`
	Signature      string     `yaml:"signature"`
	AttachInvite   bool       `yaml:"attach_invite"`
	SMTP           SMTPConfig `yaml:"smtp"`
	SendGridAPIKey string     `yaml:"sendgrid_api_key"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type WebhookConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type CalDAVConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarName string `yaml:"calendar_name"`
}

type ReconcileConfig struct {
	StateFile string `yaml:"state_file"`
	Schedule  string `yaml:"schedule"`
}

type ReferenceConfig struct {
	Salt      string `yaml:"salt"`
	MinLength int    `yaml:"min_length"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Listen:                 ":8080",
		Calendar:               CalendarConfig{TimeZone: "Asia/Tokyo", Account: "default"},
		UTCOffsetMinutes:       int(slot.DefaultOffset / time.Minute),
		Hours:                  HoursConfig{Start: 8, End: 19},
		SlotMinutes:            30,
		AllowedDurations:       []int{30, 60},
		HorizonDays:            60,
		MaxWindowDays:          7,
		UpstreamTimeoutSeconds: 10,
		Options: OptionsConfig{
			Services: []string{
				"Care taxi (outing support)",
				"Shopping support",
				"Household help",
				"Safety check visit",
			},
			Wheelchair: []string{
				"Own wheelchair",
				"Standard wheelchair rental",
				"Reclining wheelchair rental",
				"Stretcher (consultation required)",
				"Not needed",
			},
			Care: []string{
				"Watch only",
				"Transfer assistance",
				"Stair assistance (consultation required)",
			},
			Passengers: []string{"1", "2", "3"},
		},
		Notify: NotifyConfig{
			TimeoutSeconds: 10,
			Email: EmailConfig{
				FromName:     "Hakobite",
				Subject:      "[Hakobite] Thank you for your booking",
				AttachInvite: true,
				SMTP:         SMTPConfig{Host: "smtp.gmail.com", Port: 587},
			},
		},
		Reconcile: ReconcileConfig{
			StateFile: "reconcile-state.json",
			Schedule:  "@every 10m",
		},
		Reference: ReferenceConfig{Salt: "hakobite", MinLength: 6},
	}
}

// Normalize fills zero values with defaults so partial files behave.
// UTCOffsetMinutes is left alone since zero is a valid offset and Load
// starts from DefaultConfig.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Calendar.TimeZone == "" {
		c.Calendar.TimeZone = def.Calendar.TimeZone
	}
	if c.Calendar.Account == "" {
		c.Calendar.Account = def.Calendar.Account
	}
	if c.Hours.Start == 0 && c.Hours.End == 0 {
		c.Hours = def.Hours
	}
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = def.SlotMinutes
	}
	if len(c.AllowedDurations) == 0 {
		c.AllowedDurations = def.AllowedDurations
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.MaxWindowDays <= 0 {
		c.MaxWindowDays = def.MaxWindowDays
	}
	if c.BufferMinutes < 0 {
		c.BufferMinutes = 0
	}
	if c.UpstreamTimeoutSeconds <= 0 {
		c.UpstreamTimeoutSeconds = def.UpstreamTimeoutSeconds
	}
	if c.Notify.TimeoutSeconds <= 0 {
		c.Notify.TimeoutSeconds = def.Notify.TimeoutSeconds
	}
	if c.Notify.Email.FromName == "" {
		c.Notify.Email.FromName = def.Notify.Email.FromName
	}
	if c.Notify.Email.Subject == "" {
		c.Notify.Email.Subject = def.Notify.Email.Subject
	}
	if c.Notify.Email.SMTP.Host == "" {
		c.Notify.Email.SMTP.Host = def.Notify.Email.SMTP.Host
	}
	if c.Notify.Email.SMTP.Port == 0 {
		c.Notify.Email.SMTP.Port = def.Notify.Email.SMTP.Port
	}
	if c.Reconcile.StateFile == "" {
		c.Reconcile.StateFile = def.Reconcile.StateFile
	}
	if c.Reconcile.Schedule == "" {
		c.Reconcile.Schedule = def.Reconcile.Schedule
	}
	if c.Reference.Salt == "" {
		c.Reference.Salt = def.Reference.Salt
	}
	if c.Reference.MinLength <= 0 {
		c.Reference.MinLength = def.Reference.MinLength
	}
	if len(c.Options.Services) == 0 {
		c.Options = def.Options
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overlays secrets and deployment overrides from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Calendar.ID, "GOOGLE_CALENDAR_ID")
	set(&c.Calendar.ServiceAccount, "GOOGLE_SERVICE_ACCOUNT_JSON")
	set(&c.Calendar.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Calendar.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.Calendar.Account, "GOOGLE_ACCOUNT")

	set(&c.Notify.Push.AccessToken, "EXPO_ACCESS_TOKEN")
	if v, ok := lookup("EXPO_PUSH_TOKENS"); ok && v != "" {
		c.Notify.Push.Tokens = splitList(v)
	}

	set(&c.Notify.SMS.AccountSID, "TWILIO_ACCOUNT_SID")
	set(&c.Notify.SMS.AuthToken, "TWILIO_AUTH_TOKEN")
	set(&c.Notify.SMS.From, "TWILIO_FROM_NUMBER")
	set(&c.Notify.SMS.To, "OPERATOR_PHONE")

	set(&c.Notify.Email.Provider, "EMAIL_PROVIDER")
	set(&c.Notify.Email.FromAddress, "EMAIL_FROM_ADDRESS")
	set(&c.Notify.Email.SMTP.Host, "SMTP_HOST")
	set(&c.Notify.Email.SMTP.Username, "SMTP_USER")
	set(&c.Notify.Email.SMTP.Password, "SMTP_PASS")
	if v, ok := lookup("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Notify.Email.SMTP.Port = port
		}
	}
	set(&c.Notify.Email.SendGridAPIKey, "SENDGRID_API_KEY")
	if c.Notify.Email.FromAddress == "" {
		set(&c.Notify.Email.FromAddress, "SENDGRID_FROM_EMAIL")
	}

	set(&c.Notify.Webhook.URL, "SYNC_WEBHOOK_URL")
	set(&c.Notify.Webhook.Token, "SYNC_WEBHOOK_TOKEN")

	set(&c.Notify.CalDAV.Endpoint, "CALDAV_ENDPOINT")
	set(&c.Notify.CalDAV.Username, "CALDAV_USERNAME")
	set(&c.Notify.CalDAV.Password, "CALDAV_PASSWORD")
	set(&c.Notify.CalDAV.CalendarName, "CALDAV_CALENDAR_NAME")

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Listen = ":" + v
	}
}

// Validate checks the settings the core cannot run without.
func (c Config) Validate() error {
	if c.Calendar.ID == "" {
		return errors.New("calendar id is required (calendar.id or GOOGLE_CALENDAR_ID)")
	}
	if c.UTCOffsetMinutes < -12*60 || c.UTCOffsetMinutes > 14*60 {
		return fmt.Errorf("utc offset %d minutes is out of range", c.UTCOffsetMinutes)
	}
	if c.Hours.Start < 0 || c.Hours.End > 24 || c.Hours.Start >= c.Hours.End {
		return fmt.Errorf("invalid business hours %d-%d", c.Hours.Start, c.Hours.End)
	}
	for _, d := range c.AllowedDurations {
		if d <= 0 {
			return fmt.Errorf("allowed duration %d must be positive", d)
		}
	}
	for i, cl := range c.Closures {
		if cl.RRule == "" {
			return fmt.Errorf("closure %d is missing rrule", i)
		}
		if _, err := ParseClock(cl.Start); err != nil {
			return fmt.Errorf("closure %d: %w", i, err)
		}
		if cl.DurationMinutes <= 0 {
			return fmt.Errorf("closure %d duration must be positive", i)
		}
	}
	switch c.Notify.Email.Provider {
	case "", "smtp", "sendgrid":
	default:
		return fmt.Errorf("unknown email provider %q", c.Notify.Email.Provider)
	}
	return nil
}

// Zone is the fixed service zone.
func (c Config) Zone() *time.Location {
	return slot.NewZone(time.Duration(c.UTCOffsetMinutes) * time.Minute)
}

// Grid is the slot grid derived from business hours and slot length.
func (c Config) Grid() slot.Grid {
	return slot.Grid{
		StartHour: c.Hours.Start,
		EndHour:   c.Hours.End,
		Step:      time.Duration(c.SlotMinutes) * time.Minute,
	}
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
