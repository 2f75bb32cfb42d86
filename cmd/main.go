package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"hakobite/internal/api"
	"hakobite/internal/google"
	"hakobite/internal/slot"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "hakobite",
		Usage: "Care-taxi booking service backed by Google Calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to the YAML configuration file.",
				EnvVars: []string{"HAKOBITE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			availabilityCommand(),
			reconcileCommand(),
			authCommand(),
			calendarsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the booking HTTP API and the reconciliation schedule.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, logger, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialise service: %w", err)
			}

			scheduler := cron.New()
			if _, err := a.sweeper.Schedule(ctx, scheduler, cfg.Reconcile.Schedule); err != nil {
				return err
			}
			scheduler.Start()
			defer func() { <-scheduler.Stop().Done() }()

			handler := api.NewHandler(logger, a.engine, a.coordinator, a.publicConfig(), cfg.Zone())
			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           api.NewRouter(handler, logger, api.RouterOptions{AllowedOrigins: cfg.CORSOrigins, AccessLog: os.Stdout}),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server listening", "addr", srv.Addr, "calendarID", cfg.Calendar.ID)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		},
	}
}

func availabilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "availability",
		Usage: "Print the slot grid with statuses.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD). Defaults to today."},
			&cli.IntFlag{Name: "days", Value: 1, Usage: "Number of days to show."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			a, err := buildApp(c.Context, logger, cfg)
			if err != nil {
				return err
			}

			zone := cfg.Zone()
			from := slot.StartOfDay(time.Now(), zone)
			if v := c.String("from"); v != "" {
				if from, err = time.ParseInLocation(time.DateOnly, v, zone); err != nil {
					return fmt.Errorf("invalid --from %q: %w", v, err)
				}
			}
			days := c.Int("days")
			if days < 1 {
				days = 1
			}

			window, err := a.engine.Availability(c.Context, from, from.AddDate(0, 0, days-1))
			if err != nil {
				return fmt.Errorf("availability unknown: %w", err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tSTART\tEND\tSTATUS")
			for _, s := range window.Slots {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Start.Format("2006-01-02 Mon"), s.Start.Format("15:04"), s.End.Format("15:04"), s.Status)
			}
			if window.Clamped {
				fmt.Fprintln(tw, "(window was clamped to the booking horizon)")
			}
			return tw.Flush()
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Settle calendar writes whose outcome was unknown.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run a single sweep and exit."},
			&cli.BoolFlag{Name: "list", Usage: "Print the ledger and exit."},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, logger, cfg)
			if err != nil {
				return err
			}

			if c.Bool("list") {
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "EVENT\tSTATUS\tINTERVAL\tNAME\tPHONE\tFAILED AT")
				for _, e := range a.ledger.Entries() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.EventID, e.Status, e.Interval, e.Name, e.Phone, e.FailedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			}

			if c.Bool("once") {
				logger.Info("Running a single reconciliation sweep.")
				if _, err := a.sweeper.Sweep(ctx); err != nil {
					return fmt.Errorf("reconciliation sweep failed: %w", err)
				}
				return nil
			}

			scheduler := cron.New()
			if _, err := a.sweeper.Schedule(ctx, scheduler, cfg.Reconcile.Schedule); err != nil {
				return err
			}
			logger.Info("Starting reconciliation schedule.", "schedule", cfg.Reconcile.Schedule)
			scheduler.Start()
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'default', 'office'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				accountName = "default"
			}
			tokenFile := google.TokenFile(accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars the configured credentials can see.",
		Action: func(c *cli.Context) error {
			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			cal, err := newCalendarClient(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			ids, err := cal.ListCalendars(c.Context)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
