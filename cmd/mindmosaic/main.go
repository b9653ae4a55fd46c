package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mindmosaic/internal/bootstrap"
	activitydto "mindmosaic/internal/modules/activity/dto"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	"mindmosaic/internal/platform/config"
	"mindmosaic/internal/platform/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(os.Stderr, "warning: load .env: %v\n", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cli struct {
	v   *viper.Viper
	cfg config.Config
	log *logrus.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	c := &cli{v: v}
	var configFile string

	root := &cobra.Command{
		Use:           "mindmosaic",
		Short:         "Mindful activities with points and daily streaks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd.ErrOrStderr(), configFile)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default <data-dir>/config.yaml when present)")
	flags.String("data-dir", "", "state directory")
	flags.String("db-path", "", "SQLite ledger file (default <data-dir>/mindmosaic.db)")
	flags.String("catalog", "", "activity catalog YAML (default built-in)")
	flags.String("journal-dir", "", "mirror completions as markdown notes into this directory")
	flags.String("store", "", "ledger store: sqlite|remote")
	flags.String("store-url", "", "remote ledger store base URL")
	flags.String("token", "", "bearer token identifying the user")
	flags.String("jwt-secret", "", "HS256 secret for verifying and issuing tokens")
	flags.String("timezone", "", "IANA zone used for calendar days")
	flags.Duration("write-timeout", 0, "deadline of each ledger write")
	flags.Duration("tick-interval", 0, "countdown refresh interval")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: text|json")

	config.SetDefaults(v)
	v.SetEnvPrefix("MINDMOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{
		"data-dir", "db-path", "catalog", "journal-dir", "store", "store-url", "token",
		"jwt-secret", "timezone", "write-timeout", "tick-interval", "log-level", "log-format",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(c.catalogCmd())
	root.AddCommand(c.activityCmd())
	root.AddCommand(c.ledgerCmd())
	root.AddCommand(c.serveCmd())
	root.AddCommand(c.tokenCmd())
	root.AddCommand(c.tuiCmd())
	return root
}

// load resolves configuration once flags are parsed.
func (c *cli) load(stderr io.Writer, configFile string) error {
	if configFile == "" {
		candidate := filepath.Join(c.v.GetString("data-dir"), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		c.v.SetConfigFile(configFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logger
	return nil
}

func (c *cli) withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	app, err := bootstrap.New(c.cfg, c.log)
	if err != nil {
		return err
	}
	runErr := fn(app)
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.WriteTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		c.log.WithError(err).Warn("shutdown incomplete")
	}
	return runErr
}

func (c *cli) catalogCmd() *cobra.Command {
	catalog := &cobra.Command{Use: "catalog", Short: "Browse the activity catalog"}

	moods := &cobra.Command{
		Use:   "moods",
		Short: "List mood tags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				out, err := app.ActivityCLI.Moods(cmd.Context())
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Mood", "Activities"})
				for _, m := range out {
					tw.AppendRow(table.Row{m.Tag, m.Activities})
				}
				tw.Render()
				return nil
			})
		},
	}

	var mood string
	list := &cobra.Command{
		Use:   "list",
		Short: "List activities, optionally for one mood",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				tags := []string{mood}
				if mood == "" {
					moods, err := app.ActivityCLI.Moods(cmd.Context())
					if err != nil {
						return err
					}
					tags = tags[:0]
					for _, m := range moods {
						tags = append(tags, m.Tag)
					}
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Mood", "Title", "Points", "Duration"})
				for _, tag := range tags {
					activities, err := app.ActivityCLI.Activities(cmd.Context(), tag)
					if err != nil {
						return err
					}
					for _, a := range activities {
						tw.AppendRow(table.Row{a.ID, a.Mood, a.Title, a.PointValue, activitydto.FormatRemaining(a.DurationSeconds)})
					}
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&mood, "mood", "", "mood tag (unknown tags fall back to relaxed)")

	catalog.AddCommand(moods, list)
	return catalog
}

func (c *cli) activityCmd() *cobra.Command {
	activity := &cobra.Command{Use: "activity", Short: "Run timed activities"}

	var mood, activityID string
	run := &cobra.Command{
		Use:   "run",
		Short: "Run an activity countdown; Ctrl-C stops it early without points",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, func(app *bootstrap.App) error {
				id := activityID
				if id == "" {
					if mood == "" {
						return fmt.Errorf("--activity or --mood is required")
					}
					activities, err := app.ActivityCLI.Activities(ctx, mood)
					if err != nil {
						return err
					}
					if len(activities) == 0 {
						return fmt.Errorf("no activities for mood %q", mood)
					}
					id = activities[0].ID
				}
				w := cmd.OutOrStdout()
				unsubscribe := app.ActivityCLI.Subscribe(func(e activitydto.TransitionEvent) {
					c.log.WithFields(logrus.Fields{
						"session_id":  e.SessionID,
						"activity_id": e.Activity.ID,
						"from":        e.From,
						"to":          e.To,
						"remaining":   e.RemainingSeconds,
					}).Debug("session transition")
				})
				defer unsubscribe()
				out, err := app.ActivityCLI.Run(ctx, id, c.cfg.TickInterval, func(s activitydto.SessionOutput) {
					if s.Activity != nil {
						_, _ = fmt.Fprintf(w, "\r%s  %s remaining ", s.Activity.Title, activitydto.FormatRemaining(s.RemainingSeconds))
					}
				})
				_, _ = fmt.Fprintln(w)
				if err != nil {
					return err
				}
				switch out.Outcome {
				case activitydto.OutcomeCompleted:
					_, _ = fmt.Fprintf(w, "Congratulations! You earned %d points.\n", out.Awarded)
				case activitydto.OutcomeAborted:
					_, _ = fmt.Fprintln(w, "Stopped early. Complete the full duration to earn points.")
				}
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.WriteTimeout)
				defer cancel()
				if err := app.ActivityCLI.Close(flushCtx); err != nil {
					return err
				}
				snapshot, err := app.LedgerCLI.Show(flushCtx, app.UserID)
				if err != nil {
					return err
				}
				printSnapshot(w, snapshot)
				return nil
			})
		},
	}
	run.Flags().StringVar(&mood, "mood", "", "mood tag; the first activity is used when --activity is empty")
	run.Flags().StringVar(&activityID, "activity", "", "activity id (see catalog list)")

	activity.AddCommand(run)
	return activity
}

func (c *cli) ledgerCmd() *cobra.Command {
	ledger := &cobra.Command{Use: "ledger", Short: "Inspect points and streaks"}
	var user string
	ledger.PersistentFlags().StringVar(&user, "user", "", "user id (default: token subject)")
	userOf := func(app *bootstrap.App) string {
		if user != "" {
			return user
		}
		return app.UserID
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the current points and streak",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				snapshot, err := app.LedgerCLI.Show(cmd.Context(), userOf(app))
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snapshot)
				return nil
			})
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List recent completions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				entries, err := app.LedgerCLI.History(cmd.Context(), userOf(app), limit)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Completed", "Activity", "Mood", "Points"})
				for _, e := range entries {
					tw.AppendRow(table.Row{e.CompletedAt.In(c.cfg.Location).Format("2006-01-02 15:04"), e.Title, e.Mood, e.Points})
				}
				tw.Render()
				return nil
			})
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum entries")

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print the snapshot whenever it changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				updates, err := app.LedgerCLI.Watch(cmd.Context(), userOf(app))
				if err != nil {
					return err
				}
				for snapshot := range updates {
					printSnapshot(cmd.OutOrStdout(), snapshot)
				}
				return nil
			})
		},
	}

	ledger.AddCommand(show, history, watch)
	return ledger
}

func (c *cli) serveCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger document store over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			server, err := bootstrap.NewServer(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := server.Close(); err != nil {
					c.log.WithError(err).Warn("close ledger store")
				}
			}()
			addr := c.v.GetString("listen")
			srv := &http.Server{Addr: addr, Handler: server.Handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
			c.log.WithField("addr", addr).Info("serving ledger store (OpenAPI at /v1/openapi.json)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	serve.Flags().String("listen", "", "listen address")
	_ = c.v.BindPFlag("listen", serve.Flags().Lookup("listen"))
	return serve
}

func (c *cli) tokenCmd() *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Manage bearer tokens"}
	var user string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for a user with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			verifier, err := bootstrap.NewVerifier(c.cfg)
			if err != nil {
				return err
			}
			if verifier == nil {
				return fmt.Errorf("jwt-secret is required to issue tokens")
			}
			signed, err := verifier.Issue(user, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	issue.Flags().StringVar(&user, "user", "", "user id (token subject)")
	issue.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime; 0 for no expiry")
	_ = issue.MarkFlagRequired("user")
	token.AddCommand(issue)
	return token
}

func (c *cli) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(app *bootstrap.App) error {
				return bootstrap.RunTUI(app)
			})
		},
	}
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	return tw
}

func printSnapshot(w io.Writer, s ledgerdto.SnapshotOutput) {
	last := "never"
	if s.LastCompletedDate != "" {
		last = s.LastCompletedDate
	}
	_, _ = fmt.Fprintf(w, "points: %d  streak: %d  last day: %s\n", s.Points, s.Streak, last)
	if a := s.LastActivityCompleted; a != nil {
		_, _ = fmt.Fprintf(w, "last activity: %s (+%d) at %s\n", a.Title, a.Points, a.CompletedAt.Format(time.RFC3339))
	}
}
