package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	activityinadapter "mindmosaic/internal/modules/activity/adapter/in"
	activityoutadapter "mindmosaic/internal/modules/activity/adapter/out"
	activityin "mindmosaic/internal/modules/activity/port/in"
	activityservice "mindmosaic/internal/modules/activity/service"
	activityusecase "mindmosaic/internal/modules/activity/usecase"
	ledgerinadapter "mindmosaic/internal/modules/ledger/adapter/in"
	ledgeroutadapter "mindmosaic/internal/modules/ledger/adapter/out"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	ledgerin "mindmosaic/internal/modules/ledger/port/in"
	ledgerout "mindmosaic/internal/modules/ledger/port/out"
	ledgerservice "mindmosaic/internal/modules/ledger/service"
	ledgerusecase "mindmosaic/internal/modules/ledger/usecase"
	"mindmosaic/internal/platform/auth"
	"mindmosaic/internal/platform/clock"
	"mindmosaic/internal/platform/config"
	"mindmosaic/internal/platform/id"
	"mindmosaic/internal/platform/tx"
	uiapp "mindmosaic/internal/ui/app"
)

type App struct {
	Config      config.Config
	UserID      string
	ActivityCLI activityinadapter.CLIHandler
	ActivityTUI activityinadapter.TUIHandler
	LedgerCLI   ledgerinadapter.CLIHandler

	activity activityin.Usecase
	closers  []func() error
}

func New(cfg config.Config, log logrus.FieldLogger) (*App, error) {
	clk := clock.SystemClock{Location: cfg.Location}
	verifier, err := newVerifier(cfg, clk)
	if err != nil {
		return nil, err
	}
	identity := activityoutadapter.NewTokenIdentity(cfg.Token, verifier, clk)

	app := &App{Config: cfg, UserID: identity.UserID(context.Background())}
	ledgerUC, err := app.newLedger(cfg, log)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}

	catalog := activityservice.NewCatalogService(activityoutadapter.NewYAMLCatalog(cfg.CatalogPath))
	app.activity = activityusecase.NewInteractor(activityusecase.Dependencies{
		Catalog:      catalog,
		Ledger:       ledgerUC,
		Identity:     identity,
		Clock:        clk,
		IDs:          id.UUID{},
		Log:          log.WithField("component", "activity"),
		WriteTimeout: cfg.WriteTimeout,
	})
	app.ActivityCLI = activityinadapter.NewCLIHandler(app.activity)
	app.ActivityTUI = activityinadapter.NewTUIHandler(app.activity)
	app.LedgerCLI = ledgerinadapter.NewCLIHandler(ledgerUC)
	return app, nil
}

func (a *App) newLedger(cfg config.Config, log logrus.FieldLogger) (ledgerin.Usecase, error) {
	var (
		store   ledgerout.LedgerStore
		history ledgerout.ActivityLog
		txm     tx.Manager = tx.NoopManager{}
	)
	switch cfg.Store {
	case config.StoreRemote:
		remote := ledgeroutadapter.NewRemoteLedgerStore(cfg.StoreURL, cfg.Token, &http.Client{Timeout: cfg.WriteTimeout})
		store, history = remote, remote
	default:
		local, err := ledgeroutadapter.NewSQLiteLedgerStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		a.closers = append(a.closers, local.Close)
		store, history = local, local
		txm = tx.NewSQLManager(local.DB())
	}

	var journal ledgerout.ActivityLog
	if cfg.JournalDir != "" {
		journal = ledgeroutadapter.NewVaultJournal(cfg.JournalDir)
	}
	svc := ledgerservice.NewLedgerService(store, history, journal, txm, log.WithField("component", "ledger"))
	return ledgerusecase.NewInteractor(svc), nil
}

// Close waits for pending ledger writes, then releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.activity != nil {
		if err := a.activity.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush ledger writes: %w", err))
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Server is the ledger document store exposed over HTTP.
type Server struct {
	Handler http.Handler
	close   func() error
}

func (s Server) Close() error { return s.close() }

// NewServer always serves the local SQLite ledger; the remote store setting
// only applies to clients.
func NewServer(cfg config.Config, log logrus.FieldLogger) (Server, error) {
	clk := clock.SystemClock{Location: cfg.Location}
	verifier, err := newVerifier(cfg, clk)
	if err != nil {
		return Server{}, err
	}
	if verifier == nil {
		log.Warn("jwt-secret not set: the store accepts unauthenticated requests")
	}
	store, err := ledgeroutadapter.NewSQLiteLedgerStore(cfg.DBPath)
	if err != nil {
		return Server{}, fmt.Errorf("open ledger store: %w", err)
	}
	var journal ledgerout.ActivityLog
	if cfg.JournalDir != "" {
		journal = ledgeroutadapter.NewVaultJournal(cfg.JournalDir)
	}
	svc := ledgerservice.NewLedgerService(store, store, journal, tx.NewSQLManager(store.DB()), log.WithField("component", "ledger"))
	handler := ledgerinadapter.NewHTTPHandler(ledgerusecase.NewInteractor(svc), ledgerinadapter.HTTPConfig{
		Verifier: verifier,
		Logger:   log.WithField("component", "http"),
	})
	return Server{Handler: handler, close: store.Close}, nil
}

// NewVerifier returns the configured token verifier, or nil without a secret.
func NewVerifier(cfg config.Config) (*auth.Verifier, error) {
	return newVerifier(cfg, clock.SystemClock{Location: cfg.Location})
}

func newVerifier(cfg config.Config, clk clock.Clock) (*auth.Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	v, err := auth.NewVerifier(cfg.JWTSecret, clk.Now)
	if err != nil {
		return nil, fmt.Errorf("configure token verifier: %w", err)
	}
	return &v, nil
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.UserID, app.ActivityTUI, historyBridge{cli: app.LedgerCLI, user: app.UserID}, app.Config.TickInterval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

type historyBridge struct {
	cli  ledgerinadapter.CLIHandler
	user string
}

func (b historyBridge) History(ctx context.Context, limit int) ([]ledgerdto.LogEntryOutput, error) {
	return b.cli.History(ctx, b.user, limit)
}
