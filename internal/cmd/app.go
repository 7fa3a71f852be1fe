package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/CoderDKai/oai-team-automation/internal/blacklist"
	"github.com/CoderDKai/oai-team-automation/internal/config"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/registrar"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/team"
	"github.com/CoderDKai/oai-team-automation/internal/token"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

// app bundles the loaded configuration with the collaborators built from it.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	http   *http.Client
}

// loadApp loads and validates the configuration and opens the run log.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var logger *logging.Logger
	if cfg.Logging.Enabled {
		rotation := logging.RotationConfig{MaxSizeMB: cfg.Logging.MaxSizeMB, MaxBackups: cfg.Logging.MaxBackups}
		logger, err = logging.NewLogger(cfg.Paths.Resolve(cfg.Logging.Dir), cfg.Logging.Level, rotation)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
	} else {
		logger = logging.NewWriterLogger(os.Stderr, logging.LevelWarn)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: cfg.HTTP.Timeout()},
	}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) openTracker() (*tracker.Tracker, error) {
	return tracker.Load(a.cfg.Paths.TrackerPath(), storage.Known,
		tracker.WithLogger(a.logger),
		tracker.WithLockTimeout(a.cfg.Tracker.LockTimeout()),
	)
}

func (a *app) openTeams() (*team.Collection, error) {
	teams, err := team.Load(a.cfg.Paths.Team())
	if err != nil {
		return nil, fmt.Errorf("failed to load team file %s: %w", a.cfg.Paths.Team(), err)
	}
	return teams, nil
}

func (a *app) openBlacklist() (*blacklist.List, error) {
	return blacklist.Load(a.cfg.Paths.Blacklist(), a.cfg.Provisioning.Blacklist...)
}

// providers builds a client for every enabled provider. The cpa wait for a
// new account follows the poll section.
func (a *app) providers() []storage.Provider {
	providers := storage.FromSpecs(a.cfg.Providers.Specs(), a.http, a.cfg.HTTP.UserAgent)
	for _, p := range providers {
		if cpa, ok := p.(*storage.CPAClient); ok {
			opts := a.cfg.Poll.Options("cpa-visibility")
			opts.Logger = a.logger
			cpa.Visibility = opts
		}
	}
	return providers
}

func (a *app) reconciler() *storage.Reconciler {
	return storage.NewReconciler(a.providers(), storage.WithLogger(a.logger))
}

func (a *app) tokenManager(teams *team.Collection) *token.Manager {
	r := token.NewHTTPRefresher(a.cfg.Token.URL, a.http)
	r.ClientID = a.cfg.Token.ClientID
	r.ClientSecret = a.cfg.Token.ClientSecret
	r.Audience = a.cfg.Token.Audience
	r.Scope = a.cfg.Token.Scope
	r.UserAgent = a.cfg.HTTP.UserAgent
	return token.NewManager(r, teams, token.WithBuffer(a.cfg.Token.Buffer()), token.WithLogger(a.logger))
}

func (a *app) registrar() *registrar.Command {
	rc := registrar.New(a.cfg.Registrar.Command, a.cfg.Registrar.Args, a.logger)
	rc.Dir = a.cfg.Registrar.Dir
	rc.Timeout = a.cfg.Registrar.Timeout()
	return rc
}

// isTerminal reports whether w is an interactive terminal, which decides
// between styled and plain output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// withShutdown maps the first SIGINT or SIGTERM to graceful, which lets the
// account in flight reach its checkpoint, and a second one to cancelling
// the returned context. The returned stop function releases the handler.
func withShutdown(parent context.Context, graceful func(), notice io.Writer) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(notice, "Stopping after the current account (press Ctrl+C again to abort)...")
			graceful()
		case <-done:
			return
		}
		select {
		case <-sigChan:
			fmt.Fprintln(notice, "Aborting.")
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}
