package provision

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

// Outcome is the result of processing one account.
type Outcome struct {
	Team     string
	Email    string
	Password string
	// Status is the account's invitation status after processing.
	Status tracker.Status
	// BackendID is the account id in the first provider that stores it.
	BackendID string
	// BackendIDs maps provider name to account id for every provider that
	// stores the account.
	BackendIDs map[string]string
	// Err explains why the account did not reach completed.
	Err error
}

// Completed reports whether the account reached completed.
func (o Outcome) Completed() bool {
	return o.Status == tracker.StatusCompleted
}

// Retryable reports whether a later run will pick the account up again:
// it failed, but neither its status nor its error is absorbing.
func (o Outcome) Retryable() bool {
	return o.Err != nil && !o.Status.Terminal() && !errors.IsTerminal(o.Err)
}

// Delay bounds the randomised pause between two accounts.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// Machine drives tracked accounts through their lifecycle. Every status or
// storage change is saved before the next step starts, so an interrupted
// run resumes from the last saved checkpoint.
type Machine struct {
	run       *Run
	registrar Registrar
	blacklist Blacklist
	tokens    TokenEnsurer
	storage   Storage
	bus       *event.Bus
	logger    *logging.Logger
	delay     Delay
	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func(n int64) int64
	stopping  atomic.Bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithTokens enables the team token check before a team's accounts.
func WithTokens(t TokenEnsurer) Option {
	return func(m *Machine) { m.tokens = t }
}

// WithStorage enables storage reconciliation.
func WithStorage(s Storage) Option {
	return func(m *Machine) { m.storage = s }
}

// WithBus publishes lifecycle events on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Machine) { m.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithDelay sets the pause between accounts.
func WithDelay(d Delay) Option {
	return func(m *Machine) { m.delay = d }
}

// WithSleep replaces the function used to wait between accounts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) { m.sleep = sleep }
}

// NewMachine creates a Machine for run. blacklist may be nil, and so may
// run when the machine is only used for RegisterList.
func NewMachine(run *Run, registrar Registrar, blacklist Blacklist, opts ...Option) *Machine {
	m := &Machine{
		run:       run,
		registrar: registrar,
		blacklist: blacklist,
		logger:    logging.NopLogger(),
		sleep:     sleepContext,
		jitter:    rand.Int64N,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Shutdown asks the machine to stop after the account in flight has been
// checkpointed. It is safe to call from a signal handler goroutine.
func (m *Machine) Shutdown() {
	m.stopping.Store(true)
}

// ShutdownRequested reports whether Shutdown has been called.
func (m *Machine) ShutdownRequested() bool {
	return m.stopping.Load()
}

// ProcessAll processes every team in the tracker in name order. Persistence
// failures are joined into the returned error; outcomes are returned for
// everything that was attempted.
func (m *Machine) ProcessAll(ctx context.Context) ([]Outcome, error) {
	teams := m.run.Tracker.Teams()

	var all []Outcome
	var errs []error
	for i, name := range teams {
		if m.ShutdownRequested() {
			m.logger.Info("shutdown requested, remaining teams skipped", "remaining", len(teams)-i)
			if !errors.Is(errors.Join(errs...), errors.ErrShutdown) {
				errs = append(errs, fmt.Errorf("%d team(s) not started: %w", len(teams)-i, errors.ErrShutdown))
			}
			break
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outcomes, err := m.ProcessTeam(ctx, name)
		all = append(all, outcomes...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}

// ProcessTeam brings the team's token up to date and then advances each
// account that is neither completed nor in an absorbing failure state.
//
// One account's failure never stops the others. The returned error joins
// the persistence failures of the team; outcomes are always returned.
func (m *Machine) ProcessTeam(ctx context.Context, name string) ([]Outcome, error) {
	log := m.logger.WithTeam(name)
	if _, ok := m.run.Tracker.Document().Teams[name]; !ok {
		return nil, fmt.Errorf("%s: %w", name, errors.ErrTeamNotFound)
	}

	m.ensureToken(ctx, name)

	var pending []*tracker.Account
	for _, a := range m.run.Tracker.Incomplete(name) {
		if a.Status.Terminal() {
			log.Debug("account in absorbing state, skipped", "email", a.Email, "status", string(a.Status))
			continue
		}
		pending = append(pending, a)
	}
	log.Info("processing team", "pending", len(pending), "tracked", m.run.Tracker.Count(name))
	m.bus.Publish(event.NewTeamStartedEvent(name, len(pending)))

	var outcomes []Outcome
	var errs []error
	for i, a := range pending {
		if m.ShutdownRequested() {
			log.Info("shutdown requested, stopping before next account", "remaining", len(pending)-i)
			m.bus.Publish(event.NewShutdownEvent(name, len(pending)-i))
			errs = append(errs, fmt.Errorf("%s: %d account(s) left: %w", name, len(pending)-i, errors.ErrShutdown))
			break
		}
		if i > 0 {
			if err := m.pause(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}

		out := m.processAccount(ctx, name, a)
		outcomes = append(outcomes, out)
		m.bus.Publish(event.NewAccountFinishedEvent(name, out.Email, string(out.Status), out.Err))

		var perr *errors.PersistenceError
		if errors.As(out.Err, &perr) {
			errs = append(errs, out.Err)
		}
	}

	m.run.record(name, outcomes)
	completed, failed := 0, 0
	for _, o := range outcomes {
		if o.Completed() {
			completed++
		} else {
			failed++
		}
	}
	log.Info("team processed", "processed", len(outcomes), "completed", completed, "not_completed", failed)
	m.bus.Publish(event.NewTeamFinishedEvent(name, len(outcomes), completed, failed))

	return outcomes, errors.Join(errs...)
}

func (m *Machine) ensureToken(ctx context.Context, name string) {
	if m.tokens == nil {
		return
	}
	log := m.logger.WithTeam(name)
	t, ok := m.run.Team(name)
	if !ok {
		log.Warn("team missing from team file, token check skipped")
		return
	}
	outcome, err := m.tokens.Ensure(ctx, t)
	m.bus.Publish(event.NewTokenCheckedEvent(name, string(outcome), err))
	if err != nil {
		log.Warn("token check failed, continuing with the existing credential", "outcome", string(outcome), "error", err.Error())
	}
}

func (m *Machine) processAccount(ctx context.Context, teamName string, a *tracker.Account) Outcome {
	log := m.logger.WithTeam(teamName).WithAccount(a.Email)
	out := Outcome{Team: teamName, Email: a.Email, Password: a.Password}
	finish := func(err error) Outcome {
		out.Status = a.Status
		out.Err = err
		return out
	}
	fail := func(step string, err error) Outcome {
		return finish(errors.NewProvisionError(step+" failed", err).WithAccount(teamName, a.Email).WithStep(step))
	}

	var mode Mode
	switch a.Status {
	case tracker.StatusInvited, "":
		if m.blacklist != nil && m.blacklist.IsBlacklisted(a.Email) {
			log.Warn("email domain is blacklisted")
			if err := m.transition(ctx, teamName, a, tracker.StatusDomainBlacklisted); err != nil {
				return fail("blacklist", err)
			}
			return finish(fmt.Errorf("%s: %w", domainOf(a.Email), errors.ErrDomainBlacklisted))
		}
		if err := m.transition(ctx, teamName, a, tracker.StatusProcessing); err != nil {
			return fail("checkpoint", err)
		}
		mode = ModeRegister
	case tracker.StatusProcessing:
		log.Info("resuming interrupted registration")
		mode = ModeRegister
	case tracker.StatusRegistered, tracker.StatusTeamOwner:
		mode = ModeAuthorize
	case tracker.StatusAuthorized:
	default:
		log.Warn("unknown invitation status, account skipped", "status", string(a.Status))
		return finish(errors.NewValidationError("unknown invitation status").
			WithField("invitation_status").WithValue(string(a.Status)))
	}

	var session map[string]any
	if mode != "" {
		resp, err := m.registrar.RegisterAndAuthorize(ctx, Request{
			Team:     teamName,
			Email:    a.Email,
			Password: a.Password,
			Mode:     mode,
		})
		if err != nil {
			if errors.IsTransient(err) {
				log.Warn("registrar call failed, will retry next run", "mode", string(mode), "error", err.Error())
			} else {
				log.Error("registrar could not be run, will retry next run", "mode", string(mode), "error", err.Error())
			}
			return fail(string(mode), fmt.Errorf("%w: %w", errors.ErrRegistrationFailed, err))
		}

		switch resp.Status {
		case RegisterSuccess:
			session = resp.Session
		case RegisterDomainUnsupported:
			m.blacklistDomain(log, a.Email)
			if err := m.transition(ctx, teamName, a, tracker.StatusDomainBlacklisted); err != nil {
				return fail(string(mode), err)
			}
			return finish(fmt.Errorf("%s: %w", domainOf(a.Email), errors.ErrDomainBlacklisted))
		case RegisterRejected:
			log.Error("registration rejected", "message", resp.Message)
			if err := m.transition(ctx, teamName, a, tracker.StatusFailed); err != nil {
				return fail(string(mode), err)
			}
			return finish(fmt.Errorf("%w: %s", errors.ErrRegistrationRejected, resp.Message))
		default:
			log.Warn("registration failed, will retry next run", "mode", string(mode), "status", string(resp.Status), "message", resp.Message)
			return fail(string(mode), fmt.Errorf("%w: %s", errors.ErrRegistrationFailed, resp.Message))
		}

		if mode == ModeRegister {
			if err := m.transition(ctx, teamName, a, tracker.StatusRegistered); err != nil {
				return fail("register", err)
			}
		}
		if err := m.transition(ctx, teamName, a, tracker.StatusAuthorized); err != nil {
			return fail("authorize", err)
		}
	}

	ids, err := m.reconcile(ctx, teamName, a, session)
	if err != nil {
		return fail("storage", err)
	}
	out.BackendIDs = ids
	if m.storage != nil {
		for _, p := range m.storage.Providers() {
			if id, ok := ids[p]; ok {
				out.BackendID = id
				break
			}
		}
	}

	if err := m.transition(ctx, teamName, a, tracker.StatusCompleted); err != nil {
		return fail("complete", err)
	}
	return finish(nil)
}

// reconcile mirrors the account into every enabled provider and saves each
// provider's entry on its own. Without a session nothing can be created, so
// providers are only checked and an entry already marked stored is kept.
func (m *Machine) reconcile(ctx context.Context, teamName string, a *tracker.Account, session map[string]any) (map[string]string, error) {
	if m.storage == nil {
		return nil, nil
	}
	log := m.logger.WithTeam(teamName).WithAccount(a.Email)

	var results []storage.Result
	if session == nil {
		results = m.storage.Status(ctx, a.Email)
	} else {
		results = m.storage.Reconcile(ctx, a.Email, session)
	}

	ids := make(map[string]string)
	for _, res := range results {
		if session == nil && !res.Stored && a.Stored(res.Provider) {
			ids[res.Provider] = a.Storage[res.Provider].AccountID
			continue
		}

		entry := storageEntry(res)
		m.run.Tracker.SetStorage(teamName, a.Email, res.Provider, entry)
		if err := m.save(ctx); err != nil {
			return ids, err
		}
		log.Debug("storage entry saved", "provider", res.Provider, "status", string(entry.Status), "account_id", entry.AccountID)
		m.bus.Publish(event.NewStorageUpdatedEvent(teamName, a.Email, res.Provider, string(entry.Status), entry.AccountID))

		if res.Stored {
			ids[res.Provider] = res.AccountID
		}
	}
	return ids, nil
}

func storageEntry(res storage.Result) tracker.StorageEntry {
	entry := tracker.StorageEntry{Status: tracker.StorageNotStored}
	switch {
	case res.Stored:
		entry.Status = tracker.StorageStored
		entry.AccountID = res.AccountID
	case res.Err != nil:
		entry.Status = tracker.StorageError
	}
	if !res.CheckedAt.IsZero() {
		entry.LastCheck = res.CheckedAt.Format(tracker.TimeLayout)
	}
	return entry
}

// transition sets the account's status and saves the tracker. Setting the
// current status saves nothing.
func (m *Machine) transition(ctx context.Context, teamName string, a *tracker.Account, to tracker.Status) error {
	from := a.Status
	if from == to {
		return nil
	}
	m.run.Tracker.SetStatus(teamName, a.Email, to)
	if err := m.save(ctx); err != nil {
		m.logger.WithTeam(teamName).WithAccount(a.Email).Error("status change not saved",
			"from", string(from), "to", string(to), "error", err.Error())
		return err
	}
	m.logger.WithTeam(teamName).WithAccount(a.Email).Info("status changed", "from", string(from), "to", string(to))
	m.bus.Publish(event.NewStatusChangedEvent(teamName, a.Email, string(from), string(to)))
	return nil
}

// save writes the tracker even when ctx has been cancelled, so a hard stop
// never leaves a checkpoint half taken. The lock timeout still bounds it,
// and a retryable failure such as a lock timeout is retried once.
func (m *Machine) save(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	err := m.run.Tracker.Save(ctx)
	if err != nil && errors.IsRetryable(err) {
		m.logger.Warn("tracker save failed, retrying once", "error", err.Error())
		err = m.run.Tracker.Save(ctx)
	}
	return err
}

func (m *Machine) blacklistDomain(log *logging.Logger, email string) {
	if m.blacklist == nil {
		return
	}
	domain := domainOf(email)
	if err := m.blacklist.Add(domain); err != nil {
		log.Error("could not blacklist domain", "domain", domain, "error", err.Error())
		return
	}
	log.Warn("domain not supported, blacklisted", "domain", domain)
}

func (m *Machine) pause(ctx context.Context) error {
	d := m.delay.Min
	if span := m.delay.Max - m.delay.Min; span > 0 {
		d += time.Duration(m.jitter(int64(span) + 1))
	}
	if d <= 0 {
		return nil
	}
	m.logger.Debug("waiting before next account", "delay", d.String())
	return m.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func domainOf(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return strings.ToLower(email[at+1:])
	}
	return ""
}
