// Package tracker is the durable store of every team's tracked accounts.
//
// The document is loaded once per run, upgraded in memory to the canonical
// shape, mutated through the accessors below and written back with
// [Tracker.Save] after every state transition. Save is lock-protected and
// atomic, so concurrent processes never observe a half-written document and
// a failed save leaves the previous one intact.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/persist"
)

// Tracker owns one loaded tracker document.
type Tracker struct {
	file      *persist.File
	providers []string
	now       func() time.Time
	logger    *logging.Logger
	readOnly  bool

	doc    *Document
	report UpgradeReport
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithReadOnly loads the tracker for inspection: a corrupt file is not
// copied aside and Save is refused.
func WithReadOnly() Option {
	return func(t *Tracker) { t.readOnly = true }
}

// WithLockTimeout bounds lock acquisition in Save.
func WithLockTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.file.LockTimeout = d }
}

// Load reads and upgrades the tracker at path. providers names every known
// storage provider; each account ends up with an entry for all of them.
//
// A missing file yields an empty document. An unparsable file is copied to
// <path>.corrupt-<timestamp>, logged, and replaced by an empty document in
// memory. Only unreadable files are returned as errors.
func Load(path string, providers []string, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		file:      persist.NewFile(path),
		providers: append([]string(nil), providers...),
		now:       time.Now,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	data, err := t.file.Read()
	switch {
	case errors.Is(err, errors.ErrNotFound):
		t.doc = emptyDocument()
		return t, nil
	case err != nil:
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.logger.Warn("tracker is not valid JSON, starting empty", "path", path, "error", err.Error())
		if t.readOnly {
			t.doc = emptyDocument()
			return t, nil
		}
		if backup, berr := t.file.Backup(".corrupt-" + t.now().Format("20060102-150405")); berr == nil {
			t.logger.Warn("corrupt tracker preserved", "backup", backup)
		} else {
			t.logger.Error("could not preserve corrupt tracker", "error", berr.Error())
		}
		t.doc = emptyDocument()
		return t, nil
	}

	t.doc, t.report = Upgrade(raw, t.providers)
	if t.report.Changed() {
		t.logger.Info("tracker upgraded in memory",
			"status_migrated", t.report.StatusMigrated,
			"status_initialized", t.report.StatusInitialized,
			"storage_added", t.report.StorageAdded,
			"storage_fixed", t.report.StorageFixed,
			"dropped", t.report.Dropped,
		)
	}
	return t, nil
}

// Path returns the document path.
func (t *Tracker) Path() string {
	return t.file.Path
}

// Providers returns the known provider names.
func (t *Tracker) Providers() []string {
	return t.providers
}

// Document returns the in-memory document.
func (t *Tracker) Document() *Document {
	return t.doc
}

// UpgradeReport returns what Load changed while upgrading.
func (t *Tracker) UpgradeReport() UpgradeReport {
	return t.report
}

// Teams returns the team names in sorted order.
func (t *Tracker) Teams() []string {
	names := make([]string, 0, len(t.doc.Teams))
	for name := range t.doc.Teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Accounts returns the team's accounts in document order.
func (t *Tracker) Accounts(team string) []*Account {
	return t.doc.Teams[team]
}

// Count returns the number of accounts tracked for team.
func (t *Tracker) Count(team string) int {
	return len(t.doc.Teams[team])
}

// Find returns the account with the given email. Emails match exactly.
func (t *Tracker) Find(team, email string) (*Account, bool) {
	for _, a := range t.doc.Teams[team] {
		if a.Email == email {
			return a, true
		}
	}
	return nil, false
}

// Incomplete returns the team's accounts whose status is not completed.
func (t *Tracker) Incomplete(team string) []*Account {
	var out []*Account
	for _, a := range t.doc.Teams[team] {
		if a.Status != StatusCompleted {
			out = append(out, a)
		}
	}
	return out
}

// Upsert adds the account or updates the existing one in place. Non-empty
// password and role overwrite the stored values.
func (t *Tracker) Upsert(team, email string, status Status, password, role string) *Account {
	now := stamp(t.now())
	if a, ok := t.Find(team, email); ok {
		if a.Status != status {
			a.Status = status
			a.UpdatedAt = now
		}
		if password != "" && a.Password != password {
			a.Password = password
			a.UpdatedAt = now
		}
		if role != "" && a.Role != role {
			a.Role = role
			a.UpdatedAt = now
		}
		return a
	}

	a := &Account{
		Email:     email,
		Status:    status,
		Password:  password,
		Role:      role,
		Storage:   newStorage(t.providers),
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.doc.Teams[team] = append(t.doc.Teams[team], a)
	return a
}

// SetStatus changes an account's invitation status. It reports false when
// the account does not exist. Setting the current status is a no-op.
func (t *Tracker) SetStatus(team, email string, status Status) bool {
	a, ok := t.Find(team, email)
	if !ok {
		return false
	}
	if a.Status != status {
		a.Status = status
		a.UpdatedAt = stamp(t.now())
	}
	return true
}

// SetStorage replaces one provider's storage entry, leaving the others as
// they are. It reports false when the account does not exist.
func (t *Tracker) SetStorage(team, email, provider string, entry StorageEntry) bool {
	a, ok := t.Find(team, email)
	if !ok {
		return false
	}
	if a.Storage == nil {
		a.Storage = newStorage(t.providers)
	}
	if a.Storage[provider] != entry {
		a.Storage[provider] = entry
		a.UpdatedAt = stamp(t.now())
	}
	return true
}

// Remove deletes an account. It reports whether one was removed.
func (t *Tracker) Remove(team, email string) bool {
	accounts := t.doc.Teams[team]
	for i, a := range accounts {
		if a.Email == email {
			t.doc.Teams[team] = append(accounts[:i:i], accounts[i+1:]...)
			return true
		}
	}
	return false
}

// Save stamps last_updated and writes the document durably.
func (t *Tracker) Save(ctx context.Context) error {
	if t.readOnly {
		return fmt.Errorf("save tracker %s: opened read-only: %w", t.file.Path, errors.ErrInvalidInput)
	}
	t.doc.LastUpdated = stamp(t.now())
	if err := t.file.Save(ctx, t.doc); err != nil {
		return fmt.Errorf("save tracker: %w", err)
	}
	return nil
}

// Now returns the tracker clock's current time formatted as a timestamp.
func (t *Tracker) Now() string {
	return stamp(t.now())
}
