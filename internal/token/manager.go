// Package token keeps a team's OAuth credential pair fresh.
//
// [Manager.Ensure] checks the team's expiry against a safety buffer and,
// when needed and possible, exchanges the refresh token for a new pair,
// writes it into the team record and persists the team file. A failed or
// impossible refresh leaves the team untouched; callers proceed with the
// credential they have.
package token

import (
	"context"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/team"
)

// DefaultBuffer is how long before expiry a token counts as expired.
const DefaultBuffer = time.Hour

// Outcome describes what Ensure did.
type Outcome string

const (
	OutcomeFresh     Outcome = "fresh"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Saver persists the team collection.
type Saver interface {
	Save(ctx context.Context) error
}

// IsExpired reports whether expiresAt (unix seconds) is at or before
// now+buffer. A zero expiry is always expired.
func IsExpired(expiresAt int64, now time.Time, buffer time.Duration) bool {
	if expiresAt == 0 {
		return true
	}
	return expiresAt <= now.Add(buffer).Unix()
}

// Manager refreshes team credentials.
type Manager struct {
	refresher Refresher
	store     Saver
	buffer    time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithBuffer sets the expiry safety buffer.
func WithBuffer(d time.Duration) Option {
	return func(m *Manager) { m.buffer = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager refreshing through r and persisting with store.
func NewManager(r Refresher, store Saver, opts ...Option) *Manager {
	m := &Manager{
		refresher: r,
		store:     store,
		buffer:    DefaultBuffer,
		now:       time.Now,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure refreshes t's credential if it is expired or about to expire.
//
// The returned error is informational: on OutcomeFailed the team is
// unchanged, on OutcomeRefreshed with an error the team was updated in
// memory but the team file could not be written.
func (m *Manager) Ensure(ctx context.Context, t *team.Team) (Outcome, error) {
	log := m.logger.WithTeam(t.Name)

	if !IsExpired(t.TokenExpiresAt, m.now(), m.buffer) {
		log.Debug("token still valid", "expires_at", t.TokenExpiresAt)
		return OutcomeFresh, nil
	}

	if t.RefreshToken == "" {
		log.Warn("token expired and no refresh token, interactive login required", "expires_at", t.TokenExpiresAt)
		return OutcomeSkipped, nil
	}

	log.Info("refreshing token", "expires_at", t.TokenExpiresAt)
	tok, err := m.refresher.Refresh(ctx, t.RefreshToken)
	if err != nil {
		log.Error("token refresh failed", "error", err.Error())
		return OutcomeFailed, err
	}

	var expiresAt int64
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.Unix()
	}
	t.SetTokens(tok.AccessToken, tok.RefreshToken, expiresAt)

	if err := m.store.Save(ctx); err != nil {
		log.Error("refreshed token not persisted", "error", err.Error())
		return OutcomeRefreshed, err
	}
	log.Info("token refreshed", "expires_at", t.TokenExpiresAt)
	return OutcomeRefreshed, nil
}
