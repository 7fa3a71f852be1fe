package storage

import (
	"context"
	"net/http"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/logging"
)

// Result is the reconciliation outcome for one provider.
type Result struct {
	Provider  string
	Stored    bool
	AccountID string
	Created   bool
	CheckedAt time.Time
	// Err is set when the account could not be stored; the reconciler
	// itself never fails.
	Err error
}

// Reconciler checks and creates accounts across the enabled providers,
// one provider at a time.
type Reconciler struct {
	providers []Provider
	now       func() time.Time
	logger    *logging.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock sets the time source for CheckedAt.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// NewReconciler returns a Reconciler over providers.
func NewReconciler(providers []Provider, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		providers: providers,
		now:       time.Now,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromSpecs builds clients for every enabled spec, in the order given.
func FromSpecs(specs []Spec, hc *http.Client, userAgent string) []Provider {
	var out []Provider
	for _, s := range specs {
		if !s.Enabled() {
			continue
		}
		switch s.Name {
		case CRS:
			out = append(out, NewCRSClient(s.BaseURL, s.Secret, hc, userAgent))
		case CPA:
			out = append(out, NewCPAClient(s.BaseURL, s.Secret, hc, userAgent))
		case S2A:
			out = append(out, NewS2AClient(s.BaseURL, s.Secret, s.Catalog, hc, userAgent))
		}
	}
	return out
}

// Providers returns the names of the providers reconciled against.
func (r *Reconciler) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Check asks one provider whether email is stored. Failures are logged and
// reported as not present.
func (r *Reconciler) Check(ctx context.Context, p Provider, email string) Presence {
	log := r.logger.WithProvider(p.Name()).WithAccount(email)
	presence, err := p.Query(ctx, email)
	if err != nil {
		log.Warn("storage query failed, treating as not stored", "error", err.Error())
		return Presence{}
	}
	log.Debug("storage query", "exists", presence.Exists, "account_id", presence.AccountID)
	return presence
}

// Status checks email against every provider without creating anything.
func (r *Reconciler) Status(ctx context.Context, email string) []Result {
	results := make([]Result, 0, len(r.providers))
	for _, p := range r.providers {
		presence := r.Check(ctx, p, email)
		results = append(results, Result{
			Provider:  p.Name(),
			Stored:    presence.Exists,
			AccountID: presence.AccountID,
			CheckedAt: r.now(),
		})
	}
	return results
}

// Reconcile makes sure email is stored in every provider, creating it where
// it is missing. One provider's failure does not affect the others.
func (r *Reconciler) Reconcile(ctx context.Context, email string, session map[string]any) []Result {
	results := make([]Result, 0, len(r.providers))
	for _, p := range r.providers {
		results = append(results, r.reconcileOne(ctx, p, email, session))
	}
	return results
}

func (r *Reconciler) reconcileOne(ctx context.Context, p Provider, email string, session map[string]any) Result {
	log := r.logger.WithProvider(p.Name()).WithAccount(email)
	res := Result{Provider: p.Name()}

	presence := r.Check(ctx, p, email)
	if presence.Exists {
		res.Stored = true
		res.AccountID = presence.AccountID
		res.CheckedAt = r.now()
		return res
	}

	id, err := p.Create(ctx, email, session)
	res.CheckedAt = r.now()
	if err != nil {
		log.Warn("storage create failed", "error", err.Error())
		res.Err = err
		return res
	}
	log.Info("account stored", "account_id", id)
	res.Stored = true
	res.Created = true
	res.AccountID = id
	return res
}
