// Package storage reconciles accounts against the external storage backends
// (crs, cpa and s2a). Each backend answers lookups in its own shape; the
// clients here normalise them to [Presence], and the [Reconciler] turns
// every backend failure into "not present" so one unreachable backend never
// blocks the others.
package storage

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// Provider names.
const (
	CRS = "crs"
	CPA = "cpa"
	S2A = "s2a"
)

// Known lists every provider in reconciliation order.
var Known = []string{CRS, CPA, S2A}

// Presence is a backend's answer to "is this account stored".
type Presence struct {
	Exists    bool
	AccountID string
}

// Provider is one storage backend.
type Provider interface {
	Name() string
	// Query looks the account up by email, case-insensitively.
	Query(ctx context.Context, email string) (Presence, error)
	// Create stores the account and returns the backend's id for it.
	Create(ctx context.Context, email string, session map[string]any) (string, error)
}

// Spec is the configuration of one backend.
type Spec struct {
	Name    string
	BaseURL string
	Secret  string
	// Catalog is the s2a platform listed when scanning for an account.
	Catalog string
}

// Enabled reports whether both the base URL and the secret are set.
func (s Spec) Enabled() bool {
	return strings.TrimSpace(s.BaseURL) != "" && strings.TrimSpace(s.Secret) != ""
}

// SameEmail compares two addresses under Unicode case folding.
func SameEmail(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}
