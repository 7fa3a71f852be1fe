// Package blacklist keeps the set of email domains the registration service
// refuses. Domains are stored in their IDNA ASCII form so "bücher.example"
// and "xn--bcher-kva.example" are the same entry.
package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/idna"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/persist"
)

// document is the on-disk shape.
type document struct {
	Domains     []string `json:"domains"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// List is a file-backed domain blacklist. It is safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	file    *persist.File
	domains map[string]struct{}
	now     func() time.Time
}

// New returns an in-memory list seeded with domains. Add does not persist.
func New(domains ...string) *List {
	l := &List{domains: make(map[string]struct{}), now: time.Now}
	for _, d := range domains {
		if n, err := Normalize(d); err == nil {
			l.domains[n] = struct{}{}
		}
	}
	return l
}

// Load reads the list at path. A missing file is an empty list; entries that
// do not normalise are skipped. extra domains (from configuration) are
// merged in but only written back once something is added.
func Load(path string, extra ...string) (*List, error) {
	l := New(extra...)
	l.file = persist.NewFile(path)

	data, err := l.file.Read()
	if errors.Is(err, errors.ErrNotFound) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewPersistenceError("parse blacklist", errors.Join(errors.ErrCorrupted, err)).WithPath(path)
	}
	for _, d := range doc.Domains {
		if n, err := Normalize(d); err == nil {
			l.domains[n] = struct{}{}
		}
	}
	return l, nil
}

// Normalize lower-cases domain, strips a leading "@" or "." and converts it
// to its IDNA ASCII form.
func Normalize(domain string) (string, error) {
	d := strings.TrimSpace(domain)
	d = strings.TrimLeft(d, "@.")
	d = strings.TrimRight(d, ".")
	if d == "" {
		return "", errors.NewValidationError("empty domain").WithField("domain")
	}
	ascii, err := idna.Lookup.ToASCII(strings.ToLower(d))
	if err != nil {
		return "", errors.NewValidationError(err.Error()).WithField("domain").WithValue(domain)
	}
	return ascii, nil
}

// Domain returns the normalised domain part of email.
func Domain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", errors.NewValidationError("address has no domain").WithField("email").WithValue(email)
	}
	return Normalize(email[at+1:])
}

// IsBlacklisted reports whether email's domain is on the list. Addresses
// without a usable domain are not blacklisted.
func (l *List) IsBlacklisted(email string) bool {
	d, err := Domain(email)
	if err != nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.domains[d]
	return ok
}

// Add puts domain on the list and persists it when the list is file
// backed. Adding a domain that is already listed is a no-op.
func (l *List) Add(domain string) error {
	return l.AddContext(context.Background(), domain)
}

// AddContext is Add with a context bounding the lock wait.
func (l *List) AddContext(ctx context.Context, domain string) error {
	d, err := Normalize(domain)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.domains[d]; ok {
		return nil
	}
	l.domains[d] = struct{}{}

	if l.file == nil {
		return nil
	}
	doc := document{Domains: l.sortedLocked(), LastUpdated: l.now().Format("2006-01-02 15:04:05")}
	if err := l.file.Save(ctx, doc); err != nil {
		delete(l.domains, d)
		return fmt.Errorf("add %s to blacklist: %w", d, err)
	}
	return nil
}

// Domains returns the listed domains in sorted order.
func (l *List) Domains() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

func (l *List) sortedLocked() []string {
	out := make([]string, 0, len(l.domains))
	for d := range l.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
