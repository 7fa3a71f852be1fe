package provision

import (
	"context"

	"github.com/CoderDKai/oai-team-automation/internal/storage"
	"github.com/CoderDKai/oai-team-automation/internal/team"
	"github.com/CoderDKai/oai-team-automation/internal/token"
)

// Mode tells the registrar how much work an account still needs.
type Mode string

const (
	// ModeRegister signs the account up and authorizes it.
	ModeRegister Mode = "register"
	// ModeAuthorize only authorizes an account that is already registered.
	ModeAuthorize Mode = "authorize"
)

// Request is one registrar call.
type Request struct {
	Team     string
	Email    string
	Password string
	Mode     Mode
}

// RegisterStatus is the registrar's verdict.
type RegisterStatus string

const (
	RegisterSuccess RegisterStatus = "success"
	// RegisterFailed is a transient failure; the account is retried next run.
	RegisterFailed RegisterStatus = "failed"
	// RegisterDomainUnsupported means the service refuses the email domain.
	RegisterDomainUnsupported RegisterStatus = "domain_blacklisted"
	// RegisterRejected means the service refused this account for good.
	RegisterRejected RegisterStatus = "rejected"
)

// Response is the registrar's answer. Session carries the credentials the
// storage providers need when the account is created there.
type Response struct {
	Status  RegisterStatus
	Session map[string]any
	Message string
}

// Registrar performs interactive registration and authorization. An error
// is treated like RegisterFailed.
type Registrar interface {
	RegisterAndAuthorize(ctx context.Context, req Request) (Response, error)
}

// Blacklist is the set of email domains the service refuses.
type Blacklist interface {
	IsBlacklisted(email string) bool
	Add(domain string) error
}

// TokenEnsurer keeps a team's credential fresh.
type TokenEnsurer interface {
	Ensure(ctx context.Context, t *team.Team) (token.Outcome, error)
}

// Storage mirrors accounts into the storage providers. Implemented by
// *storage.Reconciler.
type Storage interface {
	Providers() []string
	Status(ctx context.Context, email string) []storage.Result
	Reconcile(ctx context.Context, email string, session map[string]any) []storage.Result
}
