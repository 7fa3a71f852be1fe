// Package errors provides the error taxonomy shared by the provisioning
// pipeline: sentinel errors, domain error types carrying context, and
// classification helpers.
//
// # Taxonomy
//
// Failures fall into four classes and every class has a home here:
//
//   - transient external failures (network, timeout, non-2xx): [ExternalError],
//     retryable, never advance an account's state
//   - structural failures (malformed tracker, missing field): recovered
//     locally by normalising and are reported as [ValidationError] only by
//     tools that validate explicitly
//   - terminal domain failures: [ErrDomainBlacklisted], recorded as an
//     absorbing status and never retried
//   - persistence failures (lock timeout, disk errors): [PersistenceError],
//     returned to the caller of a batch; the prior document stays intact
//
// # Usage
//
//	err := errors.NewExternalError("query failed", cause).WithProvider("crs").WithStatusCode(502)
//	if errors.IsRetryable(err) { ... }
//
//	var perr *errors.PersistenceError
//	if errors.As(err, &perr) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Re-export standard library functions so callers only import this package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Persistence sentinels
var (
	// ErrLockTimeout indicates the tracker lock could not be acquired in time.
	ErrLockTimeout = New("lock acquisition timed out")
	// ErrCorrupted indicates a persisted document could not be parsed.
	ErrCorrupted = New("document corrupted")
)

// Provisioning sentinels
var (
	// ErrDomainBlacklisted indicates the account's email domain is not supported.
	ErrDomainBlacklisted = New("email domain blacklisted")
	// ErrRegistrationFailed indicates the registration collaborator reported failure.
	ErrRegistrationFailed = New("registration failed")
	// ErrRegistrationRejected indicates a permanent rejection by the registration collaborator.
	ErrRegistrationRejected = New("registration rejected")
	// ErrTeamNotFound indicates the named team has no credential record.
	ErrTeamNotFound = New("team not found")
	// ErrShutdown indicates processing stopped because a shutdown was requested.
	ErrShutdown = New("shutdown requested")
)

// Token sentinels
var (
	// ErrNoRefreshToken indicates a refresh was needed but no refresh token is present.
	ErrNoRefreshToken = New("refresh token missing")
	// ErrMalformedToken indicates the token endpoint returned an unusable payload.
	ErrMalformedToken = New("malformed token response")
)

// General sentinels
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrNotFound indicates a missing resource.
	ErrNotFound = New("not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// ProvisionErr is implemented by every error type in this package.
type ProvisionErr interface {
	error
	Unwrap() error
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) IsRetryable() bool { return e.retryable }

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// PersistenceError reports a failed durable write or read. Lock timeouts are
// retryable; disk errors are not.
type PersistenceError struct {
	baseError
	Path string
}

// NewPersistenceError creates a PersistenceError. It is retryable when the
// cause is a lock timeout.
func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: errors.Is(cause, ErrLockTimeout),
		},
	}
}

// WithPath records the file involved.
func (e *PersistenceError) WithPath(path string) *PersistenceError {
	e.Path = path
	return e
}

func (e *PersistenceError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return e.format("persistence error", parts)
}

// ExternalError reports a failed call to an external collaborator: a storage
// backend, the OAuth endpoint, or the registrar. It is retryable by default.
type ExternalError struct {
	baseError
	Provider   string
	StatusCode int
}

// NewExternalError creates a retryable ExternalError.
func NewExternalError(message string, cause error) *ExternalError {
	return &ExternalError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithProvider records which collaborator failed.
func (e *ExternalError) WithProvider(provider string) *ExternalError {
	e.Provider = provider
	return e
}

// WithStatusCode records the HTTP status code. 4xx other than 408 and 429
// are not retryable.
func (e *ExternalError) WithStatusCode(code int) *ExternalError {
	e.StatusCode = code
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		e.retryable = false
	}
	return e
}

func (e *ExternalError) Error() string {
	var parts []string
	if e.Provider != "" {
		parts = append(parts, "provider="+e.Provider)
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return e.format("external error", parts)
}

// ProvisionError reports the failure of one account's provisioning step.
type ProvisionError struct {
	baseError
	Team  string
	Email string
	Step  string
}

// NewProvisionError creates a ProvisionError.
func NewProvisionError(message string, cause error) *ProvisionError {
	return &ProvisionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: IsRetryable(cause),
		},
	}
}

// WithAccount records the team and account.
func (e *ProvisionError) WithAccount(team, email string) *ProvisionError {
	e.Team = team
	e.Email = email
	return e
}

// WithStep records the lifecycle step that failed.
func (e *ProvisionError) WithStep(step string) *ProvisionError {
	e.Step = step
	return e
}

func (e *ProvisionError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, "team="+e.Team)
	}
	if e.Email != "" {
		parts = append(parts, "email="+e.Email)
	}
	if e.Step != "" {
		parts = append(parts, "step="+e.Step)
	}
	return e.format("provision error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
		},
	}
}

// WithField sets the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue sets the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.message)
	}
	if e.Value != nil {
		return fmt.Sprintf("validation error: %s: %s (got: %v)", e.Field, e.message, e.Value)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.message)
}

// Is matches ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// TimeoutError reports an operation that ran out of time or attempts.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a retryable TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause attaches the last underlying error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s timed out after %s", e.Operation, e.Duration.Round(time.Millisecond))
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRetryable reports whether the error is transient and the operation may
// succeed on a later run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perr ProvisionErr
	if As(err, &perr) {
		return perr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrLockTimeout)
}

// IsTransient reports whether err is a transient failure: a retryable
// error, a network error or an expired deadline. Transient failures leave
// an account where it is so the next run retries it.
func IsTransient(err error) bool {
	if IsRetryable(err) || Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return As(err, &nerr)
}

// IsTerminal reports whether the error records an absorbing outcome that
// must never be retried.
func IsTerminal(err error) bool {
	return Is(err, ErrDomainBlacklisted) || Is(err, ErrRegistrationRejected)
}
