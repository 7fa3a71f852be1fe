package event

import "time"

// Event is implemented by everything published on a Bus.
type Event interface {
	// EventType returns "category.action", e.g. "account.status".
	EventType() string
	Timestamp() time.Time
}

// Event types.
const (
	TypeTeamStarted     = "team.started"
	TypeTeamFinished    = "team.finished"
	TypeTokenChecked    = "token.checked"
	TypeStatusChanged   = "account.status"
	TypeStorageUpdated  = "account.storage"
	TypeAccountFinished = "account.finished"
	TypeShutdown        = "run.shutdown"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// TeamStartedEvent is emitted before a team's accounts are processed.
type TeamStartedEvent struct {
	baseEvent
	Team    string
	Pending int // accounts not yet completed
}

// NewTeamStartedEvent creates a TeamStartedEvent.
func NewTeamStartedEvent(team string, pending int) TeamStartedEvent {
	return TeamStartedEvent{baseEvent: newBaseEvent(TypeTeamStarted), Team: team, Pending: pending}
}

// TeamFinishedEvent is emitted after a team has been processed.
type TeamFinishedEvent struct {
	baseEvent
	Team      string
	Processed int
	Completed int
	Failed    int
}

// NewTeamFinishedEvent creates a TeamFinishedEvent.
func NewTeamFinishedEvent(team string, processed, completed, failed int) TeamFinishedEvent {
	return TeamFinishedEvent{
		baseEvent: newBaseEvent(TypeTeamFinished),
		Team:      team,
		Processed: processed,
		Completed: completed,
		Failed:    failed,
	}
}

// TokenCheckedEvent reports the token lifecycle outcome for a team.
type TokenCheckedEvent struct {
	baseEvent
	Team    string
	Outcome string
	Err     error
}

// NewTokenCheckedEvent creates a TokenCheckedEvent.
func NewTokenCheckedEvent(team, outcome string, err error) TokenCheckedEvent {
	return TokenCheckedEvent{baseEvent: newBaseEvent(TypeTokenChecked), Team: team, Outcome: outcome, Err: err}
}

// StatusChangedEvent is emitted after an invitation status change has been
// persisted.
type StatusChangedEvent struct {
	baseEvent
	Team  string
	Email string
	From  string
	To    string
}

// NewStatusChangedEvent creates a StatusChangedEvent.
func NewStatusChangedEvent(team, email, from, to string) StatusChangedEvent {
	return StatusChangedEvent{
		baseEvent: newBaseEvent(TypeStatusChanged),
		Team:      team,
		Email:     email,
		From:      from,
		To:        to,
	}
}

// StorageUpdatedEvent is emitted after one provider's storage entry changed.
type StorageUpdatedEvent struct {
	baseEvent
	Team      string
	Email     string
	Provider  string
	State     string
	AccountID string
}

// NewStorageUpdatedEvent creates a StorageUpdatedEvent.
func NewStorageUpdatedEvent(team, email, provider, state, accountID string) StorageUpdatedEvent {
	return StorageUpdatedEvent{
		baseEvent: newBaseEvent(TypeStorageUpdated),
		Team:      team,
		Email:     email,
		Provider:  provider,
		State:     state,
		AccountID: accountID,
	}
}

// AccountFinishedEvent is emitted once per processed account.
type AccountFinishedEvent struct {
	baseEvent
	Team   string
	Email  string
	Status string
	Err    error
}

// NewAccountFinishedEvent creates an AccountFinishedEvent.
func NewAccountFinishedEvent(team, email, status string, err error) AccountFinishedEvent {
	return AccountFinishedEvent{
		baseEvent: newBaseEvent(TypeAccountFinished),
		Team:      team,
		Email:     email,
		Status:    status,
		Err:       err,
	}
}

// ShutdownEvent is emitted when a run stops early on request.
type ShutdownEvent struct {
	baseEvent
	Team      string // team being processed when the request was honoured
	Remaining int
}

// NewShutdownEvent creates a ShutdownEvent.
func NewShutdownEvent(team string, remaining int) ShutdownEvent {
	return ShutdownEvent{baseEvent: newBaseEvent(TypeShutdown), Team: team, Remaining: remaining}
}
