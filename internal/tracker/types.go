package tracker

import "time"

// TimeLayout is the layout of every timestamp in the tracker document.
const TimeLayout = "2006-01-02 15:04:05"

// Status is an account's invitation status.
type Status string

// Lifecycle order: invited → processing → registered → authorized → completed.
const (
	StatusInvited           Status = "invited"
	StatusProcessing        Status = "processing"
	StatusRegistered        Status = "registered"
	StatusAuthorized        Status = "authorized"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusDomainBlacklisted Status = "domain_blacklisted"
	StatusTeamOwner         Status = "team_owner"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusInvited, StatusProcessing, StatusRegistered, StatusAuthorized,
	StatusCompleted, StatusTeamOwner, StatusFailed, StatusDomainBlacklisted,
}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	for _, k := range AllStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// Terminal reports whether no further processing applies to s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDomainBlacklisted
}

// StorageState is an account's presence in one storage provider.
type StorageState string

const (
	StorageNotStored StorageState = "not_stored"
	StorageStored    StorageState = "stored"
	StorageError     StorageState = "error"
)

func (s StorageState) valid() bool {
	return s == StorageNotStored || s == StorageStored || s == StorageError
}

// StorageEntry is the per-provider storage record of an account.
type StorageEntry struct {
	Status    StorageState `json:"status"`
	AccountID string       `json:"account_id,omitempty"`
	LastCheck string       `json:"last_check,omitempty"`
}

// Account is one tracked account in its canonical shape.
type Account struct {
	Email     string                  `json:"email"`
	Status    Status                  `json:"invitation_status"`
	Password  string                  `json:"password,omitempty"`
	Role      string                  `json:"role,omitempty"`
	Storage   map[string]StorageEntry `json:"storage_status"`
	CreatedAt string                  `json:"created_at,omitempty"`
	UpdatedAt string                  `json:"updated_at,omitempty"`
}

// Stored reports whether the account is stored in provider.
func (a *Account) Stored(provider string) bool {
	return a.Storage[provider].Status == StorageStored
}

// Document is the persisted tracker.
type Document struct {
	Teams       map[string][]*Account `json:"teams"`
	LastUpdated string                `json:"last_updated,omitempty"`
}

func emptyDocument() *Document {
	return &Document{Teams: make(map[string][]*Account)}
}

func newStorage(providers []string) map[string]StorageEntry {
	m := make(map[string]StorageEntry, len(providers))
	for _, p := range providers {
		m[p] = StorageEntry{Status: StorageNotStored}
	}
	return m
}

func stamp(t time.Time) string {
	return t.Format(TimeLayout)
}
