package tracker

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UpgradeReport counts what Upgrade changed.
type UpgradeReport struct {
	Teams             int            `json:"teams"`
	Accounts          int            `json:"accounts"`
	StatusMigrated    int            `json:"status_migrated"`
	StatusInitialized int            `json:"status_initialized"`
	StorageAdded      int            `json:"storage_added"`
	StorageFixed      int            `json:"storage_fixed"`
	Dropped           int            `json:"dropped"`
	TeamChanges       map[string]int `json:"team_changes,omitempty"`
}

// Changed reports whether any account differed from the canonical shape.
func (r UpgradeReport) Changed() bool {
	return len(r.TeamChanges) > 0 || r.Dropped > 0
}

// Upgrade converts a decoded tracker document of any historical shape into
// the canonical Document. It never fails: records that cannot be read are
// dropped and counted, malformed fields are normalised.
//
// Per account: a legacy "status" becomes invitation_status unless one is
// already present, in which case the stale field is discarded; a missing
// status becomes invited; the storage map gains a not_stored entry for each
// provider that is missing or malformed.
func Upgrade(raw map[string]any, providers []string) (*Document, UpgradeReport) {
	doc := emptyDocument()
	report := UpgradeReport{TeamChanges: make(map[string]int)}

	if s, ok := raw["last_updated"].(string); ok {
		doc.LastUpdated = s
	}

	teams, ok := raw["teams"].(map[string]any)
	if !ok {
		return doc, report
	}

	names := make([]string, 0, len(teams))
	for name := range teams {
		names = append(names, name)
	}
	sort.Strings(names)

	report.Teams = len(names)
	for _, name := range names {
		list, ok := teams[name].([]any)
		if !ok {
			doc.Teams[name] = []*Account{}
			report.TeamChanges[name]++
			continue
		}

		accounts := make([]*Account, 0, len(list))
		for _, item := range list {
			rec, ok := item.(map[string]any)
			if !ok {
				report.Dropped++
				continue
			}
			acct, changed := upgradeAccount(rec, providers, &report)
			if acct == nil {
				report.Dropped++
				continue
			}
			report.Accounts++
			if changed {
				report.TeamChanges[name]++
			}
			accounts = append(accounts, acct)
		}
		doc.Teams[name] = accounts
	}
	return doc, report
}

func upgradeAccount(rec map[string]any, providers []string, report *UpgradeReport) (*Account, bool) {
	email := strings.TrimSpace(str(rec["email"]))
	if email == "" {
		return nil, false
	}

	changed := false
	acct := &Account{
		Email:     email,
		Password:  str(rec["password"]),
		Role:      str(rec["role"]),
		CreatedAt: str(rec["created_at"]),
		UpdatedAt: str(rec["updated_at"]),
	}

	legacy, hasLegacy := rec["status"]
	current, hasCurrent := rec["invitation_status"]
	switch {
	case hasCurrent && str(current) != "":
		acct.Status = Status(str(current))
		if hasLegacy {
			report.StatusMigrated++
			changed = true
		}
	case hasLegacy && str(legacy) != "":
		acct.Status = Status(str(legacy))
		report.StatusMigrated++
		changed = true
	default:
		acct.Status = StatusInvited
		report.StatusInitialized++
		changed = true
	}

	storage, ok := rec["storage_status"].(map[string]any)
	if !ok {
		acct.Storage = newStorage(providers)
		report.StorageAdded++
		return acct, true
	}

	acct.Storage = make(map[string]StorageEntry, len(storage))
	fixed := false
	for p, v := range storage {
		entry, ok := upgradeEntry(v)
		if !ok {
			fixed = true
		}
		acct.Storage[p] = entry
	}
	for _, p := range providers {
		if _, ok := acct.Storage[p]; !ok {
			acct.Storage[p] = StorageEntry{Status: StorageNotStored}
			fixed = true
		}
	}
	if fixed {
		report.StorageFixed++
		changed = true
	}
	return acct, changed
}

// upgradeEntry reads one storage entry, reporting false if it had to be
// normalised.
func upgradeEntry(v any) (StorageEntry, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return StorageEntry{Status: StorageNotStored}, false
	}
	entry := StorageEntry{
		Status:    StorageState(str(m["status"])),
		AccountID: str(m["account_id"]),
		LastCheck: str(m["last_check"]),
	}
	if !entry.Status.valid() {
		entry.Status = StorageNotStored
		return entry, false
	}
	return entry, true
}

// str renders scalar JSON values as strings; numeric ids are common in
// backend responses copied into the tracker.
func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
