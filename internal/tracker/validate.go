package tracker

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Validate checks a serialised tracker document against the canonical
// shape and returns one message per problem. An empty result means the
// document needs no upgrade.
func Validate(data []byte, providers []string) []string {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{fmt.Sprintf("not valid JSON: %v", err)}
	}

	teams, ok := raw["teams"].(map[string]any)
	if !ok {
		return []string{"teams is not an object"}
	}

	names := make([]string, 0, len(teams))
	for name := range teams {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		list, ok := teams[name].([]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("team %s: accounts is not a list", name))
			continue
		}
		seen := make(map[string]bool, len(list))
		for i, item := range list {
			rec, ok := item.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("team %s[%d]: account is not an object", name, i))
				continue
			}
			email := str(rec["email"])
			where := fmt.Sprintf("team %s[%d] %s", name, i, email)
			if email == "" {
				problems = append(problems, where+": missing email")
			} else if seen[email] {
				problems = append(problems, where+": duplicate email")
			}
			seen[email] = true

			if _, ok := rec["status"]; ok {
				problems = append(problems, where+": legacy status field present")
			}
			status, ok := rec["invitation_status"].(string)
			switch {
			case !ok || status == "":
				problems = append(problems, where+": missing invitation_status")
			case !Status(status).Known():
				problems = append(problems, fmt.Sprintf("%s: unknown invitation_status %q", where, status))
			}

			storage, ok := rec["storage_status"].(map[string]any)
			if !ok {
				problems = append(problems, where+": storage_status is not an object")
				continue
			}
			for _, p := range providers {
				entry, ok := storage[p].(map[string]any)
				if !ok {
					problems = append(problems, fmt.Sprintf("%s: storage_status missing %s", where, p))
					continue
				}
				if !StorageState(str(entry["status"])).valid() {
					problems = append(problems, fmt.Sprintf("%s: storage_status.%s.status invalid", where, p))
				}
			}
		}
	}
	return problems
}

// Validate checks the in-memory document by serialising it.
func (t *Tracker) Validate() []string {
	data, err := json.Marshal(t.doc)
	if err != nil {
		return []string{err.Error()}
	}
	return Validate(data, t.providers)
}
