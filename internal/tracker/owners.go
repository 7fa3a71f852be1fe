package tracker

import (
	"github.com/CoderDKai/oai-team-automation/internal/team"
)

// RoleOwner is the role recorded for imported team owners.
const RoleOwner = "owner"

// OwnerStatus returns the status an imported owner starts in: a new-format
// team that is already authorized has nothing left to do, an unauthorized
// one only needs authorization, and an old-format owner goes through the
// team_owner login path.
func OwnerStatus(t *team.Team) Status {
	if t.Format == team.FormatNew {
		if t.Authorized {
			return StatusCompleted
		}
		return StatusRegistered
	}
	return StatusTeamOwner
}

// ImportOwners adds the owner of every team holding a token to that team's
// account list, skipping owners already tracked. defaultPassword is used
// when the team record carries none. It returns the number added.
func (t *Tracker) ImportOwners(teams []*team.Team, defaultPassword string) int {
	added := 0
	for _, tm := range teams {
		if tm.Token() == "" || tm.Name == "" || tm.OwnerEmail == "" {
			continue
		}
		if _, ok := t.Find(tm.Name, tm.OwnerEmail); ok {
			continue
		}
		password := tm.OwnerPassword
		if password == "" {
			password = defaultPassword
		}
		t.Upsert(tm.Name, tm.OwnerEmail, OwnerStatus(tm), password, RoleOwner)
		t.logger.Info("team owner added to tracker", "team", tm.Name, "email", tm.OwnerEmail)
		added++
	}
	return added
}
