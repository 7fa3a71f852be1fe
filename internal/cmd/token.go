package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/team"
	"github.com/CoderDKai/oai-team-automation/internal/token"
)

var tokenTeams []string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage team access tokens",
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh team tokens that are expired or about to expire",
	Long: `Check every team (or those given with --team) and refresh its access
token through the configured token endpoint when it expires within
token.buffer_seconds. Refreshed tokens are written back to the team file.`,
	RunE: runTokenRefresh,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenRefreshCmd)

	tokenRefreshCmd.Flags().StringSliceVarP(&tokenTeams, "team", "t", nil, "only check these teams (repeatable)")
}

func runTokenRefresh(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	teams, err := a.openTeams()
	if err != nil {
		return err
	}

	selected := teams.Teams
	if len(tokenTeams) > 0 {
		selected = nil
		for _, name := range tokenTeams {
			t, ok := teams.Get(name)
			if !ok {
				return fmt.Errorf("%s: %w", name, errors.ErrTeamNotFound)
			}
			selected = append(selected, t)
		}
	}

	mgr := a.tokenManager(teams)
	out := cmd.OutOrStdout()
	failed := 0
	for _, t := range selected {
		outcome, err := mgr.Ensure(cmd.Context(), t)
		line := fmt.Sprintf("%-20s %-10s expires %s", t.Name, outcome, expiry(t))
		switch {
		case err != nil:
			failed++
			line += fmt.Sprintf("  (%v)", err)
		case outcome == token.OutcomeSkipped:
			line += "  (no refresh token, login required)"
		}
		fmt.Fprintln(out, line)
	}
	if failed > 0 {
		return fmt.Errorf("%d team(s) could not be refreshed", failed)
	}
	return nil
}

func expiry(t *team.Team) string {
	if t.TokenExpiresAt == 0 {
		return "never set"
	}
	return time.Unix(t.TokenExpiresAt, 0).Format("2006-01-02 15:04:05")
}
