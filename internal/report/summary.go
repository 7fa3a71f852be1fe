package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"

	"github.com/CoderDKai/oai-team-automation/internal/provision"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	borderColor  = lipgloss.Color("#6B7280")
	statusColors = map[tracker.Status]lipgloss.Color{
		tracker.StatusCompleted:         "#10B981",
		tracker.StatusAuthorized:        "#60A5FA",
		tracker.StatusRegistered:        "#60A5FA",
		tracker.StatusProcessing:        "#F59E0B",
		tracker.StatusInvited:           "#9CA3AF",
		tracker.StatusTeamOwner:         "#A78BFA",
		tracker.StatusFailed:            "#F87171",
		tracker.StatusDomainBlacklisted: "#F87171",
	}
)

// maxEmailWidth truncates long addresses in the outcome table.
const maxEmailWidth = 40

// TeamStatus is one team's progress as shown by the status command.
type TeamStatus struct {
	Team     string         `json:"team" yaml:"team"`
	Total    int            `json:"total" yaml:"total"`
	ByStatus map[string]int `json:"by_status" yaml:"by_status"`
	// Stored counts accounts stored per provider.
	Stored map[string]int `json:"stored" yaml:"stored"`
}

// Coverage summarises every team in the tracker, in name order.
func Coverage(tr *tracker.Tracker) []TeamStatus {
	var out []TeamStatus
	for _, name := range tr.Teams() {
		ts := TeamStatus{
			Team:     name,
			ByStatus: make(map[string]int),
			Stored:   make(map[string]int),
		}
		for _, p := range tr.Providers() {
			ts.Stored[p] = 0
		}
		for _, a := range tr.Accounts(name) {
			ts.Total++
			ts.ByStatus[string(a.Status)]++
			for p := range ts.Stored {
				if a.Stored(p) {
					ts.Stored[p]++
				}
			}
		}
		out = append(out, ts)
	}
	return out
}

// RenderStatus writes the status table. Without styling it prints one
// plain line per team.
func RenderStatus(w io.Writer, teams []TeamStatus, providers []string, styled bool) error {
	if len(teams) == 0 {
		_, err := fmt.Fprintln(w, "no teams tracked")
		return err
	}

	headers := []string{"team", "total"}
	for _, s := range tracker.AllStatuses {
		headers = append(headers, string(s))
	}
	for _, p := range providers {
		headers = append(headers, p)
	}

	rows := make([][]string, 0, len(teams))
	for _, ts := range teams {
		row := []string{ts.Team, fmt.Sprint(ts.Total)}
		for _, s := range tracker.AllStatuses {
			row = append(row, fmt.Sprint(ts.ByStatus[string(s)]))
		}
		for _, p := range providers {
			row = append(row, fmt.Sprintf("%d/%d", ts.Stored[p], ts.Total))
		}
		rows = append(rows, row)
	}

	if !styled {
		lines := []string{strings.Join(headers, "\t")}
		for _, r := range rows {
			lines = append(lines, strings.Join(r, "\t"))
		}
		_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RenderOutcomes writes a per-account table followed by counts by status.
func RenderOutcomes(w io.Writer, title string, outcomes []provision.Outcome, styled bool) error {
	counts := make(map[tracker.Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	var b strings.Builder
	if !styled {
		fmt.Fprintf(&b, "%s: %d account(s)\n", title, len(outcomes))
		for _, o := range outcomes {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", o.Team, o.Email, o.Status, o.BackendID)
		}
		for _, s := range statuses {
			fmt.Fprintf(&b, "%s: %d\n", s, counts[tracker.Status(s)])
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(titleStyle.Render(title) + "\n")
	if len(outcomes) == 0 {
		b.WriteString(mutedStyle.Render("nothing to do") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{o.Team, ansi.Truncate(o.Email, maxEmailWidth, "…"), string(o.Status), o.BackendID})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers("team", "email", "status", "backend id").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				return cellStyle.Foreground(statusColors[outcomes[row].Status])
			}
			return cellStyle
		})
	b.WriteString(t.Render() + "\n")

	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		style := lipgloss.NewStyle().Foreground(statusColors[tracker.Status(s)])
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", s, counts[tracker.Status(s)])))
	}
	b.WriteString(strings.Join(parts, mutedStyle.Render(" · ")) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
