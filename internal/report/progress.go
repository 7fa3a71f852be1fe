package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// Progress prints one line per lifecycle event published on bus and
// returns the subscription id.
func Progress(bus *event.Bus, w io.Writer, styled bool) string {
	p := &progress{w: w, styled: styled}
	return bus.SubscribeAll(p.handle)
}

type progress struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

func (p *progress) paint(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *progress) handle(e event.Event) {
	var line string
	switch ev := e.(type) {
	case event.TeamStartedEvent:
		line = p.paint(titleStyle, fmt.Sprintf("== %s: %d account(s) pending", ev.Team, ev.Pending))
	case event.TokenCheckedEvent:
		if ev.Err != nil {
			line = p.paint(warnStyle, fmt.Sprintf("   token %s: %v", ev.Outcome, ev.Err))
		} else {
			line = p.paint(mutedStyle, "   token "+ev.Outcome)
		}
	case event.StatusChangedEvent:
		style := lipgloss.NewStyle().Foreground(statusColors[tracker.Status(ev.To)])
		line = fmt.Sprintf("   %s %s → %s", ev.Email, p.paint(mutedStyle, ev.From), p.paint(style, ev.To))
	case event.StorageUpdatedEvent:
		text := fmt.Sprintf("   %s [%s] %s", ev.Email, ev.Provider, ev.State)
		if ev.AccountID != "" {
			text += " " + ev.AccountID
		}
		if ev.State == string(tracker.StorageStored) {
			line = p.paint(okStyle, text)
		} else {
			line = p.paint(warnStyle, text)
		}
	case event.AccountFinishedEvent:
		if ev.Err != nil {
			line = p.paint(warnStyle, fmt.Sprintf("   %s: %s (%v)", ev.Email, ev.Status, ev.Err))
		}
	case event.TeamFinishedEvent:
		line = fmt.Sprintf("== %s: %d processed, %d completed, %d not completed",
			ev.Team, ev.Processed, ev.Completed, ev.Failed)
	case event.ShutdownEvent:
		line = p.paint(warnStyle, fmt.Sprintf("== stopping, %d account(s) left for the next run", ev.Remaining))
	}
	if line == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}
