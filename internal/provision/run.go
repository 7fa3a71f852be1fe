package provision

import (
	"sort"
	"sync"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/team"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

// Run holds the state of one provisioning run: the loaded tracker, the team
// collection and the outcomes gathered so far. Build one at the start of a
// run and drop it at the end.
type Run struct {
	Tracker   *tracker.Tracker
	Teams     *team.Collection
	StartedAt time.Time

	mu       sync.Mutex
	outcomes map[string][]Outcome
}

// NewRun creates a run over a loaded tracker and team collection. teams may
// be nil when no team file is configured.
func NewRun(tr *tracker.Tracker, teams *team.Collection) *Run {
	return &Run{
		Tracker:   tr,
		Teams:     teams,
		StartedAt: time.Now(),
		outcomes:  make(map[string][]Outcome),
	}
}

// Team returns the team record for name, if the team file has one.
func (r *Run) Team(name string) (*team.Team, bool) {
	if r.Teams == nil {
		return nil, false
	}
	return r.Teams.Get(name)
}

func (r *Run) record(teamName string, outcomes []Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[teamName] = append(r.outcomes[teamName], outcomes...)
}

// Outcomes returns every recorded outcome, grouped by team in sorted order.
func (r *Run) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.outcomes))
	for name := range r.outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Outcome
	for _, name := range names {
		out = append(out, r.outcomes[name]...)
	}
	return out
}

// Summary counts outcomes by final status.
func (r *Run) Summary() map[tracker.Status]int {
	counts := make(map[tracker.Status]int)
	for _, o := range r.Outcomes() {
		counts[o.Status]++
	}
	return counts
}
