package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/event"
	"github.com/CoderDKai/oai-team-automation/internal/provision"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "accounts.csv")
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.Local)

	first := FromOutcome(provision.Outcome{
		Team: "alpha", Email: "a@x.test", Password: "pw", Status: tracker.StatusCompleted, BackendID: "crs-1",
	}, at)
	if err := AppendCSV(path, first); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}
	if err := AppendCSV(path, Row{Email: "b@x.test", Password: "p,w", Status: "failed", Timestamp: at}); err != nil {
		t.Fatalf("AppendCSV: %v", err)
	}
	if err := AppendCSV(path); err != nil {
		t.Fatalf("AppendCSV with no rows: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	want := [][]string{
		Header,
		{"a@x.test", "pw", "alpha", "completed", "crs-1", "2025-05-06 07:08:09"},
		{"b@x.test", "p,w", "", "failed", "", "2025-05-06 07:08:09"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("csv = %v, want %v", records, want)
	}
}

func loadTracker(t *testing.T, doc string) *tracker.Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.json")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	tr, err := tracker.Load(path, []string{"crs", "cpa", "s2a"})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestCoverage(t *testing.T) {
	tr := loadTracker(t, `{"teams":{
		"beta":[{"email":"c@x.test","invitation_status":"invited"}],
		"alpha":[
			{"email":"a@x.test","invitation_status":"completed","storage_status":{"crs":{"status":"stored","account_id":"1"}}},
			{"email":"b@x.test","status":"failed"}
		]}}`)

	got := Coverage(tr)
	want := []TeamStatus{
		{
			Team:     "alpha",
			Total:    2,
			ByStatus: map[string]int{"completed": 1, "failed": 1},
			Stored:   map[string]int{"crs": 1, "cpa": 0, "s2a": 0},
		},
		{
			Team:     "beta",
			Total:    1,
			ByStatus: map[string]int{"invited": 1},
			Stored:   map[string]int{"crs": 0, "cpa": 0, "s2a": 0},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Coverage = %+v, want %+v", got, want)
	}
}

func TestRenderStatus(t *testing.T) {
	teams := []TeamStatus{{Team: "alpha", Total: 2, ByStatus: map[string]int{"completed": 2}, Stored: map[string]int{"crs": 1}}}

	var plain bytes.Buffer
	if err := RenderStatus(&plain, teams, []string{"crs"}, false); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(plain.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "team\ttotal\tinvited") || !strings.HasSuffix(lines[1], "\t1/2") {
		t.Errorf("plain status = %q", plain.String())
	}

	var styled bytes.Buffer
	if err := RenderStatus(&styled, teams, []string{"crs"}, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(styled.String(), "alpha") || !strings.Contains(styled.String(), "1/2") {
		t.Errorf("styled status = %q", styled.String())
	}

	var empty bytes.Buffer
	RenderStatus(&empty, nil, nil, true)
	if !strings.Contains(empty.String(), "no teams tracked") {
		t.Errorf("empty status = %q", empty.String())
	}
}

func TestRenderOutcomes(t *testing.T) {
	outcomes := []provision.Outcome{
		{Team: "alpha", Email: "a@x.test", Status: tracker.StatusCompleted, BackendID: "crs-1"},
		{Team: "alpha", Email: "b@x.test", Status: tracker.StatusProcessing},
		{Team: "alpha", Email: "c@x.test", Status: tracker.StatusCompleted},
	}

	var plain bytes.Buffer
	if err := RenderOutcomes(&plain, "run", outcomes, false); err != nil {
		t.Fatal(err)
	}
	out := plain.String()
	for _, want := range []string{"run: 3 account(s)", "alpha\ta@x.test\tcompleted\tcrs-1", "completed: 2", "processing: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("plain output missing %q:\n%s", want, out)
		}
	}

	var styled bytes.Buffer
	long := append(outcomes, provision.Outcome{Team: "beta", Email: strings.Repeat("x", 60) + "@x.test", Status: tracker.StatusFailed})
	if err := RenderOutcomes(&styled, "run", long, true); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(styled.String(), strings.Repeat("x", 60)) {
		t.Error("long email was not truncated")
	}
	if !strings.Contains(styled.String(), "b@x.test") {
		t.Errorf("styled output = %q", styled.String())
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	bus := event.NewBus(nil)
	Progress(bus, &buf, false)

	bus.Publish(event.NewTeamStartedEvent("alpha", 2))
	bus.Publish(event.NewStatusChangedEvent("alpha", "a@x.test", "invited", "processing"))
	bus.Publish(event.NewStorageUpdatedEvent("alpha", "a@x.test", "crs", "stored", "crs-1"))
	bus.Publish(event.NewAccountFinishedEvent("alpha", "a@x.test", "completed", nil))
	bus.Publish(event.NewShutdownEvent("alpha", 1))

	want := []string{
		"== alpha: 2 account(s) pending",
		"   a@x.test invited → processing",
		"   a@x.test [crs] stored crs-1",
		"== stopping, 1 account(s) left for the next run",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("progress lines = %q, want %q", got, want)
	}
}
