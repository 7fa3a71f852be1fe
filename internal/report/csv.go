// Package report renders run results: an append-only CSV of every account
// handled and a styled summary for the terminal.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/provision"
	"github.com/CoderDKai/oai-team-automation/internal/tracker"
)

// Header is the CSV header row.
var Header = []string{"email", "password", "team", "status", "backend_id", "timestamp"}

// Row is one CSV line.
type Row struct {
	Email     string
	Password  string
	Team      string
	Status    string
	BackendID string
	Timestamp time.Time
}

func (r Row) record() []string {
	return []string{r.Email, r.Password, r.Team, r.Status, r.BackendID, r.Timestamp.Format(tracker.TimeLayout)}
}

// FromOutcome converts a provisioning outcome into a row stamped at.
func FromOutcome(o provision.Outcome, at time.Time) Row {
	return Row{
		Email:     o.Email,
		Password:  o.Password,
		Team:      o.Team,
		Status:    string(o.Status),
		BackendID: o.BackendID,
		Timestamp: at,
	}
}

// AppendCSV appends rows to the CSV at path, writing the header first when
// the file is new or empty.
func AppendCSV(path string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat report: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return f.Sync()
}
