// Package migration keeps a log of configuration migrations: which legacy
// path moved where, and who verified the move.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/persist"
)

// Status is a record's progress.
type Status string

const (
	StatusPending  Status = "pending"
	StatusMigrated Status = "migrated"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusMigrated, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// Record is one migration.
type Record struct {
	ID           string `json:"id"`
	LegacyPath   string `json:"legacy_path"`
	NewPath      string `json:"new_path"`
	Status       Status `json:"status"`
	CapabilityID string `json:"capability_id,omitempty"`
	VerifiedBy   string `json:"verified_by,omitempty"`
	VerifiedAt   string `json:"verified_at,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func (r Record) validate() error {
	switch {
	case r.ID == "":
		return errors.NewValidationError("missing field").WithField("id")
	case r.LegacyPath == "":
		return errors.NewValidationError("missing field").WithField("legacy_path")
	case r.NewPath == "":
		return errors.NewValidationError("missing field").WithField("new_path")
	case !r.Status.Valid():
		return errors.NewValidationError("unknown status").WithField("status").WithValue(string(r.Status))
	}
	return nil
}

type document struct {
	Records   []Record `json:"records"`
	UpdatedAt string   `json:"updated_at"`
}

// Store is the record log file.
type Store struct {
	file    *persist.File
	records []Record
	now     func() time.Time
}

// Open loads the store at path. A missing file is an empty store; invalid
// records are skipped with a warning.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Store{file: persist.NewFile(path), now: time.Now}

	data, err := s.file.Read()
	if errors.Is(err, errors.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewPersistenceError("parse migration records", errors.Join(errors.ErrCorrupted, err)).WithPath(path)
	}
	for i, r := range doc.Records {
		if err := r.validate(); err != nil {
			logger.Warn("invalid migration record skipped", "index", i, "error", err.Error())
			continue
		}
		s.records = append(s.records, r)
	}
	return s, nil
}

// List returns the records in creation order.
func (s *Store) List() []Record {
	return append([]Record(nil), s.records...)
}

// Get returns the record with id.
func (s *Store) Get(id string) (Record, bool) {
	if i := s.index(id); i >= 0 {
		return s.records[i], true
	}
	return Record{}, false
}

// Create adds a pending record and saves. An empty ID is replaced by a new
// UUID; an ID already in use is rejected.
func (s *Store) Create(ctx context.Context, r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	if s.index(r.ID) >= 0 {
		return Record{}, errors.NewValidationError("record already exists").WithField("id").WithValue(r.ID)
	}
	s.records = append(s.records, r)
	if err := s.save(ctx); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}
	return r, nil
}

// SetStatus moves a record to status and saves.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, notes string) (Record, error) {
	if !status.Valid() {
		return Record{}, errors.NewValidationError("unknown status").WithField("status").WithValue(string(status))
	}
	return s.update(ctx, id, func(r *Record) {
		r.Status = status
		if notes != "" {
			r.Notes = notes
		}
	})
}

// Verify marks a record verified by verifiedBy and saves.
func (s *Store) Verify(ctx context.Context, id, verifiedBy, notes string) (Record, error) {
	if verifiedBy == "" {
		return Record{}, errors.NewValidationError("missing field").WithField("verified_by")
	}
	return s.update(ctx, id, func(r *Record) {
		r.Status = StatusVerified
		r.VerifiedBy = verifiedBy
		r.VerifiedAt = s.now().Format(time.RFC3339)
		if notes != "" {
			r.Notes = notes
		}
	})
}

func (s *Store) update(ctx context.Context, id string, fn func(*Record)) (Record, error) {
	i := s.index(id)
	if i < 0 {
		return Record{}, fmt.Errorf("migration record %s: %w", id, errors.ErrNotFound)
	}
	prev := s.records[i]
	fn(&s.records[i])
	if err := s.save(ctx); err != nil {
		s.records[i] = prev
		return Record{}, err
	}
	return s.records[i], nil
}

func (s *Store) index(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) save(ctx context.Context) error {
	doc := document{Records: s.records, UpdatedAt: s.now().Format(time.RFC3339)}
	if doc.Records == nil {
		doc.Records = []Record{}
	}
	return s.file.Save(ctx, doc)
}
