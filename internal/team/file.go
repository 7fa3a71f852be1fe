package team

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/persist"
)

// Collection is the loaded team file.
type Collection struct {
	file   *persist.File
	single bool
	Teams  []*Team
}

// Load reads the team file at path. The file holds either a JSON array of
// records or a single record object. A missing file yields errors.ErrNotFound.
func Load(path string) (*Collection, error) {
	f := persist.NewFile(path)
	data, err := f.Read()
	if err != nil {
		return nil, err
	}

	c := &Collection{file: f}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var one map[string]any
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, errors.NewPersistenceError("parse team file", errors.Join(errors.ErrCorrupted, err)).WithPath(path)
		}
		records = []map[string]any{one}
		c.single = true
	}

	for i, raw := range records {
		t, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("team record %d: %w", i, err)
		}
		c.Teams = append(c.Teams, t)
	}
	return c, nil
}

// NewCollection returns an in-memory collection that saves to path.
func NewCollection(path string, teams ...*Team) *Collection {
	return &Collection{file: persist.NewFile(path), Teams: teams}
}

// Path returns the team file path.
func (c *Collection) Path() string {
	return c.file.Path
}

// Get returns the named team.
func (c *Collection) Get(name string) (*Team, bool) {
	for _, t := range c.Teams {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Names returns team names in file order.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.Teams))
	for _, t := range c.Teams {
		names = append(names, t.Name)
	}
	return names
}

// Save writes the collection back under the file lock.
func (c *Collection) Save(ctx context.Context) error {
	records := make([]map[string]any, 0, len(c.Teams))
	for _, t := range c.Teams {
		records = append(records, t.Encode())
	}
	if c.single && len(records) == 1 {
		return c.file.Save(ctx, records[0])
	}
	return c.file.Save(ctx, records)
}
