package team

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ierrors "github.com/CoderDKai/oai-team-automation/internal/errors"
)

const teamFile = `[
  {
    "name": "alpha",
    "format": "new",
    "owner_email": "owner@alpha.test",
    "access_token": "at-1",
    "refresh_token": "rt-1",
    "token_expires_at": 1700000000,
    "needs_login": true,
    "authorized": false,
    "plan": "team-plus"
  },
  {
    "user": {"email": "legacy@beta.test"},
    "accessToken": "session-token",
    "account": {"id": "acct-9"}
  }
]`

func writeTeams(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "team.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_BothFormats(t *testing.T) {
	c, err := Load(writeTeams(t, teamFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.Names(); len(got) != 2 || got[0] != "alpha" || got[1] != "legacy@beta.test" {
		t.Fatalf("Names() = %v", got)
	}

	alpha, ok := c.Get("alpha")
	if !ok {
		t.Fatal("alpha not found")
	}
	if alpha.Format != FormatNew || alpha.RefreshToken != "rt-1" || alpha.TokenExpiresAt != 1700000000 {
		t.Errorf("alpha decoded wrongly: %+v", alpha)
	}
	if !alpha.NeedsLogin || alpha.Authorized {
		t.Errorf("alpha flags wrong: needs_login=%v authorized=%v", alpha.NeedsLogin, alpha.Authorized)
	}
	if alpha.Extra["plan"] != "team-plus" {
		t.Errorf("unknown field not preserved: %v", alpha.Extra)
	}

	legacy, _ := c.Get("legacy@beta.test")
	if legacy.Format != FormatOld {
		t.Errorf("Format = %q, want old", legacy.Format)
	}
	if legacy.Token() != "session-token" || legacy.OwnerEmail != "legacy@beta.test" || legacy.AccountID != "acct-9" {
		t.Errorf("legacy decoded wrongly: %+v", legacy)
	}
}

func TestLoad_WeakTypes(t *testing.T) {
	c, err := Load(writeTeams(t, `{"name":"solo","refresh_token":"r","token_expires_at":"1700000001"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	solo, _ := c.Get("solo")
	if solo.TokenExpiresAt != 1700000001 {
		t.Errorf("TokenExpiresAt = %d", solo.TokenExpiresAt)
	}
	if solo.Format != FormatNew {
		t.Errorf("Format = %q, want new", solo.Format)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, ierrors.ErrNotFound) {
		t.Errorf("missing file error = %v, want ErrNotFound", err)
	}
	if _, err := Load(writeTeams(t, "{not json")); !errors.Is(err, ierrors.ErrCorrupted) {
		t.Errorf("corrupt file error = %v, want ErrCorrupted", err)
	}
}

func TestSetTokens(t *testing.T) {
	tm := &Team{Name: "alpha", Format: FormatNew, AccessToken: "old", RefreshToken: "rt", NeedsLogin: true}

	tm.SetTokens("", "", 0)
	if tm.AccessToken != "old" || !tm.NeedsLogin || tm.Authorized {
		t.Errorf("empty SetTokens changed the team: %+v", tm)
	}

	tm.SetTokens("new", "rt-2", 42)
	if tm.AccessToken != "new" || tm.AuthToken != "new" || tm.RefreshToken != "rt-2" || tm.TokenExpiresAt != 42 {
		t.Errorf("SetTokens did not apply: %+v", tm)
	}
	if tm.NeedsLogin || !tm.Authorized {
		t.Errorf("flags after refresh: needs_login=%v authorized=%v", tm.NeedsLogin, tm.Authorized)
	}
}

func TestSave_RoundTripPreservesShape(t *testing.T) {
	path := writeTeams(t, teamFile)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	alpha, _ := c.Get("alpha")
	alpha.SetTokens("at-2", "rt-2", 1800000000)

	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, _ := os.ReadFile(path)
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("saved file is not a list: %v", err)
	}
	if records[0]["access_token"] != "at-2" || records[0]["auth_token"] != "at-2" {
		t.Errorf("alpha tokens not written: %v", records[0])
	}
	if records[0]["plan"] != "team-plus" {
		t.Errorf("unknown field dropped: %v", records[0])
	}
	if records[0]["needs_login"] != false || records[0]["authorized"] != true {
		t.Errorf("flags not written: %v", records[0])
	}

	legacy := records[1]
	for _, k := range []string{"name", "format", "access_token", "needs_login"} {
		if _, ok := legacy[k]; ok {
			t.Errorf("old-format record gained key %q: %v", k, legacy)
		}
	}
	if legacy["accessToken"] != "session-token" {
		t.Errorf("old-format record lost accessToken: %v", legacy)
	}
}

func TestSave_SingleObjectStaysObject(t *testing.T) {
	path := writeTeams(t, `{"name":"solo","format":"new","refresh_token":"r"}`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(path)
	var one map[string]any
	if err := json.Unmarshal(data, &one); err != nil {
		t.Fatalf("single-record file was rewritten as a list: %s", data)
	}
}
