package blacklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Example.COM", "example.com", false},
		{"@mail.test", "mail.test", false},
		{" .sub.example.org. ", "sub.example.org", false},
		{"bücher.example", "xn--bcher-kva.example", false},
		{"", "", true},
		{"@", "", true},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Normalize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Normalize(%q) error %v is not ErrInvalidInput", tt.in, err)
		}
	}
}

func TestIsBlacklisted(t *testing.T) {
	l := New("blocked.test", "xn--bcher-kva.example")

	tests := []struct {
		email string
		want  bool
	}{
		{"user@blocked.test", true},
		{"USER@Blocked.Test", true},
		{"user@bücher.example", true},
		{"user@fine.test", false},
		{"user@sub.blocked.test", false},
		{"no-domain", false},
		{"trailing@", false},
	}
	for _, tt := range tests {
		if got := l.IsBlacklisted(tt.email); got != tt.want {
			t.Errorf("IsBlacklisted(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestAddPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(l.Domains()) != 0 {
		t.Fatalf("new list has domains: %v", l.Domains())
	}
	if err := l.Add("Zeta.test"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add("alpha.test"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add("zeta.test"); err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(doc.Domains, []string{"alpha.test", "zeta.test"}) {
		t.Errorf("persisted domains = %v", doc.Domains)
	}

	reloaded, err := Load(path, "extra.test")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.IsBlacklisted("x@zeta.test") || !reloaded.IsBlacklisted("x@extra.test") {
		t.Errorf("reloaded domains = %v", reloaded.Domains())
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, errors.ErrCorrupted) {
		t.Errorf("Load error = %v, want ErrCorrupted", err)
	}
}

func TestAddInMemory(t *testing.T) {
	l := New()
	if err := l.Add(""); err == nil {
		t.Error("Add(\"\") should fail")
	}
	if err := l.Add("mem.test"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !l.IsBlacklisted("a@mem.test") {
		t.Error("domain not added")
	}
}
