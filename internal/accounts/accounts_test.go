package accounts

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
)

func TestLoad_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []Account
	}{
		{
			name:   "strings",
			source: `[" a@x.test ", "b@x.test"]`,
			want:   []Account{{"a@x.test", "default"}, {"b@x.test", "default"}},
		},
		{
			name:   "objects",
			source: `[{"email":"a@x.test","password":"p1"},{"account":"b@x.test"},{"email":"c@x.test","password":"  "}]`,
			want:   []Account{{"a@x.test", "p1"}, {"b@x.test", "default"}, {"c@x.test", "default"}},
		},
		{
			name:   "wrapped",
			source: `{"accounts":["a@x.test", 42, {"password":"x"}, null]}`,
			want:   []Account{{"a@x.test", "default"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.source, "default", nil)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Load = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(`{"accounts":[{"email":"f@x.test"}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, "pw", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Email != "f@x.test" || got[0].Password != "pw" {
		t.Errorf("Load = %+v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"empty source", "  ", errors.ErrInvalidInput},
		{"missing file", filepath.Join(t.TempDir(), "nope.json"), errors.ErrNotFound},
		{"bad json", `[1,`, errors.ErrInvalidInput},
		{"wrong shape", `{"users":[]}`, errors.ErrInvalidInput},
		{"nothing usable", `[{"password":"x"}]`, errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.source, "pw", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}
