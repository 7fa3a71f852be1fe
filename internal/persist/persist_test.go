package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ierrors "github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/filelock"
)

type doc struct {
	Teams map[string][]string `json:"teams"`
	Note  string              `json:"note,omitempty"`
}

func TestFile_SaveAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker.json")
	f := NewFile(path)

	in := doc{Teams: map[string][]string{"beta": {"b"}, "alpha": {"a"}}, Note: "<x>"}
	if err := f.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := f.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := string(data)
	if !strings.HasSuffix(got, "\n") {
		t.Error("document should end with a newline")
	}
	if !strings.Contains(got, `"note": "<x>"`) {
		t.Errorf("HTML should not be escaped: %s", got)
	}
	if strings.Index(got, "alpha") > strings.Index(got, "beta") {
		t.Errorf("map keys should be sorted: %s", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFile_SaveIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	f := NewFile(path)
	in := doc{Teams: map[string][]string{"c": {"1"}, "a": {"2"}, "b": {"3"}}}

	if err := f.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, _ := os.ReadFile(path)
	if err := f.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Errorf("second save differs:\n%s\n---\n%s", first, second)
	}
}

func TestFile_ReadMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := f.Read(); !errors.Is(err, ierrors.ErrNotFound) {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}
}

func TestFile_SaveLockTimeoutKeepsPriorState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	f := &File{Path: path, LockTimeout: 100 * time.Millisecond}

	if err := f.Save(context.Background(), doc{Note: "before"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	holder := filelock.For(path)
	if ok, err := holder.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer holder.Release()

	err := f.Save(context.Background(), doc{Note: "after"})
	if !errors.Is(err, ierrors.ErrLockTimeout) {
		t.Fatalf("Save error = %v, want ErrLockTimeout", err)
	}
	var perr *ierrors.PersistenceError
	if !errors.As(err, &perr) || perr.Path != path {
		t.Errorf("expected PersistenceError for %s, got %v", path, err)
	}
	if !ierrors.IsRetryable(err) {
		t.Error("lock timeout should be retryable")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "before") {
		t.Errorf("prior document was not preserved: %s", data)
	}
}

func TestFile_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}

	dst, err := NewFile(path).Backup(".bak")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "{broken" {
		t.Errorf("backup contents = %q", data)
	}
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	if err := WriteFile(path, []byte("one"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(path, []byte("two"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Errorf("contents = %q, want two", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}
