// Package persist writes JSON documents durably: under the document's
// advisory lock, into a temp file in the same directory, fsynced, then
// renamed over the target so readers never observe a half-written file.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/filelock"
)

// DefaultLockTimeout bounds lock acquisition when a File has none set.
const DefaultLockTimeout = 10 * time.Second

// File is a JSON document on disk guarded by <Path>.lock.
type File struct {
	Path        string
	LockTimeout time.Duration
}

// NewFile returns a File for path using DefaultLockTimeout.
func NewFile(path string) *File {
	return &File{Path: path, LockTimeout: DefaultLockTimeout}
}

// Save encodes v and replaces the file with it while holding the lock.
// Lock timeouts and disk errors are returned as *errors.PersistenceError;
// on any failure the previous contents survive.
func (f *File) Save(ctx context.Context, v any) error {
	data, err := Encode(v)
	if err != nil {
		return errors.NewPersistenceError("encode document", err).WithPath(f.Path)
	}

	// The lock file lives next to the document.
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return errors.NewPersistenceError("create directory", err).WithPath(f.Path)
	}
	lk := filelock.For(f.Path)
	if err := lk.Acquire(ctx, f.timeout()); err != nil {
		return errors.NewPersistenceError("acquire lock", err).WithPath(f.Path)
	}
	defer func() { _ = lk.Release() }()

	if err := WriteFile(f.Path, data, 0644); err != nil {
		return errors.NewPersistenceError("write document", err).WithPath(f.Path)
	}
	return nil
}

// Read returns the raw file contents. A missing file yields errors.ErrNotFound.
func (f *File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", f.Path, errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("read document", err).WithPath(f.Path)
	}
	return data, nil
}

// Backup copies the current file to <Path><suffix> and returns the copy's path.
func (f *File) Backup(suffix string) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", errors.NewPersistenceError("read for backup", err).WithPath(f.Path)
	}
	dst := f.Path + suffix
	if err := WriteFile(dst, data, 0644); err != nil {
		return "", errors.NewPersistenceError("write backup", err).WithPath(dst)
	}
	return dst, nil
}

func (f *File) timeout() time.Duration {
	if f.LockTimeout == 0 {
		return DefaultLockTimeout
	}
	return f.LockTimeout
}

// Encode renders v as two-space indented JSON without HTML escaping,
// terminated by a newline. Map keys are sorted, so equal values encode to
// equal bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
