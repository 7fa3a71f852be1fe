//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package filelock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StaleAfter is the age past which a lock file is reclaimed whoever wrote it.
var StaleAfter = 10 * time.Minute

// lockState implements the lock-file protocol: the lock is held while the
// file exists and was created by this holder.
type lockState struct {
	owned bool
}

func (s *lockState) held() bool {
	return s.owned
}

func (s *lockState) try(path string) (bool, error) {
	ok, err := s.create(path)
	if ok || err != nil || !stale(path) {
		return ok, err
	}
	// A holder that died never removed its file.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove stale lock file: %w", err)
	}
	return s.create(path)
}

func (s *lockState) create(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, fmt.Errorf("close lock file: %w", err)
	}

	s.owned = true
	return true, nil
}

func (s *lockState) release(path string) error {
	s.owned = false
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// stale reports whether the lock file at path was left behind: it is older
// than StaleAfter, or the process it names no longer exists.
func stale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > StaleAfter {
		return true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Mid-write by its creator, or not ours to judge until it ages out.
		return false
	}
	return !alive(pid)
}

// alive reports whether pid names a running process. Where the platform
// cannot tell, the process is assumed alive and only age reclaims its lock.
func alive(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
