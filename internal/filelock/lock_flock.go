//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type lockState struct {
	file *os.File
}

func (s *lockState) held() bool {
	return s.file != nil
}

func (s *lockState) try(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	s.file = f
	return true, nil
}

// release unlocks and closes. The lock file stays on disk: removing it would
// let a waiter lock an unlinked inode while a newcomer locks a fresh one.
func (s *lockState) release(string) error {
	f := s.file
	s.file = nil

	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close()
		return fmt.Errorf("funlock: %w", err)
	}
	return f.Close()
}
