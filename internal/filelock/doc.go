// Package filelock provides a cross-process advisory lock guarding a single
// file, with a bounded-timeout acquire.
//
// On platforms with flock(2) the lock is an exclusive flock held on
// <target>.lock. Elsewhere the lock file itself is the lock: it is created
// with O_EXCL and removed on release; a file left by a dead holder, or older
// than [StaleAfter], is reclaimed. Both variants sit behind [Lock] so
// callers never branch on the platform.
//
// # Basic Usage
//
//	lk := filelock.New("/data/tracker.json.lock")
//	if err := lk.Acquire(ctx, 10*time.Second); err != nil {
//	    // errors.Is(err, errors.ErrLockTimeout) when another process holds it
//	    return err
//	}
//	defer lk.Release()
//
// A Lock is not safe for concurrent use by multiple goroutines; callers in
// one process serialise access themselves.
package filelock
