package stash

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// advisory file locks coordinate processes sharing one journal file;
// in-process coordination is the store's own job

// withFlock runs fn while holding an advisory lock (unix.LOCK_SH or
// unix.LOCK_EX) on f. The lock is released even if fn fails.
func withFlock(f *os.File, how int, fn func() error) error {
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return fmt.Errorf("stash: acquiring file lock: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}

// sameInode reports whether the open handle f still refers to the file at
// path. A mismatch means the journal was rotated or replaced externally and
// the handle must be reopened.
func sameInode(f *os.File, path string) (bool, error) {
	var fdStat, pathStat unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &fdStat); err != nil {
		return false, fmt.Errorf("stash: stat open journal: %w", err)
	}
	if err := unix.Stat(path, &pathStat); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stash: stat journal path: %w", err)
	}
	return fdStat.Ino == pathStat.Ino && fdStat.Dev == pathStat.Dev, nil
}
