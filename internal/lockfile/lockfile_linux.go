//go:build linux

package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Acquire takes a blocking exclusive flock on path, creating the file if
// needed. A second fwctl invocation blocks here until the first releases
// its lock, serializing the check-then-act sequences.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("lockfile: flock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock. The kernel also drops it when the process
// exits, so a crashed invocation never wedges later ones.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("lockfile: unlock: %w", err)
	}
	return closeErr
}
