// Package lockfile provides a process-wide advisory lock taken around
// each mutating command. The kernel filter has no transactions, so the
// engine's check-then-act sequences can race against a concurrent fwctl
// invocation; the lock serializes them without touching the
// reconciliation logic itself.
package lockfile

import "os"

// DefaultPath is the default lock file location.
const DefaultPath = "/run/fwctl.lock"

// Lock is a held advisory lock.
type Lock struct {
	f *os.File
}
