package queue

import (
	"os"
	"syscall"
)

// IsProcessAlive probes pid with signal 0, the standard way to test for
// process existence without actually signaling it. No third-party library
// in the pack covers pid liveness probing; this is a thin stdlib wrapper,
// not a design choice that displaces a pack dependency.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))

	return err == nil
}
