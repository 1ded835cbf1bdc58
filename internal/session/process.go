package session

import (
	"os"
	"syscall"
)

// IsProcessAlive reports whether a process with pid exists. Signal 0 checks
// existence without delivering anything; EPERM still means it is alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}
