//go:build windows
// +build windows

package process

import (
	"os"

	"github.com/rotisserie/eris"
)

// CurrentPid returns the process identifier of the calling process.
func CurrentPid() int {
	return os.Getpid()
}

// IsAlive determines whether a process with the given pid is running.
func IsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}

// SendSignal is not supported on Windows beyond process termination.
func SendSignal(pid int, sig Signal) error {
	if sig != SignalKILL && sig != SignalTERM {
		return eris.Errorf("signal %s is not supported on windows", sig)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return eris.Wrapf(err, "failed to open pid %d", pid)
	}
	defer proc.Release()
	return proc.Kill()
}

// Become is not supported on Windows; there is no execve equivalent.
func Become(command string, args []string, env []string) error {
	return eris.New("become is not supported on windows")
}
