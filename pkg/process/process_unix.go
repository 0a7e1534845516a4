//go:build !windows
// +build !windows

package process

import (
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
	"golang.org/x/sys/unix"
)

var signalCodes = map[Signal]unix.Signal{
	SignalINT:  unix.SIGINT,
	SignalILL:  unix.SIGILL,
	SignalABRT: unix.SIGABRT,
	SignalFPE:  unix.SIGFPE,
	SignalKILL: unix.SIGKILL,
	SignalSEGV: unix.SIGSEGV,
	SignalTERM: unix.SIGTERM,
	SignalHUP:  unix.SIGHUP,
	SignalQUIT: unix.SIGQUIT,
	SignalALRM: unix.SIGALRM,
	SignalUSR1: unix.SIGUSR1,
	SignalUSR2: unix.SIGUSR2,
	SignalCHLD: unix.SIGCHLD,
}

// CurrentPid returns the process identifier of the calling process.
func CurrentPid() int {
	return os.Getpid()
}

// IsAlive determines whether a process with the given pid is running.
// A process we lack permission to signal still counts as alive.
func IsAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	switch err {
	case nil, unix.EPERM:
		return true
	default:
		return false
	}
}

// SendSignal delivers the given signal to the process with the given
// pid.
func SendSignal(pid int, sig Signal) error {
	code, ok := signalCodes[sig]
	if !ok {
		return eris.Errorf("unknown signal %s", sig)
	}

	if err := unix.Kill(pid, code); err != nil {
		return eris.Wrapf(err, "failed to send %s to pid %d", sig, pid)
	}
	return nil
}

// Become replaces the current process image with the given command via
// execve. On success this function does not return.
func Become(command string, args []string, env []string) error {
	path, err := exec.LookPath(command)
	if err != nil {
		return eris.Wrapf(err, "failed to resolve %s", command)
	}

	if env == nil {
		env = os.Environ()
	}

	argv := append([]string{path}, args...)
	err = unix.Exec(path, argv, env)
	// Exec only returns on failure.
	return eris.Wrapf(err, "failed to exec %s", path)
}
