//go:build !windows
// +build !windows

package signals

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/habitat-sh/core/pkg/process"
)

var trapped = map[os.Signal]process.Signal{
	unix.SIGHUP:  process.SignalHUP,
	unix.SIGINT:  process.SignalINT,
	unix.SIGQUIT: process.SignalQUIT,
	unix.SIGALRM: process.SignalALRM,
	unix.SIGTERM: process.SignalTERM,
	unix.SIGUSR1: process.SignalUSR1,
	unix.SIGUSR2: process.SignalUSR2,
	unix.SIGCHLD: process.SignalCHLD,
}

func setSignalHandlers() {
	ch := make(chan os.Signal, 16)
	sigs := make([]os.Signal, 0, len(trapped))
	for sig := range trapped {
		sigs = append(sigs, sig)
	}
	signal.Notify(ch, sigs...)

	go func() {
		for sig := range ch {
			push(trapped[sig])
		}
	}()
}
