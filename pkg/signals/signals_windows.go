//go:build windows
// +build windows

package signals

import (
	"os"
	"os/signal"

	"github.com/habitat-sh/core/pkg/process"
)

// Windows only delivers a console interrupt, which maps to INT.
func setSignalHandlers() {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, os.Interrupt)

	go func() {
		for range ch {
			push(process.SignalINT)
		}
	}()
}
