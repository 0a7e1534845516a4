// Package signals traps process signals and turns them into events a
// supervising loop can act on.
package signals

import (
	"sync"

	"github.com/habitat-sh/core/pkg/process"
)

// EventKind classifies a received signal.
type EventKind int

const (
	// Shutdown is raised for INT and TERM.
	Shutdown EventKind = iota
	// WaitForChild is raised for CHLD.
	WaitForChild
	// Passthrough carries any other trapped signal unchanged.
	Passthrough
)

// Event is a single trapped signal, classified.
type Event struct {
	Kind   EventKind
	Signal process.Signal
}

var (
	initOnce sync.Once
	mu       sync.Mutex
	queue    []process.Signal
)

// Init installs the signal handlers. Calling it more than once has no
// effect.
func Init() {
	initOnce.Do(setSignalHandlers)
}

func push(sig process.Signal) {
	mu.Lock()
	defer mu.Unlock()
	queue = append(queue, sig)
}

// Check pops at most one pending signal event. Consumers should call
// this frequently; signals received between calls are returned one per
// call in arrival order.
func Check() (Event, bool) {
	mu.Lock()
	defer mu.Unlock()

	if len(queue) == 0 {
		return Event{}, false
	}

	sig := queue[0]
	queue = queue[1:]

	switch sig {
	case process.SignalINT, process.SignalTERM:
		return Event{Kind: Shutdown, Signal: sig}, true
	case process.SignalCHLD:
		return Event{Kind: WaitForChild, Signal: sig}, true
	default:
		return Event{Kind: Passthrough, Signal: sig}, true
	}
}
