package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitat-sh/core/pkg/process"
)

func resetQueue() {
	mu.Lock()
	defer mu.Unlock()
	queue = nil
}

func TestCheckEmptyQueue(t *testing.T) {
	resetQueue()

	_, ok := Check()
	assert.False(t, ok)
}

func TestCheckClassifiesSignals(t *testing.T) {
	resetQueue()

	push(process.SignalINT)
	push(process.SignalTERM)
	push(process.SignalCHLD)
	push(process.SignalHUP)

	cases := []Event{
		{Kind: Shutdown, Signal: process.SignalINT},
		{Kind: Shutdown, Signal: process.SignalTERM},
		{Kind: WaitForChild, Signal: process.SignalCHLD},
		{Kind: Passthrough, Signal: process.SignalHUP},
	}

	// events come back one per call, in arrival order
	for _, want := range cases {
		got, ok := Check()
		require.True(t, ok, want.Signal)
		assert.Equal(t, want, got)
	}

	_, ok := Check()
	assert.False(t, ok)
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
}
