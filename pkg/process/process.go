// Package process offers pid, signal, and exec helpers for managing
// other processes.
package process

// Signal names the subset of POSIX signals packages and services deal
// with.
type Signal string

const (
	SignalINT  Signal = "INT"
	SignalILL  Signal = "ILL"
	SignalABRT Signal = "ABRT"
	SignalFPE  Signal = "FPE"
	SignalKILL Signal = "KILL"
	SignalSEGV Signal = "SEGV"
	SignalTERM Signal = "TERM"
	SignalHUP  Signal = "HUP"
	SignalQUIT Signal = "QUIT"
	SignalALRM Signal = "ALRM"
	SignalUSR1 Signal = "USR1"
	SignalUSR2 Signal = "USR2"
	SignalCHLD Signal = "CHLD"
)

func (s Signal) String() string { return string(s) }
