// Package target models the platform a package was built for.
package target

import (
	"fmt"
	"runtime"
)

// Target is a platform triple in the form <arch>-<system>.
type Target string

const (
	X86_64Linux    Target = "x86_64-linux"
	X86_64Darwin   Target = "x86_64-darwin"
	X86_64Windows  Target = "x86_64-windows"
	Aarch64Linux   Target = "aarch64-linux"
	Aarch64Darwin  Target = "aarch64-darwin"
	Aarch64Windows Target = "aarch64-windows"
)

var supported = []Target{
	X86_64Linux,
	X86_64Darwin,
	X86_64Windows,
	Aarch64Linux,
	Aarch64Darwin,
	Aarch64Windows,
}

type InvalidTarget struct {
	Raw string
}

var _ error = (*InvalidTarget)(nil)

func (e InvalidTarget) Error() string {
	return fmt.Sprintf("invalid package target: %s", e.Raw)
}

func (t Target) String() string { return string(t) }

// Parse validates a target string against the supported set.
func Parse(value string) (Target, error) {
	for _, t := range supported {
		if string(t) == value {
			return t, nil
		}
	}
	return "", InvalidTarget{Raw: value}
}

// Supported returns all targets packages can be built for.
func Supported() []Target {
	result := make([]Target, len(supported))
	copy(result, supported)
	return result
}

// Active returns the target of the running process.
func Active() Target {
	arch := "x86_64"
	if runtime.GOARCH == "arm64" {
		arch = "aarch64"
	}

	return Target(fmt.Sprintf("%s-%s", arch, runtime.GOOS))
}
