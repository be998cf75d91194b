package identity

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// CommandRunner runs a read-only system utility and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// DefaultProbe returns the probe for the running operating system.
func DefaultProbe() HardwareProbe {
	return NewProbe(runtime.GOOS)
}

// NewProbe selects the probe implementation for goos.
func NewProbe(goos string) HardwareProbe {
	switch goos {
	case "linux":
		return NewLinuxProbe()
	case "darwin":
		return NewDarwinProbe(ExecRunner)
	case "windows":
		return NewWindowsProbe(ExecRunner)
	default:
		return unsupportedProbe{goos: goos}
	}
}

type unsupportedProbe struct {
	goos string
}

func (p unsupportedProbe) Platform() string { return p.goos }

func (p unsupportedProbe) Components(context.Context) []Component { return nil }

// valueAfterColon returns the trimmed text after the first ':' in line.
func valueAfterColon(line string) (string, bool) {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
