// Package platform selects how a flat command string is handed to a shell
// on the host operating system.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// DefaultShell is the shell used on shell-native hosts.
const DefaultShell = "/bin/sh"

// WSL is the executable that hosts the shell on Windows.
const WSL = "wsl"

// ErrPlatformNotSupported is returned when the host has no usable shell.
var ErrPlatformNotSupported = errors.New("platform not supported")

// Invocation is the concrete executable and argv for one command.
type Invocation struct {
	Executable string
	Args       []string
}

// ProbeFunc checks that the shell-hosting subsystem is available.
// A nil error means the subsystem answered with a zero status.
type ProbeFunc func(ctx context.Context) error

// Resolver maps a command string to an Invocation for a given OS.
// The zero value resolves for the running host.
type Resolver struct {
	// GOOS overrides runtime.GOOS, mostly for tests.
	GOOS string
	// Shell overrides DefaultShell on shell-native hosts.
	Shell string
	// Probe overrides the WSL status probe.
	Probe ProbeFunc
	// CacheProbe remembers a successful probe for the lifetime of the
	// Resolver. Failed probes are never cached.
	CacheProbe bool

	mu     sync.Mutex
	probed bool
}

// Resolve returns the invocation for command. On Windows the WSL probe runs
// first and ErrPlatformNotSupported is returned if it fails.
func (r *Resolver) Resolve(ctx context.Context, command string) (Invocation, error) {
	if !r.delegated() {
		return Invocation{
			Executable: r.shell(),
			Args:       []string{"-c", command},
		}, nil
	}

	if err := r.probe(ctx); err != nil {
		return Invocation{}, err
	}
	// -e skips the distribution's login shell so the command reaches sh intact.
	return Invocation{
		Executable: WSL,
		Args:       []string{"-e", "sh", "-c", command},
	}, nil
}

// Native reports whether commands run in a host shell rather than through WSL.
func (r *Resolver) Native() bool {
	return !r.delegated()
}

func (r *Resolver) goos() string {
	if r.GOOS != "" {
		return r.GOOS
	}
	return runtime.GOOS
}

func (r *Resolver) delegated() bool {
	return r.goos() == "windows"
}

func (r *Resolver) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	return DefaultShell
}

func (r *Resolver) probe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CacheProbe && r.probed {
		return nil
	}

	probe := r.Probe
	if probe == nil {
		probe = StatusProbe
	}
	if err := probe(ctx); err != nil {
		return fmt.Errorf("%w: %s unavailable: %w", ErrPlatformNotSupported, WSL, err)
	}
	r.probed = true
	return nil
}

// StatusProbe runs `wsl --status` and fails unless it exits zero.
func StatusProbe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, WSL, "--status")
	hideWindow(cmd)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s --status exited with code %d", WSL, exitErr.ExitCode())
		}
		return err
	}
	return nil
}
