package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ShellNative(t *testing.T) {
	for _, goos := range []string{"linux", "darwin"} {
		t.Run(goos, func(t *testing.T) {
			r := &Resolver{GOOS: goos}
			inv, err := r.Resolve(context.Background(), `echo "a b"`)

			require.NoError(t, err)
			assert.Equal(t, DefaultShell, inv.Executable)
			assert.Equal(t, []string{"-c", `echo "a b"`}, inv.Args)
			assert.True(t, r.Native())
		})
	}
}

func TestResolve_ShellOverride(t *testing.T) {
	r := &Resolver{GOOS: "linux", Shell: "/bin/bash"}
	inv, err := r.Resolve(context.Background(), "true")

	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", inv.Executable)
}

func TestResolve_NativeNeverProbes(t *testing.T) {
	called := false
	r := &Resolver{GOOS: "linux", Probe: func(context.Context) error {
		called = true
		return nil
	}}

	_, err := r.Resolve(context.Background(), "true")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestResolve_WindowsDelegatesToWSL(t *testing.T) {
	r := &Resolver{GOOS: "windows", Probe: func(context.Context) error { return nil }}
	inv, err := r.Resolve(context.Background(), "ls -la")

	require.NoError(t, err)
	assert.Equal(t, WSL, inv.Executable)
	assert.Equal(t, []string{"-e", "sh", "-c", "ls -la"}, inv.Args)
	assert.False(t, r.Native())
}

func TestResolve_WindowsProbeFails(t *testing.T) {
	probeErr := errors.New("wsl --status exited with code 1")
	r := &Resolver{GOOS: "windows", Probe: func(context.Context) error { return probeErr }}

	_, err := r.Resolve(context.Background(), "true")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlatformNotSupported)
	assert.ErrorIs(t, err, probeErr)
}

func TestResolve_ProbeRevalidatedPerCall(t *testing.T) {
	calls := 0
	r := &Resolver{GOOS: "windows", Probe: func(context.Context) error {
		calls++
		return nil
	}}

	for range 3 {
		_, err := r.Resolve(context.Background(), "true")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestResolve_ProbeCached(t *testing.T) {
	calls := 0
	r := &Resolver{GOOS: "windows", CacheProbe: true, Probe: func(context.Context) error {
		calls++
		return nil
	}}

	for range 3 {
		_, err := r.Resolve(context.Background(), "true")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestResolve_FailedProbeNotCached(t *testing.T) {
	calls := 0
	r := &Resolver{GOOS: "windows", CacheProbe: true, Probe: func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("not installed")
		}
		return nil
	}}

	_, err := r.Resolve(context.Background(), "true")
	require.ErrorIs(t, err, ErrPlatformNotSupported)

	_, err = r.Resolve(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
