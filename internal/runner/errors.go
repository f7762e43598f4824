package runner

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand is returned for empty or whitespace-only commands.
	// No process is created.
	ErrInvalidCommand = errors.New("invalid command: must not be empty")

	// ErrLaunchFailure matches any error where the process could not start.
	ErrLaunchFailure = errors.New("launch failure")

	// ErrNonZeroExit matches an ExitError caused by a non-zero exit code.
	ErrNonZeroExit = errors.New("non-zero exit")

	// ErrStderrProduced matches an ExitError caused by stderr output.
	ErrStderrProduced = errors.New("stderr produced")

	// ErrCancelled matches a CancelledError.
	ErrCancelled = errors.New("cancelled")
)

// ExitError reports a command that ran but is treated as failed.
type ExitError struct {
	Code   int
	Stderr string
	// Reason is ErrNonZeroExit or ErrStderrProduced.
	Reason error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command exited with code %d", e.Code)
	}
	return fmt.Sprintf("command exited with code %d: %s", e.Code, e.Stderr)
}

// Is matches the failure reason.
func (e *ExitError) Is(target error) bool {
	return target == e.Reason
}

// CancelledError reports a command killed by timeout or by the caller.
// It unwraps to context.DeadlineExceeded or context.Canceled.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Timeout() {
		return "command timed out"
	}
	return fmt.Sprintf("command cancelled: %v", e.Cause)
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Unwrap() error { return e.Cause }

// Timeout reports whether the deadline elapsed, as opposed to an external cancel.
func (e *CancelledError) Timeout() bool {
	return errors.Is(e.Cause, context.DeadlineExceeded)
}

// LaunchFailedError reports a process that could not be started.
type LaunchFailedError struct {
	Command string
	Err     error
}

func (e *LaunchFailedError) Error() string {
	return fmt.Sprintf("launching %q: %v", e.Command, e.Err)
}

func (e *LaunchFailedError) Is(target error) bool { return target == ErrLaunchFailure }

func (e *LaunchFailedError) Unwrap() error { return e.Err }
