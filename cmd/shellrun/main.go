// Command shellrun runs shell commands with a timeout and reports their
// results, either directly or as an MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/deixis/shellrun/internal/runner"
)

// Process exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 5
	exitLaunch    = 6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitStatus carries the child's own exit code out of a subcommand.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// exitCode maps an error from a subcommand to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}

	fmt.Fprintf(os.Stderr, "shellrun: %v\n", err)
	var exitErr *runner.ExitError
	switch {
	case errors.Is(err, runner.ErrInvalidCommand), errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, runner.ErrCancelled):
		return exitCancelled
	case errors.Is(err, runner.ErrLaunchFailure):
		return exitLaunch
	case errors.As(err, &exitErr):
		if exitErr.Code > 0 {
			return exitErr.Code
		}
		return exitFailure
	}
	return exitFailure
}
