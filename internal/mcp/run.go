package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/shellrun/internal/runner"
)

type runParams struct {
	Command   string `json:"command" jsonschema:"the command line to run, passed to sh -c (e.g. ls -la | head)"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"kill the command after this many milliseconds. Default: 30000."`
}

// lastOutcome captures the outcome of a single execution.
type lastOutcome struct {
	out *runner.Outcome
}

func (l *lastOutcome) Started(string, string) {}

func (l *lastOutcome) Finished(out *runner.Outcome) { l.out = out }

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	r := h.runnerFor(params.TimeoutMS)
	last := &lastOutcome{}
	r.Observer = last

	res, err := runner.Collect(ctx, r, params.Command, runner.NewTextResult)
	if err != nil {
		return errorResult(formatRunError(last.out, err))
	}
	return textResult(formatRun(last.out.RunID, res))
}

func (h *handler) exitCodeHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	r := h.runnerFor(params.TimeoutMS)
	last := &lastOutcome{}
	r.Observer = last

	code, err := r.ExitCode(ctx, params.Command)
	if err != nil {
		return errorResult(formatRunError(last.out, err))
	}
	return textResult(fmt.Sprintf("Exit code: %d\nRun: %s\n", code, last.out.RunID))
}

func (h *handler) okHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	r := h.runnerFor(params.TimeoutMS)
	last := &lastOutcome{}
	r.Observer = last

	ok, err := r.Succeeds(ctx, params.Command)
	if err != nil {
		return errorResult(formatRunError(last.out, err))
	}
	return textResult(fmt.Sprintf("OK: %t\nRun: %s\n", ok, last.out.RunID))
}

func formatRun(runID string, res *runner.TextResult) string {
	var b strings.Builder

	if res.ExitCode == 0 {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Exit code: %d\n", res.ExitCode)

	if res.Output != "" {
		fmt.Fprintf(&b, "\nStdout:\n%s\n", res.Output)
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "\nStderr:\n%s\n", res.Error)
	}
	return b.String()
}

// formatRunError describes why a run did not produce a normal result.
// out is nil when the command was rejected before execution.
func formatRunError(out *runner.Outcome, err error) string {
	var b strings.Builder

	var (
		cancelled *runner.CancelledError
		exitErr   *runner.ExitError
	)
	switch {
	case errors.Is(err, runner.ErrInvalidCommand):
		return "command is required"
	case errors.As(err, &cancelled):
		if cancelled.Timeout() {
			fmt.Fprintln(&b, "Status: TIMEOUT")
		} else {
			fmt.Fprintln(&b, "Status: CANCELLED")
		}
	case errors.Is(err, runner.ErrLaunchFailure):
		fmt.Fprintln(&b, "Status: LAUNCH FAILED")
	case errors.As(err, &exitErr):
		fmt.Fprintln(&b, "Status: FAIL")
		fmt.Fprintf(&b, "Exit code: %d\n", exitErr.Code)
	default:
		fmt.Fprintln(&b, "Status: ERROR")
	}

	if out != nil {
		fmt.Fprintf(&b, "Run: %s\n", out.RunID)
	}
	fmt.Fprintf(&b, "\n%v\n", err)
	return b.String()
}
