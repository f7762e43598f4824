package runner

import "context"

// Sink builds an application-defined result from a finished execution.
type Sink interface {
	// SetExitCode receives the process exit code.
	SetExitCode(code int)
	// ParseResult receives stdout. It is only called when stdout is non-empty.
	ParseResult(stdout string)
	// ParseError receives stderr. It is only called when stderr is non-empty.
	ParseError(stderr string)
}

// Project feeds a finished outcome to sink: stdout, then stderr, then the
// exit code.
func Project(sink Sink, out *Outcome) {
	if out.Stdout != "" {
		sink.ParseResult(out.Stdout)
	}
	if out.Stderr != "" {
		sink.ParseError(out.Stderr)
	}
	sink.SetExitCode(out.ExitCode)
}

// Collect runs command and returns a sink built by newSink and populated
// from the outcome. Non-zero exit codes and stderr output are left for the
// sink to interpret; only invalid commands, launch failures and
// cancellation are returned as errors, and in those cases newSink is
// never called.
func Collect[T Sink](ctx context.Context, r *Runner, command string, newSink func() T) (T, error) {
	var zero T

	out, err := r.Execute(ctx, command)
	if err != nil {
		return zero, err
	}
	if !out.Exited() {
		return zero, out.Err
	}

	sink := newSink()
	Project(sink, out)
	return sink, nil
}

// Succeeds runs command and reports whether it exited with code 0.
// A non-zero exit returns an ExitError matching ErrNonZeroExit. Stderr
// output alone does not fail the command.
func (r *Runner) Succeeds(ctx context.Context, command string) (bool, error) {
	out, err := r.Execute(ctx, command)
	if err != nil {
		return false, err
	}
	if !out.Exited() {
		return false, out.Err
	}
	if out.ExitCode != 0 {
		return false, &ExitError{Code: out.ExitCode, Stderr: out.Stderr, Reason: ErrNonZeroExit}
	}
	return true, nil
}

// ExitCode runs command and returns its exit code. Any stderr output,
// whatever the exit code, returns an ExitError matching ErrStderrProduced
// alongside the code.
func (r *Runner) ExitCode(ctx context.Context, command string) (int, error) {
	out, err := r.Execute(ctx, command)
	if err != nil {
		return 0, err
	}
	if !out.Exited() {
		return 0, out.Err
	}
	if out.Stderr != "" {
		return out.ExitCode, &ExitError{Code: out.ExitCode, Stderr: out.Stderr, Reason: ErrStderrProduced}
	}
	return out.ExitCode, nil
}

// TextResult is a Sink that keeps the raw text.
type TextResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewTextResult is a sink factory for Collect.
func NewTextResult() *TextResult { return &TextResult{} }

func (t *TextResult) SetExitCode(code int) { t.ExitCode = code }

func (t *TextResult) ParseResult(stdout string) { t.Output = stdout }

func (t *TextResult) ParseError(stderr string) { t.Error = stderr }
