package runner

import (
	"time"

	"github.com/deixis/shellrun/internal/report"
)

// Kind identifies which terminal outcome an execution reached.
type Kind = report.Outcome

// Outcome kinds. Exactly one is produced per execution.
const (
	Success     = report.Success
	Failure     = report.Failure
	Cancelled   = report.Cancelled
	LaunchError = report.LaunchError
)

// Outcome is the terminal result of one execution.
type Outcome struct {
	RunID     string    // unique identifier for this run
	Command   string    // command as supplied by the caller
	Kind      Kind      // which terminal state was reached
	ExitCode  int       // valid for Success and Failure only
	Stdout    string    // stdout lines joined by "\n"
	Stderr    string    // stderr lines joined by "\n"
	Err       error     // set for Cancelled and LaunchError
	StartedAt time.Time // when the execution began
	Duration  time.Duration
}

// Exited reports whether the process ran to completion, successfully or not.
func (o *Outcome) Exited() bool {
	return o.Kind == Success || o.Kind == Failure
}

// Record converts the outcome to its stored form.
func (o *Outcome) Record() *report.Record {
	r := &report.Record{
		ID:        o.RunID,
		Command:   o.Command,
		Outcome:   o.Kind,
		StartedAt: o.StartedAt,
		Duration:  o.Duration,
	}
	if o.Exited() {
		r.ExitCode = o.ExitCode
		r.Stdout = o.Stdout
		r.Stderr = o.Stderr
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}
