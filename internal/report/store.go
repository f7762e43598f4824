// Package report persists finished shell executions so they can be
// inspected after the fact by run ID.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal state of an execution.
type Outcome string

const (
	Success     Outcome = "success"
	Failure     Outcome = "failure"
	Cancelled   Outcome = "cancelled"
	LaunchError Outcome = "launch_error"
)

// Store persists and retrieves execution records.
type Store interface {
	Save(record *Record) error
	Load(runID string) (*Record, error)
}

// Record is the stored form of one execution.
type Record struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Outcome   Outcome       `json:"outcome"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Format renders a record for humans. Stdout and stderr are indented
// beneath their headers.
func Format(r *Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Command: %s\n", r.Command)
	fmt.Fprintf(&b, "Outcome: %s\n", r.Outcome)
	switch r.Outcome {
	case Success, Failure:
		fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	}
	fmt.Fprintf(&b, "Started: %s (%s)\n", r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}

	section := func(name, text string) {
		if text == "" {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", name)
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	section("Stdout", r.Stdout)
	section("Stderr", r.Stderr)

	return b.String()
}
