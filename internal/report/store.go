// Package report persists regeneration runs so they can be looked up by
// run ID after the console output has scrolled away.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/cogrun/internal/regen"
)

// Status is the terminal state of a run.
type Status string

const (
	// Success means the generator exited with status 0.
	Success Status = "success"
	// Failure means the generator exited with a non-zero status.
	Failure Status = "failure"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the stored form of a regen.Outcome.
type RunResult struct {
	ID        string        `json:"id"`
	Status    Status        `json:"status"`
	Target    string        `json:"target"`
	Dir       string        `json:"dir,omitempty"`
	Argv      []string      `json:"argv"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout,omitempty"`
	Stderr    string        `json:"stderr,omitempty"`
	Truncated bool          `json:"truncated,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// FromOutcome converts a regeneration outcome into its stored form.
func FromOutcome(o *regen.Outcome) *RunResult {
	status := Success
	if !o.Succeeded() {
		status = Failure
	}
	return &RunResult{
		ID:        o.RunID,
		Status:    status,
		Target:    o.Target,
		Dir:       o.Dir,
		Argv:      o.Argv,
		ExitCode:  o.ExitCode,
		Stdout:    o.Stdout,
		Stderr:    o.Stderr,
		Truncated: o.Truncated,
		StartedAt: o.StartedAt,
		Duration:  o.Duration,
	}
}

// Outcome converts r back into a regen.Outcome, e.g. for re-printing.
func (r *RunResult) Outcome() *regen.Outcome {
	return &regen.Outcome{
		RunID:     r.ID,
		Argv:      r.Argv,
		Dir:       r.Dir,
		Target:    r.Target,
		ExitCode:  r.ExitCode,
		Stdout:    r.Stdout,
		Stderr:    r.Stderr,
		Truncated: r.Truncated,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
	}
}

// Summary returns a short multi-line header describing the run.
func (r *RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Status: %s (exit code %d)\n", r.Status, r.ExitCode)
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Argv, " "))
	if r.Dir != "" {
		fmt.Fprintf(&b, "Directory: %s\n", r.Dir)
	}
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s (took %s)\n", r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	}
	if r.Truncated {
		fmt.Fprintln(&b, "Output was truncated.")
	}
	return b.String()
}
