// Package regen runs the cog generator in rewrite-in-place mode against
// the configured target file and reports what it printed.
package regen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deixis/cogrun/internal/config"
	"github.com/deixis/cogrun/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (*runner.Result, error)
}

// Engine holds the dependencies for a regeneration run.
type Engine struct {
	Config *config.Config
	Runner CommandRunner
	Root   string // directory the tool runs in; the target must stay inside it
	Target string // overrides Config.TargetFile when set

	// LookPath, when set, is used to check that the generator is
	// installed before running it. Typically exec.LookPath.
	LookPath func(file string) (string, error)
}

// Outcome is the result of one generator invocation.
type Outcome struct {
	RunID     string
	Argv      []string
	Dir       string
	Target    string
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the generator exited with status 0.
func (o *Outcome) Succeeded() bool {
	return o.ExitCode == 0
}

// Err returns a *CommandFailure for a non-zero exit status, or nil.
func (o *Outcome) Err() error {
	if o.Succeeded() {
		return nil
	}
	return &CommandFailure{ExitCode: o.ExitCode, Output: o.Stdout, Stderr: o.Stderr}
}

// CommandFailure is returned when the generator exits with a non-zero status.
type CommandFailure struct {
	ExitCode int
	Output   string // captured stdout
	Stderr   string
}

func (e *CommandFailure) Error() string {
	return fmt.Sprintf("command failed with exit code %d", e.ExitCode)
}

// Regenerate runs the generator once and waits for it to exit.
//
// On a non-zero exit it returns both the Outcome and a *CommandFailure.
// When the generator could not be started at all, or the target lies
// outside Root, the Outcome is nil.
func (e *Engine) Regenerate(ctx context.Context) (*Outcome, error) {
	target := e.Target
	if target == "" {
		target = e.Config.TargetFile()
	}
	if _, err := runner.Resolve(e.Root, target); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	tool := e.Config.ToolArgv()
	if e.LookPath != nil {
		var err error
		if tool, err = ResolveTool(e.Config, e.LookPath); err != nil {
			return nil, err
		}
	}
	argv := e.Config.CommandLine(tool, target)

	started := time.Now()
	res, err := e.Runner.Run(ctx, argv)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", argv[0], err)
	}

	out := &Outcome{
		RunID:     res.RunID,
		Argv:      argv,
		Dir:       e.Root,
		Target:    target,
		ExitCode:  res.ExitCode,
		Stdout:    string(res.Stdout),
		Stderr:    string(res.Stderr),
		Truncated: res.Truncated,
		StartedAt: started,
		Duration:  res.Duration,
	}
	return out, out.Err()
}

// ExitStatus maps the error from Regenerate to the status the process
// should exit with. Without propagate, a CommandFailure is reported but
// not propagated, so the status is 0. Any other error yields 1.
func ExitStatus(err error, propagate bool) int {
	if err == nil {
		return 0
	}
	var failure *CommandFailure
	if !errors.As(err, &failure) {
		return 1
	}
	if !propagate {
		return 0
	}
	if failure.ExitCode > 0 {
		return failure.ExitCode
	}
	return 1
}
