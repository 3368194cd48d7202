package regen

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deixis/cogrun/internal/config"
	"github.com/deixis/cogrun/internal/runner"
)

// fakeRunner returns a canned result and records the argv it was given.
type fakeRunner struct {
	result *runner.Result
	err    error
	argv   []string
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, argv []string) (*runner.Result, error) {
	f.calls++
	f.argv = argv
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newFake(exit int, stdout, stderr string) *fakeRunner {
	return &fakeRunner{result: &runner.Result{
		RunID:    "run-1",
		ExitCode: exit,
		Stdout:   []byte(stdout),
		Stderr:   []byte(stderr),
	}}
}

func regenerate(t *testing.T, f *fakeRunner) (*Outcome, string, error) {
	t.Helper()
	e := &Engine{Config: &config.Config{}, Runner: f}
	out, err := e.Regenerate(context.Background())
	if out == nil {
		t.Fatalf("Regenerate returned nil outcome: %v", err)
	}
	return out, Format(out), err
}

func TestRegenerate_DefaultArgv(t *testing.T) {
	f := newFake(0, "", "")
	regenerate(t, f)

	want := "python -m cogapp -r CMakeLists.txt"
	if got := strings.Join(f.argv, " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestRegenerate_TargetOverride(t *testing.T) {
	f := newFake(0, "", "")
	e := &Engine{Config: &config.Config{}, Runner: f, Target: "src/CMakeLists.txt"}
	out, err := e.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Target != "src/CMakeLists.txt" {
		t.Errorf("Target = %q, want src/CMakeLists.txt", out.Target)
	}
	if last := f.argv[len(f.argv)-1]; last != "src/CMakeLists.txt" {
		t.Errorf("last arg = %q, want src/CMakeLists.txt", last)
	}
}

func TestRegenerate_TargetOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "CMakeLists.txt")
	for _, target := range []string{"../CMakeLists.txt", "src/../../CMakeLists.txt", outside} {
		f := newFake(0, "", "")
		e := &Engine{Config: &config.Config{}, Runner: f, Root: root, Target: target}
		out, err := e.Regenerate(context.Background())
		if err == nil {
			t.Errorf("target %q: expected error", target)
			continue
		}
		if out != nil {
			t.Errorf("target %q: Outcome = %+v, want nil", target, out)
		}
		if f.calls != 0 {
			t.Errorf("target %q: runner calls = %d, want 0", target, f.calls)
		}
		if got := ExitStatus(err, false); got != 1 {
			t.Errorf("target %q: ExitStatus = %d, want 1", target, got)
		}
	}
}

func TestRegenerate_AbsoluteTargetInsideRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "gen", "CMakeLists.txt")
	f := newFake(0, "", "")
	e := &Engine{Config: &config.Config{}, Runner: f, Root: root, Target: target}
	if _, err := e.Regenerate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := f.argv[len(f.argv)-1]; last != target {
		t.Errorf("last arg = %q, want %q", last, target)
	}
}

func TestRegenerate_EmptyOutput(t *testing.T) {
	_, text, err := regenerate(t, newFake(0, "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("output = %q, want empty", text)
	}
}

func TestRegenerate_StdoutOnly(t *testing.T) {
	_, text, err := regenerate(t, newFake(0, "updated CMakeLists.txt", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "updated CMakeLists.txt\n" {
		t.Errorf("output = %q, want %q", text, "updated CMakeLists.txt\n")
	}
	if strings.Contains(text, "Errors:") {
		t.Errorf("output contains Errors: line: %q", text)
	}
}

func TestRegenerate_SuccessWithWarnings(t *testing.T) {
	_, text, err := regenerate(t, newFake(0, "ok", "warning: deprecated tag"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "ok\nErrors: warning: deprecated tag\n"
	if text != want {
		t.Errorf("output = %q, want %q", text, want)
	}
}

func TestRegenerate_Failure(t *testing.T) {
	out, text, err := regenerate(t, newFake(1, "partial", "fatal: parse error"))

	var failure *CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *CommandFailure", err)
	}
	if failure.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", failure.ExitCode)
	}
	if failure.Output != "partial" || failure.Stderr != "fatal: parse error" {
		t.Errorf("failure = %+v", failure)
	}
	if out.Succeeded() {
		t.Error("Succeeded() = true, want false")
	}

	want := "Command failed with exit code 1\nOutput: partial\nError: fatal: parse error\n"
	if text != want {
		t.Errorf("output = %q, want %q", text, want)
	}
	if got := ExitStatus(err, false); got != 0 {
		t.Errorf("ExitStatus(propagate=false) = %d, want 0", got)
	}
}

func TestRegenerate_TrailingNewlinesTrimmed(t *testing.T) {
	_, text, _ := regenerate(t, newFake(0, "line1\nline2\n", "warn\n"))
	want := "line1\nline2\nErrors: warn\n"
	if text != want {
		t.Errorf("output = %q, want %q", text, want)
	}
}

func TestRegenerate_ExecError(t *testing.T) {
	f := &fakeRunner{err: errors.New("executable file not found")}
	e := &Engine{Config: &config.Config{}, Runner: f}
	out, err := e.Regenerate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil {
		t.Errorf("Outcome = %+v, want nil", out)
	}
	var failure *CommandFailure
	if errors.As(err, &failure) {
		t.Error("exec error reported as CommandFailure")
	}
	if got := ExitStatus(err, false); got != 1 {
		t.Errorf("ExitStatus = %d, want 1", got)
	}
}

func TestRegenerate_RepeatedRunsSameOutcome(t *testing.T) {
	f := newFake(1, "", "boom")
	e := &Engine{Config: &config.Config{}, Runner: f}

	_, err1 := e.Regenerate(context.Background())
	_, err2 := e.Regenerate(context.Background())
	if (err1 == nil) != (err2 == nil) {
		t.Errorf("outcomes differ: %v vs %v", err1, err2)
	}
	if f.calls != 2 {
		t.Errorf("calls = %d, want 2", f.calls)
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		propagate bool
		want      int
	}{
		{"nil", nil, true, 0},
		{"failure swallowed", &CommandFailure{ExitCode: 2}, false, 0},
		{"failure propagated", &CommandFailure{ExitCode: 2}, true, 2},
		{"killed propagated", &CommandFailure{ExitCode: -1}, true, 1},
		{"other error", errors.New("x"), false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitStatus(tt.err, tt.propagate); got != tt.want {
				t.Errorf("ExitStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestRegenerate_Subprocess drives a real process through runner.Runner,
// with a shell script standing in for the generator.
func TestRegenerate_Subprocess(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Tool: []string{"sh", "-c", `printf 'ok'; printf 'warning: %s' "$1" >&2`},
	}
	e := &Engine{
		Config: cfg,
		Runner: &runner.Runner{Workspace: dir, MaxOutput: cfg.MaxOutputBytes()},
		Root:   dir,
	}

	// sh -c receives "-r" as $0 and the target as $1.
	out, err := e.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "ok\nErrors: warning: CMakeLists.txt\n"
	if got := Format(out); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRegenerate_SubprocessFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Tool: []string{"sh", "-c", `printf partial; printf 'fatal: parse error' >&2; exit 1`},
	}
	e := &Engine{
		Config: cfg,
		Runner: &runner.Runner{Workspace: dir},
		Root:   dir,
	}

	out, err := e.Regenerate(context.Background())
	var failure *CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("error = %v, want *CommandFailure", err)
	}
	want := "Command failed with exit code 1\nOutput: partial\nError: fatal: parse error\n"
	if got := Format(out); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
