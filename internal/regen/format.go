package regen

import (
	"fmt"
	"io"
	"strings"
)

// Write prints the console report for o.
//
// A successful run prints the captured stdout, followed by an
// "Errors:" line when stderr is not empty. A failed run prints the
// exit code, the captured output, and stderr.
func Write(w io.Writer, o *Outcome) error {
	_, err := io.WriteString(w, Format(o))
	return err
}

// Format returns the console report for o. See Write.
func Format(o *Outcome) string {
	var b strings.Builder

	if o.Succeeded() {
		if o.Stdout != "" {
			fmt.Fprintln(&b, trimNewline(o.Stdout))
		}
		if o.Stderr != "" {
			fmt.Fprintf(&b, "Errors: %s\n", trimNewline(o.Stderr))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Command failed with exit code %d\n", o.ExitCode)
	fmt.Fprintf(&b, "Output: %s\n", trimNewline(o.Stdout))
	fmt.Fprintf(&b, "Error: %s\n", trimNewline(o.Stderr))
	return b.String()
}

// trimNewline drops a single trailing line ending so that tool output
// does not produce a blank line after it.
func trimNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
