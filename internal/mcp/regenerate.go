package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/deixis/cogrun/internal/regen"
	"github.com/deixis/cogrun/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type regenerateParams struct {
	Target string `json:"target,omitempty" jsonschema:"file to rewrite, relative to the project root. Defaults to the configured target (CMakeLists.txt)."`
}

func (h *handler) regenerateHandler(ctx context.Context, req *mcp.CallToolRequest, params regenerateParams) (*mcp.CallToolResult, any, error) {
	h.mu.Lock()
	engine := *h.engine
	engine.Target = params.Target
	outcome, err := engine.Regenerate(ctx)
	h.mu.Unlock()

	var failure *regen.CommandFailure
	if err != nil && !errors.As(err, &failure) {
		return errorResult(fmt.Sprintf("regenerate failed: %v", err))
	}

	if saveErr := h.store.Save(report.FromOutcome(outcome)); saveErr != nil {
		log.Printf("saving run %s: %v", outcome.RunID, saveErr)
	}

	text := formatRegenerate(outcome)
	if failure != nil {
		return errorResult(text)
	}
	return textResult(text)
}

func formatRegenerate(o *regen.Outcome) string {
	var b strings.Builder

	if o.Succeeded() {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", o.RunID)
	fmt.Fprintf(&b, "Target: %s\n", o.Target)
	fmt.Fprintln(&b)

	out := regen.Format(o)
	if out == "" {
		fmt.Fprintln(&b, "(no output)")
	} else {
		fmt.Fprint(&b, out)
	}
	if o.Truncated {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Output was truncated.")
	}
	return b.String()
}
