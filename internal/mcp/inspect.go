package mcp

import (
	"context"
	"fmt"

	"github.com/deixis/cogrun/internal/regen"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID  string `json:"run_id,omitempty" jsonschema:"the run ID from a cog_regenerate result"`
	Stream string `json:"stream,omitempty" jsonschema:"stdout or stderr to return one stream verbatim; omit for a summary"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	switch params.Stream {
	case "":
		return textResult(result.Summary() + "\n" + regen.Format(result.Outcome()))
	case "stdout":
		return textResult(result.Stdout)
	case "stderr":
		return textResult(result.Stderr)
	default:
		return errorResult(fmt.Sprintf("unknown stream %q: want stdout or stderr", params.Stream))
	}
}
