// Package mcp provides the cogrun MCP server, registering the
// regeneration tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/deixis/cogrun"
	"github.com/deixis/cogrun/internal/config"
	"github.com/deixis/cogrun/internal/regen"
	"github.com/deixis/cogrun/internal/report"
	"github.com/deixis/cogrun/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	// mu serialises regenerations and workspace updates.
	mu     sync.Mutex
	engine *regen.Engine
	runner *runner.Runner // retained for updateWorkspaceFromRoots
	store  report.Store
}

// NewServer creates an MCP server with all cogrun tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, root string) *mcp.Server {
	h := &handler{
		engine: &regen.Engine{
			Config:   cfg,
			Runner:   r,
			Root:     root,
			LookPath: exec.LookPath,
		},
		runner: r,
		store:  store,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "cogrun", Version: cogrun.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cog_regenerate",
		Description: `Run the cog generator in rewrite-in-place mode against the target file.

Blocks until the generator exits. Returns the generator's stdout and, if any, its stderr.
A non-zero exit is returned as an error result with the exit code, output and stderr.
Results are stored for later retrieval via cog_inspect.`,
	}, h.regenerateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cog_inspect",
		Description: `Show the stored result of an earlier cog_regenerate run.

Use the run_id from the cog_regenerate output. Optionally select a single stream.`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates
// the handler's engine, runner and config if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.runner.Workspace = loaded.Root
	h.runner.Timeout = loaded.Config.Timeout()
	h.runner.MaxOutput = loaded.Config.MaxOutputBytes()

	h.engine.Config = loaded.Config
	h.engine.Root = loaded.Root
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
