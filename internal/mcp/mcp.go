// Package mcp provides the shellrun MCP server, exposing command execution
// and run inspection as tools.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/deixis/shellrun"
	"github.com/deixis/shellrun/internal/config"
	"github.com/deixis/shellrun/internal/platform"
	"github.com/deixis/shellrun/internal/report"
	"github.com/deixis/shellrun/internal/runner"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	runner runner.Runner // template copied for each call
	store  report.Store
	log    *zap.Logger
}

// NewServer creates an MCP server with all shellrun tools registered.
// Every execution is saved to store so it can be inspected later.
func NewServer(r *runner.Runner, store report.Store) *mcp.Server {
	h := &handler{
		runner: *r,
		store:  store,
		log:    r.Logger,
	}
	h.runner.Store = store
	if h.runner.Timeout <= 0 {
		h.runner.Timeout = runner.DefaultTimeout
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "shellrun", Version: shellrun.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "shell_run",
		Description: `Run a shell command and return its stdout, stderr and exit code.

A non-zero exit code or stderr output is reported, not treated as a tool error.
The command is killed with its children if it exceeds the timeout.
Results are stored for later retrieval via shell_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "shell_exit_code",
		Description: `Run a shell command and return only its exit code.

Any stderr output fails the call, whatever the exit code.`,
	}, h.exitCodeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "shell_ok",
		Description: `Run a shell command and report whether it exited with code 0.

A non-zero exit fails the call and includes stderr.`,
	}, h.okHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "shell_inspect",
		Description: "Show the stored result of an earlier run by its run_id.",
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "shell_platform",
		Description: "Describe how commands are launched on this host: OS, shell, working directory and timeout.",
	}, h.platformHandler)

	return s
}

// updateFromRoots queries the client for MCP roots and, if a file root is
// returned, runs commands there using that directory's .shellrun settings.
// This is called during session initialization, before any tool calls.
func (h *handler) updateFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	dir := u.Path

	loaded, err := config.Load(dir)
	if err != nil {
		h.log.Warn("ignoring root config", zap.String("dir", dir), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.runner.Dir = dir
	h.runner.Timeout = loaded.Config.Timeout()
	h.runner.Resolver = &platform.Resolver{
		Shell:      loaded.Config.Shell,
		CacheProbe: loaded.Config.CacheProbe,
	}
}

// runnerFor returns a copy of the template runner with an optional
// per-call timeout in milliseconds.
func (h *handler) runnerFor(timeoutMS int) *runner.Runner {
	h.mu.Lock()
	r := h.runner
	h.mu.Unlock()
	if timeoutMS > 0 {
		r.Timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	return &r
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
