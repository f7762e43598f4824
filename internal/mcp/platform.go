package mcp

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/shellrun/internal/platform"
)

type platformParams struct{}

func (h *handler) platformHandler(ctx context.Context, req *mcp.CallToolRequest, _ platformParams) (*mcp.CallToolResult, any, error) {
	r := h.runnerFor(0)
	resolver := r.Resolver
	if resolver == nil {
		resolver = &platform.Resolver{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	inv, err := resolver.Resolve(ctx, "true")
	switch {
	case err != nil:
		fmt.Fprintf(&b, "Shell: unavailable (%v)\n", err)
	case resolver.Native():
		fmt.Fprintf(&b, "Shell: %s -c\n", inv.Executable)
	default:
		fmt.Fprintf(&b, "Shell: %s\n", strings.Join(append([]string{inv.Executable}, inv.Args[:len(inv.Args)-1]...), " "))
	}

	dir := r.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	fmt.Fprintf(&b, "Directory: %s\n", dir)
	fmt.Fprintf(&b, "Timeout: %s\n", r.Timeout)

	return textResult(b.String())
}
