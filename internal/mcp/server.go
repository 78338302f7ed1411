package mcp

import (
	"context"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/tools"
)

// NewServer creates an MCP server exposing the task tools. MCP transports
// carry no bearer token, so the owner is fixed at server creation: every
// call runs as that owner.
func NewServer(registry *tools.Registry, owner, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "quill",
		Version: version,
	}, nil)

	identity := auth.Identity{OwnerID: owner, ExpiresAt: time.Now().Add(24 * time.Hour)}

	for _, spec := range registry.Specs() {
		mcpTool := toolSpecToMCPTool(spec)

		// Capture tool in closure
		invokable := registry.Tool(spec.Name)
		toolName := spec.Name

		server.AddTool(mcpTool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			ctx = auth.WithIdentity(ctx, identity)
			result, err := invokable.InvokableRun(ctx, string(req.Params.Arguments))
			if err != nil {
				slog.Debug("mcp tool error", "tool", toolName, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
			}, nil
		})

		slog.Debug("mcp tool registered", "tool", toolName)
	}

	return server
}
