// Package mcpserver exposes the session tool catalog over the Model Context
// Protocol so other agents can drive sessions.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opencode-ai/overseer/internal/logging"
	"github.com/opencode-ai/overseer/internal/tool"
)

// Name is the server name announced to MCP clients.
const Name = "overseer"

// New creates an MCP server with one MCP tool per registry tool.
func New(registry *tool.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version, server.WithToolCapabilities(true))
	for _, t := range registry.List() {
		s.AddTool(mcp.NewToolWithRawSchema(t.ID(), t.Description(), t.Parameters()), handler(registry, t.ID()))
	}
	return s
}

// handler adapts a registry tool to an MCP tool handler. Tool failures are
// reported as error results, not protocol errors.
func handler(registry *tool.Registry, name string) server.ToolHandlerFunc {
	log := logging.Component("mcp")
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := json.RawMessage(`{}`)
		if args := req.GetArguments(); args != nil {
			raw, err := json.Marshal(args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			input = raw
		}

		out, err := registry.Execute(ctx, name, input)
		if err != nil {
			log.Debug().Err(err).Str("tool", name).Msg("mcp tool call failed")
			return mcp.NewToolResultError(out), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves s on in/out until ctx is done or in is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

// NewSSE returns an SSE transport for s reachable at baseURL.
func NewSSE(s *server.MCPServer, baseURL string) *server.SSEServer {
	return server.NewSSEServer(s, server.WithBaseURL(baseURL))
}
