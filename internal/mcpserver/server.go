package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/polyquery/polymarket-mcp/internal/tools"
)

// ServerName identifies this server in the MCP initialize handshake.
const ServerName = "polymarket-mcp"

// New builds the MCP server with all four market tools registered against the
// dispatcher.
func New(d *Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, tool := range tools.Definitions() {
		s.AddTool(tool, handler(d, tool.Name))
	}

	return s
}

// handler adapts one tool onto the dispatcher. Domain errors become error
// results, not protocol errors, so the model sees the message and can
// correct the call.
func handler(d *Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := d.Invoke(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(Message(err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// ServeStdio runs the server over stdin/stdout until the stream closes or ctx
// is canceled. stdout carries the protocol, so logs must go to stderr.
func ServeStdio(ctx context.Context, s *server.MCPServer) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(
		func(context.Context) context.Context { return ctx },
	))
}

// NewStreamableHTTP wraps the server in the streamable HTTP transport. The
// returned server is an http.Handler; the caller mounts and runs it.
func NewStreamableHTTP(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s)
}
