// Package mcp exposes the template catalog to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fastertools/devlaunch/internal/resolver"
)

// Tool names.
const (
	ToolResolve  = "resolve_template"
	ToolList     = "list_templates"
	ToolReadFile = "read_template_file"
)

// Server is an MCP server backed by a catalog.
type Server struct {
	server *mcp.Server
	cat    resolver.Catalog
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Logs must not go to stdout, which
// carries the protocol.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates an MCP server with every devlaunch tool registered.
func NewServer(cat resolver.Catalog, version string, opts ...Option) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "devlaunch",
			Version: version,
		}, nil),
		cat:    cat,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolResolve,
		Description: "Find the catalog template whose tags exactly match the technologies named in a prompt, and list its files",
	}, s.handleResolve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolList,
		Description: "List catalog templates, optionally only those carrying every given tag",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolReadFile,
		Description: "Read one template file by the storage key returned from resolve_template",
	}, s.handleReadFile)

	s.logger.Debug("registered tools", "count", 3)
}

// Run serves MCP over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, mcp.NewStdioTransport())
}

// Serve serves MCP over t until ctx is done or the client disconnects.
func (s *Server) Serve(ctx context.Context, t mcp.Transport) error {
	s.logger.Debug("mcp session starting")
	return s.server.Run(ctx, t)
}
