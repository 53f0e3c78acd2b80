package mcp

import (
	"context"
	"time"

	"jira-dashboard/internal/dashboard"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Server exposes the dashboard operations as MCP tools.
type Server struct {
	svc    *dashboard.Service
	server *mcp.Server
	now    func() time.Time
}

// NewServer creates a new MCP server with every tool registered.
func NewServer(svc *dashboard.Service, version string) *Server {
	s := &Server{
		svc: svc,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "jira-dashboard",
			Version: version,
		}, nil),
		now: time.Now,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
