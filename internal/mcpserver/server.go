package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/journal"
	"github.com/mark3labs/dealerdesk/internal/logger"
)

// Backend is the read-only part of the API client the tools use.
type Backend interface {
	GetVehicle(ctx context.Context, id string) (draft.Entity, error)
	ListPaymentSlots(ctx context.Context, vehicleID string) ([]draft.PaymentSlot, error)
}

// JournalReader lists recorded submission stage events.
type JournalReader interface {
	List(ctx context.Context, vehicleID string) ([]journal.Event, error)
}

// Server exposes read-only vehicle lookup tools over MCP, either on stdio or
// on a local streamable HTTP endpoint.
type Server struct {
	backend   Backend
	journal   JournalReader // nil when the journal is disabled
	mcpServer *server.MCPServer

	stdServer *http.Server
	port      int
	mu        sync.Mutex
}

// New creates a server with its tools registered. j may be nil.
func New(backend Backend, j JournalReader, version string) *Server {
	s := &Server{backend: backend, journal: j}
	s.mcpServer = server.NewMCPServer(
		"dealerdesk-tools",
		version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// ServeStdio serves the tools on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Start serves the tools over HTTP on a random local port and returns it.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	// Passing the listener to Serve avoids picking a port that is taken
	// before the server binds it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find available port: %w", err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true)))
	s.stdServer = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	logger.Debug("Starting MCP server on port %d", s.port)
	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()
	return s.port, nil
}

// Stop shuts the HTTP endpoint down. It is a no-op when not started.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}

	logger.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}
	s.stdServer = nil
	return nil
}

// URL returns the HTTP endpoint URL.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
