package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Version is the MCP server version.
const Version = "0.1.0"

const instructions = `docqa answers questions from documents the user has uploaded.
Upload pdf, docx or xlsx files with ingest_document, then poll document_status
until the document is ready. Only ready documents are searched by ask.
Cite the returned sources (document, page or sheet) when relaying answers.`

const shutdownGrace = 5 * time.Second

// Server exposes the document and query services as MCP tools and resources.
type Server struct {
	ports  *Ports
	server *mcp.Server
	log    *zap.Logger
}

// NewServer builds the server and registers every tool and resource.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "docqa", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
		log: zap.NewNop(),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// WithLogger sets the logger used for transport lifecycle events.
func (s *Server) WithLogger(log *zap.Logger) *Server {
	if log != nil {
		s.log = log.Named("mcp")
	}
	return s
}

// Run serves JSON-RPC over stdin/stdout until ctx is cancelled.
// Nothing else may write to stdout while it runs.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving over stdio")
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the streamable HTTP handler. Every session shares one
// server, so all clients see the same document set.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled, then
// gives open sessions a short grace period to finish.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving streamable http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("mcp http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("mcp shutdown", zap.Error(err))
		return err
	}
	s.log.Info("mcp http server stopped")
	return nil
}
