// Package mcp exposes the correction loop over the Model Context
// Protocol on stdio, so agents can log corrections and query the
// analysis directly.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/iterata/iterata/internal/loop"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "iterata").
	Name string

	// Version is the server version (default: "dev").
	Version string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "iterata",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// Server serves the correction-loop tools over MCP.
type Server struct {
	mcp    *mcp.Server
	loop   *loop.Loop
	logger *zap.Logger
}

// NewServer creates an MCP server over the given loop.
func NewServer(cfg *Config, l *loop.Loop) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Name == "" {
		cfg.Name = "iterata"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if l == nil {
		return nil, fmt.Errorf("correction loop is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		loop:   l,
		logger: cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP on the stdio transport until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Close flushes the logger. The markdown store holds no open handles.
func (s *Server) Close() error {
	s.logger.Info("MCP server closed")
	_ = s.logger.Sync()
	return nil
}
