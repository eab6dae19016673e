package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iterata/iterata/internal/config"
	"github.com/iterata/iterata/internal/loop"
	"github.com/iterata/iterata/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run iterata as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes iterata over stdio.

The server lets AI tools log corrections and query the analysis
directly:

  • iterata_log             - Log a human correction
  • iterata_explain         - Attach an explanation to a pending correction
  • iterata_stats           - Compute statistics
  • iterata_patterns        - Detect recurring patterns
  • iterata_recommendations - Derive prioritized actions
  • iterata_summary         - Render the text summary
  • iterata_skill_update    - Regenerate the skill

It communicates via JSON-RPC 2.0 over stdin/stdout, following the
Model Context Protocol specification.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			// Stdout carries the protocol, so logs go to stderr.
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			l, err := loop.FromConfig(cfg, logger)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "iterata",
				Version: version,
				Logger:  logger,
			}, l)
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}
			defer server.Close()

			if err := server.Run(cmd.Context()); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		},
	}
}
