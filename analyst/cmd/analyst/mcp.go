package main

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bizpulse/bizpulse/analyst/internal/config"
	"github.com/bizpulse/bizpulse/analyst/internal/mcptool"
	"github.com/bizpulse/bizpulse/pkg/logging"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the analyze_business_metrics tool over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		defer setupLogging(logging.Config{Level: "warn"})()

		slog.Info("mcp server starting", "version", version)
		return server.ServeStdio(mcptool.NewServer(version))
	},
}
