// Package mcptool exposes the analysis pipeline as an MCP tool so that an
// LLM agent can request a business report for a set of figures.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bizpulse/bizpulse/pkg/analysis"
)

// ToolName is the MCP name of the analysis tool.
const ToolName = "analyze_business_metrics"

// AnalyzeTool handles the analyze_business_metrics MCP tool.
type AnalyzeTool struct{}

// NewAnalyzeTool creates an AnalyzeTool.
func NewAnalyzeTool() *AnalyzeTool {
	return &AnalyzeTool{}
}

// Definition returns the MCP tool definition for analyze_business_metrics.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(
			"Analyze one period of business figures. Returns the profit status, "+
				"alerts (loss, CAC spikes) and recommendations as JSON.",
		),
		mcp.WithNumber(analysis.FieldRevenue,
			mcp.Required(),
			mcp.Description("Revenue of the current period"),
		),
		mcp.WithNumber(analysis.FieldCost,
			mcp.Required(),
			mcp.Description("Total cost of the current period"),
		),
		mcp.WithNumber(analysis.FieldCustomers,
			mcp.Description("Customers acquired in the current period; must be positive (default 1)"),
		),
		mcp.WithNumber(analysis.FieldPrevRevenue,
			mcp.Description("Revenue of the previous period"),
		),
		mcp.WithNumber(analysis.FieldPrevCost,
			mcp.Description("Total cost of the previous period"),
		),
		mcp.WithNumber(analysis.FieldPrevCustomers,
			mcp.Description("Customers acquired in the previous period"),
		),
	)
}

// Handle processes the analyze_business_metrics tool call.
func (t *AnalyzeTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	for _, key := range []string{analysis.FieldRevenue, analysis.FieldCost} {
		if _, ok := args[key]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("missing required argument %q", key)), nil
		}
	}

	raw := make(map[string]any, len(analysis.FieldNames))
	for _, key := range analysis.FieldNames {
		if v, ok := args[key]; ok && v != nil {
			raw[key] = v
		}
	}

	rep, err := analysis.Analyze(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcptool: encode report: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// NewServer returns an MCP server with the analysis tool registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bizpulse",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tool := NewAnalyzeTool()
	s.AddTool(tool.Definition(), tool.Handle)
	return s
}
