package main

import (
	"github.com/spf13/cobra"

	"github.com/bizpulse/bizpulse/analyst/internal/render"
	"github.com/bizpulse/bizpulse/pkg/analysis"
)

var graphOutput string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline stage graph as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		g := analysis.Pipeline()
		if graphOutput != "" {
			return render.WriteFile(graphOutput, g)
		}
		return render.JSON(cmd.OutOrStdout(), g)
	},
}

func init() {
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "", "write the graph to this file instead of stdout")
}
