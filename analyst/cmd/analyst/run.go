package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bizpulse/bizpulse/analyst/internal/collect"
	"github.com/bizpulse/bizpulse/analyst/internal/config"
	"github.com/bizpulse/bizpulse/analyst/internal/render"
	"github.com/bizpulse/bizpulse/analyst/internal/shipper"
	"github.com/bizpulse/bizpulse/analyst/internal/source"
	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/logging"
)

var (
	runInput  string
	runFormat string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyze a record file, or every configured source once",
	Long: `Analyze a single record file given with --input, or load every source
in the config once, print the results and ship them to the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !render.ValidFormat(runFormat) {
			return fmt.Errorf("unknown format %q: want json|text", runFormat)
		}
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		if runInput != "" {
			defer setupLogging(logging.Config{})()
			return runInputFile(cmd, runInput)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		defer setupLogging(cfg.Analyst.Log)()
		return runSources(cmd.Context(), cmd, cfg.Analyst)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "record file to analyze (json, yaml or yml)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", render.FormatJSON, "output format: json|text")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "also write the JSON result to this file")
}

// runInputFile analyzes one record file and prints its report.
func runInputFile(cmd *cobra.Command, path string) error {
	fields, err := source.ReadFile(path)
	if err != nil {
		return err
	}
	rep, err := analysis.Analyze(fields)
	if err != nil {
		return fmt.Errorf("analyze %q: %w", path, err)
	}

	if runOutput != "" {
		if err := render.WriteFile(runOutput, rep); err != nil {
			return err
		}
	}
	if runFormat == render.FormatText {
		render.Report(cmd.OutOrStdout(), rep)
		return nil
	}
	return render.JSON(cmd.OutOrStdout(), rep)
}

// runSources collects every configured source once.
func runSources(ctx context.Context, cmd *cobra.Command, cfg config.AnalystConfig) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured in %s", configPath)
	}
	set, err := source.NewSet(cfg.Sources)
	if err != nil {
		return err
	}
	defer set.Close()

	var bar *progressbar.ProgressBar
	if set.Len() > 1 {
		bar = progressbar.Default(int64(set.Len()), "collecting")
	}

	engine := collect.NewEngine()
	var outs []*collect.Outcome
	set.LoadAll(ctx, func(res *source.Result) {
		outs = append(outs, engine.Process(res, time.Now()))
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	if cfg.ServerEndpoint != "" {
		ship := shipper.New(cfg)
		for _, o := range outs {
			if err := ship.Send(ctx, o); err != nil {
				slog.Error("failed to ship snapshot", "source", o.SourceID, "err", err)
			}
		}
	}

	output := runOutput
	if output == "" {
		output = cfg.Output
	}
	if output != "" {
		if err := render.WriteFile(output, render.Snapshots(outs)); err != nil {
			return err
		}
	}

	if runFormat == render.FormatText {
		render.Outcomes(cmd.OutOrStdout(), outs)
	} else if err := render.JSON(cmd.OutOrStdout(), render.Snapshots(outs)); err != nil {
		return err
	}

	for _, o := range outs {
		if !o.Failed() {
			return nil
		}
	}
	return fmt.Errorf("all %d sources failed", len(outs))
}
