package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bizpulse/bizpulse/analyst/internal/collect"
	"github.com/bizpulse/bizpulse/analyst/internal/config"
	"github.com/bizpulse/bizpulse/analyst/internal/render"
	"github.com/bizpulse/bizpulse/analyst/internal/shipper"
	"github.com/bizpulse/bizpulse/analyst/internal/source"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Collect every source on an interval and ship the results",
	Long: `Collect every configured source each analyst.interval, and immediately
whenever a file source changes. Results are shipped to the server and written
to analyst.output. The config file is reloaded when it changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		defer setupLogging(cfg.Analyst.Log)()
		return watch(cmd.Context(), cfg.Analyst)
	},
}

// collector owns the sources and per-source state of a watch session.
type collector struct {
	cfg    config.AnalystConfig
	set    *source.Set
	engine *collect.Engine
	ship   *shipper.Shipper // nil when shipping is disabled
}

func watch(ctx context.Context, cfg config.AnalystConfig) error {
	slog.Info("bizpulse-analyst starting",
		"version", version,
		"config", configPath,
		"server_endpoint", cfg.ServerEndpoint,
		"sources", len(cfg.Sources),
		"interval", cfg.Interval,
	)

	set, err := source.NewSet(cfg.Sources)
	if err != nil {
		return err
	}
	c := &collector{cfg: cfg, set: set, engine: collect.NewEngine(carryForwardIDs(cfg)...)}
	defer func() { _ = c.set.Close() }()

	if set.Len() == 0 {
		slog.Warn("no sources configured, analyst will idle")
	}

	if cfg.ServerEndpoint != "" {
		c.ship = shipper.New(cfg)
		go c.ship.Run(ctx)
	} else {
		slog.Info("server_endpoint not set, shipping disabled")
	}

	reloads := make(chan *config.Config, 1)
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			select {
			case <-reloads:
			default:
			}
			reloads <- updated
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	changes := make(chan string, 1)
	stopFiles := watchFiles(ctx, set.FilePaths(), changes)
	defer func() { stopFiles() }()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	c.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("bizpulse-analyst shutting down", "pending_snapshots", c.pending())
			return nil

		case <-ticker.C:
			c.cycle(ctx)

		case path := <-changes:
			slog.Info("record file changed", "path", path)
			c.cycle(ctx)

		case updated := <-reloads:
			if !c.reload(updated.Analyst) {
				continue
			}
			ticker.Reset(c.cfg.Interval)
			stopFiles()
			stopFiles = watchFiles(ctx, c.set.FilePaths(), changes)
			c.cycle(ctx)
		}
	}
}

// cycle collects every source once, ships the outcomes and writes the output file.
func (c *collector) cycle(ctx context.Context) {
	var outs []*collect.Outcome
	c.set.LoadAll(ctx, func(res *source.Result) {
		out := c.engine.Process(res, time.Now())
		outs = append(outs, out)
		if c.ship != nil {
			c.ship.Ship(out)
		}
		if out.Failed() {
			return
		}
		slog.Debug("analyzed source",
			"source", out.SourceID,
			"profit_status", out.Result.Report.ProfitStatus,
			"alerts", len(out.Result.Report.Alerts),
		)
	})

	if c.cfg.Output != "" && len(outs) > 0 {
		if err := render.WriteFile(c.cfg.Output, render.Snapshots(outs)); err != nil {
			slog.Error("failed to write output file", "path", c.cfg.Output, "err", err)
		}
	}
}

// reload swaps in the sources of an updated config. It returns false and
// keeps the current sources when the new ones cannot be built.
func (c *collector) reload(cfg config.AnalystConfig) bool {
	set, err := source.NewSet(cfg.Sources)
	if err != nil {
		slog.Error("config reload rejected, keeping previous sources", "err", err)
		return false
	}
	if cfg.ServerEndpoint != c.cfg.ServerEndpoint {
		slog.Warn("server_endpoint changes take effect after restart",
			"current", c.cfg.ServerEndpoint, "configured", cfg.ServerEndpoint)
		cfg.ServerEndpoint = c.cfg.ServerEndpoint
	}

	old := c.set
	c.set = set
	c.cfg = cfg
	c.engine.SetCarryForward(carryForwardIDs(cfg)...)
	if err := old.Close(); err != nil {
		slog.Warn("closing previous sources", "err", err)
	}

	slog.Info("config hot-reloaded", "sources", set.Len(), "interval", cfg.Interval)
	return true
}

func (c *collector) pending() int {
	if c.ship == nil {
		return 0
	}
	return c.ship.Pending()
}

// watchFiles forwards change notifications for paths to changes until the
// returned stop func is called.
func watchFiles(ctx context.Context, paths []string, changes chan<- string) (stop func()) {
	if len(paths) == 0 {
		return func() {}
	}
	wctx, cancel := context.WithCancel(ctx)
	go func() {
		err := source.WatchFiles(wctx, paths, func(path string) {
			select {
			case changes <- path:
			default:
			}
		})
		if err != nil {
			slog.Error("record file watcher stopped", "err", err)
		}
	}()
	return cancel
}

func carryForwardIDs(cfg config.AnalystConfig) []string {
	var ids []string
	for _, src := range cfg.Sources {
		if src.CarryForward {
			ids = append(ids, src.ID)
		}
	}
	return ids
}
