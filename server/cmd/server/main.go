package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bizpulse/bizpulse/pkg/logging"
	"github.com/bizpulse/bizpulse/server/internal/alerts"
	"github.com/bizpulse/bizpulse/server/internal/api"
	"github.com/bizpulse/bizpulse/server/internal/config"
	"github.com/bizpulse/bizpulse/server/internal/receiver"
	"github.com/bizpulse/bizpulse/server/internal/store"
	"github.com/bizpulse/bizpulse/server/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// shutdownTimeout bounds how long in-flight requests may take on shutdown.
const shutdownTimeout = 10 * time.Second

var (
	configPath string
	envFile    string
	uiDir      string
)

var rootCmd = &cobra.Command{
	Use:           "bizpulse-server",
	Short:         "Analyze business records, keep the latest report per source and raise alerts",
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the config")
	rootCmd.Flags().StringVar(&uiDir, "ui-dir", "", "serve the UI static files from this directory (e.g. ui/dist); leave empty to disable")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closeLog := logging.New(cfg.Server.Log, os.Stdout)
	defer closeLog() //nolint:errcheck
	slog.SetDefault(logger)

	slog.Info("bizpulse-server starting",
		"version", version,
		"config", configPath,
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"report_ttl", cfg.Server.Reports.TTL,
		"alert_rules", len(cfg.Server.Alerts.Rules),
		"webhooks", len(cfg.Server.Alerts.Webhooks),
	)

	st, alertEngine, err := newState(cfg.Server)
	if err != nil {
		return err
	}
	go st.Run(ctx)

	h := api.New(st, receiver.New(st, alertEngine), alertEngine)

	hub := ws.New(h, cfg.Server.BroadcastInterval)
	h.OnIngest(hub.Notify)
	go hub.Run(ctx)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           newMux(cfg.Server.Auth, h, hub, uiDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	slog.Info("bizpulse-server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// newState builds the snapshot store and the alerts engine evaluated on every
// ingested snapshot. Alerts of a source evicted for staleness are resolved.
func newState(cfg config.ServerConfig) (*store.Store, *alerts.Engine, error) {
	st := store.New(cfg.Reports.TTL)
	alertEngine, err := alerts.New(cfg.Alerts)
	if err != nil {
		return nil, nil, err
	}
	st.OnEvict(func(sourceID string) {
		if n := alertEngine.Forget(sourceID); n > 0 {
			slog.Info("alerts resolved for evicted source", "source_id", sourceID, "count", n)
		}
	})
	return st, alertEngine, nil
}
