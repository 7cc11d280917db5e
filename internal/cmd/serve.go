package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/agentops/internal/config"
	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/server"
	"github.com/Iron-Ham/agentops/internal/telemetry"
	"github.com/Iron-Ham/agentops/internal/workflow"
)

const defaultShutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for starting, following, cancelling and answering
operations. SIGINT or SIGTERM cancels running operations and shuts down
gracefully.

Changes to logging.level in the config file take effect without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, Version, cfg.Telemetry.Insecure)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a, err := newApp(cfg, logger, relayURLFor(cfg, cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger.With("component", "server")),
		server.WithWorkflows(workflow.NewCatalog(cfg.Workspace.ResolveRoot())),
		server.WithRelay(a.relay.Handler()),
	}
	if a.gatherer != nil {
		opts = append(opts, server.WithMetrics(a.metrics, a.gatherer))
	}
	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr(),
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     Version,
	}, a.orch, opts...)

	watchLogLevel(logger)
	fmt.Fprintf(cmd.OutOrStdout(), "agentops %s listening on http://%s\n", Version, cfg.Server.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		timeout := cfg.Server.ShutdownTimeout()
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Operations first, so open streams receive their final events.
		return errors.Join(
			a.orch.Shutdown(shutdownCtx),
			srv.Shutdown(shutdownCtx),
			shutdownTracing(shutdownCtx),
		)
	})
	return g.Wait()
}

// watchLogLevel applies logging.level from the config file whenever it
// changes on disk.
func watchLogLevel(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level := viper.GetString("logging.level")
		logger.SetLevel(level)
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String(), "level", logging.ParseLevel(level))
	})
	viper.WatchConfig()
}
