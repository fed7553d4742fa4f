package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/config"
	"github.com/pmontanari/screenops/internal/logging"
	"github.com/pmontanari/screenops/internal/mailer"
	"github.com/pmontanari/screenops/internal/orchestrator"
	"github.com/pmontanari/screenops/internal/schedule"
	"github.com/pmontanari/screenops/internal/server"
	"github.com/pmontanari/screenops/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run screenops with the web dashboard",
	Long: `Start the run orchestrator with an HTTP dashboard.

This command loads the configuration file, initializes the run store,
starts any configured cron schedules, and serves the dashboard API for
launching operations, following their output live, and editing the mail
templates.

Example:
  screenops serve --config ./screenops.yaml --addr :8080`,
	RunE: runServer,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "screenops.yaml", "Path to configuration file")
	serveCmd.Flags().StringP("addr", "a", "", "HTTP server address (host:port), overrides config")
	serveCmd.MarkFlagRequired("config")
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	// Child processes re-exec this binary and find the config through
	// the environment.
	os.Setenv(configEnv, configPath)

	// Apply logging config from YAML if provided
	if cfg.Logging.Output != "" || cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		serveLogger, err := logging.NewFromConfig(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = serveLogger
		slog.SetDefault(serveLogger)
	}

	logger.Info("starting screenops in serve mode",
		"config", configPath,
		"addr", addr)
	logger.Info("configuration loaded successfully",
		"boards", len(cfg.Boards),
		"schedules", len(cfg.Schedules),
		"store_driver", cfg.Store.Driver)

	// Initialize store for run history
	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	logger.Info("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	// Wire run plumbing
	events := broadcast.New()
	orch := orchestrator.New(st, events, logger)

	// Setup signal handling for graceful shutdown
	ctx := setupSignalHandler()

	// Initialize scheduler
	sched := schedule.New(orch, st, logger)
	for _, entry := range cfg.Schedules {
		if err := sched.Add(entry); err != nil {
			return fmt.Errorf("failed to add schedule for %s: %w", entry.Operation, err)
		}
	}

	templates := mailer.NewTemplateStore(cfg.Templates.Dir)

	// Initialize HTTP server
	srv := server.New(addr, st, orch, events, templates, sched, logger)

	// Use errgroup to run scheduler and server concurrently
	g, gCtx := errgroup.WithContext(ctx)

	// Start scheduler
	g.Go(func() error {
		sched.Start()
		<-gCtx.Done()
		return nil
	})

	// Start HTTP server
	g.Go(func() error {
		if err := srv.Start(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Shutdown handler
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down gracefully...")

		sched.Stop()

		if err := srv.Stop(context.Background()); err != nil {
			logger.Error("error stopping server", "error", err)
		}

		return nil
	})

	logger.Info("screenops serve mode started successfully",
		"schedules", len(cfg.Schedules),
		"dashboard_url", fmt.Sprintf("http://localhost%s", addr))

	// Wait for all goroutines
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("error during execution", "error", err)
		return err
	}

	logger.Info("screenops stopped")
	return nil
}
