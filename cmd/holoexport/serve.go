package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/export"
	"holoexport/internal/jobs"
	"holoexport/internal/logging"
	"holoexport/internal/preflight"
	"holoexport/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the export API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(cmdCtx context.Context, cfg *config.Config) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "holoexport.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another holoexport instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("holoexport-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update holoexport.log link: %v\n", err)
	}

	locator := deps.NewLocator(cfg, logger)
	for _, result := range preflight.RunAll(signalCtx, cfg, locator) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	registry, err := export.NewDefaultRegistry(cfg, locator, logger)
	if err != nil {
		return fmt.Errorf("build export registry: %w", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	controller := jobs.NewController(cfg, store, registry, logger)
	defer controller.Close()

	srv, err := server.New(cfg, controller, registry, locator, store, logger)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	defer srv.Stop()

	<-signalCtx.Done()
	logger.Info("holoexport shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "holoexport.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
