// Command solar-publish watches the irradiance CSV, republishes new rows into
// the front-end dataset file, keeps a backup copy of it and serves the
// dataset over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/solar-data-pipeline/internal/api/http"
	"github.com/i474232898/solar-data-pipeline/internal/config"
	"github.com/i474232898/solar-data-pipeline/internal/logging"
	"github.com/i474232898/solar-data-pipeline/internal/publish"
	"github.com/i474232898/solar-data-pipeline/internal/scheduler"
	"github.com/i474232898/solar-data-pipeline/internal/store"
)

// Version is set at build time.
var Version = "dev"

const serviceName = "solar-publish"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, serviceName+":", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, err := config.LoadPublish()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	var verbose bool

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Republish new CSV rows as a JavaScript dataset",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			logger = logger.With(zap.String("run_id", uuid.NewString()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	f := root.Flags()
	f.BoolVarP(&verbose, "verbose", "v", false, "Debug logging with a console encoder")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&cfg.CSVFile, "csv", cfg.CSVFile, "CSV file to watch")
	f.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Published dataset file")
	f.StringVar(&cfg.BackupFile, "backup", cfg.BackupFile, "Backup copy of the published file (empty disables)")
	f.StringVar(&cfg.VarName, "var", cfg.VarName, "JavaScript variable name")
	f.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "CSV poll interval")
	f.DurationVar(&cfg.BackupInterval, "backup-interval", cfg.BackupInterval, "Backup interval")
	f.DurationVar(&cfg.MaxBackoff, "max-backoff", cfg.MaxBackoff, "Longest pause after repeated failures")
	f.BoolVar(&cfg.WatchEvents, "watch", cfg.WatchEvents, "Also react to file change events")
	f.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	f.BoolVar(&cfg.HTTPDisabled, "no-http", cfg.HTTPDisabled, "Do not serve the HTTP API")

	return root
}

func run(ctx context.Context, cfg *config.PublishConfig, logger *zap.Logger) error {
	data := store.NewDatasetStore()

	watcher := publish.NewWatcher(data, publish.Options{
		CSVPath:      cfg.CSVFile,
		OutputPath:   cfg.OutputFile,
		BackupPath:   cfg.BackupFile,
		VarName:      cfg.VarName,
		PollInterval: cfg.PollInterval,
		MaxBackoff:   cfg.MaxBackoff,
		Logger:       logger,
	})
	if err := watcher.Init(); err != nil {
		return err
	}

	sched := scheduler.New(watcher, cfg.PollInterval, cfg.BackupInterval, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.WatchEvents {
		g.Go(func() error {
			return watcher.Watch(ctx)
		})
	}

	if !cfg.HTTPDisabled {
		app := newApp(data, watcher)
		g.Go(func() error {
			logger.Info("http api listening", zap.String("port", cfg.Port))
			if err := app.Listen(":" + cfg.Port); err != nil {
				return fmt.Errorf("fiber server stopped: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		})
	}

	logger.Info("publisher started",
		zap.String("csv", cfg.CSVFile),
		zap.String("output", cfg.OutputFile),
		zap.String("backup", cfg.BackupFile))

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	err := g.Wait()

	// One last backup so the copy matches what was published.
	watcher.BackupTick(context.Background())
	logger.Info("publisher stopped", zap.Int("published", watcher.Status().Published))
	return err
}

func newApp(data *store.DatasetStore, status httpapi.StatusSource) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	httpapi.RegisterRoutes(app, data, status)
	return app
}
