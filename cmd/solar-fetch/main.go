// Command solar-fetch downloads monthly surface irradiance for every listed
// location from NASA POWER and appends it to a CSV file, resuming where a
// previous run stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/solar-data-pipeline/internal/config"
	"github.com/i474232898/solar-data-pipeline/internal/csvstore"
	"github.com/i474232898/solar-data-pipeline/internal/locations"
	"github.com/i474232898/solar-data-pipeline/internal/logging"
	"github.com/i474232898/solar-data-pipeline/internal/resume"
	"github.com/i474232898/solar-data-pipeline/internal/solar"
	"github.com/i474232898/solar-data-pipeline/internal/solar/power"
)

// Version is set at build time.
var Version = "dev"

var (
	cfg     *config.FetchConfig
	logger  *zap.Logger
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "solar-fetch:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var err error
	cfg, err = config.LoadFetch()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "solar-fetch",
		Short:         "Fetch monthly solar irradiance per location into a CSV file",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err = logging.New(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			logger = logger.With(zap.String("run_id", uuid.NewString()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	f := root.PersistentFlags()
	f.BoolVarP(&verbose, "verbose", "v", false, "Debug logging with a console encoder")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&cfg.LocationsFile, "locations", cfg.LocationsFile, "Location list file")

	f = root.Flags()
	f.StringVar(&cfg.FailuresFile, "failures", cfg.FailuresFile, "Failure log file")
	f.StringVar(&cfg.CSVFile, "csv", cfg.CSVFile, "Output CSV file")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows buffered before each CSV write")
	f.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "NASA POWER monthly point endpoint")
	f.IntVar(&cfg.StartYear, "start", cfg.StartYear, "First year requested")
	f.IntVar(&cfg.EndYear, "end", cfg.EndYear, "Last year requested")
	f.IntVar(&cfg.Attempts, "attempts", cfg.Attempts, "Attempts per location")
	f.DurationVar(&cfg.AttemptDelay, "delay", cfg.AttemptDelay, "Pause after every attempt")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "Per-request HTTP timeout")
	f.IntVar(&cfg.BreakerThreshold, "breaker-threshold", cfg.BreakerThreshold, "Consecutive failures before the circuit opens")

	root.AddCommand(newValidateCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Report every malformed line of a location list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.LocationsFile
			if len(args) == 1 {
				path = args[0]
			}

			issues, err := locations.Validate(path, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, issue := range issues {
				fmt.Fprintln(out, issue.String())
			}
			if len(issues) > 0 {
				return fmt.Errorf("%s: %d malformed line(s)", path, len(issues))
			}
			fmt.Fprintf(out, "%s: all lines valid\n", path)
			return nil
		},
	}
}

func run(ctx context.Context, cfg *config.FetchConfig, logger *zap.Logger) error {
	start := time.Now()

	list, err := locations.Load(cfg.LocationsFile, logger)
	if err != nil {
		return err
	}

	processed, err := resume.ProcessedFromCSV(cfg.CSVFile)
	if err != nil {
		return err
	}

	failures, err := resume.OpenFailureLog(cfg.FailuresFile, logger)
	if err != nil {
		return err
	}

	logger.Info("starting fetch",
		zap.String("locations_file", cfg.LocationsFile),
		zap.Int("locations", len(list.Locations)),
		zap.Int("malformed", len(list.Issues)),
		zap.Int("already_processed", processed.Len()),
		zap.Int("previously_failed", failures.Len()))

	client := power.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, power.Options{
		BaseURL:          cfg.APIURL,
		Parameter:        cfg.Parameter,
		Community:        cfg.Community,
		StartYear:        cfg.StartYear,
		EndYear:          cfg.EndYear,
		Attempts:         cfg.Attempts,
		Delay:            cfg.AttemptDelay,
		BreakerThreshold: cfg.BreakerThreshold,
		Logger:           logger,
	})

	batch := csvstore.NewBatch(csvstore.NewWriter(cfg.CSVFile, logger), cfg.BatchSize)
	svc := solar.NewService(client, batch, failures, logger)

	sum, runErr := svc.Run(ctx, list.Locations, processed)

	// Rows already fetched are saved even when the run was interrupted.
	flushErr := batch.Flush()

	logger.Info("fetch finished",
		zap.String("total", humanize.Comma(int64(sum.Total))),
		zap.String("fetched", humanize.Comma(int64(sum.Fetched))),
		zap.String("skipped", humanize.Comma(int64(sum.Skipped))),
		zap.String("retried", humanize.Comma(int64(sum.Retried))),
		zap.String("failed", humanize.Comma(int64(sum.Failed))),
		zap.String("rows_written", humanize.Comma(int64(batch.Flushed()))),
		zap.String("still_failing", humanize.Comma(int64(failures.Len()))),
		zap.Duration("elapsed", time.Since(start)))

	if errors.Is(runErr, context.Canceled) {
		logger.Warn("interrupted; rerun to resume")
		runErr = nil
	}
	return errors.Join(runErr, flushErr)
}
