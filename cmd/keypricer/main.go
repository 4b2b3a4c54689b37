// Command keypricer prices game listings against the TF2 key.
//
// Usage:
//
//	keypricer manual <title>
//	keypricer file <list.txt> [--format text|json|dual]
//	keypricer add <list.txt> <title>
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/aluiziolira/go-key-pricer/config"
	"github.com/aluiziolira/go-key-pricer/models"
	"github.com/aluiziolira/go-key-pricer/pipeline"
	"github.com/aluiziolira/go-key-pricer/scraper"
)

var version = "dev"

func main() {
	envErr := godotenv.Load()

	defaults := config.DefaultConfig()
	app := &cli.App{
		Name:    "keypricer",
		Usage:   "Price games in Mann Co. Supply Crate Keys",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML file with configuration; flags override it",
				EnvVars: []string{"KEYPRICER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "game-base-url",
				Value:   defaults.GameBaseURL,
				Usage:   "Listing root that game slugs are appended to",
				EnvVars: []string{"KEYPRICER_GAME_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "reference-url",
				Value:   defaults.ReferenceURL,
				Usage:   "Stats page holding the reference price",
				EnvVars: []string{"KEYPRICER_REFERENCE_URL"},
			},
			&cli.StringFlag{
				Name:    "price-selector",
				Value:   defaults.PriceSelector,
				Usage:   "CSS selector of the price on a game page",
				EnvVars: []string{"KEYPRICER_PRICE_SELECTOR"},
			},
			&cli.StringFlag{
				Name:    "reference-selector",
				Value:   defaults.ReferenceSelector,
				Usage:   "CSS selector of the price on the reference page",
				EnvVars: []string{"KEYPRICER_REFERENCE_SELECTOR"},
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Value:   defaults.MaxRetries,
				Usage:   "Retries per request after a server error",
				EnvVars: []string{"KEYPRICER_MAX_RETRIES"},
			},
			&cli.DurationFlag{
				Name:    "retry-backoff",
				Value:   defaults.RetryBackoff,
				Usage:   "Initial retry backoff",
				EnvVars: []string{"KEYPRICER_RETRY_BACKOFF"},
			},
			&cli.DurationFlag{
				Name:    "retry-backoff-max",
				Value:   defaults.RetryBackoffMax,
				Usage:   "Maximum retry backoff",
				EnvVars: []string{"KEYPRICER_RETRY_BACKOFF_MAX"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   defaults.Timeout,
				Usage:   "Per-request timeout",
				EnvVars: []string{"KEYPRICER_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "delay",
				Value:   defaults.Delay,
				Usage:   "Delay between requests",
				EnvVars: []string{"KEYPRICER_DELAY"},
			},
			&cli.BoolFlag{
				Name:    "fall-through",
				Usage:   "Try the next candidate when a page has no price",
				EnvVars: []string{"KEYPRICER_FALL_THROUGH"},
			},
			&cli.StringFlag{
				Name:    "ratio-placeholder",
				Value:   defaults.RatioPlaceholder,
				Usage:   "Ratio written when it cannot be computed",
				EnvVars: []string{"KEYPRICER_RATIO_PLACEHOLDER"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Prometheus metrics listen address (e.g. :9090)",
				EnvVars: []string{"KEYPRICER_METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
				EnvVars: []string{"KEYPRICER_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, level := newLogger(c.Bool("verbose"))
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
				slog.Warn("could not load .env file", slog.Any("error", envErr))
			}
			return nil
		},
		Commands: []*cli.Command{
			manualCommand(),
			fileCommand(),
			addCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func manualCommand() *cli.Command {
	return &cli.Command{
		Name:      "manual",
		Usage:     "Price a single game",
		ArgsUsage: "<title>",
		Action: func(c *cli.Context) error {
			title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if title == "" {
				return fmt.Errorf("a game title is required")
			}

			cfg, err := buildConfig(c)
			if err != nil {
				return err
			}
			app, err := newApplication(cfg)
			if err != nil {
				return err
			}

			res, line, err := app.coordinator.Quote(c.Context, title)
			if err != nil {
				return err
			}
			if line == nil {
				fmt.Printf("Game not found: %s (%s)\n", title, res.State)
				return nil
			}
			fmt.Println("Game Name | Price | Ratio")
			fmt.Printf("%s | %s | %s\n", line.Title, line.Price, line.Ratio)
			return nil
		},
	}
}

func fileCommand() *cli.Command {
	return &cli.Command{
		Name:      "file",
		Usage:     "Price every game in a newline-delimited list",
		ArgsUsage: "<list.txt>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, or dual",
				EnvVars: []string{"KEYPRICER_FORMAT"},
			},
		},
		Action: func(c *cli.Context) error {
			listPath := c.Args().First()
			if listPath == "" {
				return fmt.Errorf("a title list is required")
			}

			cfg, err := buildConfig(c)
			if err != nil {
				return err
			}
			titles, err := pipeline.ReadTitlesFile(listPath)
			if err != nil {
				return err
			}
			app, err := newApplication(cfg)
			if err != nil {
				return err
			}

			writer, outputs, err := createWriter(cfg.OutputFormat, filepath.Dir(listPath))
			if err != nil {
				return fmt.Errorf("creating writer: %w", err)
			}
			defer func() {
				if err := writer.Close(); err != nil {
					slog.Error("close writer", slog.Any("error", err))
				}
			}()

			stopMetrics := startMetricsServer(cfg.MetricsAddr, app.metrics)
			defer stopMetrics()

			// Interrupts stop the batch at the next title; the title in flight
			// finishes so its result lands in the output.
			sigCtx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			go cancelOnSignal(sigCtx, stop, app.coordinator.Cancel)

			slog.Info("starting batch",
				slog.String("list", listPath),
				slog.Int("titles", len(titles)),
				slog.String("format", cfg.OutputFormat),
			)

			result, err := app.coordinator.Run(context.WithoutCancel(c.Context), titles, writer)
			if err != nil {
				return fmt.Errorf("batch failed: %w", err)
			}

			printSummary(result, app.fetcher.Stats(), outputs)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a game to a title list",
		ArgsUsage: "<list.txt> <title>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("usage: keypricer add <list.txt> <title>")
			}
			listPath := c.Args().First()
			title := strings.Join(c.Args().Tail(), " ")

			added, err := pipeline.AddTitle(listPath, title)
			if err != nil {
				return err
			}
			if added {
				fmt.Printf("Added %q to %s\n", strings.TrimSpace(title), listPath)
			} else {
				fmt.Printf("%q is already in %s\n", strings.TrimSpace(title), listPath)
			}
			return nil
		},
	}
}

// cancelOnSignal cancels the batch once sigCtx is done and then restores the
// default signal handling, so a second interrupt kills the process.
func cancelOnSignal(sigCtx context.Context, stop func(), cancel func() bool) {
	<-sigCtx.Done()
	if cancel() {
		slog.Info("shutdown signal received, stopping after the current title (interrupt again to exit now)")
	}
	stop()
}

type application struct {
	metrics     *scraper.Metrics
	fetcher     *scraper.Fetcher
	coordinator *pipeline.Coordinator
}

func newApplication(cfg *config.Config) (*application, error) {
	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("initialising fetcher: %w", err)
	}
	session, err := pipeline.NewSession(cfg.ResolutionCacheSize)
	if err != nil {
		return nil, err
	}

	driver := pipeline.NewDriver(
		scraper.NewTitleResolver(fetcher, cfg, metrics),
		scraper.NewReferenceResolver(fetcher, cfg, metrics),
		cfg,
	)
	return &application{
		metrics:     metrics,
		fetcher:     fetcher,
		coordinator: pipeline.NewCoordinator(driver, session),
	}, nil
}

// buildConfig layers defaults, the optional YAML file and explicitly set
// flags or environment variables, in that order.
func buildConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	stringFlags := map[string]*string{
		"game-base-url":      &cfg.GameBaseURL,
		"reference-url":      &cfg.ReferenceURL,
		"price-selector":     &cfg.PriceSelector,
		"reference-selector": &cfg.ReferenceSelector,
		"ratio-placeholder":  &cfg.RatioPlaceholder,
		"metrics-addr":       &cfg.MetricsAddr,
		"format":             &cfg.OutputFormat,
	}
	for name, dst := range stringFlags {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	durations := map[string]*time.Duration{
		"retry-backoff":     &cfg.RetryBackoff,
		"retry-backoff-max": &cfg.RetryBackoffMax,
		"timeout":           &cfg.Timeout,
		"delay":             &cfg.Delay,
	}
	for name, dst := range durations {
		if c.IsSet(name) {
			*dst = c.Duration(name)
		}
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("fall-through") {
		cfg.FallThroughOnMissingPrice = c.Bool("fall-through")
	}
	cfg.Verbose = c.Bool("verbose")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createWriter places the outputs in dir, next to the title list.
func createWriter(format, dir string) (pipeline.OutputWriter, []string, error) {
	reportPath := filepath.Join(dir, "output.txt")
	retryPath := filepath.Join(dir, "retry.txt")
	jsonPath := filepath.Join(dir, "output.json")

	switch format {
	case "text":
		w, err := pipeline.NewTextFileWriter(reportPath, retryPath)
		return w, []string{reportPath, retryPath}, err
	case "json":
		w, err := pipeline.NewJSONFileWriter(jsonPath)
		return w, []string{jsonPath}, err
	case "dual":
		w, err := pipeline.NewDualWriter(reportPath, retryPath, jsonPath)
		return w, []string{reportPath, retryPath, jsonPath}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func startMetricsServer(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(result *models.BatchResult, stats scraper.FetchStats, outputs []string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	if result.Cancelled {
		fmt.Println("Batch stopped by user")
	} else {
		fmt.Println("Batch complete")
	}

	fmt.Printf("  Run:           %s\n", result.RunID)
	if result.Reference.Available() {
		fmt.Printf("  Reference:     $%s\n", result.Reference.Value)
	} else {
		fmt.Printf("  Reference:     unavailable\n")
	}
	fmt.Printf("  Processed:     %d\n", result.Processed)
	fmt.Printf("  Priced:        %d\n", len(result.Lines))
	fmt.Printf("  Retry list:    %d\n", len(result.Retries))
	if result.RatioFails > 0 {
		fmt.Printf("  No ratio:      %d\n", result.RatioFails)
	}
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:       %d\n", result.Skipped)
	}
	fmt.Printf("  Requests:      %d\n", stats.Requests)
	fmt.Printf("  Retries:       %d\n", stats.Retries)
	fmt.Printf("  Errors:        %d\n", stats.Errors)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Output files:  %s\n", strings.Join(outputs, ", "))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
