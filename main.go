package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadiq/gmail-to-md/cmd"
	"github.com/saadiq/gmail-to-md/config"
	"github.com/saadiq/gmail-to-md/exporter"
	"github.com/saadiq/gmail-to-md/manifest"
	"github.com/saadiq/gmail-to-md/report"
	"github.com/saadiq/gmail-to-md/runner"
	"github.com/saadiq/gmail-to-md/sink"
	"github.com/saadiq/gmail-to-md/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gmail-to-md",
		Short:        "Export email messages to clean markdown documents",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := prepare(c)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			logger.Info("starting gmail-to-md",
				"source", cfg.SourceName(),
				"query", cfg.Query,
				"max", cfg.MaxEmails,
				"output", cfg.OutputDir,
				"dryRun", cfg.DryRun,
			)
			return run(c.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewListCommand(prepare))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func prepare(c *cobra.Command) (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, cleanup, err := setupLogger(cfg)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m := manifest.New(cfg.SourceName(), cfg.Query)
	m.DryRun = cfg.DryRun
	logger = logger.With("runID", m.RunID)

	flt, err := cmd.NewFilter(cfg)
	if err != nil {
		return err
	}

	src, err := cmd.OpenSource(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	reporter := stats.NewReporter(r, logger)

	var out sink.Sink = sink.NewFS()
	if cfg.DryRun {
		out = sink.NewMemory()
	}

	exp := exporter.New(out, exporter.Options{
		OutputDir:      cfg.OutputDir,
		Label:          cfg.FolderLabel(),
		RunDate:        time.Now(),
		RemoveQuotes:   cfg.RemoveQuotes,
		DownloadImages: cfg.DownloadImages,
		SizeLimitBytes: cfg.SizeLimitBytes(),
	}, logger)

	logger.Info("export folder", "path", exp.Folder())

	if err := runner.NewExportStage(src, exp, flt, r); err != nil {
		return fmt.Errorf("runner.NewExportStage: %w", err)
	}
	runner.NewLister(src, r)

	stop := context.AfterFunc(ctx, func() {
		logger.Warn("interrupted, stopping export")
		r.Interrupt(fmt.Errorf("interrupted: %w", ctx.Err()))
	})
	defer stop()

	runErr := r.Start()
	summary := reporter.Summary()

	if summary.Exported+summary.DryRunExported > 0 {
		m.Counts = manifest.Counts{
			Listed:          summary.Listed,
			Exported:        summary.Exported + summary.DryRunExported,
			AlreadyExported: summary.AlreadyExported,
			Filtered:        summary.Filtered,
			Failed:          summary.Failed(),
			Binaries:        summary.BinariesWritten,
		}
		m.Documents = summary.Documents
		path, err := m.Write(out, exp.Folder())
		if err != nil {
			logger.Error("manifest not written", "err", err)
		} else {
			logger.Debug("manifest written", "path", path)
		}
	}

	report.New(os.Stdout, cfg.LogLevel).Summary(summary, time.Since(reporter.Started()), exp.Folder(), cfg.DryRun)
	return runErr
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("gmail-to-md-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
