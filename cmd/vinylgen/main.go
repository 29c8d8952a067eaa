// Package main provides the entry point for the vinyl video batch generator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benjaminbelaga/video-processor/internal/bootstrap"
	"github.com/benjaminbelaga/video-processor/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting vinyl video generator",
		slog.String("input_dir", cfg.InputDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.Float64("rotation_duration", cfg.RotationDuration),
		slog.Int("max_concat_rotations", cfg.MaxConcatRotations),
		slog.String("audit_log", cfg.AuditLogPath),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// An interrupt stops the batch between tracks; an in-flight encoder
	// invocation is cancelled through its context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := deps.Driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	logger.Info("done",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("uploaded", summary.Uploaded),
	)

	return nil
}
