// Package bootstrap provides dependency initialization for the batch generator.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/benjaminbelaga/video-processor/internal/audit"
	"github.com/benjaminbelaga/video-processor/internal/batch"
	"github.com/benjaminbelaga/video-processor/internal/config"
	"github.com/benjaminbelaga/video-processor/internal/encoder"
	"github.com/benjaminbelaga/video-processor/internal/job"
	"github.com/benjaminbelaga/video-processor/internal/probe"
	"github.com/benjaminbelaga/video-processor/internal/resource"
	"github.com/benjaminbelaga/video-processor/internal/storage"
)

// Dependencies holds the initialized object graph for one batch run.
type Dependencies struct {
	Driver *batch.Driver
}

// NewDependencies creates and wires all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	engine := encoder.NewFFmpeg(cfg.FFmpegPath, encoder.Settings{
		Framerate:    cfg.Framerate,
		VideoSize:    cfg.VideoSize,
		Preset:       cfg.VideoPreset,
		VideoBitrate: cfg.VideoBitrate,
		AudioBitrate: cfg.AudioBitrate,
		PixelFormat:  cfg.PixelFormat,
	})

	prober := probe.NewFFprobe(cfg.FFprobePath)
	guard := resource.NewGuard(cfg.OutputDir)
	auditLog := audit.New(cfg.AuditLogPath, logger, audit.WithMaxLines(cfg.AuditLogMaxLines))

	strategies := []encoder.Strategy{
		encoder.NewConcatStrategy(engine),
		encoder.NewStreamLoopStrategy(engine),
		encoder.NewDirectStrategy(engine),
	}

	controller := job.NewController(
		job.Options{
			RotationDuration:           cfg.RotationDuration,
			MaxConcatRotations:         cfg.MaxConcatRotations,
			EmergencyFallbackThreshold: cfg.EmergencyFallbackThreshold,
			MinFreeDiskGB:              cfg.MinFreeDiskGB,
			EncodeTimeout:              cfg.EncodeTimeout,
			TempRoot:                   cfg.TempDir,
		},
		prober,
		engine,
		strategies,
		auditLog,
		guard,
		logger,
	)

	archiver, err := initArchiver(cfg, logger)
	if err != nil {
		return nil, err
	}

	driver := batch.NewDriver(cfg.InputDir, cfg.OutputDir, controller, archiver, logger)

	return &Dependencies{Driver: driver}, nil
}

// initArchiver creates the storage backend based on configuration. A nil
// archiver means finished videos stay local.
func initArchiver(cfg *config.Config, logger *slog.Logger) (storage.Archiver, error) {
	if !cfg.S3Enabled() {
		logger.Info("local storage configured, videos stay on the output volume")
		return nil, nil
	}

	s3Store, err := storage.NewS3Storage(storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}

	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Store, nil
}
