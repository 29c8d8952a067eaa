// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig wraps validation failures of the loaded configuration.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the batch generator.
type Config struct {
	// Rotation settings
	RotationDuration float64 `env:"ROTATION_DURATION, default=5.0" json:"rotation_duration" validate:"gt=0"`
	Framerate        int     `env:"FRAMERATE, default=30" json:"framerate" validate:"gte=1,lte=120"`

	// Method selection thresholds
	MaxConcatRotations         int `env:"MAX_CONCAT_ROTATIONS, default=150" json:"max_concat_rotations" validate:"gte=1"`
	EmergencyFallbackThreshold int `env:"EMERGENCY_FALLBACK_THRESHOLD, default=200" json:"emergency_fallback_threshold" validate:"gte=1"`

	// Encoder settings passed through opaquely to ffmpeg
	VideoSize    string `env:"VIDEO_SIZE, default=1080x1080" json:"video_size" validate:"required"`
	VideoPreset  string `env:"VIDEO_PRESET, default=medium" json:"video_preset" validate:"required"`
	VideoBitrate string `env:"VIDEO_BITRATE, default=8M" json:"video_bitrate" validate:"required"`
	AudioBitrate string `env:"AUDIO_BITRATE, default=320k" json:"audio_bitrate" validate:"required"`
	PixelFormat  string `env:"PIXEL_FORMAT, default=yuv420p" json:"pixel_format" validate:"required"`

	// External tool paths. Empty means lookup via PATH.
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// EncodeTimeout bounds a single encoder invocation. Zero disables the
	// timeout and lets the encoder run to completion.
	EncodeTimeout time.Duration `env:"ENCODE_TIMEOUT, default=0" json:"encode_timeout"`

	// Resource guard settings
	MinFreeDiskGB float64 `env:"MIN_FREE_DISK_GB, default=2.0" json:"min_free_disk_gb" validate:"gte=0"`

	// Directories
	InputDir  string `env:"INPUT_DIR, default=." json:"input_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=." json:"output_dir"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/vinylgen" json:"temp_dir"`

	// Audit log settings
	AuditLogPath     string `env:"AUDIT_LOG_PATH, default=video_generation.log" json:"audit_log_path"`
	AuditLogMaxLines int    `env:"AUDIT_LOG_MAX_LINES, default=1000" json:"audit_log_max_lines" validate:"gte=1"`

	// Optional S3 settings for archiving finished videos
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it. It returns an error if any value is out of range.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{RotationDuration: %.1f, Framerate: %d, MaxConcatRotations: %d, EmergencyFallbackThreshold: %d, VideoSize: %s, InputDir: %s, OutputDir: %s, TempDir: %s, AuditLogPath: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.RotationDuration,
		c.Framerate,
		c.MaxConcatRotations,
		c.EmergencyFallbackThreshold,
		c.VideoSize,
		c.InputDir,
		c.OutputDir,
		c.TempDir,
		c.AuditLogPath,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
