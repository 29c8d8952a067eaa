// Package probe inspects media files with ffprobe. It provides the track
// duration used for rotation planning and the container verification run
// on finished videos.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for probe operations.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrUnparsableDuration is returned when ffprobe output is not a number.
	ErrUnparsableDuration = errors.New("unparsable duration")
	// ErrInvalidContainer is returned when a produced file fails verification.
	ErrInvalidContainer = errors.New("invalid media container")
)

// Prober inspects media files.
type Prober interface {
	// Duration returns the duration of a media file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Verify confirms that the file at path is a readable, valid media
	// container. Used on freshly produced videos before they are accepted.
	Verify(ctx context.Context, path string) error
}

// FFprobe implements Prober using the ffprobe CLI.
type FFprobe struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFprobe creates a new FFprobe.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobe(ffprobePath string) *FFprobe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobe{ffprobePath: ffprobePath}
}

// Duration returns the duration in seconds of a media file.
func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableDuration, strings.TrimSpace(out))
	}

	return duration, nil
}

// Verify re-probes a produced file and confirms ffprobe can read its
// container and find at least one stream.
func (p *FFprobe) Verify(ctx context.Context, path string) error {
	out, err := p.run(ctx,
		"-v", "error",
		"-show_entries", "format=format_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContainer, err)
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("%w: no container format reported for %s", ErrInvalidContainer, path)
	}
	return nil
}

// run executes ffprobe with the given arguments and returns stdout.
func (p *FFprobe) run(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return stdout.String(), nil
}
