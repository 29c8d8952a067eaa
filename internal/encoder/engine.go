// Package encoder turns a still image and an audio track into a spinning
// vinyl video using the ffmpeg CLI. It provides the shared base-clip
// generation and the three interchangeable encoding strategies.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Settings are the encoder parameters passed through opaquely to ffmpeg.
type Settings struct {
	Framerate    int
	VideoSize    string // e.g. "1080x1080"
	Preset       string // libx264 preset
	VideoBitrate string // e.g. "8M"
	AudioBitrate string // e.g. "320k"
	PixelFormat  string // e.g. "yuv420p"
}

// FFmpeg invokes the ffmpeg binary. Each invocation is a blocking
// subprocess call; callers bound long encodes with the context.
type FFmpeg struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	settings   Settings
}

// NewFFmpeg creates a new FFmpeg engine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpeg(ffmpegPath string, settings Settings) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, settings: settings}
}

// run executes ffmpeg with the given arguments and returns an error
// carrying the stderr output if the command fails.
func (f *FFmpeg) run(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// StderrTail returns the last n lines of the captured stderr, the part an
// operator needs to diagnose a failed attempt.
func (e *FFmpegError) StderrTail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Stderr, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
