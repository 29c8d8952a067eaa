package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/benjaminbelaga/video-processor/internal/plan"
)

// Method identifies one of the three encoding strategies.
type Method string

// The three interchangeable encoding approaches, fastest first.
const (
	// MethodConcat losslessly concatenates copies of the base clip
	// (stream copy, bit-exact video).
	MethodConcat Method = "concat"
	// MethodStreamLoop repeats the base clip inside a single re-encoding
	// invocation. More memory-efficient than a long concat list.
	MethodStreamLoop Method = "stream_loop"
	// MethodDirect renders the full rotating video from the still image in
	// one pass, with no intermediate artifacts. Strategy of last resort.
	MethodDirect Method = "direct"
)

// Inputs carries everything a strategy needs to produce one video.
type Inputs struct {
	ImagePath      string
	AudioPath      string
	BaseClipPath   string // single one-rotation clip, shared by concat and stream_loop
	ConcatListPath string // where the concat strategy writes its edit list
	OutputPath     string
	Plan           plan.RotationPlan
	AudioDuration  float64
}

// Strategy is one invokable encoding approach. Run writes the finished
// video at Inputs.OutputPath or returns an error carrying the encoder
// diagnostics; it never cascades on its own.
type Strategy interface {
	Method() Method
	Run(ctx context.Context, in Inputs) error
}

// GenerateBaseClip renders the single one-rotation clip reused by the
// concat and stream_loop strategies. The clip has no audio track; audio
// is muxed in by the strategy that assembles the final video.
func (f *FFmpeg) GenerateBaseClip(ctx context.Context, imagePath, clipPath string, p plan.RotationPlan) error {
	return f.run(ctx, f.baseClipArgs(imagePath, clipPath, p))
}

func (f *FFmpeg) baseClipArgs(imagePath, clipPath string, p plan.RotationPlan) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", f.rotateFilter(p.AngularSpeed),
		"-t", formatSeconds(p.FrameDuration),
		"-r", strconv.Itoa(f.settings.Framerate),
		"-c:v", "libx264",
		"-preset", f.settings.Preset,
		"-b:v", f.settings.VideoBitrate,
		"-pix_fmt", f.settings.PixelFormat,
		"-an",
		clipPath,
	}
}

// rotateFilter builds the spinning-disc filter chain: continuous rotation
// at the planned angular speed, scaled to the output size.
func (f *FFmpeg) rotateFilter(angularSpeed float64) string {
	size := strings.Replace(f.settings.VideoSize, "x", ":", 1)
	return fmt.Sprintf("rotate=%.10f*t:c=black,scale=%s,format=%s",
		angularSpeed, size, f.settings.PixelFormat)
}

// ConcatStrategy builds an edit list referencing the base clip once per
// rotation frame and has ffmpeg concatenate it with stream copy, so the
// video bytes of the base clip are preserved exactly.
type ConcatStrategy struct {
	engine *FFmpeg
}

// NewConcatStrategy creates a ConcatStrategy on the given engine.
func NewConcatStrategy(engine *FFmpeg) *ConcatStrategy {
	return &ConcatStrategy{engine: engine}
}

// Method returns MethodConcat.
func (s *ConcatStrategy) Method() Method { return MethodConcat }

// Run writes the concat demuxer list and assembles the final video.
// The caller gates frame counts; the strategy itself accepts any plan.
func (s *ConcatStrategy) Run(ctx context.Context, in Inputs) error {
	if err := writeConcatList(in.ConcatListPath, in.BaseClipPath, in.Plan.FramesNeeded); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	return s.engine.run(ctx, s.engine.concatArgs(in.ConcatListPath, in.AudioPath, in.OutputPath))
}

func (f *FFmpeg) concatArgs(listPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", f.settings.AudioBitrate,
		"-shortest",
		outputPath,
	}
}

// writeConcatList writes a concat demuxer edit list referencing clipPath
// count times, in the format ffmpeg requires.
func writeConcatList(listPath, clipPath string, count int) error {
	absPath, err := filepath.Abs(clipPath)
	if err != nil {
		return fmt.Errorf("get absolute path for %s: %w", clipPath, err)
	}
	// Escape single quotes in path
	escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")

	var b strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "file '%s'\n", escapedPath)
	}

	return os.WriteFile(listPath, []byte(b.String()), 0600)
}

// StreamLoopStrategy repeats the base clip inside ffmpeg via -stream_loop,
// re-encoding the video. Slower than concat but needs no edit list of
// arbitrary length.
type StreamLoopStrategy struct {
	engine *FFmpeg
}

// NewStreamLoopStrategy creates a StreamLoopStrategy on the given engine.
func NewStreamLoopStrategy(engine *FFmpeg) *StreamLoopStrategy {
	return &StreamLoopStrategy{engine: engine}
}

// Method returns MethodStreamLoop.
func (s *StreamLoopStrategy) Method() Method { return MethodStreamLoop }

// Run loops the base clip FramesNeeded-1 additional times and muxes the audio.
func (s *StreamLoopStrategy) Run(ctx context.Context, in Inputs) error {
	return s.engine.run(ctx, s.engine.streamLoopArgs(in.BaseClipPath, in.AudioPath, in.OutputPath, in.Plan.FramesNeeded))
}

func (f *FFmpeg) streamLoopArgs(clipPath, audioPath, outputPath string, frames int) []string {
	// -stream_loop takes the number of additional repeats, so a plan of N
	// frames loops N-1 extra times.
	loops := frames - 1
	if loops < 0 {
		loops = 0
	}

	return []string{
		"-y",
		"-stream_loop", strconv.Itoa(loops),
		"-i", clipPath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", f.settings.Preset,
		"-b:v", f.settings.VideoBitrate,
		"-pix_fmt", f.settings.PixelFormat,
		"-c:a", "aac",
		"-b:a", f.settings.AudioBitrate,
		"-shortest",
		outputPath,
	}
}

// DirectStrategy renders the rotating video straight from the still image
// for the whole track in a single invocation. It does not touch the base
// clip or any edit list, so it has the smallest failure surface.
type DirectStrategy struct {
	engine *FFmpeg
}

// NewDirectStrategy creates a DirectStrategy on the given engine.
func NewDirectStrategy(engine *FFmpeg) *DirectStrategy {
	return &DirectStrategy{engine: engine}
}

// Method returns MethodDirect.
func (s *DirectStrategy) Method() Method { return MethodDirect }

// Run generates the full-length rotating video and muxes the audio in one pass.
func (s *DirectStrategy) Run(ctx context.Context, in Inputs) error {
	return s.engine.run(ctx, s.engine.directArgs(in.ImagePath, in.AudioPath, in.OutputPath, in.Plan, in.AudioDuration))
}

func (f *FFmpeg) directArgs(imagePath, audioPath, outputPath string, p plan.RotationPlan, audioDuration float64) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-vf", f.rotateFilter(p.AngularSpeed),
		"-t", formatSeconds(audioDuration),
		"-r", strconv.Itoa(f.settings.Framerate),
		"-c:v", "libx264",
		"-preset", f.settings.Preset,
		"-b:v", f.settings.VideoBitrate,
		"-pix_fmt", f.settings.PixelFormat,
		"-c:a", "aac",
		"-b:a", f.settings.AudioBitrate,
		"-shortest",
		outputPath,
	}
}

// formatSeconds renders a duration argument for ffmpeg.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
