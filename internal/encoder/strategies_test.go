package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminbelaga/video-processor/internal/plan"
)

func testSettings() Settings {
	return Settings{
		Framerate:    30,
		VideoSize:    "1080x1080",
		Preset:       "medium",
		VideoBitrate: "8M",
		AudioBitrate: "320k",
		PixelFormat:  "yuv420p",
	}
}

func TestNewFFmpeg(t *testing.T) {
	t.Run("default path", func(t *testing.T) {
		f := NewFFmpeg("", testSettings())
		assert.Equal(t, "ffmpeg", f.ffmpegPath)
	})

	t.Run("custom path", func(t *testing.T) {
		f := NewFFmpeg("/opt/ffmpeg/bin/ffmpeg", testSettings())
		assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", f.ffmpegPath)
	})
}

func TestMethods(t *testing.T) {
	engine := NewFFmpeg("", testSettings())

	assert.Equal(t, MethodConcat, NewConcatStrategy(engine).Method())
	assert.Equal(t, MethodStreamLoop, NewStreamLoopStrategy(engine).Method())
	assert.Equal(t, MethodDirect, NewDirectStrategy(engine).Method())
}

func TestBaseClipArgs(t *testing.T) {
	engine := NewFFmpeg("", testSettings())
	p := plan.Compute(12.3, 5.0)

	args := engine.baseClipArgs("cover.png", "clip.mp4", p)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-loop 1 -i cover.png")
	assert.Contains(t, joined, "-t 5.000")
	assert.Contains(t, joined, "-r 30")
	assert.Contains(t, joined, "-an", "base clip must carry no audio")
	assert.Contains(t, joined, "rotate=")
	assert.Contains(t, joined, "scale=1080:1080")
	assert.Equal(t, "clip.mp4", args[len(args)-1])
}

func TestConcatArgs_StreamCopiesVideo(t *testing.T) {
	engine := NewFFmpeg("", testSettings())

	args := engine.concatArgs("list.txt", "track.mp3", "out.mp4")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-f concat -safe 0 -i list.txt")
	assert.Contains(t, joined, "-c:v copy", "concat must not re-encode video")
	assert.Contains(t, joined, "-c:a aac -b:a 320k")
	assert.Contains(t, joined, "-shortest")
}

func TestStreamLoopArgs(t *testing.T) {
	engine := NewFFmpeg("", testSettings())

	t.Run("loops frames minus one", func(t *testing.T) {
		args := engine.streamLoopArgs("clip.mp4", "track.mp3", "out.mp4", 151)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-stream_loop 150 -i clip.mp4")
		assert.Contains(t, joined, "-c:v libx264", "stream_loop re-encodes video")
	})

	t.Run("single frame never loops negatively", func(t *testing.T) {
		args := engine.streamLoopArgs("clip.mp4", "track.mp3", "out.mp4", 1)
		assert.Contains(t, strings.Join(args, " "), "-stream_loop 0")
	})
}

func TestDirectArgs(t *testing.T) {
	engine := NewFFmpeg("", testSettings())
	p := plan.Compute(12.3, 5.0)

	args := engine.directArgs("cover.png", "track.mp3", "out.mp4", p, 12.3)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-loop 1 -i cover.png -i track.mp3")
	assert.Contains(t, joined, "-t 12.300", "direct renders the full audio duration")
	assert.Contains(t, joined, "rotate=")
	assert.Contains(t, joined, "-c:v libx264", "direct re-encodes video")
}

func TestWriteConcatList(t *testing.T) {
	tmpDir := t.TempDir()
	listPath := filepath.Join(tmpDir, "list.txt")
	clipPath := filepath.Join(tmpDir, "clip.mp4")

	require.NoError(t, writeConcatList(listPath, clipPath, 3))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, fmt.Sprintf("file '%s'", clipPath), line)
	}
}

func TestWriteConcatList_EscapesQuotes(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "it's a dir")
	require.NoError(t, os.Mkdir(sub, 0750))

	listPath := filepath.Join(tmpDir, "list.txt")
	require.NoError(t, writeConcatList(listPath, filepath.Join(sub, "clip.mp4"), 1))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `'\''`)
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-c", "copy", "output.mp4"},
		Stderr: "line1\nline2\nline3\nError opening input file\n",
		Err:    fmt.Errorf("exit status 1"),
	}

	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "Error opening input file")
	require.NotNil(t, err.Unwrap())

	tail := err.StderrTail(2)
	assert.Equal(t, "line3\nError opening input file", tail)

	// Asking for more lines than exist returns everything.
	assert.Equal(t, strings.TrimRight(err.Stderr, "\n"), err.StderrTail(10))
}

// Integration tests below require ffmpeg in PATH.

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestImage creates a simple test image using ffmpeg.
func createTestImage(t *testing.T, path string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "color=c=red:s=64x64:d=1",
		"-frames:v", "1",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test image: %v\noutput: %s", err, output)
	}
}

// createTestAudio creates a short silent audio file using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

func fastSettings() Settings {
	return Settings{
		Framerate:    10,
		VideoSize:    "64x64",
		Preset:       "ultrafast",
		VideoBitrate: "200k",
		AudioBitrate: "64k",
		PixelFormat:  "yuv420p",
	}
}

func TestStrategies_EndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	engine := NewFFmpeg("", fastSettings())
	ctx := context.Background()

	imagePath := filepath.Join(tmpDir, "cover.png")
	audioPath := filepath.Join(tmpDir, "track.wav")
	clipPath := filepath.Join(tmpDir, "clip.mp4")
	createTestImage(t, imagePath)
	createTestAudio(t, audioPath, 2.0)

	p := plan.Compute(2.0, 1.0)
	require.NoError(t, engine.GenerateBaseClip(ctx, imagePath, clipPath, p))

	in := Inputs{
		ImagePath:      imagePath,
		AudioPath:      audioPath,
		BaseClipPath:   clipPath,
		ConcatListPath: filepath.Join(tmpDir, "list.txt"),
		Plan:           p,
		AudioDuration:  2.0,
	}

	strategies := []Strategy{
		NewConcatStrategy(engine),
		NewStreamLoopStrategy(engine),
		NewDirectStrategy(engine),
	}

	for _, s := range strategies {
		t.Run(string(s.Method()), func(t *testing.T) {
			in := in
			in.OutputPath = filepath.Join(tmpDir, string(s.Method())+".mp4")

			require.NoError(t, s.Run(ctx, in))

			info, err := os.Stat(in.OutputPath)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestStrategy_FailureCarriesDiagnostics(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	engine := NewFFmpeg("", fastSettings())

	in := Inputs{
		ImagePath:      filepath.Join(tmpDir, "missing.png"),
		AudioPath:      filepath.Join(tmpDir, "missing.wav"),
		BaseClipPath:   filepath.Join(tmpDir, "missing.mp4"),
		ConcatListPath: filepath.Join(tmpDir, "list.txt"),
		OutputPath:     filepath.Join(tmpDir, "out.mp4"),
		Plan:           plan.Compute(2.0, 1.0),
		AudioDuration:  2.0,
	}

	err := NewStreamLoopStrategy(engine).Run(context.Background(), in)
	require.Error(t, err)

	var ffErr *FFmpegError
	require.ErrorAs(t, err, &ffErr)
	assert.NotEmpty(t, ffErr.Stderr)
}
