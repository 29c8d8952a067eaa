// Package batch walks an input directory of audio tracks and drives one
// encoding job per track. A failed track is logged and skipped; the batch
// itself never aborts on a per-track failure.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/benjaminbelaga/video-processor/internal/job"
	"github.com/benjaminbelaga/video-processor/internal/storage"
)

// Static errors for batch scanning.
var (
	// ErrNoImage is returned when the input directory holds no cover image.
	ErrNoImage = errors.New("no cover image found in input directory")
	// ErrNoTracks is returned when the input directory holds no audio files.
	ErrNoTracks = errors.New("no audio tracks found in input directory")
)

// Extension sets matched case-insensitively when scanning the input
// directory.
var (
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	audioExtensions = map[string]bool{".mp3": true, ".wav": true, ".aif": true}
)

// Processor runs one job to completion. Satisfied by *job.Controller.
type Processor interface {
	Process(ctx context.Context, j job.ProcessingJob) (job.Result, error)
}

// Summary counts the terminal outcomes of one batch run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Uploaded  int
}

// Driver iterates the tracks of one input directory.
type Driver struct {
	inputDir  string
	outputDir string
	processor Processor
	archiver  storage.Archiver
	logger    *slog.Logger
}

// NewDriver creates a Driver. The archiver may be nil when finished videos
// are not uploaded anywhere.
func NewDriver(inputDir, outputDir string, processor Processor, archiver storage.Archiver, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		inputDir:  inputDir,
		outputDir: outputDir,
		processor: processor,
		archiver:  archiver,
		logger:    logger,
	}
}

// Run processes every audio track in the input directory against the
// directory's cover image. It returns an error only when the batch cannot
// start at all; per-track failures are counted in the summary.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	image, err := FindImage(d.inputDir)
	if err != nil {
		return summary, err
	}

	tracks, err := ListTracks(d.inputDir)
	if err != nil {
		return summary, err
	}

	if err := os.MkdirAll(d.outputDir, 0750); err != nil {
		return summary, fmt.Errorf("create output directory: %w", err)
	}

	d.logger.Info("starting batch",
		slog.String("input_dir", d.inputDir),
		slog.String("image", filepath.Base(image)),
		slog.Int("tracks", len(tracks)),
	)

	for _, track := range tracks {
		if ctx.Err() != nil {
			d.logger.Info("batch interrupted", slog.String("reason", ctx.Err().Error()))
			return summary, ctx.Err()
		}

		j := job.ProcessingJob{
			ImagePath:  image,
			AudioPath:  track,
			OutputPath: OutputPath(d.outputDir, track),
		}

		res, err := d.processor.Process(ctx, j)
		switch {
		case err != nil:
			// Local failure: log and move on to the next track.
			summary.Failed++
			d.logger.Error("track failed",
				slog.String("track", j.TrackLabel()),
				slog.String("error", err.Error()),
			)
		case res.Outcome == job.OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Processed++
			d.upload(ctx, j, &summary)
		}
	}

	d.logger.Info("batch finished",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("uploaded", summary.Uploaded),
	)

	return summary, nil
}

// upload archives a finished video when an archiver is configured. Upload
// failures are warnings: the video exists locally and the job succeeded.
func (d *Driver) upload(ctx context.Context, j job.ProcessingJob, summary *Summary) {
	if d.archiver == nil {
		return
	}

	f, err := os.Open(j.OutputPath) // #nosec G304 - path is built from trusted config
	if err != nil {
		d.logger.Warn("cannot open finished video for upload",
			slog.String("path", j.OutputPath),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := d.archiver.Upload(ctx, j.TrackLabel(), f)
	if err != nil {
		if errors.Is(err, storage.ErrS3NotConfigured) {
			return
		}
		d.logger.Warn("upload failed",
			slog.String("track", j.TrackLabel()),
			slog.String("error", err.Error()),
		)
		return
	}

	summary.Uploaded++
	d.logger.Info("video uploaded",
		slog.String("track", j.TrackLabel()),
		slog.String("url", url),
	)
}

// FindImage returns the first cover image in dir, matching extensions
// case-insensitively and preferring lexicographic order for determinism.
func FindImage(dir string) (string, error) {
	matches, err := listByExtension(dir, imageExtensions)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoImage, dir)
	}
	return matches[0], nil
}

// ListTracks returns the audio files in dir in lexicographic order,
// matching extensions case-insensitively.
func ListTracks(dir string) ([]string, error) {
	matches, err := listByExtension(dir, audioExtensions)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTracks, dir)
	}
	return matches, nil
}

// OutputPath derives the final video path for a track: the track's stem
// with an .mp4 extension under outputDir.
func OutputPath(outputDir, trackPath string) string {
	base := filepath.Base(trackPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+".mp4")
}

func listByExtension(dir string, extensions map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(matches)
	return matches, nil
}
