package batch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminbelaga/video-processor/internal/job"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
}

func TestFindImage(t *testing.T) {
	t.Run("matches extensions case-insensitively", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "COVER.JPG"))
		touch(t, filepath.Join(dir, "notes.txt"))

		img, err := FindImage(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "COVER.JPG"), img)
	})

	t.Run("prefers lexicographic order", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "b.png"))
		touch(t, filepath.Join(dir, "a.jpeg"))

		img, err := FindImage(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "a.jpeg"), img)
	})

	t.Run("no image", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "track.mp3"))

		_, err := FindImage(dir)
		assert.ErrorIs(t, err, ErrNoImage)
	})
}

func TestListTracks(t *testing.T) {
	t.Run("finds audio files sorted", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "B2.WAV"))
		touch(t, filepath.Join(dir, "A1.mp3"))
		touch(t, filepath.Join(dir, "C1.aif"))
		touch(t, filepath.Join(dir, "cover.jpg"))
		touch(t, filepath.Join(dir, "README.md"))

		tracks, err := ListTracks(dir)
		require.NoError(t, err)
		require.Len(t, tracks, 3)
		assert.Equal(t, filepath.Join(dir, "A1.mp3"), tracks[0])
		assert.Equal(t, filepath.Join(dir, "B2.WAV"), tracks[1])
		assert.Equal(t, filepath.Join(dir, "C1.aif"), tracks[2])
	})

	t.Run("ignores subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp3"), 0750))
		touch(t, filepath.Join(dir, "real.mp3"))

		tracks, err := ListTracks(dir)
		require.NoError(t, err)
		require.Len(t, tracks, 1)
	})

	t.Run("no tracks", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "cover.jpg"))

		_, err := ListTracks(dir)
		assert.ErrorIs(t, err, ErrNoTracks)
	})
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/out", "A1_TRACK.mp4"), OutputPath("/out", "/in/A1_TRACK.mp3"))
	assert.Equal(t, filepath.Join("/out", "B2.mp4"), OutputPath("/out", "/in/B2.WAV"))
}

// fakeProcessor records jobs and returns canned results per track label.
type fakeProcessor struct {
	jobs     []job.ProcessingJob
	failures map[string]error
	skips    map[string]bool
}

func (f *fakeProcessor) Process(_ context.Context, j job.ProcessingJob) (job.Result, error) {
	f.jobs = append(f.jobs, j)

	if err := f.failures[j.TrackLabel()]; err != nil {
		return job.Result{Outcome: job.OutcomeFailed}, err
	}
	if f.skips[j.TrackLabel()] {
		return job.Result{Outcome: job.OutcomeSkipped}, nil
	}

	// Produce the output so uploads have something to read.
	if err := os.WriteFile(j.OutputPath, []byte("video"), 0600); err != nil {
		return job.Result{Outcome: job.OutcomeFailed}, err
	}
	return job.Result{Outcome: job.OutcomeDone, Method: "concat"}, nil
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Upload(_ context.Context, key string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://bucket.s3.eu-west-1.amazonaws.com/" + key, nil
}

func setupInput(t *testing.T, tracks ...string) string {
	t.Helper()
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "cover.jpg"))
	for _, tr := range tracks {
		touch(t, filepath.Join(dir, tr))
	}
	return dir
}

func TestRun_ProcessesAllTracks(t *testing.T) {
	in := setupInput(t, "A1.mp3", "B1.wav")
	out := t.TempDir()
	proc := &fakeProcessor{}

	d := NewDriver(in, out, proc, nil, nil)
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 2}, summary)
	require.Len(t, proc.jobs, 2)
	assert.Equal(t, filepath.Join(in, "cover.jpg"), proc.jobs[0].ImagePath)
	assert.Equal(t, filepath.Join(out, "A1.mp4"), proc.jobs[0].OutputPath)
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	in := setupInput(t, "A1.mp3", "B1.mp3", "C1.mp3")
	out := t.TempDir()
	proc := &fakeProcessor{failures: map[string]error{"B1.mp4": errors.New("all encoding methods failed")}}

	d := NewDriver(in, out, proc, nil, nil)
	summary, err := d.Run(context.Background())
	require.NoError(t, err, "a per-track failure must not abort the batch")

	assert.Equal(t, Summary{Processed: 2, Failed: 1}, summary)
	assert.Len(t, proc.jobs, 3, "every track attempted")
}

func TestRun_CountsSkips(t *testing.T) {
	in := setupInput(t, "A1.mp3", "B1.mp3")
	out := t.TempDir()
	proc := &fakeProcessor{skips: map[string]bool{"A1.mp4": true}}

	d := NewDriver(in, out, proc, nil, nil)
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 1, Skipped: 1}, summary)
}

func TestRun_UploadsFinishedVideos(t *testing.T) {
	in := setupInput(t, "A1.mp3")
	out := t.TempDir()
	proc := &fakeProcessor{}
	arch := &fakeArchiver{}

	d := NewDriver(in, out, proc, arch, nil)
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 1, Uploaded: 1}, summary)
	assert.Equal(t, []string{"A1.mp4"}, arch.keys)
}

func TestRun_UploadFailureIsNotFatal(t *testing.T) {
	in := setupInput(t, "A1.mp3")
	out := t.TempDir()
	proc := &fakeProcessor{}
	arch := &fakeArchiver{err: errors.New("network unreachable")}

	d := NewDriver(in, out, proc, arch, nil)
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Processed: 1}, summary, "failed upload counts as processed, not uploaded")
}

func TestRun_NoImageFails(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "track.mp3"))

	d := NewDriver(dir, t.TempDir(), &fakeProcessor{}, nil, nil)
	_, err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestRun_CancelledContextStops(t *testing.T) {
	in := setupInput(t, "A1.mp3", "B1.mp3")
	out := t.TempDir()
	proc := &fakeProcessor{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver(in, out, proc, nil, nil)
	_, err := d.Run(ctx)
	require.Error(t, err)
	assert.Empty(t, proc.jobs)
}
