// Package job contains the fallback controller that turns one audio track
// and a cover image into a finished vinyl video. It plans the rotation
// sequence, selects an ordered set of encoding strategies, executes them
// until one succeeds, verifies the artifact, and records every attempt.
package job

import (
	"path/filepath"
	"time"
)

// ProcessingJob describes one track to process. It is created by the batch
// driver and consumed entirely within one Controller.Process call.
type ProcessingJob struct {
	// ImagePath is the cover image used for the rotating disc.
	ImagePath string
	// AudioPath is the track to mux under the video.
	AudioPath string
	// OutputPath is the final video location. An existing file here causes
	// the job to be skipped without probing or logging.
	OutputPath string
}

// TrackLabel is the output file name, used to label audit records and to
// namespace the job's temporary workspace.
func (j ProcessingJob) TrackLabel() string {
	return filepath.Base(j.OutputPath)
}

// Outcome is the terminal result of one job.
type Outcome string

// Job outcomes.
const (
	// OutcomeDone means a strategy succeeded and the output verified.
	OutcomeDone Outcome = "done"
	// OutcomeSkipped means the output already existed and nothing ran.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the job produced no accepted output.
	OutcomeFailed Outcome = "failed"
)

// Result summarizes one completed job for the batch driver.
type Result struct {
	// Outcome is the terminal job state.
	Outcome Outcome
	// Method is the strategy that produced the accepted output, empty
	// unless Outcome is OutcomeDone.
	Method string
	// FramesNeeded is the planned rotation-frame count, zero when skipped.
	FramesNeeded int
	// AudioDuration is the probed track length in seconds, zero when skipped.
	AudioDuration float64
	// Elapsed is the wall time spent on the job.
	Elapsed time.Duration
}
