package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/benjaminbelaga/video-processor/internal/audit"
	"github.com/benjaminbelaga/video-processor/internal/encoder"
	"github.com/benjaminbelaga/video-processor/internal/plan"
	"github.com/benjaminbelaga/video-processor/internal/probe"
	"github.com/benjaminbelaga/video-processor/internal/resource"
)

// Static errors for job processing.
var (
	// ErrAllMethodsFailed is returned when every strategy in the selected
	// order was attempted without producing an accepted output.
	ErrAllMethodsFailed = errors.New("all encoding methods failed")
	// ErrBaseClipGeneration is returned when the shared base rotation clip
	// cannot be rendered. This aborts the job before any strategy runs.
	ErrBaseClipGeneration = errors.New("base rotation clip generation failed")
	// ErrVerificationFailed is returned when a strategy reported success but
	// the output file is not a readable media container. Terminal: the
	// fallback chain is not re-entered after a verification failure.
	ErrVerificationFailed = errors.New("output verification failed")
)

// stderrTailLines bounds how much encoder stderr is surfaced to the operator.
const stderrTailLines = 12

// ClipGenerator renders the single base rotation clip shared by the concat
// and stream_loop strategies.
type ClipGenerator interface {
	GenerateBaseClip(ctx context.Context, imagePath, clipPath string, p plan.RotationPlan) error
}

// AttemptSink receives audit records. Implementations must never fail the
// caller.
type AttemptSink interface {
	Append(audit.Attempt)
}

// ResourceChecker runs the advisory pre-flight resource check.
type ResourceChecker interface {
	Check(minFreeGB float64) resource.Report
}

// Options is the immutable configuration consumed by the Controller.
type Options struct {
	// RotationDuration is the seconds-per-rotation constant.
	RotationDuration float64
	// MaxConcatRotations is the standard-method ceiling: above it the
	// concat strategy is skipped entirely, not merely deprioritized.
	MaxConcatRotations int
	// EmergencyFallbackThreshold is informational; crossing it is logged
	// but changes no behavior.
	EmergencyFallbackThreshold int
	// MinFreeDiskGB is the advisory free-space floor for the output volume.
	MinFreeDiskGB float64
	// EncodeTimeout bounds each encoder invocation when positive. Zero
	// lets invocations run indefinitely.
	EncodeTimeout time.Duration
	// TempRoot is the directory under which per-job workspaces are created.
	TempRoot string
}

// Controller orchestrates one job through planning, strategy selection, the
// fallback cascade, verification, and cleanup.
type Controller struct {
	opts       Options
	prober     probe.Prober
	clips      ClipGenerator
	strategies []encoder.Strategy
	auditLog   AttemptSink
	guard      ResourceChecker
	logger     *slog.Logger
}

// NewController creates a Controller. The strategies slice must be in
// canonical preference order: concat, stream_loop, direct.
func NewController(
	opts Options,
	prober probe.Prober,
	clips ClipGenerator,
	strategies []encoder.Strategy,
	auditLog AttemptSink,
	guard ResourceChecker,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opts:       opts,
		prober:     prober,
		clips:      clips,
		strategies: strategies,
		auditLog:   auditLog,
		guard:      guard,
		logger:     logger,
	}
}

// Process runs one job to completion. A returned error marks a local
// failure: the caller logs it and moves to the next track, it never aborts
// the batch. Temporary artifacts are deleted before returning regardless
// of outcome.
func (c *Controller) Process(ctx context.Context, j ProcessingJob) (Result, error) {
	start := time.Now()

	// Skip rule: an existing output short-circuits everything, including
	// probing and audit logging, so batch re-runs are idempotent.
	if _, err := os.Stat(j.OutputPath); err == nil {
		c.logger.Info("output already exists, skipping track",
			slog.String("output", j.OutputPath),
		)
		return Result{Outcome: OutcomeSkipped, Elapsed: time.Since(start)}, nil
	}

	track := j.TrackLabel()

	// PLANNING
	duration, err := c.prober.Duration(ctx, j.AudioPath)
	if err != nil {
		return c.fail(start, 0, 0), fmt.Errorf("probe audio duration for %s: %w", j.AudioPath, err)
	}

	p := plan.Compute(duration, c.opts.RotationDuration)

	c.logger.Info("planned rotation sequence",
		slog.String("track", track),
		slog.Float64("audio_duration", duration),
		slog.Int("frames_needed", p.FramesNeeded),
	)

	if p.FramesNeeded > c.opts.EmergencyFallbackThreshold {
		c.logger.Info("frame count exceeds emergency fallback threshold",
			slog.String("track", track),
			slog.Int("frames_needed", p.FramesNeeded),
			slog.Int("threshold", c.opts.EmergencyFallbackThreshold),
		)
	}

	// Advisory resource check: warnings never block processing.
	report := c.guard.Check(c.opts.MinFreeDiskGB)
	for _, w := range report.Warnings {
		c.logger.Warn("resource warning", slog.String("warning", w))
	}

	ws, err := NewWorkspace(c.opts.TempRoot, track)
	if err != nil {
		return c.fail(start, p.FramesNeeded, duration), err
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			c.logger.Warn("workspace cleanup failed",
				slog.String("track", track),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	c.auditLog.Append(audit.Attempt{
		Track:     track,
		Method:    audit.MethodStarting,
		Rotations: p.FramesNeeded,
		Duration:  duration,
		Outcome:   audit.OutcomePending,
	})

	// The base clip is a shared precondition for concat and stream_loop.
	// Its failure aborts the whole job even though the direct strategy does
	// not need the clip; see DESIGN.md before changing this.
	if err := c.generateBaseClip(ctx, j, ws, p); err != nil {
		c.auditLog.Append(audit.Attempt{
			Track:     track,
			Method:    audit.MethodStarting,
			Rotations: p.FramesNeeded,
			Duration:  duration,
			Outcome:   audit.OutcomeFailed,
		})
		return c.fail(start, p.FramesNeeded, duration), fmt.Errorf("%w: %w", ErrBaseClipGeneration, err)
	}

	// SELECTING
	order := c.selectOrder(p.FramesNeeded)

	in := encoder.Inputs{
		ImagePath:      j.ImagePath,
		AudioPath:      j.AudioPath,
		BaseClipPath:   ws.BaseClipPath(),
		ConcatListPath: ws.ConcatListPath(),
		OutputPath:     j.OutputPath,
		Plan:           p,
		AudioDuration:  duration,
	}

	// ATTEMPTING
	var lastMethod encoder.Method
	for _, s := range order {
		lastMethod = s.Method()

		c.logger.Info("attempting encoding method",
			slog.String("track", track),
			slog.String("method", string(s.Method())),
		)

		runErr := c.runBounded(ctx, func(ctx context.Context) error {
			return s.Run(ctx, in)
		})

		outcome := audit.OutcomeSuccess
		if runErr != nil {
			outcome = audit.OutcomeFailed
		}
		c.auditLog.Append(audit.Attempt{
			Track:     track,
			Method:    string(s.Method()),
			Rotations: p.FramesNeeded,
			Duration:  duration,
			Outcome:   outcome,
		})

		if runErr != nil {
			c.surfaceDiagnostics(track, s.Method(), runErr)
			// Remove any partial output before cascading to the next method.
			c.removeOutput(j.OutputPath)
			continue
		}

		// VERIFYING
		if verr := c.prober.Verify(ctx, j.OutputPath); verr != nil {
			c.removeOutput(j.OutputPath)
			c.auditLog.Append(audit.Attempt{
				Track:     track,
				Method:    string(s.Method()),
				Rotations: p.FramesNeeded,
				Duration:  duration,
				Outcome:   audit.OutcomeFailed,
			})
			return c.fail(start, p.FramesNeeded, duration),
				fmt.Errorf("%w for %s after %s: %w", ErrVerificationFailed, track, s.Method(), verr)
		}

		c.logger.Info("track finished",
			slog.String("track", track),
			slog.String("method", string(s.Method())),
			slog.Duration("elapsed", time.Since(start)),
		)

		return Result{
			Outcome:       OutcomeDone,
			Method:        string(s.Method()),
			FramesNeeded:  p.FramesNeeded,
			AudioDuration: duration,
			Elapsed:       time.Since(start),
		}, nil
	}

	// Exhausted: record the terminal outcome and make sure no partial
	// output survives.
	c.removeOutput(j.OutputPath)
	c.auditLog.Append(audit.Attempt{
		Track:     track,
		Method:    string(lastMethod),
		Rotations: p.FramesNeeded,
		Duration:  duration,
		Outcome:   audit.OutcomeAllMethodsFailed,
	})

	return c.fail(start, p.FramesNeeded, duration), fmt.Errorf("%w for %s", ErrAllMethodsFailed, track)
}

// selectOrder gates the concat strategy behind the standard-method ceiling.
// Above the ceiling concat is excluded entirely, not merely deprioritized.
func (c *Controller) selectOrder(framesNeeded int) []encoder.Strategy {
	if framesNeeded <= c.opts.MaxConcatRotations {
		return c.strategies
	}

	order := make([]encoder.Strategy, 0, len(c.strategies))
	for _, s := range c.strategies {
		if s.Method() == encoder.MethodConcat {
			continue
		}
		order = append(order, s)
	}
	return order
}

func (c *Controller) generateBaseClip(ctx context.Context, j ProcessingJob, ws *Workspace, p plan.RotationPlan) error {
	return c.runBounded(ctx, func(ctx context.Context) error {
		return c.clips.GenerateBaseClip(ctx, j.ImagePath, ws.BaseClipPath(), p)
	})
}

// runBounded applies the configured encode timeout to one encoder invocation.
func (c *Controller) runBounded(ctx context.Context, fn func(context.Context) error) error {
	if c.opts.EncodeTimeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.EncodeTimeout)
	defer cancel()
	return fn(ctx)
}

// surfaceDiagnostics logs the stderr tail of a failed encoder invocation.
// The tail goes to the operator only; the audit record stays structural.
func (c *Controller) surfaceDiagnostics(track string, method encoder.Method, err error) {
	attrs := []any{
		slog.String("track", track),
		slog.String("method", string(method)),
		slog.String("error", err.Error()),
	}

	var ffErr *encoder.FFmpegError
	if errors.As(err, &ffErr) {
		attrs = append(attrs, slog.String("stderr_tail", ffErr.StderrTail(stderrTailLines)))
	}

	c.logger.Warn("encoding method failed", attrs...)
}

// removeOutput deletes a partial or corrupt output file, best effort.
func (c *Controller) removeOutput(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove output file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Controller) fail(start time.Time, frames int, duration float64) Result {
	return Result{
		Outcome:       OutcomeFailed,
		FramesNeeded:  frames,
		AudioDuration: duration,
		Elapsed:       time.Since(start),
	}
}
