// Package audit keeps the durable record of every encoding attempt. The
// log is an append-only line file capped at a configurable number of
// entries; when the cap is exceeded the file is rewritten keeping only the
// most recent lines. Logging never fails the caller: an unwritable audit
// log must not block video production.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Outcome is the recorded result of one strategy attempt.
type Outcome string

// Attempt outcomes as they appear in the log file.
const (
	OutcomePending          Outcome = "PENDING"
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeFailed           Outcome = "FAILED"
	OutcomeAllMethodsFailed Outcome = "ALL_METHODS_FAILED"
)

// MethodStarting marks the record written when processing of a track begins,
// before any strategy has been selected.
const MethodStarting = "STARTING"

// timestampLayout is the ISO-like timestamp used in every log line.
const timestampLayout = "2006-01-02 15:04:05"

// DefaultMaxLines is the log cap used when none is configured.
const DefaultMaxLines = 1000

// Attempt is one record in the audit log.
type Attempt struct {
	// Track is the output file name the attempt belongs to.
	Track string
	// Method is the strategy name, or MethodStarting for the opening record.
	Method string
	// Rotations is the planned rotation-frame count for the track.
	Rotations int
	// Duration is the probed audio duration in seconds.
	Duration float64
	// Outcome is the attempt result.
	Outcome Outcome
	// Timestamp is when the record was created. Zero means "now" at append.
	Timestamp time.Time
}

// Line renders the attempt in the fixed log file format.
func (a Attempt) Line() string {
	return fmt.Sprintf("[%s] TRACK: %s | METHOD: %s | ROTATIONS: %d | DURATION: %ss | SUCCESS: %s",
		a.Timestamp.Format(timestampLayout),
		a.Track,
		a.Method,
		a.Rotations,
		formatDuration(a.Duration),
		a.Outcome,
	)
}

// formatDuration trims trailing zeros so 12.30 renders as 12.3 and 15.00 as 15.
func formatDuration(d float64) string {
	s := fmt.Sprintf("%.2f", d)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// Log is the append-only, size-capped attempt log. Appends are serialized
// so concurrent jobs cannot interleave lines or race the truncation rewrite.
type Log struct {
	mu       sync.Mutex
	path     string
	maxLines int
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithMaxLines overrides the entry cap.
func WithMaxLines(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxLines = n
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates a Log writing to path.
func New(path string, logger *slog.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		path:     path,
		maxLines: DefaultMaxLines,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes one attempt record to the log file and truncates the file
// to the configured cap when it grows past it. Errors are warned about and
// swallowed; losing an audit entry must never fail the job that produced it.
func (l *Log) Append(a Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a.Timestamp.IsZero() {
		a.Timestamp = l.now()
	}

	if err := l.appendLine(a.Line()); err != nil {
		l.logger.Warn("audit log write failed",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := l.truncate(); err != nil {
		l.logger.Warn("audit log truncation failed",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Log) appendLine(line string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append audit line: %w", err)
	}
	return nil
}

// truncate rewrites the file keeping only the most recent maxLines entries,
// oldest first. A no-op while the file is at or under the cap.
func (l *Log) truncate() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) <= l.maxLines {
		return nil
	}

	kept := lines[len(lines)-l.maxLines:]
	if err := os.WriteFile(l.path, []byte(strings.Join(kept, "\n")+"\n"), 0600); err != nil {
		return fmt.Errorf("rewrite audit log: %w", err)
	}
	return nil
}
