// Package common holds small helpers shared by the pipeline stages.
package common

import (
	"log/slog"
	"time"
)

// Stopwatch times one named pipeline stage.
type Stopwatch struct {
	stage string
	start time.Time
}

// StartStage begins timing the named stage.
func StartStage(stage string) *Stopwatch {
	return &Stopwatch{stage: stage, start: time.Now()}
}

// Stage returns the stage name.
func (s *Stopwatch) Stage() string {
	return s.stage
}

// Elapsed returns the time since the stage started.
func (s *Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Stop returns the elapsed time and emits a debug log line for the stage.
// Calling it again re-reads the clock, so each return path of a stage can
// stop independently.
func (s *Stopwatch) Stop() time.Duration {
	d := time.Since(s.start)
	slog.Debug("stage finished", "stage", s.stage, "elapsed", d)
	return d
}
