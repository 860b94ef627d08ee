package pipeline

import (
	"time"

	"meetdraft/internal/metrics"

	"github.com/google/uuid"
)

// StageTiming records how long one pipeline stage took within a run.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Run carries per-invocation instrumentation through the call chain. It
// is owned by the caller of Handle and discarded when that call returns;
// it must never live in package-level state, because invocations may
// interleave or the process may be recycled between them.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	timings   []StageTiming
}

// NewRun starts a new instrumented run.
func NewRun() *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
}

// Stage starts timing a named stage; the returned stop function records
// the duration and feeds the stage histogram.
func (r *Run) Stage(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		r.timings = append(r.timings, StageTiming{Stage: name, Duration: d})
		metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	}
}

// Timings returns the recorded stage durations.
func (r *Run) Timings() []StageTiming {
	return r.timings
}
