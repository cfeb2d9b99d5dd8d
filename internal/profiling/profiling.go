// Package profiling implements the phase profiler described in
// spec.md §5: env-gated, wraps coarse compilation phases, records
// monotonic durations, and writes one JSON line per invocation to
// whichever sink TONIC_PROFILE_STDERR/TONIC_PROFILE_OUT selects.
package profiling

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Phase names the profiler accepts. Anything else is a programming
// error in the caller, not a user-facing condition.
type Phase string

const (
	PhaseFrontendLex        Phase = "frontend.lex"
	PhaseFrontendParse      Phase = "frontend.parse"
	PhaseResolveTypes       Phase = "resolve.types"
	PhaseIRLower            Phase = "ir.lower"
	PhaseMIRBuild           Phase = "mir.build"
	PhaseBackendOptimizeMIR Phase = "backend.optimize_mir"
	PhaseBackendEmit        Phase = "backend.emit"
	PhaseRunEvaluateEntry   Phase = "run.evaluate_entrypoint"
)

// record is one phase's completed measurement, serialized as a single
// JSON line.
type record struct {
	Phase      string `json:"phase"`
	DurationNs int64  `json:"duration_ns"`
}

// Profiler accumulates phase durations and writes one JSON line per
// invocation to Sink when non-nil. A nil Sink (the default when
// profiling is disabled) makes every method a no-op, so call sites
// never need to branch on whether profiling is active.
type Profiler struct {
	mu   sync.Mutex
	Sink io.Writer
}

// FromEnv builds a Profiler whose sink is selected by
// TONIC_PROFILE_STDERR (any non-empty value) or TONIC_PROFILE_OUT (a
// file path), in that precedence order. Neither set yields a disabled
// Profiler.
func FromEnv() (*Profiler, error) {
	if os.Getenv("TONIC_PROFILE_STDERR") != "" {
		return &Profiler{Sink: os.Stderr}, nil
	}
	if path := os.Getenv("TONIC_PROFILE_OUT"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &Profiler{Sink: f}, nil
	}
	return &Profiler{}, nil
}

// Enabled reports whether this Profiler actually writes anything.
func (p *Profiler) Enabled() bool {
	return p != nil && p.Sink != nil
}

// Track runs fn, timing it with a monotonic clock, and records the
// phase's duration. The measurement is written regardless of whether
// fn returns an error; profiling a failed phase is still useful.
func (p *Profiler) Track(phase Phase, fn func() error) error {
	if p == nil || p.Sink == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	p.record(phase, time.Since(start))
	return err
}

func (p *Profiler) record(phase Phase, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line, err := json.Marshal(record{Phase: string(phase), DurationNs: d.Nanoseconds()})
	if err != nil {
		return
	}
	p.Sink.Write(append(line, '\n'))
}

// Close releases any file-backed sink FromEnv opened. Stderr and nil
// sinks are left alone.
func (p *Profiler) Close() error {
	if p == nil || p.Sink == nil {
		return nil
	}
	if f, ok := p.Sink.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		return f.Close()
	}
	return nil
}
