package abi

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Context is what invoke_runtime_boundary's ctx argument carries across
// the native/managed boundary: the ABI version the caller was compiled
// against, plus the root frame stack trace mode's mark/sweep walks.
type Context struct {
	AbiVersion int
	Roots      []Handle
}

// InvalidAbi is returned when ctx.AbiVersion does not match Version.
type InvalidAbi struct {
	Got int
}

func (e *InvalidAbi) Error() string {
	return fmt.Sprintf("invalid ABI version %d, runtime supports %d", e.Got, Version)
}

// Panic wraps a recovered Go panic that occurred inside f, so callers
// crossing the boundary see a normal error rather than an unwinding
// panic.
type Panic struct {
	Recovered any
}

func (e *Panic) Error() string {
	return fmt.Sprintf("panic across runtime boundary: %v", e.Recovered)
}

// InvokeRuntimeBoundary checks ctx's ABI version, then runs f, converting
// any panic into a *Panic error rather than letting it propagate. This is
// the single choke point every native-backend call into the Go-hosted
// runtime passes through.
func InvokeRuntimeBoundary(ctx Context, f func() (TValue, error)) (result TValue, err error) {
	if ctx.AbiVersion != Version {
		return TValue{}, &InvalidAbi{Got: ctx.AbiVersion}
	}
	defer func() {
		if r := recover(); r != nil {
			result = TValue{}
			err = &Panic{Recovered: r}
		}
	}()
	return f()
}

// MemoryMode selects how the heap reclaims handles, read from
// TONIC_MEMORY_MODE at process start (spec.md §4.7). Observable program
// output must be identical across modes — only reclamation strategy and
// timing differ.
type MemoryMode string

const (
	ModeTrace      MemoryMode = "trace"
	ModeRefcount   MemoryMode = "rc"
	ModeAppendOnly MemoryMode = "append_only"
)

// MemoryModeFromEnv reads TONIC_MEMORY_MODE, defaulting to trace mode
// when unset or unrecognized.
func MemoryModeFromEnv() MemoryMode {
	switch os.Getenv("TONIC_MEMORY_MODE") {
	case string(ModeRefcount):
		return ModeRefcount
	case string(ModeAppendOnly):
		return ModeAppendOnly
	default:
		return ModeTrace
	}
}

// StatsEnabled reports whether TONIC_MEMORY_STATS=1 is set.
func StatsEnabled() bool {
	return os.Getenv("TONIC_MEMORY_STATS") == "1"
}

// WriteStats emits the "memory.stats c_runtime key=value …" line
// spec.md §4.7 names, in sorted key order for deterministic output.
func WriteStats(w io.Writer, stats map[string]any) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprint(w, "memory.stats c_runtime")
	for _, k := range keys {
		fmt.Fprintf(w, " %s=%v", k, stats[k])
	}
	fmt.Fprintln(w)
}

// MarkSweep performs trace mode's periodic mark/sweep over heap, walking
// outward from roots and any handle reachable from a root's own
// collection-typed payload, then removing everything unreached. reclaimed
// reports the number of entries removed.
func MarkSweep(heap *Heap, roots []Handle, children func(any) []Handle) (reclaimed int) {
	heap.mu.Lock()
	defer heap.mu.Unlock()

	reachable := make(map[Handle]bool, len(roots))
	var walk func(Handle)
	walk = func(h Handle) {
		if reachable[h] {
			return
		}
		reachable[h] = true
		entry, ok := heap.entries[h]
		if !ok {
			return
		}
		for _, child := range children(entry.Value) {
			walk(child)
		}
	}
	for _, r := range roots {
		walk(r)
	}

	for h := range heap.entries {
		if !reachable[h] {
			delete(heap.entries, h)
			reclaimed++
		}
	}
	return reclaimed
}
