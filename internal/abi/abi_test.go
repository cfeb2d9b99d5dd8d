package abi

import (
	"bytes"
	"strings"
	"testing"
)

func TestHeapAllocSkipsHandleZero(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(TagString, "hello")
	if handle == 0 {
		t.Fatal("expected first allocation to skip reserved handle 0")
	}
}

func TestHeapValidateDetectsTagMismatch(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(TagString, "hello")
	if err := h.Validate(TagString, handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := h.Validate(TagList, handle)
	if err == nil {
		t.Fatal("expected a tag mismatch error")
	}
	if _, ok := err.(*TagHandleMismatch); !ok {
		t.Fatalf("expected *TagHandleMismatch, got %T", err)
	}
}

func TestHeapValidateDetectsUnknownHandle(t *testing.T) {
	h := NewHeap()
	err := h.Validate(TagString, Handle(999))
	if _, ok := err.(*UnknownHandle); !ok {
		t.Fatalf("expected *UnknownHandle, got %T", err)
	}
}

func TestHeapLoadReturnsPayload(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(TagString, "hello")
	v, err := h.Load(TagString, handle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(string) != "hello" {
		t.Fatalf("expected hello, got %v", v)
	}
}

func TestHeapRetainAndReleaseLifecycle(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(TagString, "hello")
	if err := h.Retain(handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// refs now 2: one release should not remove the entry.
	if err := h.Release(handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Validate(TagString, handle); err != nil {
		t.Fatalf("expected entry to still be live after one release: %v", err)
	}
	if err := h.Release(handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Validate(TagString, handle); err == nil {
		t.Fatal("expected entry to be gone after refs reach zero")
	}
}

func TestHeapReleaseAtZeroIsOwnershipViolation(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(TagString, "hello")
	if err := h.Release(handle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := h.Release(handle)
	if _, ok := err.(*OwnershipViolation); !ok {
		t.Fatalf("expected *OwnershipViolation, got %T", err)
	}
}

func TestInvokeRuntimeBoundaryRejectsWrongAbiVersion(t *testing.T) {
	_, err := InvokeRuntimeBoundary(Context{AbiVersion: 2}, func() (TValue, error) {
		return TValue{}, nil
	})
	if _, ok := err.(*InvalidAbi); !ok {
		t.Fatalf("expected *InvalidAbi, got %T", err)
	}
}

func TestInvokeRuntimeBoundaryCatchesPanic(t *testing.T) {
	_, err := InvokeRuntimeBoundary(Context{AbiVersion: Version}, func() (TValue, error) {
		panic("boom")
	})
	if _, ok := err.(*Panic); !ok {
		t.Fatalf("expected *Panic, got %T", err)
	}
}

func TestInvokeRuntimeBoundaryPassesThroughResult(t *testing.T) {
	v, err := InvokeRuntimeBoundary(Context{AbiVersion: Version}, func() (TValue, error) {
		return TValue{Tag: TagInt, Payload: 42}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Tag != TagInt || v.Payload != 42 {
		t.Fatalf("unexpected result: %+v", v)
	}
}

func TestMemoryModeFromEnvDefaultsToTrace(t *testing.T) {
	t.Setenv("TONIC_MEMORY_MODE", "")
	if MemoryModeFromEnv() != ModeTrace {
		t.Fatal("expected trace as the default mode")
	}
}

func TestMemoryModeFromEnvRecognizesModes(t *testing.T) {
	t.Setenv("TONIC_MEMORY_MODE", "rc")
	if MemoryModeFromEnv() != ModeRefcount {
		t.Fatal("expected rc mode")
	}
	t.Setenv("TONIC_MEMORY_MODE", "append_only")
	if MemoryModeFromEnv() != ModeAppendOnly {
		t.Fatal("expected append_only mode")
	}
}

func TestWriteStatsSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	WriteStats(&buf, map[string]any{"live": 3, "allocs": 10})
	line := buf.String()
	if !strings.HasPrefix(line, "memory.stats c_runtime") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	allocsIdx := strings.Index(line, "allocs=")
	liveIdx := strings.Index(line, "live=")
	if allocsIdx == -1 || liveIdx == -1 || allocsIdx > liveIdx {
		t.Fatalf("expected sorted keys (allocs before live), got %q", line)
	}
}

func TestMarkSweepReclaimsUnreachableHandles(t *testing.T) {
	h := NewHeap()
	root := h.Alloc(TagList, []Handle{})
	orphan := h.Alloc(TagString, "unreachable")
	_ = orphan

	reclaimed := MarkSweep(h, []Handle{root}, func(v any) []Handle {
		if elems, ok := v.([]Handle); ok {
			return elems
		}
		return nil
	})
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed handle, got %d", reclaimed)
	}
	if h.Live() != 1 {
		t.Fatalf("expected 1 live handle remaining (the root), got %d", h.Live())
	}
}

func TestMarkSweepKeepsReachableChain(t *testing.T) {
	h := NewHeap()
	leaf := h.Alloc(TagString, "leaf")
	root := h.Alloc(TagList, []Handle{leaf})

	reclaimed := MarkSweep(h, []Handle{root}, func(v any) []Handle {
		if elems, ok := v.([]Handle); ok {
			return elems
		}
		return nil
	})
	if reclaimed != 0 {
		t.Fatalf("expected nothing reclaimed, got %d", reclaimed)
	}
	if h.Live() != 2 {
		t.Fatalf("expected both root and leaf to remain live, got %d", h.Live())
	}
}
