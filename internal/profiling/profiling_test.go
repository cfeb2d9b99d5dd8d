package profiling

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledProfilerRunsFnWithoutWriting(t *testing.T) {
	var p *Profiler
	called := false
	err := p.Track(PhaseFrontendLex, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected fn to run even when profiling is disabled")
	}
}

func TestZeroValueProfilerIsDisabled(t *testing.T) {
	p := &Profiler{}
	if p.Enabled() {
		t.Fatal("expected a Profiler with no sink to report disabled")
	}
}

func TestTrackWritesOneJSONLinePerInvocation(t *testing.T) {
	var buf bytes.Buffer
	p := &Profiler{Sink: &buf}
	if err := p.Track(PhaseMIRBuild, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Track(PhaseBackendEmit, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var rec record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	if rec.Phase != string(PhaseMIRBuild) {
		t.Fatalf("expected phase %q, got %q", PhaseMIRBuild, rec.Phase)
	}
}

func TestTrackRecordsDurationEvenOnError(t *testing.T) {
	var buf bytes.Buffer
	p := &Profiler{Sink: &buf}
	wantErr := errors.New("boom")
	err := p.Track(PhaseResolveTypes, func() error { return wantErr })
	if err != wantErr {
		t.Fatalf("expected Track to pass through fn's error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a recorded line even when fn returns an error")
	}
}

func TestFromEnvPrefersStderrOverFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "profile.jsonl")
	t.Setenv("TONIC_PROFILE_STDERR", "1")
	t.Setenv("TONIC_PROFILE_OUT", outPath)
	p, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Sink != os.Stderr {
		t.Fatal("expected TONIC_PROFILE_STDERR to take precedence over TONIC_PROFILE_OUT")
	}
}

func TestFromEnvOpensConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "profile.jsonl")
	t.Setenv("TONIC_PROFILE_STDERR", "")
	t.Setenv("TONIC_PROFILE_OUT", outPath)
	p, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()
	if !p.Enabled() {
		t.Fatal("expected a profiler backed by the configured file to be enabled")
	}
	if err := p.Track(PhaseFrontendParse, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("unexpected error reading profile output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected profile output file to contain at least one line")
	}
}

func TestFromEnvDisabledWhenNeitherVarSet(t *testing.T) {
	t.Setenv("TONIC_PROFILE_STDERR", "")
	t.Setenv("TONIC_PROFILE_OUT", "")
	p, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Enabled() {
		t.Fatal("expected a disabled profiler when neither env var is set")
	}
}
