package cache

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func sampleInputs() Inputs {
	return Inputs{
		SourceFiles: map[string][]byte{
			"main.tn":  []byte("defmodule Demo do\nend\n"),
			"utils.tn": []byte("defmodule Utils do\nend\n"),
		},
		LockfileCanonical:    []byte("lockfile-bytes"),
		DependencyIdentities: []string{"dep-b@1.0.0", "dep-a@2.0.0"},
		Backend:              "interpreter",
		CompilerVersion:      "v0.0.1",
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a, err := Fingerprint(context.Background(), sampleInputs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Fingerprint(context.Background(), sampleInputs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("expected identical inputs to fingerprint identically")
	}
}

func TestFingerprintChangesWithSource(t *testing.T) {
	base := sampleInputs()
	a, err := Fingerprint(context.Background(), base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed := sampleInputs()
	changed.SourceFiles["main.tn"] = []byte("defmodule Demo do\n  def run() do 1 end\nend\n")
	b, err := Fingerprint(context.Background(), changed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("expected changed source to change the fingerprint")
	}
}

func TestFingerprintChangesWithBackend(t *testing.T) {
	base := sampleInputs()
	a, _ := Fingerprint(context.Background(), base)
	changed := sampleInputs()
	changed.Backend = "native"
	b, _ := Fingerprint(context.Background(), changed)
	if a == b {
		t.Fatal("expected backend choice to affect the fingerprint")
	}
}

func TestReadMissesWhenNothingWritten(t *testing.T) {
	store := NewStore(t.TempDir(), logrus.New())
	fp, _ := Fingerprint(context.Background(), sampleInputs())
	if _, ok := store.Read(fp); ok {
		t.Fatal("expected a miss before anything is written")
	}
}

func TestWriteThenReadHits(t *testing.T) {
	store := NewStore(t.TempDir(), logrus.New())
	fp, _ := Fingerprint(context.Background(), sampleInputs())
	store.Write(fp, []byte("artifact-bytes"))
	data, ok := store.Read(fp)
	if !ok {
		t.Fatal("expected a hit after writing")
	}
	if string(data) != "artifact-bytes" {
		t.Fatalf("expected artifact-bytes, got %q", data)
	}
}

func TestReadTreatsDirectoryAsCorruptionMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, logrus.New())
	fp, _ := Fingerprint(context.Background(), sampleInputs())
	path := store.cachePath(fp)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Read(fp); ok {
		t.Fatal("expected a directory at the cache path to read as a miss")
	}
}

func TestBuildArtifactPathUsesEntryAndExt(t *testing.T) {
	store := NewStore("/project", logrus.New())
	got := store.BuildArtifactPath("main", ".ll")
	want := "/project/.tonic/build/main.ll"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
