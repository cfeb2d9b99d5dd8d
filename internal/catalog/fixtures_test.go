package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tonic-lang/tonic/internal/linker"
)

// loadFixtures reads every *.txtar file under testdata/catalog relative
// to this package, the layout SPEC_FULL.md's test tooling section
// names.
func loadFixtures(t *testing.T) []*Fixture {
	t.Helper()
	dir := filepath.Join("..", "..", "testdata", "catalog")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error reading %s: %v", dir, err)
	}
	var fixtures []*Fixture
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txtar" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("unexpected error reading %s: %v", path, err)
		}
		f, err := Parse(entry.Name(), data)
		if err != nil {
			t.Fatalf("unexpected error parsing %s: %v", path, err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures
}

func TestCatalogFixturesMatchInterpreterOutput(t *testing.T) {
	for _, f := range loadFixtures(t) {
		f := f
		if f.Status != StatusActive {
			continue
		}
		t.Run(f.Name, func(t *testing.T) {
			result, err := RunInterpreter(f.Source)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Stdout != f.WantStdout {
				t.Fatalf("expected stdout %q, got %q", f.WantStdout, result.Stdout)
			}
			if result.ExitCode != f.WantExitCode {
				t.Fatalf("expected exit code %d, got %d", f.WantExitCode, result.ExitCode)
			}
		})
	}
}

// TestCatalogFixturesParity exercises the spec's backend-parity property
// (interpreter and native output must agree) over every active fixture,
// including guarded_dispatch.txtar, whose dispatcher only rejects its one
// clause on 8 if the generated C actually evaluates the clause's guard.
func TestCatalogFixturesParity(t *testing.T) {
	if _, err := linker.FindCompiler(); err != nil {
		t.Skip("no system C compiler on PATH; skipping native parity checks")
	}
	for _, f := range loadFixtures(t) {
		f := f
		if f.Status != StatusActive {
			continue
		}
		t.Run(f.Name, func(t *testing.T) {
			if err := CheckParity(f, t.TempDir()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
