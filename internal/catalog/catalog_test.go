package catalog

import (
	"strings"
	"testing"

	"github.com/tonic-lang/tonic/internal/linker"
)

func TestParseExtractsSourceStdoutAndMeta(t *testing.T) {
	archive := []byte(`-- source.tn --
defmodule Demo do
  def run() do
    1 + 1
  end
end
-- stdout --
2
-- meta --
status = active
exit_code = 0
`)
	f, err := Parse("demo.txtar", archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(f.Source), "defmodule Demo") {
		t.Fatalf("unexpected source: %q", f.Source)
	}
	if f.WantStdout != "2\n" {
		t.Fatalf("expected stdout %q, got %q", "2\n", f.WantStdout)
	}
	if f.Status != StatusActive {
		t.Fatalf("expected active status, got %q", f.Status)
	}
	if f.WantExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", f.WantExitCode)
	}
}

func TestParseDefaultsToActiveStatus(t *testing.T) {
	archive := []byte(`-- source.tn --
defmodule Demo do
  def run() do
    1
  end
end
-- stdout --
1
`)
	f, err := Parse("demo.txtar", archive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != StatusActive {
		t.Fatalf("expected default status active, got %q", f.Status)
	}
}

func TestParseRejectsMissingSource(t *testing.T) {
	archive := []byte(`-- stdout --
1
`)
	_, err := Parse("demo.txtar", archive)
	if err == nil {
		t.Fatal("expected an error for a fixture with no source.tn section")
	}
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	archive := []byte(`-- source.tn --
defmodule Demo do
  def run() do
    1
  end
end
-- meta --
status = pending
`)
	_, err := Parse("demo.txtar", archive)
	if err == nil {
		t.Fatal("expected an error for an unrecognized status value")
	}
}

func TestEncodeThenParseRoundTrips(t *testing.T) {
	original := &Fixture{
		Name:         "roundtrip",
		Source:       []byte("defmodule Demo do\n  def run() do\n    :ok\n  end\nend\n"),
		WantStdout:   ":ok\n",
		WantExitCode: 0,
		Status:       StatusSkip,
	}
	data := Encode(original)
	parsed, err := Parse("roundtrip.txtar", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(parsed.Source) != string(original.Source) {
		t.Fatalf("expected source round trip, got %q", parsed.Source)
	}
	if parsed.WantStdout != original.WantStdout {
		t.Fatalf("expected stdout round trip, got %q", parsed.WantStdout)
	}
	if parsed.Status != original.Status {
		t.Fatalf("expected status round trip, got %q", parsed.Status)
	}
}

func TestRunInterpreterRendersEntrypointResult(t *testing.T) {
	src := []byte(`defmodule Demo do
  def run() do
    1 + 2 * 3
  end
end
`)
	result, err := RunInterpreter(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "7\n" {
		t.Fatalf("expected stdout %q, got %q", "7\n", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestRunInterpreterReportsRaisedErrors(t *testing.T) {
	src := []byte(`defmodule Demo do
  def run() do
    raise Demo, reason: :boom
  end
end
`)
	result, err := RunInterpreter(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 1 {
		t.Fatalf("expected exit code 1 for an uncaught raise, got %d", result.ExitCode)
	}
}

func TestCheckParityFailsWithoutSystemCompiler(t *testing.T) {
	if _, err := linker.FindCompiler(); err == nil {
		t.Skip("a system C compiler is available; parity check exercised via the catalog fixtures instead")
	}
	src := []byte(`defmodule Demo do
  def run() do
    1
  end
end
`)
	f := &Fixture{Name: "inline", Source: src, Status: StatusActive}
	err := CheckParity(f, t.TempDir())
	if err == nil {
		t.Fatal("expected an infrastructure error when no system compiler is present")
	}
}
