package catalog

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tonic-lang/tonic/internal/cbackend"
	"github.com/tonic-lang/tonic/internal/host"
	"github.com/tonic-lang/tonic/internal/interp"
	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/linker"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
	"github.com/tonic-lang/tonic/internal/resolver"
	"github.com/tonic-lang/tonic/internal/runtime"
)

// Result is one fixture's outcome against a single backend.
type Result struct {
	Stdout   string
	ExitCode int
}

// compile runs the shared frontend pipeline every backend starts from:
// parse, resolve, lower to IR, build MIR. It mirrors internal/cbackend's
// own test helper; cmd/tonic runs the same phases through its own
// compileFile.
func compile(source []byte) (entryModule string, fns []*mir.Function, err error) {
	mods, err := parser.Parse(source)
	if err != nil {
		return "", nil, fmt.Errorf("parse: %w", err)
	}
	if err := resolver.Resolve(mods); err != nil {
		return "", nil, fmt.Errorf("resolve: %w", err)
	}
	irFns, err := ir.Lower(mods)
	if err != nil {
		return "", nil, fmt.Errorf("lower: %w", err)
	}
	fns, err = mir.Build(irFns)
	if err != nil {
		return "", nil, fmt.Errorf("build: %w", err)
	}
	if len(mods) == 0 {
		return "", nil, fmt.Errorf("empty program")
	}
	return mods[0].Name, fns, nil
}

// RunInterpreter runs a fixture's source through the tree-walking
// interpreter, rendering <EntryModule>.run/0's result the way a driver
// program prints it (spec.md §4.6.1's canonical renderer), one line with
// a trailing newline.
func RunInterpreter(source []byte) (Result, error) {
	entryModule, fns, err := compile(source)
	if err != nil {
		return Result{}, err
	}
	i := interp.New(interp.Options{})
	for name, fn := range host.Standard(host.Options{}) {
		i.RegisterHost(name, fn)
	}
	i.Load(fns)
	v, err := i.Run(entryModule)
	if err != nil {
		return Result{ExitCode: 1, Stdout: err.Error() + "\n"}, nil
	}
	return Result{Stdout: runtime.Render(v) + "\n", ExitCode: 0}, nil
}

// RunNative compiles a fixture's source with the C backend, links it
// with whatever system compiler FindCompiler locates, executes the
// resulting binary, and captures its stdout. Returns an error only for
// infrastructure failures (no compiler found, compile failed); a
// program that runs but exits non-zero is reported via Result, not err.
func RunNative(source []byte, workDir string) (Result, error) {
	entryModule, fns, err := compile(source)
	if err != nil {
		return Result{}, err
	}
	cSource, err := cbackend.Generate(entryModule, fns)
	if err != nil {
		return Result{}, fmt.Errorf("codegen: %w", err)
	}
	compilerPath, err := linker.FindCompiler()
	if err != nil {
		return Result{}, err
	}
	binPath := filepath.Join(workDir, "fixture.bin")
	if err := linker.Link(compilerPath, cSource, binPath); err != nil {
		return Result{}, err
	}
	var stdout bytes.Buffer
	cmd := exec.Command(binPath)
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("exec: %w", runErr)
		}
	}
	return Result{Stdout: stdout.String(), ExitCode: exitCode}, nil
}

// ParityMismatch reports an interpreter/native-backend divergence on an
// active fixture.
type ParityMismatch struct {
	Fixture      string
	InterpResult Result
	NativeResult Result
}

func (e *ParityMismatch) Error() string {
	return fmt.Sprintf(
		"catalog fixture %q: interpreter and native backend disagree (interp=%q/%d, native=%q/%d)",
		e.Fixture, e.InterpResult.Stdout, e.InterpResult.ExitCode,
		e.NativeResult.Stdout, e.NativeResult.ExitCode)
}

// CheckParity runs an active fixture through both backends and reports
// a ParityMismatch if their stdout or exit code diverge, per spec.md
// §8's backend-parity testable property. Skip-status fixtures are not
// checked; callers should filter those out before calling CheckParity.
func CheckParity(f *Fixture, workDir string) error {
	interpResult, err := RunInterpreter(f.Source)
	if err != nil {
		return fmt.Errorf("catalog fixture %q: interpreter error: %w", f.Name, err)
	}
	nativeResult, err := RunNative(f.Source, workDir)
	if err != nil {
		return fmt.Errorf("catalog fixture %q: native backend error: %w", f.Name, err)
	}
	if interpResult.Stdout != nativeResult.Stdout || interpResult.ExitCode != nativeResult.ExitCode {
		return &ParityMismatch{Fixture: f.Name, InterpResult: interpResult, NativeResult: nativeResult}
	}
	return nil
}
