// Package linker invokes a system C compiler to turn the native
// backend's generated C source into an executable (spec.md §4.6.2's
// final stage), probing `clang`, `gcc`, `cc` in order the way a
// toolchain-discovery step in any compiler driver would.
package linker

import (
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
)

// Probe order for a usable C compiler. clang first since it's the
// toolchain most likely to accept the generated C's goto-heavy,
// C99-ish style without extra flags.
var candidates = []string{"clang", "gcc", "cc"}

// NoCompilerFoundError is returned when none of the probed compiler
// names resolve on PATH.
type NoCompilerFoundError struct {
	Tried []string
}

func (e *NoCompilerFoundError) Error() string {
	return "no C compiler found on PATH (tried: " + joinComma(e.Tried) + "); install clang or gcc"
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// CompileError wraps a failing compiler invocation with its captured
// stderr, the detail an operator actually needs to fix the generated C
// or their toolchain.
type CompileError struct {
	Compiler string
	Stderr   string
	Err      error
}

func (e *CompileError) Error() string {
	return e.Compiler + " failed: " + e.Err.Error() + "\n" + e.Stderr
}

func (e *CompileError) Unwrap() error { return e.Err }

// FindCompiler returns the path to the first available compiler from
// candidates, or a *NoCompilerFoundError if none are installed.
func FindCompiler() (string, error) {
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", &NoCompilerFoundError{Tried: candidates}
}

// Link compiles cSource into an executable at outPath, probing for a
// compiler if compilerPath is empty. The compiler is invoked
// `-O2 -x c -o outPath -` reading cSource from stdin, so no intermediate
// .c file needs to be written to reuse build-cache artifacts; callers
// that want the .c preserved (e.g. for the build cache's native-artifact
// sidecar) should write it themselves before calling Link.
func Link(compilerPath, cSource, outPath string) error {
	if compilerPath == "" {
		found, err := FindCompiler()
		if err != nil {
			return err
		}
		compilerPath = found
	}
	cmd := exec.Command(compilerPath, "-O2", "-x", "c", "-o", outPath, "-")
	cmd.Stdin = strings.NewReader(cSource)
	stderr := &captureWriter{}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return &CompileError{Compiler: compilerPath, Stderr: stderr.String(), Err: err}
	}
	if goruntime.GOOS != "windows" {
		if err := os.Chmod(outPath, 0o755); err != nil {
			return err
		}
	}
	return nil
}

type captureWriter struct {
	buf []byte
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func (c *captureWriter) String() string { return string(c.buf) }
