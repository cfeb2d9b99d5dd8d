package linker

import (
	"strings"
	"testing"
)

func TestNoCompilerFoundErrorListsCandidates(t *testing.T) {
	err := &NoCompilerFoundError{Tried: []string{"clang", "gcc", "cc"}}
	if !strings.Contains(err.Error(), "clang, gcc, cc") {
		t.Fatalf("expected tried list in message, got %q", err.Error())
	}
}

func TestCompileErrorIncludesStderrAndUnwraps(t *testing.T) {
	inner := &NoCompilerFoundError{Tried: []string{"clang"}}
	err := &CompileError{Compiler: "clang", Stderr: "bad input", Err: inner}
	if !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected stderr in message, got %q", err.Error())
	}
	if err.Unwrap() != inner {
		t.Fatal("expected Unwrap to return the wrapped error")
	}
}

func TestFindCompilerFailsGracefullyWhenNoneOnPath(t *testing.T) {
	t.Setenv("PATH", "")
	_, err := FindCompiler()
	if _, ok := err.(*NoCompilerFoundError); !ok {
		t.Fatalf("expected *NoCompilerFoundError with empty PATH, got %T (%v)", err, err)
	}
}

func TestLinkReturnsNoCompilerFoundWithEmptyPath(t *testing.T) {
	t.Setenv("PATH", "")
	err := Link("", "int main(void) { return 0; }", t.TempDir()+"/out")
	if _, ok := err.(*NoCompilerFoundError); !ok {
		t.Fatalf("expected *NoCompilerFoundError, got %T (%v)", err, err)
	}
}
