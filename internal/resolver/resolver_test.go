package resolver

import (
	"strings"
	"testing"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/parser"
)

func parse(t *testing.T, src string) []*ast.Module {
	t.Helper()
	mods, err := parser.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return mods
}

func TestResolveOK(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run() do
    1 + 1
  end
end`)
	if err := Resolve(mods); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if err := Typecheck(mods); err != nil {
		t.Fatalf("unexpected typecheck error: %v", err)
	}
}

func TestResolveUndefinedSymbol(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run() do
    missing_fun(1)
  end
end`)
	err := Resolve(mods)
	if err == nil {
		t.Fatal("expected an undefined-symbol error")
	}
	if !strings.Contains(err.Error(), "E1001") {
		t.Fatalf("expected E1001, got: %v", err)
	}
}

func TestResolvePrivateCallRejected(t *testing.T) {
	mods := parse(t, `defmodule Helper do
  defp secret() do
    1
  end
end

defmodule Demo do
  def run() do
    Helper.secret()
  end
end`)
	err := Resolve(mods)
	if err == nil || !strings.Contains(err.Error(), "E1002") {
		t.Fatalf("expected E1002, got: %v", err)
	}
}

func TestResolveDuplicateModule(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run() do
    1
  end
end

defmodule Demo do
  def run() do
    2
  end
end`)
	err := Resolve(mods)
	if err == nil || !strings.Contains(err.Error(), "E1003") {
		t.Fatalf("expected E1003, got: %v", err)
	}
}

func TestResolveGuardBuiltinOutsideGuard(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run(x) do
    is_integer(x)
  end
end`)
	err := Resolve(mods)
	if err == nil || !strings.Contains(err.Error(), "E1015") {
		t.Fatalf("expected E1015, got: %v", err)
	}
}

func TestTypecheckNonExhaustiveCase(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run() do
    case 1 do
      1 -> 2
    end
  end
end`)
	if err := Resolve(mods); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	err := Typecheck(mods)
	if err == nil || !strings.Contains(err.Error(), "E3002") {
		t.Fatalf("expected E3002, got: %v", err)
	}
}

func TestTypecheckQuestionRequiresResult(t *testing.T) {
	mods := parse(t, `defmodule Demo do
  def run() do
    1?
  end
end`)
	if err := Resolve(mods); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	err := Typecheck(mods)
	if err == nil || !strings.Contains(err.Error(), "E3001") {
		t.Fatalf("expected E3001, got: %v", err)
	}
}
