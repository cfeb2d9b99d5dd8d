package ir

import (
	"testing"

	"github.com/tonic-lang/tonic/internal/parser"
)

func parseMods(t *testing.T, src string) []*Function {
	t.Helper()
	mods, err := parser.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	fns, err := Lower(mods)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return fns
}

func TestLowerArithmetic(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run() do
    1 + 1
  end
end`)
	if len(fns) != 1 {
		t.Fatalf("expected 1 function, got %d", len(fns))
	}
	fn := fns[0]
	if fn.Module != "Demo" || fn.Name != "run" || fn.Arity != 0 {
		t.Fatalf("unexpected function identity: %+v", fn)
	}
	if len(fn.Body) != 1 || fn.Body[0].Kind != OpBinary || fn.Body[0].BinOp != "+" {
		t.Fatalf("expected single binary op body, got %+v", fn.Body)
	}
}

func TestLowerIfDesugarsToCase(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run(x) do
    if x do
      1
    else
      2
    end
  end
end`)
	body := fns[0].Body
	if len(body) != 1 || body[0].Kind != OpCase {
		t.Fatalf("expected if to lower to a single case op, got %+v", body)
	}
	if len(body[0].Branches) != 3 {
		t.Fatalf("expected 3 branches (false, nil, wildcard), got %d", len(body[0].Branches))
	}
}

func TestLowerCondChainsGuards(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run(x) do
    cond do
      x == 1 -> :one
      x == 2 -> :two
    end
  end
end`)
	body := fns[0].Body
	if len(body) != 1 || body[0].Kind != OpCase {
		t.Fatalf("expected cond to lower to a case op, got %+v", body)
	}
	for _, b := range body[0].Branches {
		if b.Guard == nil {
			t.Fatalf("expected every cond branch to carry a guard")
		}
	}
}

func TestLowerInterpolation(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run(x) do
    "hi #{x}!"
  end
end`)
	body := fns[0].Body
	if len(body) != 1 || body[0].Kind != OpBinary || body[0].BinOp != "<>" {
		t.Fatalf("expected interpolation to lower to <> concatenation, got %+v", body)
	}
}

func TestLowerAssignProducesOpAssign(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run() do
    x = 1
    x + 1
  end
end`)
	body := fns[0].Body
	if len(body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(body))
	}
	if body[0].Kind != OpAssign {
		t.Fatalf("expected first statement to lower to OpAssign, got %v", body[0].Kind)
	}
	if _, ok := body[0].AssignPattern.(interface{ Offset() int }); !ok {
		t.Fatal("expected AssignPattern to be set to the left-hand pattern")
	}
	if body[0].AssignValue == nil || body[0].AssignValue.Kind != OpConstInt {
		t.Fatalf("expected AssignValue to be the lowered right-hand side, got %+v", body[0].AssignValue)
	}
}

func TestLowerCaptureShorthandSynthesizesParams(t *testing.T) {
	fns := parseMods(t, `defmodule Demo do
  def run() do
    &(&1 + &2)
  end
end`)
	body := fns[0].Body
	if len(body) != 1 || body[0].Kind != OpMakeClosure {
		t.Fatalf("expected capture shorthand to lower to a closure, got %+v", body)
	}
	if len(body[0].ClosureParams) != 2 {
		t.Fatalf("expected 2 synthesized params, got %d", len(body[0].ClosureParams))
	}
}
