package mir

import (
	"testing"

	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/parser"
)

func buildSrc(t *testing.T, src string) []*Function {
	t.Helper()
	mods, err := parser.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	irFns, err := ir.Lower(mods)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	fns, err := Build(irFns)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return fns
}

func findFn(fns []*Function, module, name string) *Function {
	for _, f := range fns {
		if f.Module == module && f.Name == name {
			return f
		}
	}
	return nil
}

func TestBuildSimpleReturn(t *testing.T) {
	fns := buildSrc(t, `defmodule Demo do
  def run() do
    1 + 1
  end
end`)
	fn := findFn(fns, "Demo", "run")
	if fn == nil {
		t.Fatal("expected Demo.run in output")
	}
	if len(fn.Blocks) != 1 {
		t.Fatalf("expected a single block for a branch-free body, got %d", len(fn.Blocks))
	}
	term := fn.Blocks[0].Term
	if term.Kind != TReturn {
		t.Fatalf("expected Return terminator, got %v", term.Kind)
	}
}

func TestBuildCaseProducesMatchAndMerge(t *testing.T) {
	fns := buildSrc(t, `defmodule Demo do
  def run(x) do
    case x do
      1 -> 2
      _ -> 3
    end
  end
end`)
	fn := findFn(fns, "Demo", "run")
	if fn == nil {
		t.Fatal("expected Demo.run in output")
	}
	entry := fn.Blocks[0]
	if entry.Term.Kind != TMatch {
		t.Fatalf("expected Match terminator on entry block, got %v", entry.Term.Kind)
	}
	if len(entry.Term.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(entry.Term.Arms))
	}
	mergeID := fn.Block(entry.Term.Arms[0].Target).Term.Target
	for _, arm := range entry.Term.Arms {
		armBlock := fn.Block(arm.Target)
		if armBlock.Term.Kind != TJump || armBlock.Term.Target != mergeID {
			t.Fatalf("expected every arm to jump to the shared merge block")
		}
	}
	merge := fn.Block(mergeID)
	if len(merge.Args) != 1 {
		t.Fatalf("expected merge block to take one phi arg, got %d", len(merge.Args))
	}
}

func TestBuildShortCircuitAndDoesNotEagerlyLowerRight(t *testing.T) {
	fns := buildSrc(t, `defmodule Demo do
  def run(x) do
    x && some_call(x)
  end
end`)
	fn := findFn(fns, "Demo", "run")
	if fn == nil {
		t.Fatal("expected Demo.run in output")
	}
	entry := fn.Blocks[0]
	if entry.Term.Kind != TShortCircuit {
		t.Fatalf("expected ShortCircuit terminator on entry block, got %v", entry.Term.Kind)
	}
	if entry.Term.ShortCircuitOp != "&&" {
		t.Fatalf("expected ShortCircuitOp \"&&\", got %q", entry.Term.ShortCircuitOp)
	}
	evalRight := fn.Block(entry.Term.Then)
	foundCall := false
	for _, instr := range evalRight.Instructions {
		if instr.Kind == ICall {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatal("expected the right operand's call to live in the Then (evaluate-right) block, not the entry block")
	}
	for _, instr := range entry.Instructions {
		if instr.Kind == ICall {
			t.Fatal("right operand must not be evaluated in the entry block")
		}
	}
}

func TestBuildAssignProducesIAssign(t *testing.T) {
	fns := buildSrc(t, `defmodule Demo do
  def run() do
    x = 1
    x + 1
  end
end`)
	fn := findFn(fns, "Demo", "run")
	if fn == nil {
		t.Fatal("expected Demo.run in output")
	}
	var sawAssign bool
	for _, blk := range fn.Blocks {
		for _, instr := range blk.Instructions {
			if instr.Kind == IAssign {
				sawAssign = true
				if instr.AssignPattern == nil {
					t.Fatal("expected IAssign to carry a non-nil AssignPattern")
				}
			}
		}
	}
	if !sawAssign {
		t.Fatal("expected at least one IAssign instruction")
	}
}

func TestBuildClosureIsLambdaLifted(t *testing.T) {
	fns := buildSrc(t, `defmodule Demo do
  def run() do
    fn(x) -> x + 1 end
  end
end`)
	var sawMakeClosure bool
	for _, fn := range fns {
		for _, blk := range fn.Blocks {
			for _, instr := range blk.Instructions {
				if instr.Kind == IMakeClosure {
					sawMakeClosure = true
					if instr.ClosureFn == nil {
						t.Fatal("expected IMakeClosure to reference a lifted function")
					}
				}
			}
		}
	}
	if !sawMakeClosure {
		t.Fatal("expected at least one IMakeClosure instruction")
	}
	if len(fns) < 2 {
		t.Fatalf("expected the lifted closure to appear as its own function, got %d functions", len(fns))
	}
}
