package interp

import (
	"strings"
	"testing"

	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
	"github.com/tonic-lang/tonic/internal/runtime"
)

func run(t *testing.T, src, module string) (runtime.Value, error) {
	t.Helper()
	mods, err := parser.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	irFns, err := ir.Lower(mods)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	fns, err := mir.Build(irFns)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	i := New(Options{})
	i.Load(fns)
	return i.Run(module)
}

func TestRunArithmetic(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    1 + 2 * 3
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 7 {
		t.Fatalf("expected 7, got %s", runtime.Render(v))
	}
}

func TestRunCaseDispatchesToMatchingArm(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    case 2 do
      1 -> :one
      2 -> :two
      _ -> :other
    end
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KAtom || v.Str != "two" {
		t.Fatalf("expected :two, got %s", runtime.Render(v))
	}
}

func TestRunIfUnlessCond(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    x = 5
    if x > 3 do
      cond do
        x == 5 -> :five
        true -> :other
      end
    else
      :small
    end
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KAtom || v.Str != "five" {
		t.Fatalf("expected :five, got %s", runtime.Render(v))
	}
}

func TestRunAssignmentBindingsPersistAcrossStatements(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    x = 10
    y = x + 5
    y * 2
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 30 {
		t.Fatalf("expected 30, got %s", runtime.Render(v))
	}
}

func TestRunShortCircuitAndSkipsRightOperand(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def boom() do
    raise Demo, reason: :should_not_run
  end

  def run() do
    false && boom()
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KBool || v.Bool != false {
		t.Fatalf("expected false without evaluating the right operand, got %s", runtime.Render(v))
	}
}

func TestRunShortCircuitOrEvaluatesRightWhenNeeded(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    false || (1 + 1)
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 2 {
		t.Fatalf("expected 2, got %s", runtime.Render(v))
	}
}

func TestRunClosureCaptureAndInvoke(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    n = 10
    adder = fn(x) -> x + n end
    adder.(5)
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 15 {
		t.Fatalf("expected 15, got %s", runtime.Render(v))
	}
}

func TestRunForComprehensionFiltersAndCollects(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    for x <- [1, 2, 3, 4, 5, 6], x % 2 == 0 do
      x * x
    end
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KList {
		t.Fatalf("expected a list, got %s", runtime.Render(v))
	}
	want := []int64{4, 16, 36}
	if len(v.Elems) != len(want) {
		t.Fatalf("expected %d elements, got %s", len(want), runtime.Render(v))
	}
	for i, w := range want {
		if v.Elems[i].Int != w {
			t.Fatalf("expected element %d to be %d, got %s", i, w, runtime.Render(v.Elems[i]))
		}
	}
}

func TestRunForComprehensionReduce(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    for x <- [1, 2, 3, 4], reduce: 0 do
      acc -> acc + x
    end
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 10 {
		t.Fatalf("expected 10, got %s", runtime.Render(v))
	}
}

func TestRunTryRescueCatchesMatchingModule(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def run() do
    try do
      raise Demo, reason: :boom
    rescue
      e in Demo -> e.reason
    end
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KAtom || v.Str != "boom" {
		t.Fatalf("expected :boom, got %s", runtime.Render(v))
	}
}

func TestRunRaiseUncaughtPropagatesAsError(t *testing.T) {
	_, err := run(t, `defmodule Demo do
  def run() do
    raise Demo, reason: :boom
  end
end`, "Demo")
	if err == nil {
		t.Fatal("expected an uncaught raise error")
	}
	if _, ok := err.(*runtime.RaisedError); !ok {
		t.Fatalf("expected *runtime.RaisedError, got %T", err)
	}
}

func TestRunMultiClauseDispatchWithGuards(t *testing.T) {
	v, err := run(t, `defmodule Demo do
  def classify(x) when x < 0 do
    :negative
  end

  def classify(0) do
    :zero
  end

  def classify(x) do
    :positive
  end

  def run() do
    classify(-5)
  end
end`, "Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KAtom || v.Str != "negative" {
		t.Fatalf("expected :negative, got %s", runtime.Render(v))
	}
}

func TestRunNoMatchingClauseError(t *testing.T) {
	_, err := run(t, `defmodule Demo do
  def only_zero(0) do
    :zero
  end

  def run() do
    only_zero(1)
  end
end`, "Demo")
	if err == nil {
		t.Fatal("expected a no-matching-clause error")
	}
	if _, ok := err.(*runtime.NoMatchingClauseError); !ok {
		t.Fatalf("expected *runtime.NoMatchingClauseError, got %T", err)
	}
}

func TestRunBadMatchErrorOnTopLevelAssign(t *testing.T) {
	_, err := run(t, `defmodule Demo do
  def run() do
    {:ok, x} = {:error, :nope}
    x
  end
end`, "Demo")
	if err == nil {
		t.Fatal("expected a bad-match error")
	}
	if _, ok := err.(*runtime.BadMatchError); !ok {
		t.Fatalf("expected *runtime.BadMatchError, got %T", err)
	}
}

func TestRunHostCallDispatchesToRegisteredHost(t *testing.T) {
	mods, err := parser.Parse([]byte(`defmodule Demo do
  def run() do
    host_call(:double, 21)
  end
end`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	irFns, err := ir.Lower(mods)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	fns, err := mir.Build(irFns)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	i := New(Options{Hosts: map[string]runtime.HostFunc{
		"double": func(args []runtime.Value) (runtime.Value, error) {
			return runtime.Int(args[0].Int * 2), nil
		},
	}})
	i.Load(fns)
	v, err := i.Run("Demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != runtime.KInt || v.Int != 42 {
		t.Fatalf("expected 42, got %s", runtime.Render(v))
	}
}

func TestRunUndefinedFunctionError(t *testing.T) {
	mods, err := parser.Parse([]byte(`defmodule Demo do
  def run() do
    1
  end
end`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	irFns, err := ir.Lower(mods)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	fns, err := mir.Build(irFns)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	i := New(Options{})
	i.Load(fns)
	_, err = i.Eval("Demo", "missing", nil)
	if err == nil {
		t.Fatal("expected an undefined-function error")
	}
	if !strings.Contains(err.Error(), "undefined function") {
		t.Fatalf("unexpected error: %v", err)
	}
}
