package cbackend

import (
	"strings"
	"testing"

	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
)

func build(t *testing.T, src string) []*mir.Function {
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
	return fns
}

func TestGenerateArithmeticFunction(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    1 + 2 * 3
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		`#include "tonic_runtime.h"`,
		"tn_Demo_run__arity0",
		"int main(void)",
		"tn_binary(",
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("expected generated source to contain %q:\n%s", want, src)
		}
	}
}

func TestGenerateMultiClauseDispatcher(t *testing.T) {
	fns := build(t, `defmodule Demo do
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
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "__clause0") {
		t.Fatalf("expected a dispatcher with numbered clauses:\n%s", src)
	}
	if !strings.Contains(src, "tn_no_matching_clause") {
		t.Fatalf("expected the dispatcher's fallthrough to report no_matching_clause:\n%s", src)
	}
}

func TestGenerateCaseMatch(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    case 2 do
      1 -> :one
      2 -> :two
      _ -> :other
    end
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "tn_is_int_eq(") {
		t.Fatalf("expected an inline integer pattern test:\n%s", src)
	}
}

func TestGenerateClosureCapture(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    n = 10
    adder = fn(x) -> x + n end
    adder.(5)
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "tn_make_closure(") {
		t.Fatalf("expected a closure construction call:\n%s", src)
	}
	if !strings.Contains(src, "tn_invoke_closure(") {
		t.Fatalf("expected an invoke-closure call:\n%s", src)
	}
}

func TestGenerateForComprehension(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    for x <- [1, 2, 3], reduce: 0 do
      acc -> acc + x
    end
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "tn_list_len(") || !strings.Contains(src, "tn_list_get(") {
		t.Fatalf("expected list-iteration helper calls:\n%s", src)
	}
}

func TestGenerateDispatcherEvaluatesClauseGuard(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def choose(v) when v == 7 do
    v
  end

  def run() do
    choose(7)
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "tn_binary(") {
		t.Fatalf("expected the guard's comparison to be lowered to a binary op call:\n%s", src)
	}
	if !strings.Contains(src, "tn_truthy(__g") {
		t.Fatalf("expected the dispatcher condition to test the evaluated guard's truthiness:\n%s", src)
	}
}

func TestGenerateCaseArmGuard(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    case 8 do
      x when x > 5 -> :big
      _ -> :small
    end
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "tn_truthy(__g") {
		t.Fatalf("expected the case arm's guard to be evaluated and tested for truthiness:\n%s", src)
	}
}

func TestGenerateTryRescue(t *testing.T) {
	fns := build(t, `defmodule Demo do
  def run() do
    try do
      raise Demo, reason: :boom
    rescue
      e in Demo -> e.reason
    end
  end
end`)
	src, err := Generate("Demo", fns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src, "raised_module") {
		t.Fatalf("expected rescue dispatch on raised_module:\n%s", src)
	}
}
