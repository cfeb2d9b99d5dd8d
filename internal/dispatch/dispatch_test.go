package dispatch

import (
	"testing"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
	"github.com/tonic-lang/tonic/internal/runtime"
)

func buildFns(t *testing.T, src string) []*mir.Function {
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

func TestGroupsSingleClauseNoDispatcher(t *testing.T) {
	fns := buildFns(t, `defmodule Demo do
  def run() do
    1
  end
end`)
	groups := Groups(fns)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.RequiresDispatcher {
		t.Fatal("single clause, no pattern, no guard: should not require a dispatcher")
	}
	if g.MangledSymbol(0) != "tn_Demo_run__arity0" {
		t.Fatalf("unexpected mangled symbol: %s", g.MangledSymbol(0))
	}
}

func TestGroupsMultiClauseRequiresDispatcher(t *testing.T) {
	fns := buildFns(t, `defmodule Demo do
  def greet(0) do
    :zero
  end
  def greet(n) do
    :nonzero
  end
end`)
	groups := Groups(fns)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group for the two greet/1 clauses, got %d", len(groups))
	}
	g := groups[0]
	if !g.RequiresDispatcher {
		t.Fatal("two clauses: should require a dispatcher")
	}
	if len(g.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(g.Clauses))
	}
	if g.MangledSymbol(0) != "tn_Demo_greet__arity1__clause0" {
		t.Fatalf("unexpected clause 0 symbol: %s", g.MangledSymbol(0))
	}
	if g.MangledSymbol(1) != "tn_Demo_greet__arity1__clause1" {
		t.Fatalf("unexpected clause 1 symbol: %s", g.MangledSymbol(1))
	}
	if g.DispatcherSymbol() != "tn_Demo_greet__arity1" {
		t.Fatalf("unexpected dispatcher symbol: %s", g.DispatcherSymbol())
	}
}

func TestGroupsSkipLambdaLiftedFunctions(t *testing.T) {
	fns := buildFns(t, `defmodule Demo do
  def run() do
    fn(x) -> x + 1 end
  end
end`)
	groups := Groups(fns)
	for _, g := range groups {
		if g.Key.Module == "" {
			t.Fatal("lambda-lifted function leaked into Groups output")
		}
	}
}

func TestMangleFunctionNameDotsToUnderscores(t *testing.T) {
	got := MangleFunctionName("My.Nested.Mod", "do_thing", 2)
	want := "tn_My_Nested_Mod_do_thing__arity2"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestSortedKeysDeterministicOrder(t *testing.T) {
	fns := buildFns(t, `defmodule B do
  def run() do
    1
  end
end
defmodule A do
  def run() do
    1
  end
end`)
	groups := Groups(fns)
	keys := SortedKeys(groups)
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].Module != "A" || keys[1].Module != "B" {
		t.Fatalf("expected sorted module order A, B; got %s, %s", keys[0].Module, keys[1].Module)
	}
}

func TestMatchPatternLiteralsAndBinding(t *testing.T) {
	bindings := map[string]runtime.Value{}
	if !MatchPattern(&ast.Int{Value: 42}, runtime.Int(42), bindings) {
		t.Fatal("expected int literal pattern to match equal int value")
	}
	if MatchPattern(&ast.Int{Value: 42}, runtime.Int(7), bindings) {
		t.Fatal("expected int literal pattern to reject unequal int value")
	}
	if !MatchPattern(&ast.Bind{Name: "x"}, runtime.Int(7), bindings) {
		t.Fatal("expected bare bind pattern to always match")
	}
	if bindings["x"].Int != 7 {
		t.Fatalf("expected x bound to 7, got %v", bindings["x"])
	}
	if !MatchPattern(&ast.Wildcard{}, runtime.Str("anything"), bindings) {
		t.Fatal("expected wildcard to always match")
	}
}

func TestMatchPatternPin(t *testing.T) {
	bindings := map[string]runtime.Value{"x": runtime.Int(5)}
	if !MatchPattern(&ast.Pin{Name: "x"}, runtime.Int(5), bindings) {
		t.Fatal("expected pin to match the already-bound value")
	}
	if MatchPattern(&ast.Pin{Name: "x"}, runtime.Int(6), bindings) {
		t.Fatal("expected pin to reject a different value")
	}
}

func TestMatchPatternListAndTuple(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.List{Elems: []ast.Expr{&ast.Bind{Name: "h"}, &ast.Wildcard{}}}
	val := runtime.List(runtime.Int(1), runtime.Int(2))
	if !MatchPattern(pat, val, bindings) {
		t.Fatal("expected [h, _] to match a two-element list")
	}
	if bindings["h"].Int != 1 {
		t.Fatalf("expected h bound to 1, got %v", bindings["h"])
	}

	tuplePat := &ast.Tuple{Elems: []ast.Expr{&ast.Atom{Name: "ok"}, &ast.Bind{Name: "v"}}}
	tupleVal := runtime.Tuple(runtime.Atom("ok"), runtime.Int(99))
	if !MatchPattern(tuplePat, tupleVal, bindings) {
		t.Fatal("expected {:ok, v} to match a matching tuple")
	}
	if bindings["v"].Int != 99 {
		t.Fatalf("expected v bound to 99, got %v", bindings["v"])
	}
}

func TestMatchPatternKeyword(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.Keyword{Entries: []ast.KeywordEntry{
		{Key: "name", Value: &ast.Bind{Name: "n"}},
	}}
	val := runtime.Value{Kind: runtime.KKeyword, KwEntries: []runtime.KeywordEntry{
		{Key: "name", Value: runtime.Str("ada")},
	}}
	if !MatchPattern(pat, val, bindings) {
		t.Fatal("expected [name: n] to match a matching keyword list")
	}
	if bindings["n"].Str != "ada" {
		t.Fatalf("expected n bound to \"ada\", got %v", bindings["n"])
	}
}

func TestMatchPatternMapByAtomKey(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.Map{Entries: []ast.MapEntry{
		{Key: &ast.Atom{Name: "name"}, Value: &ast.Bind{Name: "n"}},
	}}
	val := runtime.Value{Kind: runtime.KMap, Entries: []runtime.MapEntry{
		{Key: runtime.Atom("name"), Value: runtime.Str("ada")},
		{Key: runtime.Atom("age"), Value: runtime.Int(30)},
	}}
	if !MatchPattern(pat, val, bindings) {
		t.Fatal("expected %{name: n} to match a map containing that key")
	}
	if bindings["n"].Str != "ada" {
		t.Fatalf("expected n bound to \"ada\", got %v", bindings["n"])
	}
}

func TestMatchPatternMapMissingKeyFails(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.Map{Entries: []ast.MapEntry{
		{Key: &ast.Atom{Name: "missing"}, Value: &ast.Wildcard{}},
	}}
	val := runtime.Value{Kind: runtime.KMap, Entries: []runtime.MapEntry{
		{Key: runtime.Atom("present"), Value: runtime.Int(1)},
	}}
	if MatchPattern(pat, val, bindings) {
		t.Fatal("expected map pattern referencing an absent key to fail")
	}
}

func TestMatchPatternStructLiteral(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.StructLiteral{Module: "User", Fields: []ast.KeywordEntry{
		{Key: "name", Value: &ast.Bind{Name: "n"}},
	}}
	val := runtime.Value{Kind: runtime.KStruct, StructModule: "User", Fields: map[string]runtime.Value{
		"name": runtime.Str("ada"),
		"age":  runtime.Int(30),
	}}
	if !MatchPattern(pat, val, bindings) {
		t.Fatalf("expected %%User{name: n} to match a User struct")
	}
	if bindings["n"].Str != "ada" {
		t.Fatalf("expected n bound to \"ada\", got %v", bindings["n"])
	}

	wrongModule := runtime.Value{Kind: runtime.KStruct, StructModule: "Other", Fields: map[string]runtime.Value{"name": runtime.Str("x")}}
	if MatchPattern(pat, wrongModule, bindings) {
		t.Fatal("expected struct pattern to reject a value from a different struct module")
	}
}

func TestMatchPatternNegativeLiteral(t *testing.T) {
	bindings := map[string]runtime.Value{}
	pat := &ast.Unary{Op: "-", Expr: &ast.Int{Value: 5}}
	if !MatchPattern(pat, runtime.Int(-5), bindings) {
		t.Fatal("expected -5 pattern to match the value -5")
	}
	if MatchPattern(pat, runtime.Int(5), bindings) {
		t.Fatal("expected -5 pattern to reject the value 5")
	}
}
