// Package dispatch groups MIR function clauses by (module, name, arity) and
// implements the pattern-matching engine semantics shared by the
// interpreter and the native backend (spec.md §4.5).
package dispatch

import (
	"fmt"
	"sort"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/runtime"
)

// Key identifies one callable group.
type Key struct {
	Module string
	Name   string
	Arity  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s/%d", k.Module, k.Name, k.Arity)
}

// Group is the set of clauses sharing one (module, name, arity), in source
// order, plus whether a dispatcher is required.
type Group struct {
	Key                Key
	Clauses            []*mir.Function
	RequiresDispatcher bool
}

// Groups builds one Group per distinct (module, name, arity), preserving
// first-seen order across fns. Lambda-lifted synthetic functions (empty
// Module) are not grouped — each is its own unique callable referenced
// directly by its MakeClosure/For/Try instruction, never by name lookup.
func Groups(fns []*mir.Function) []*Group {
	index := map[Key]*Group{}
	var order []Key
	for _, fn := range fns {
		if fn.Module == "" {
			continue
		}
		k := Key{Module: fn.Module, Name: fn.Name, Arity: fn.Arity}
		g, ok := index[k]
		if !ok {
			g = &Group{Key: k}
			index[k] = g
			order = append(order, k)
		}
		g.Clauses = append(g.Clauses, fn)
	}
	groups := make([]*Group, len(order))
	for i, k := range order {
		g := index[k]
		g.RequiresDispatcher = requiresDispatcher(g.Clauses)
		groups[i] = g
	}
	return groups
}

// requiresDispatcher mirrors the invariant from spec.md §3:
// requires_dispatcher = clauses>1 ∨ any patterns ∨ any guards.
func requiresDispatcher(clauses []*mir.Function) bool {
	if len(clauses) > 1 {
		return true
	}
	fn := clauses[0]
	if fn.Guard != nil {
		return true
	}
	for _, p := range fn.Params {
		if p.Pattern != nil {
			return true
		}
	}
	return false
}

// MangledSymbol returns the callable symbol for clause index i (0-based)
// within g, following spec.md §4.6.2: a group without a dispatcher exposes
// its sole clause directly under the group's own mangled symbol; otherwise
// every clause gets a __clauseK suffix and the dispatcher owns the bare
// symbol.
func (g *Group) MangledSymbol(clauseIndex int) string {
	base := MangleFunctionName(g.Key.Module, g.Key.Name, g.Key.Arity)
	if !g.RequiresDispatcher {
		return base
	}
	return fmt.Sprintf("%s__clause%d", base, clauseIndex)
}

// DispatcherSymbol is the callable symbol used by callers when the group
// requires one.
func (g *Group) DispatcherSymbol() string {
	return MangleFunctionName(g.Key.Module, g.Key.Name, g.Key.Arity)
}

// MangleFunctionName implements spec.md §4.6.2's
// mangle_function_name("Module.sub.name", arity) = "tn_Module_sub_name__arityN".
func MangleFunctionName(module, name string, arity int) string {
	flat := module
	out := make([]byte, 0, len(flat)+len(name)+8)
	out = append(out, "tn_"...)
	for i := 0; i < len(flat); i++ {
		if flat[i] == '.' {
			out = append(out, '_')
		} else {
			out = append(out, flat[i])
		}
	}
	out = append(out, '_')
	out = append(out, name...)
	out = append(out, fmt.Sprintf("__arity%d", arity)...)
	return string(out)
}

// SortedKeys returns every group's Key in a deterministic (module, name,
// arity) order — used by the native backend to emit forward declarations
// and dispatchers in stable order regardless of map iteration.
func SortedKeys(groups []*Group) []Key {
	keys := make([]Key, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Module != keys[j].Module {
			return keys[i].Module < keys[j].Module
		}
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Arity < keys[j].Arity
	})
	return keys
}

// MatchPattern reports whether value matches pattern, binding names into
// bindings as a side effect. This is the single shared pattern-matching
// engine both the interpreter and the native backend's emitted predicates
// are grounded on (spec.md §4.5).
func MatchPattern(pattern ast.Expr, value runtime.Value, bindings map[string]runtime.Value) bool {
	switch p := pattern.(type) {
	case *ast.Wildcard:
		return true
	case *ast.Bind:
		bindings[p.Name] = value
		return true
	case *ast.Pin:
		bound, ok := bindings[p.Name]
		return ok && runtime.Equal(bound, value)
	case *ast.Int:
		return value.Kind == runtime.KInt && value.Int == p.Value
	case *ast.Float:
		return value.Kind == runtime.KFloat && value.Float == p.Value
	case *ast.Bool:
		return value.Kind == runtime.KBool && value.Bool == p.Value
	case *ast.Nil:
		return value.Kind == runtime.KNil
	case *ast.String:
		return value.Kind == runtime.KString && value.Str == p.Value
	case *ast.Atom:
		return value.Kind == runtime.KAtom && value.Str == p.Name
	case *ast.Unary:
		if p.Op == "-" {
			switch inner := p.Expr.(type) {
			case *ast.Int:
				return value.Kind == runtime.KInt && value.Int == -inner.Value
			case *ast.Float:
				return value.Kind == runtime.KFloat && value.Float == -inner.Value
			}
		}
		return false
	case *ast.List:
		if value.Kind != runtime.KList || len(value.Elems) != len(p.Elems) {
			return false
		}
		for i, ep := range p.Elems {
			if !MatchPattern(ep, value.Elems[i], bindings) {
				return false
			}
		}
		return true
	case *ast.Tuple:
		if value.Kind != runtime.KTuple || len(value.Elems) != len(p.Elems) {
			return false
		}
		for i, ep := range p.Elems {
			if !MatchPattern(ep, value.Elems[i], bindings) {
				return false
			}
		}
		return true
	case *ast.Keyword:
		if value.Kind != runtime.KKeyword || len(value.KwEntries) != len(p.Entries) {
			return false
		}
		for i, ee := range p.Entries {
			if value.KwEntries[i].Key != ee.Key {
				return false
			}
			if !MatchPattern(ee.Value, value.KwEntries[i].Value, bindings) {
				return false
			}
		}
		return true
	case *ast.Map:
		if value.Kind != runtime.KMap {
			return false
		}
		for _, me := range p.Entries {
			k, isAtom := me.Key.(*ast.Atom)
			var found *runtime.Value
			for i := range value.Entries {
				if isAtom && value.Entries[i].Key.Kind == runtime.KAtom && value.Entries[i].Key.Str == k.Name {
					found = &value.Entries[i].Value
					break
				}
				if !isAtom {
					kv, err := evalConstKey(me.Key)
					if err == nil && runtime.Equal(kv, value.Entries[i].Key) {
						found = &value.Entries[i].Value
						break
					}
				}
			}
			if found == nil {
				return false
			}
			if !MatchPattern(me.Value, *found, bindings) {
				return false
			}
		}
		return true
	case *ast.StructLiteral:
		if value.Kind != runtime.KStruct || value.StructModule != p.Module {
			return false
		}
		for _, f := range p.Fields {
			fv, ok := value.Fields[f.Key]
			if !ok {
				return false
			}
			if !MatchPattern(f.Value, fv, bindings) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// evalConstKey supports the rare map-pattern key shape that isn't a bare
// atom (e.g. `%{1 => x}`): these are always simple literals at parse time,
// so evaluation never needs an environment.
func evalConstKey(e ast.Expr) (runtime.Value, error) {
	switch n := e.(type) {
	case *ast.Int:
		return runtime.Value{Kind: runtime.KInt, Int: n.Value}, nil
	case *ast.String:
		return runtime.Value{Kind: runtime.KString, Str: n.Value}, nil
	case *ast.Atom:
		return runtime.Value{Kind: runtime.KAtom, Str: n.Name}, nil
	case *ast.Bool:
		return runtime.Value{Kind: runtime.KBool, Bool: n.Value}, nil
	case *ast.Nil:
		return runtime.Value{Kind: runtime.KNil}, nil
	default:
		return runtime.Value{}, fmt.Errorf("unsupported constant map-pattern key")
	}
}
