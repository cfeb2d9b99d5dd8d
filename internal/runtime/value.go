// Package runtime implements the RuntimeValue domain (spec.md §3) that the
// backends share: values, frames, the builtin operators and the runtime
// error types. The MIR-evaluating tree-walking interpreter itself lives in
// internal/interp.
package runtime

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tonic-lang/tonic/internal/mir"
)

// Kind tags a Value's variant, mirroring RuntimeValue's tagged union
// (spec.md §3): Int | Float | Bool | Nil | Atom | String | List | Keyword |
// Tuple(l,r) | Map(entries) | ResultOk(inner) | ResultErr(inner) |
// Closure{params,body,env}. Struct values have a Kind of their own,
// KStruct, carrying StructModule and a Fields map, rather than being a
// KMap variant.
type Kind int

const (
	KNil Kind = iota
	KBool
	KInt
	KFloat
	KAtom
	KString
	KList
	KKeyword
	KTuple
	KMap
	KStruct
	KResultOk
	KResultErr
	KClosure
)

// MapEntry is one ordered (key, value) pair of a Map value. Order is
// preserved for rendering and equality per spec.md §3.
type MapEntry struct {
	Key   Value
	Value Value
}

// KeywordEntry is one ordered (atom, value) pair of a Keyword value.
type KeywordEntry struct {
	Key   string
	Value Value
}

// Value is the interpreter's RuntimeValue. Only the fields relevant to Kind
// are populated.
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64
	Str   string // Atom name or String contents

	Elems     []Value        // List, Tuple
	Entries   []MapEntry     // Map
	KwEntries []KeywordEntry // Keyword

	StructModule string           // KStruct
	Fields       map[string]Value // KStruct

	Inner *Value // ResultOk/ResultErr payload

	Closure *Closure // KClosure
}

// Closure pairs a lambda-lifted mir.Function with its captured lexical
// environment, mirroring the teacher's Closure{params,body,env} shape.
// Symbol is the name shown by Render's #Function<symbol> rendering.
type Closure struct {
	Symbol string
	Fn     *mir.Function
	Env    *Frame
}

func Nil() Value                 { return Value{Kind: KNil} }
func Bool_(b bool) Value         { return Value{Kind: KBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KFloat, Float: f} }
func Atom(name string) Value     { return Value{Kind: KAtom, Str: name} }
func Str(s string) Value         { return Value{Kind: KString, Str: s} }
func List(elems ...Value) Value  { return Value{Kind: KList, Elems: elems} }
func Tuple(elems ...Value) Value { return Value{Kind: KTuple, Elems: elems} }

func Ok(v Value) Value  { inner := v; return Value{Kind: KResultOk, Inner: &inner} }
func Err(v Value) Value { inner := v; return Value{Kind: KResultErr, Inner: &inner} }

// Truthy implements the language's truthiness rule: only false and nil are
// falsy, everything else is truthy (used by if/unless/cond's desugaring,
// spec.md §4.4, and by && / || short-circuiting).
func (v Value) Truthy() bool {
	switch v.Kind {
	case KBool:
		return v.Bool
	case KNil:
		return false
	default:
		return true
	}
}

// Equal implements structural equality (spec.md §3: "Equality is
// structural").
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Int/Float cross-kind equality is never implicit in this language;
		// 1 and 1.0 are distinct values.
		return false
	}
	switch a.Kind {
	case KNil:
		return true
	case KBool:
		return a.Bool == b.Bool
	case KInt:
		return a.Int == b.Int
	case KFloat:
		return a.Float == b.Float
	case KAtom, KString:
		return a.Str == b.Str
	case KList, KTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KKeyword:
		if len(a.KwEntries) != len(b.KwEntries) {
			return false
		}
		for i := range a.KwEntries {
			if a.KwEntries[i].Key != b.KwEntries[i].Key || !Equal(a.KwEntries[i].Value, b.KwEntries[i].Value) {
				return false
			}
		}
		return true
	case KMap:
		if len(a.Entries) != len(b.Entries) {
			return false
		}
		for i := range a.Entries {
			if !Equal(a.Entries[i].Key, b.Entries[i].Key) || !Equal(a.Entries[i].Value, b.Entries[i].Value) {
				return false
			}
		}
		return true
	case KStruct:
		if a.StructModule != b.StructModule || len(a.Fields) != len(b.Fields) {
			return false
		}
		for k, av := range a.Fields {
			bv, ok := b.Fields[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KResultOk, KResultErr:
		return Equal(*a.Inner, *b.Inner)
	case KClosure:
		return a.Closure == b.Closure
	default:
		return false
	}
}

// Render implements the canonical renderer of spec.md §4.6.1: integer/float
// /bool/atom lowercased, string quoted with escapes, list `[a, b]`, tuple
// `{a, b}`, keyword `[k: v, …]`, map `%{k => v, …}` with ordered entries.
func Render(v Value) string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KInt:
		return strconv.FormatInt(v.Int, 10)
	case KFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KAtom:
		return ":" + v.Str
	case KString:
		return strconv.Quote(v.Str)
	case KList:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = Render(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KTuple:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = Render(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KKeyword:
		parts := make([]string, len(v.KwEntries))
		for i, e := range v.KwEntries {
			parts[i] = fmt.Sprintf("%s: %s", e.Key, Render(e.Value))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KMap:
		parts := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			parts[i] = fmt.Sprintf("%s => %s", Render(e.Key), Render(e.Value))
		}
		return "%{" + strings.Join(parts, ", ") + "}"
	case KStruct:
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, Render(v.Fields[k]))
		}
		return fmt.Sprintf("%%%s{%s}", v.StructModule, strings.Join(parts, ", "))
	case KResultOk:
		return "ok(" + Render(*v.Inner) + ")"
	case KResultErr:
		return "err(" + Render(*v.Inner) + ")"
	case KClosure:
		return "#Function<" + v.Closure.Symbol + ">"
	default:
		return "?"
	}
}
