package runtime

import (
	"strings"
)

// ApplyUnary implements the `-`/`not` unary operators (spec.md §4.6.1's
// interpreter arithmetic semantics).
func ApplyUnary(op string, v Value) (Value, error) {
	switch op {
	case "-":
		switch v.Kind {
		case KInt:
			return Int(-v.Int), nil
		case KFloat:
			return Float(-v.Float), nil
		}
		return Value{}, &BadArgumentError{Op: "-", Msg: "expected a number"}
	case "not":
		return Bool_(!v.Truthy()), nil
	default:
		return Value{}, &BadArgumentError{Op: op, Msg: "unknown unary operator"}
	}
}

// ApplyBinary implements every non-short-circuit binary operator. &&/||
// (and their and/or spellings) never reach here — they lower to a
// ShortCircuit terminator and are handled by the executor directly.
func ApplyBinary(op string, l, r Value) (Value, error) {
	switch op {
	case "+", "-", "*", "/", "%":
		return arith(op, l, r)
	case "==":
		return Bool_(Equal(l, r)), nil
	case "!=":
		return Bool_(!Equal(l, r)), nil
	case "<", "<=", ">", ">=":
		return compare(op, l, r)
	case "<>":
		if l.Kind != KString || r.Kind != KString {
			return Value{}, &BadArgumentError{Op: "<>", Msg: "expected strings"}
		}
		return Str(l.Str + r.Str), nil
	case "++":
		if l.Kind != KList || r.Kind != KList {
			return Value{}, &BadArgumentError{Op: "++", Msg: "expected lists"}
		}
		out := make([]Value, 0, len(l.Elems)+len(r.Elems))
		out = append(out, l.Elems...)
		out = append(out, r.Elems...)
		return Value{Kind: KList, Elems: out}, nil
	case "--":
		if l.Kind != KList || r.Kind != KList {
			return Value{}, &BadArgumentError{Op: "--", Msg: "expected lists"}
		}
		out := make([]Value, 0, len(l.Elems))
		for _, e := range l.Elems {
			remove := false
			for _, re := range r.Elems {
				if Equal(e, re) {
					remove = true
					break
				}
			}
			if !remove {
				out = append(out, e)
			}
		}
		return Value{Kind: KList, Elems: out}, nil
	case "..", "..//":
		return evalRange(op, l, r)
	default:
		return Value{}, &BadArgumentError{Op: op, Msg: "unknown binary operator"}
	}
}

func arith(op string, l, r Value) (Value, error) {
	if l.Kind == KInt && r.Kind == KInt {
		switch op {
		case "+":
			return Int(l.Int + r.Int), nil
		case "-":
			return Int(l.Int - r.Int), nil
		case "*":
			return Int(l.Int * r.Int), nil
		case "/":
			if r.Int == 0 {
				return Value{}, &BadArgumentError{Op: "/", Msg: "division by zero"}
			}
			return Int(l.Int / r.Int), nil
		case "%":
			if r.Int == 0 {
				return Value{}, &BadArgumentError{Op: "%", Msg: "division by zero"}
			}
			return Int(l.Int % r.Int), nil
		}
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return Value{}, &BadArgumentError{Op: op, Msg: "expected numbers"}
	}
	switch op {
	case "+":
		return Float(lf + rf), nil
	case "-":
		return Float(lf - rf), nil
	case "*":
		return Float(lf * rf), nil
	case "/":
		if rf == 0 {
			return Value{}, &BadArgumentError{Op: "/", Msg: "division by zero"}
		}
		return Float(lf / rf), nil
	case "%":
		return Value{}, &BadArgumentError{Op: "%", Msg: "modulo requires integer operands"}
	}
	return Value{}, &BadArgumentError{Op: op, Msg: "unreachable"}
}

func asFloat(v Value) (float64, bool) {
	switch v.Kind {
	case KInt:
		return float64(v.Int), true
	case KFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func compare(op string, l, r Value) (Value, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		return Bool_(numCompare(op, lf, rf)), nil
	}
	if l.Kind == KString && r.Kind == KString {
		return Bool_(strCompare(op, l.Str, r.Str)), nil
	}
	return Value{}, &BadArgumentError{Op: op, Msg: "expected two numbers or two strings"}
}

func numCompare(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func strCompare(op, l, r string) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

// evalRange eagerly materializes `a..b` or `a..//b` into a List of
// integers stepping by 1 (or -1 when a > b); both operators produce the
// same list, `..//` applies no step of its own. spec.md's RuntimeValue
// has no distinct Range kind, so ranges are treated as plain lists everywhere they're
// used (for-comprehension sources, enumeration builtins).
func evalRange(op string, l, r Value) (Value, error) {
	if l.Kind != KInt || r.Kind != KInt {
		return Value{}, &BadArgumentError{Op: op, Msg: "range bounds must be integers"}
	}
	step := int64(1)
	if l.Int > r.Int {
		step = -1
	}
	var elems []Value
	for n := l.Int; (step > 0 && n <= r.Int) || (step < 0 && n >= r.Int); n += step {
		elems = append(elems, Int(n))
	}
	return Value{Kind: KList, Elems: elems}, nil
}

// HostFunc is one registered host capability's Go implementation, invoked
// by the host_call builtin.
type HostFunc func(args []Value) (Value, error)

// CollectInto implements `for ... into: collectable`: the accumulated
// per-iteration results are folded into the shape of the into: seed value.
func CollectInto(into Value, results []Value) (Value, error) {
	switch into.Kind {
	case KList:
		out := make([]Value, 0, len(into.Elems)+len(results))
		out = append(out, into.Elems...)
		out = append(out, results...)
		return Value{Kind: KList, Elems: out}, nil
	case KString:
		var sb strings.Builder
		sb.WriteString(into.Str)
		for _, r := range results {
			if r.Kind != KString {
				return Value{}, &BadArgumentError{Op: "for..into", Msg: "expected string results"}
			}
			sb.WriteString(r.Str)
		}
		return Str(sb.String()), nil
	case KMap:
		entries := append([]MapEntry{}, into.Entries...)
		for _, r := range results {
			if r.Kind != KTuple || len(r.Elems) != 2 {
				return Value{}, &BadArgumentError{Op: "for..into", Msg: "expected {key, value} tuples"}
			}
			entries = setMapEntry(entries, r.Elems[0], r.Elems[1])
		}
		return Value{Kind: KMap, Entries: entries}, nil
	default:
		return Value{}, &BadArgumentError{Op: "for..into", Msg: "unsupported into: shape"}
	}
}

func setMapEntry(entries []MapEntry, k, v Value) []MapEntry {
	for i := range entries {
		if Equal(entries[i].Key, k) {
			entries[i].Value = v
			return entries
		}
	}
	return append(entries, MapEntry{Key: k, Value: v})
}
