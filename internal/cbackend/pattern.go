package cbackend

import (
	"fmt"
	"strings"

	"github.com/tonic-lang/tonic/internal/ast"
)

// patternGen compiles a pattern match into straight-line C at codegen
// time, rather than interpreting the pattern AST at runtime the way
// internal/dispatch.MatchPattern does — the same structural recursion,
// just run once by the compiler instead of once per call by the
// interpreter. Bindings become C locals declared in the emitting
// function's own scope; cond collects the conjunction of runtime checks
// that must all hold for the pattern to match.
type patternGen struct {
	cond  []string
	binds []string
	tmp   int
}

func (g *patternGen) newTemp() string {
	g.tmp++
	return fmt.Sprintf("__pm%d", g.tmp)
}

// emit recursively compiles pattern against the C expression valueExpr
// (already evaluated, safe to reference more than once only if it's a
// variable — callers pass a temp var, never a compound expression).
func (g *patternGen) emit(pattern ast.Expr, valueExpr string) {
	switch p := pattern.(type) {
	case *ast.Wildcard:
		// always matches, binds nothing
	case *ast.Bind:
		g.binds = append(g.binds, fmt.Sprintf("TValue %s = %s;", cIdent(p.Name), valueExpr))
	case *ast.Pin:
		g.cond = append(g.cond, fmt.Sprintf("tn_equal(%s, %s)", cIdent(p.Name), valueExpr))
	case *ast.Int:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_int_eq(%s, %dLL)", valueExpr, p.Value))
	case *ast.Float:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_float_eq(%s, %v)", valueExpr, p.Value))
	case *ast.Bool:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_bool_eq(%s, %v)", valueExpr, p.Value))
	case *ast.Nil:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_nil(%s)", valueExpr))
	case *ast.String:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_string_eq(%s, %s)", valueExpr, cStringLiteral(p.Value)))
	case *ast.Atom:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_atom_eq(%s, %s)", valueExpr, cStringLiteral(p.Name)))
	case *ast.Unary:
		if p.Op == "-" {
			switch inner := p.Expr.(type) {
			case *ast.Int:
				g.cond = append(g.cond, fmt.Sprintf("tn_is_int_eq(%s, %dLL)", valueExpr, -inner.Value))
				return
			case *ast.Float:
				g.cond = append(g.cond, fmt.Sprintf("tn_is_float_eq(%s, %v)", valueExpr, -inner.Value))
				return
			}
		}
		g.cond = append(g.cond, "0 /* unsupported negative-literal pattern */")
	case *ast.List:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_list_len(%s, %d)", valueExpr, len(p.Elems)))
		for i, ep := range p.Elems {
			elem := g.newTemp()
			g.binds = append(g.binds, fmt.Sprintf("TValue %s = tn_list_get(%s, %d);", elem, valueExpr, i))
			g.emit(ep, elem)
		}
	case *ast.Tuple:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_tuple_len(%s, %d)", valueExpr, len(p.Elems)))
		for i, ep := range p.Elems {
			elem := g.newTemp()
			g.binds = append(g.binds, fmt.Sprintf("TValue %s = tn_tuple_get(%s, %d);", elem, valueExpr, i))
			g.emit(ep, elem)
		}
	case *ast.Keyword:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_keyword_len(%s, %d)", valueExpr, len(p.Entries)))
		for i, ee := range p.Entries {
			g.cond = append(g.cond, fmt.Sprintf("tn_keyword_key_eq(%s, %d, %s)", valueExpr, i, cStringLiteral(ee.Key)))
			elem := g.newTemp()
			g.binds = append(g.binds, fmt.Sprintf("TValue %s = tn_keyword_value(%s, %d);", elem, valueExpr, i))
			g.emit(ee.Value, elem)
		}
	case *ast.Map:
		for _, me := range p.Entries {
			if k, ok := me.Key.(*ast.Atom); ok {
				found := g.newTemp()
				g.cond = append(g.cond, fmt.Sprintf("tn_map_has_atom_key(%s, %s)", valueExpr, cStringLiteral(k.Name)))
				g.binds = append(g.binds, fmt.Sprintf("TValue %s = tn_map_get_atom_key(%s, %s);", found, valueExpr, cStringLiteral(k.Name)))
				g.emit(me.Value, found)
			} else {
				g.cond = append(g.cond, "0 /* unsupported non-atom map-pattern key */")
			}
		}
	case *ast.StructLiteral:
		g.cond = append(g.cond, fmt.Sprintf("tn_is_struct_named(%s, %s)", valueExpr, cStringLiteral(p.Module)))
		for _, f := range p.Fields {
			elem := g.newTemp()
			g.cond = append(g.cond, fmt.Sprintf("tn_struct_has_field(%s, %s)", valueExpr, cStringLiteral(f.Key)))
			g.binds = append(g.binds, fmt.Sprintf("TValue %s = tn_struct_get_field(%s, %s);", elem, valueExpr, cStringLiteral(f.Key)))
			g.emit(f.Value, elem)
		}
	default:
		g.cond = append(g.cond, "0 /* unsupported pattern shape */")
	}
}

// condExpr returns the conjunction of every runtime check gathered by
// emit, or "1" if the pattern is unconditional (wildcard/bind only).
func (g *patternGen) condExpr() string {
	if len(g.cond) == 0 {
		return "1"
	}
	return strings.Join(g.cond, " && ")
}

// cIdent sanitizes a Tonic identifier into a safe C local-variable name.
// Tonic identifiers are already C-identifier-safe except for the leading
// `_`-prefixed "unused" convention, which C also accepts as-is, so this
// only needs to guard against reserved words colliding with generated
// runtime helper names. The `&N` parameters synthesized for capture
// shorthand are the one non-identifier name; they map to tn_cap_N.
func cIdent(name string) string {
	if strings.HasPrefix(name, "&") {
		return "tn_cap_" + name[1:]
	}
	return "tv_" + name
}

func cStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
