// Package ir lowers a resolved AST into a linear op-stream per function:
// control forms (if/unless/cond/with/for) desugar to Case, captures desugar
// to closures, and interpolated strings desugar to concat+to_string chains.
package ir

import "github.com/tonic-lang/tonic/internal/ast"

type OpKind int

const (
	OpConstInt OpKind = iota
	OpConstFloat
	OpConstBool
	OpConstNil
	OpConstString
	OpConstAtom
	OpLoadVariable
	OpUnary
	OpBinary
	OpCall
	OpMakeClosure
	OpQuestion
	OpCase
	OpMakeList
	OpMakeTuple
	OpMakeMap
	OpMakeKeyword
	OpMakeStruct
	OpUpdateStruct
	OpAccess
	OpDotAccess
	OpPipe
	OpRaise
	OpFor
	OpTry
	OpAssign
)

// CalleeKind classifies a Call op's callee per spec.md §3 Ir/Op: a call is
// one of a guard/runtime builtin, a local function, a module-qualified
// function, or an already-evaluated closure value.
type CalleeKind int

const (
	CalleeBuiltin CalleeKind = iota
	CalleeLocal
	CalleeQualified
	CalleeClosure
)

// Callee describes who a Call op invokes.
type Callee struct {
	Kind    CalleeKind
	Module  string // set when Kind == CalleeQualified
	Name    string // set when Kind != CalleeClosure
	Closure *Op    // set when Kind == CalleeClosure
}

// Branch is one arm of an OpCase: Pattern is the restricted pattern-subset
// AST node, Guard is an optional op evaluated with the pattern's bindings
// in scope, Body is the arm's op-stream.
type Branch struct {
	Pattern ast.Expr
	Guard   *Op
	Body    []Op
}

// Op is one IR instruction. Only the fields relevant to Kind are populated;
// this mirrors the teacher's own tagged-union-via-struct style rather than
// an interface-per-kind hierarchy, since every Op still needs one shared
// Offset for diagnostics/source maps regardless of kind.
type Op struct {
	Kind   OpKind
	Offset int

	Int    int64
	Float  float64
	Bool   bool
	String string
	Atom   string

	Name string // OpLoadVariable

	UnOp  string // OpUnary
	BinOp string // OpBinary
	Left  *Op
	Right *Op

	Callee Callee   // OpCall
	Args   []Op     // OpCall args, OpMakeList/Tuple elems, OpRaise fields values
	Keys   []string // OpMakeKeyword/OpMakeStruct/OpUpdateStruct/OpRaise field names
	Entry  []Op     // OpMakeMap alternating key,value pairs (even indices are keys)

	ClosureParams  []string   // OpMakeClosure
	ClosurePattern []ast.Expr // per-param destructuring pattern, nil entry if bare bind
	ClosureGuard   *Op
	ClosureBody    []Op

	Subject  *Op      // OpQuestion operand, OpCase subject
	Branches []Branch // OpCase

	Base   *Op    // OpAccess/OpDotAccess/OpUpdateStruct
	Key    *Op    // OpAccess
	Field  string // OpDotAccess
	Module string // OpMakeStruct/OpUpdateStruct

	Lhs *Op // OpPipe
	Rhs *Op

	// OpFor: kept as one combinator rather than further desugared into a
	// synthesized recursive helper function (spec.md §4.4 only requires a
	// recursive *traversal*, not a specific lowering shape) — MIR/runtime
	// interpret it directly. See DESIGN.md.
	ForClauses []ForClause
	ForFilters []Op
	ForBody    *Op
	ForInto    *Op
	ForReduce  *Op
	ForAccVar  string

	// OpTry
	TryBody    []Op
	TryRescues []RescueBranch
	TryAfter   []Op

	// OpAssign: `pattern = value`, parsed as a __match__(pattern, value)
	// pseudo-call (the resolver special-cases it the same way). Unlike
	// Case/For/Try's pattern bindings, an assignment's bindings are not
	// scoped to a fresh block: they're introduced directly into the
	// enclosing function's own frame, visible to every statement after it
	// in the same body.
	AssignPattern ast.Expr
	AssignValue   *Op
}

// RescueBranch is one `rescue binding in Module -> body` arm.
type RescueBranch struct {
	Module  string
	Binding string
	Body    []Op
}

type ForClause struct {
	Pattern ast.Expr
	Source  Op
}

// Function is one clause's lowered body: ModuleName.Name/Arity with its
// (possibly destructuring) parameters, optional guard, and body op-stream
// producing a single result.
type Function struct {
	Module string
	Name   string
	Arity  int
	Params []Param
	Guard  *Op
	Body   []Op
	Offset int
	Public bool
}

type Param struct {
	Name    string
	Pattern ast.Expr // nil for a bare bind
	Default *Op
}

// Lower desugars every function clause of every module into an ir.Function.
// Modules are already validated by resolver.Resolve/Typecheck by this point;
// Lower does not re-check visibility or symbol existence.
func Lower(mods []*ast.Module) ([]*Function, error) {
	var out []*Function
	for _, m := range mods {
		for _, fn := range m.Functions {
			lf, err := lowerFunction(m.Name, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, lf)
		}
	}
	return out, nil
}

func lowerFunction(module string, fn *ast.Function) (*Function, error) {
	params := make([]Param, len(fn.Params))
	for i, p := range fn.Params {
		var def *Op
		if p.Default != nil {
			d, err := lowerExpr(p.Default)
			if err != nil {
				return nil, err
			}
			def = d
		}
		params[i] = Param{Name: p.Name, Pattern: p.Pattern, Default: def}
	}
	var guard *Op
	if fn.Guard != nil {
		g, err := lowerExpr(fn.Guard)
		if err != nil {
			return nil, err
		}
		guard = g
	}
	body, err := lowerBody(fn.Body)
	if err != nil {
		return nil, err
	}
	return &Function{
		Module: module,
		Name:   fn.Name,
		Arity:  len(fn.Params),
		Params: params,
		Guard:  guard,
		Body:   body,
		Offset: fn.Offset,
		Public: fn.Visibility == ast.Public,
	}, nil
}

func lowerBody(exprs []ast.Expr) ([]Op, error) {
	out := make([]Op, 0, len(exprs))
	for _, e := range exprs {
		op, err := lowerExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, *op)
	}
	return out, nil
}
