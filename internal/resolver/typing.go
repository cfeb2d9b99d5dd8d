package resolver

import (
	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/source"
)

// Typecheck applies the structural, flow-insensitive typing rules: a
// host_call/1+ first argument must be an atom (E2001), `?` requires a
// Result-shaped operand (E3001), and every case expression must carry an
// explicit wildcard branch (E3002).
func Typecheck(mods []*ast.Module) error {
	for _, m := range mods {
		for _, fn := range m.Functions {
			for _, e := range fn.Body {
				if err := checkExpr(e); err != nil {
					return err.(*source.Diagnostic).In(m.Name, fn.Name)
				}
			}
		}
	}
	return nil
}

func checkExpr(e ast.Expr) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Call:
		if callee, ok := n.Callee.(*ast.Bind); ok && callee.Name == "host_call" {
			if len(n.Args) == 0 {
				return source.Coded(source.ETypeMismatch,
					"host_call requires an atom first argument").At(n.Offset())
			}
			if _, ok := n.Args[0].(*ast.Atom); !ok {
				return source.Coded(source.ETypeMismatch,
					"host_call requires an atom first argument").At(n.Offset())
			}
		}
		for _, a := range n.Args {
			if err := checkExpr(a); err != nil {
				return err
			}
		}
		return checkExpr(n.Callee)
	case *ast.Question:
		if !canBeResult(n.Expr) {
			return source.Coded(source.EQuestionRequiresResult,
				"'?' requires a Result value").At(n.Offset())
		}
		return checkExpr(n.Expr)
	case *ast.Case:
		if err := checkExpr(n.Subject); err != nil {
			return err
		}
		if !hasWildcardBranch(n.Branches) {
			return source.Coded(source.ENonExhaustiveCase,
				"non-exhaustive case expression: missing wildcard branch").At(n.Offset())
		}
		for _, b := range n.Branches {
			if err := checkExpr(b.Guard); err != nil {
				return err
			}
			for _, be := range b.Body {
				if err := checkExpr(be); err != nil {
					return err
				}
			}
		}
	case *ast.Pipe:
		if err := checkExpr(n.Lhs); err != nil {
			return err
		}
		return checkExpr(n.Rhs)
	case *ast.Unary:
		return checkExpr(n.Expr)
	case *ast.Binary:
		if err := checkExpr(n.Left); err != nil {
			return err
		}
		return checkExpr(n.Right)
	case *ast.If:
		if err := checkExpr(n.Cond); err != nil {
			return err
		}
		if err := checkExpr(n.Then); err != nil {
			return err
		}
		return checkExpr(n.Else)
	case *ast.Unless:
		if err := checkExpr(n.Cond); err != nil {
			return err
		}
		if err := checkExpr(n.Then); err != nil {
			return err
		}
		return checkExpr(n.Else)
	case *ast.Cond:
		for _, c := range n.Clauses {
			if err := checkExpr(c.Cond); err != nil {
				return err
			}
			for _, be := range c.Body {
				if err := checkExpr(be); err != nil {
					return err
				}
			}
		}
	case *ast.With:
		for _, c := range n.Clauses {
			if err := checkExpr(c.Value); err != nil {
				return err
			}
		}
		for _, be := range n.Body {
			if err := checkExpr(be); err != nil {
				return err
			}
		}
		for _, b := range n.Else {
			for _, be := range b.Body {
				if err := checkExpr(be); err != nil {
					return err
				}
			}
		}
	case *ast.For:
		for _, c := range n.Clauses {
			if err := checkExpr(c.Source); err != nil {
				return err
			}
		}
		for _, f := range n.Filters {
			if err := checkExpr(f); err != nil {
				return err
			}
		}
		return checkExpr(n.Body)
	case *ast.Fn:
		for _, be := range n.Body {
			if err := checkExpr(be); err != nil {
				return err
			}
		}
	case *ast.Try:
		for _, be := range n.Body {
			if err := checkExpr(be); err != nil {
				return err
			}
		}
		for _, rc := range n.Rescues {
			for _, be := range rc.Body {
				if err := checkExpr(be); err != nil {
					return err
				}
			}
		}
		for _, be := range n.After {
			if err := checkExpr(be); err != nil {
				return err
			}
		}
	case *ast.List:
		for _, el := range n.Elems {
			if err := checkExpr(el); err != nil {
				return err
			}
		}
	case *ast.Tuple:
		for _, el := range n.Elems {
			if err := checkExpr(el); err != nil {
				return err
			}
		}
	case *ast.Map:
		for _, en := range n.Entries {
			if err := checkExpr(en.Value); err != nil {
				return err
			}
		}
	case *ast.Access:
		if err := checkExpr(n.Base); err != nil {
			return err
		}
		return checkExpr(n.Key)
	case *ast.DotAccess:
		return checkExpr(n.Base)
	}
	return nil
}

// hasWildcardBranch reports whether branches contains an unconditional
// wildcard (or plain bind, which matches everything the same way).
func hasWildcardBranch(branches []ast.CaseBranch) bool {
	for _, b := range branches {
		if b.Guard != nil {
			continue
		}
		switch b.Pattern.(type) {
		case *ast.Wildcard, *ast.Bind:
			return true
		}
	}
	return false
}

// canBeResult approximates whether expr's static shape could plausibly
// produce a Result value, since the runtime domain carries no static
// types: a call is presumed to be able to (its callee's result shape is
// unknown until IR lowering resolves it), a bare literal never is.
func canBeResult(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.Int, *ast.Float, *ast.Bool, *ast.Nil, *ast.String, *ast.Atom,
		*ast.List, *ast.Tuple, *ast.Map, *ast.Keyword:
		return false
	default:
		return true
	}
}
