package ir

import "github.com/tonic-lang/tonic/internal/ast"

// lowerExpr turns one AST expression into one IR op. Control forms desugar
// to OpCase per spec.md §4.4; everything else lowers structurally.
func lowerExpr(e ast.Expr) (*Op, error) {
	switch n := e.(type) {
	case *ast.Int:
		return &Op{Kind: OpConstInt, Offset: n.Offset(), Int: n.Value}, nil
	case *ast.Float:
		return &Op{Kind: OpConstFloat, Offset: n.Offset(), Float: n.Value}, nil
	case *ast.Bool:
		return &Op{Kind: OpConstBool, Offset: n.Offset(), Bool: n.Value}, nil
	case *ast.Nil:
		return &Op{Kind: OpConstNil, Offset: n.Offset()}, nil
	case *ast.String:
		return &Op{Kind: OpConstString, Offset: n.Offset(), String: n.Value}, nil
	case *ast.Atom:
		return &Op{Kind: OpConstAtom, Offset: n.Offset(), Atom: n.Name}, nil
	case *ast.InterpolatedString:
		return lowerInterpolated(n)
	case *ast.Bind:
		return &Op{Kind: OpLoadVariable, Offset: n.Offset(), Name: n.Name}, nil
	case *ast.Unary:
		operand, err := lowerExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpUnary, Offset: n.Offset(), UnOp: n.Op, Left: operand}, nil
	case *ast.Binary:
		l, err := lowerExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := lowerExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpBinary, Offset: n.Offset(), BinOp: n.Op, Left: l, Right: r}, nil
	case *ast.Pipe:
		l, err := lowerExpr(n.Lhs)
		if err != nil {
			return nil, err
		}
		r, err := lowerExpr(n.Rhs)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpPipe, Offset: n.Offset(), Lhs: l, Rhs: r}, nil
	case *ast.Call:
		return lowerCall(n)
	case *ast.Question:
		operand, err := lowerExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpQuestion, Offset: n.Offset(), Subject: operand}, nil
	case *ast.List:
		elems, err := lowerExprs(n.Elems)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpMakeList, Offset: n.Offset(), Args: elems}, nil
	case *ast.Tuple:
		elems, err := lowerExprs(n.Elems)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpMakeTuple, Offset: n.Offset(), Args: elems}, nil
	case *ast.Map:
		entries := make([]Op, 0, len(n.Entries)*2)
		for _, me := range n.Entries {
			k, err := lowerExpr(me.Key)
			if err != nil {
				return nil, err
			}
			v, err := lowerExpr(me.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, *k, *v)
		}
		return &Op{Kind: OpMakeMap, Offset: n.Offset(), Entry: entries}, nil
	case *ast.Keyword:
		keys := make([]string, len(n.Entries))
		vals := make([]Op, len(n.Entries))
		for i, ke := range n.Entries {
			v, err := lowerExpr(ke.Value)
			if err != nil {
				return nil, err
			}
			keys[i] = ke.Key
			vals[i] = *v
		}
		return &Op{Kind: OpMakeKeyword, Offset: n.Offset(), Keys: keys, Args: vals}, nil
	case *ast.StructLiteral:
		keys := make([]string, len(n.Fields))
		vals := make([]Op, len(n.Fields))
		for i, f := range n.Fields {
			v, err := lowerExpr(f.Value)
			if err != nil {
				return nil, err
			}
			keys[i] = f.Key
			vals[i] = *v
		}
		return &Op{Kind: OpMakeStruct, Offset: n.Offset(), Module: n.Module, Keys: keys, Args: vals}, nil
	case *ast.StructUpdate:
		base, err := lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		keys := make([]string, len(n.Fields))
		vals := make([]Op, len(n.Fields))
		for i, f := range n.Fields {
			v, err := lowerExpr(f.Value)
			if err != nil {
				return nil, err
			}
			keys[i] = f.Key
			vals[i] = *v
		}
		return &Op{Kind: OpUpdateStruct, Offset: n.Offset(), Module: n.Module, Base: base, Keys: keys, Args: vals}, nil
	case *ast.Access:
		base, err := lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		key, err := lowerExpr(n.Key)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpAccess, Offset: n.Offset(), Base: base, Key: key}, nil
	case *ast.DotAccess:
		base, err := lowerExpr(n.Base)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpDotAccess, Offset: n.Offset(), Base: base, Field: n.Field}, nil
	case *ast.Case:
		return lowerCase(n)
	case *ast.If:
		return lowerIf(n)
	case *ast.Unless:
		return lowerUnless(n)
	case *ast.Cond:
		return lowerCond(n)
	case *ast.With:
		return lowerWith(n)
	case *ast.For:
		return lowerFor(n)
	case *ast.Fn:
		return lowerFn(n)
	case *ast.CaptureNamed:
		return &Op{
			Kind:   OpMakeClosure,
			Offset: n.Offset(),
			Callee: Callee{Kind: calleeKindFor(n.Module), Module: n.Module, Name: n.Name},
			Int:    int64(n.Arity),
		}, nil
	case *ast.CaptureShorthand:
		return lowerCaptureShorthand(n)
	case *ast.Try:
		return lowerTry(n)
	case *ast.Raise:
		keys := make([]string, len(n.Fields))
		vals := make([]Op, len(n.Fields))
		for i, f := range n.Fields {
			v, err := lowerExpr(f.Value)
			if err != nil {
				return nil, err
			}
			keys[i] = f.Key
			vals[i] = *v
		}
		return &Op{Kind: OpRaise, Offset: n.Offset(), Module: n.Module, Keys: keys, Args: vals}, nil
	default:
		return &Op{Kind: OpConstNil, Offset: e.Offset()}, nil
	}
}

func calleeKindFor(module string) CalleeKind {
	if module == "" {
		return CalleeLocal
	}
	return CalleeQualified
}

func lowerExprs(exprs []ast.Expr) ([]Op, error) {
	out := make([]Op, len(exprs))
	for i, e := range exprs {
		op, err := lowerExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = *op
	}
	return out, nil
}

// lowerInterpolated desugars `"a#{x}b"` into a left-fold of string
// concatenations over `to_string` calls on each embedded expression,
// per spec.md §4.4 ("interpolation to concat+to_string chains").
func lowerInterpolated(n *ast.InterpolatedString) (*Op, error) {
	var acc *Op
	for _, seg := range n.Segments {
		var piece *Op
		if seg.Expr == nil {
			piece = &Op{Kind: OpConstString, Offset: n.Offset(), String: seg.Text}
		} else {
			inner, err := lowerExpr(seg.Expr)
			if err != nil {
				return nil, err
			}
			piece = &Op{
				Kind:   OpCall,
				Offset: n.Offset(),
				Callee: Callee{Kind: CalleeBuiltin, Name: "to_string"},
				Args:   []Op{*inner},
			}
		}
		if acc == nil {
			acc = piece
			continue
		}
		acc = &Op{Kind: OpBinary, Offset: n.Offset(), BinOp: "<>", Left: acc, Right: piece}
	}
	if acc == nil {
		acc = &Op{Kind: OpConstString, Offset: n.Offset(), String: ""}
	}
	return acc, nil
}

func lowerCall(n *ast.Call) (*Op, error) {
	// `pattern = value` parses as __match__(pattern, value) (the resolver
	// special-cases the same callee name); Args[0] is a pattern, not an
	// expression to evaluate, so it must never go through lowerExpr.
	if bind, ok := n.Callee.(*ast.Bind); ok && bind.Name == "__match__" && len(n.Args) == 2 {
		value, err := lowerExpr(n.Args[1])
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpAssign, Offset: n.Offset(), AssignPattern: n.Args[0], AssignValue: value}, nil
	}
	args, err := lowerExprs(n.Args)
	if err != nil {
		return nil, err
	}
	switch callee := n.Callee.(type) {
	case *ast.Bind:
		kind := CalleeLocal
		switch callee.Name {
		case "host_call", "is_integer", "is_float", "is_number", "is_atom", "is_binary", "is_list", "is_tuple", "is_map", "is_nil":
			kind = CalleeBuiltin
		}
		return &Op{Kind: OpCall, Offset: n.Offset(), Callee: Callee{Kind: kind, Name: callee.Name}, Args: args}, nil
	case *ast.DotAccess:
		if base, ok := callee.Base.(*ast.Bind); ok {
			return &Op{Kind: OpCall, Offset: n.Offset(), Callee: Callee{Kind: CalleeQualified, Module: base.Name, Name: callee.Field}, Args: args}, nil
		}
		closure, err := lowerExpr(callee.Base)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpCall, Offset: n.Offset(), Callee: Callee{Kind: CalleeClosure, Closure: closure}, Args: args}, nil
	default:
		closure, err := lowerExpr(n.Callee)
		if err != nil {
			return nil, err
		}
		return &Op{Kind: OpCall, Offset: n.Offset(), Callee: Callee{Kind: CalleeClosure, Closure: closure}, Args: args}, nil
	}
}

func lowerCaseBranch(b ast.CaseBranch) (Branch, error) {
	var guard *Op
	if b.Guard != nil {
		g, err := lowerExpr(b.Guard)
		if err != nil {
			return Branch{}, err
		}
		guard = g
	}
	body, err := lowerBody(b.Body)
	if err != nil {
		return Branch{}, err
	}
	return Branch{Pattern: b.Pattern, Guard: guard, Body: body}, nil
}

func lowerCase(n *ast.Case) (*Op, error) {
	subject, err := lowerExpr(n.Subject)
	if err != nil {
		return nil, err
	}
	branches := make([]Branch, len(n.Branches))
	for i, b := range n.Branches {
		lb, err := lowerCaseBranch(b)
		if err != nil {
			return nil, err
		}
		branches[i] = lb
	}
	return &Op{Kind: OpCase, Offset: n.Offset(), Subject: subject, Branches: branches}, nil
}

// truthyBranches builds the three-branch desugaring shared by
// If/Unless: false and nil are falsy, everything else is truthy.
func truthyBranches(thenBody, elseBody []Op) []Branch {
	return []Branch{
		{Pattern: &ast.Bool{Value: false}, Body: elseBody},
		{Pattern: &ast.Nil{}, Body: elseBody},
		{Pattern: &ast.Wildcard{}, Body: thenBody},
	}
}

func lowerIf(n *ast.If) (*Op, error) {
	cond, err := lowerExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	then, err := lowerExpr(n.Then)
	if err != nil {
		return nil, err
	}
	var elseOp []Op
	if n.Else != nil {
		e, err := lowerExpr(n.Else)
		if err != nil {
			return nil, err
		}
		elseOp = []Op{*e}
	} else {
		elseOp = []Op{{Kind: OpConstNil, Offset: n.Offset()}}
	}
	return &Op{Kind: OpCase, Offset: n.Offset(), Subject: cond, Branches: truthyBranches([]Op{*then}, elseOp)}, nil
}

func lowerUnless(n *ast.Unless) (*Op, error) {
	cond, err := lowerExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	then, err := lowerExpr(n.Then)
	if err != nil {
		return nil, err
	}
	var elseOp []Op
	if n.Else != nil {
		e, err := lowerExpr(n.Else)
		if err != nil {
			return nil, err
		}
		elseOp = []Op{*e}
	} else {
		elseOp = []Op{{Kind: OpConstNil, Offset: n.Offset()}}
	}
	// unless inverts if's truthy/falsy branch assignment.
	return &Op{Kind: OpCase, Offset: n.Offset(), Subject: cond, Branches: truthyBranches(elseOp, []Op{*then})}, nil
}

// lowerCond desugars `cond` to a chain of guard-only branches matched
// against a constant true subject, evaluated in order — first true guard
// wins, mirroring spec.md §4.4 ("cond lowers to nested case").
func lowerCond(n *ast.Cond) (*Op, error) {
	branches := make([]Branch, 0, len(n.Clauses)+1)
	for _, c := range n.Clauses {
		g, err := lowerExpr(c.Cond)
		if err != nil {
			return nil, err
		}
		body, err := lowerBody(c.Body)
		if err != nil {
			return nil, err
		}
		branches = append(branches, Branch{Pattern: &ast.Wildcard{}, Guard: g, Body: body})
	}
	return &Op{
		Kind:     OpCase,
		Offset:   n.Offset(),
		Subject:  &Op{Kind: OpConstBool, Offset: n.Offset(), Bool: true},
		Branches: branches,
	}, nil
}

// lowerWith desugars `with p1 <- v1, p2 <- v2 do body else ... end` into
// nested case expressions: each clause's source value is matched against
// its pattern, falling through to the With's else branches (or, if absent,
// leaving the case non-exhaustive so a failed match surfaces as bad_match
// at runtime — matching the source language's own with-without-else
// semantics).
func lowerWith(n *ast.With) (*Op, error) {
	body, err := lowerBody(n.Body)
	if err != nil {
		return nil, err
	}
	var elseBranches []Branch
	for _, b := range n.Else {
		lb, err := lowerCaseBranch(b)
		if err != nil {
			return nil, err
		}
		elseBranches = append(elseBranches, lb)
	}
	return lowerWithClauses(n.Clauses, body, elseBranches, n.Offset())
}

func lowerWithClauses(clauses []ast.WithClause, body []Op, elseBranches []Branch, off int) (*Op, error) {
	if len(clauses) == 0 {
		return &Op{Kind: OpCase, Offset: off, Subject: &Op{Kind: OpConstNil, Offset: off},
			Branches: []Branch{{Pattern: &ast.Wildcard{}, Body: body}}}, nil
	}
	head := clauses[0]
	source, err := lowerExpr(head.Value)
	if err != nil {
		return nil, err
	}
	rest, err := lowerWithClauses(clauses[1:], body, elseBranches, off)
	if err != nil {
		return nil, err
	}
	branches := []Branch{{Pattern: head.Pattern, Body: []Op{*rest}}}
	branches = append(branches, elseBranches...)
	return &Op{Kind: OpCase, Offset: off, Subject: source, Branches: branches}, nil
}

func lowerFor(n *ast.For) (*Op, error) {
	clauses := make([]ForClause, len(n.Clauses))
	for i, c := range n.Clauses {
		src, err := lowerExpr(c.Source)
		if err != nil {
			return nil, err
		}
		clauses[i] = ForClause{Pattern: c.Pattern, Source: *src}
	}
	filters, err := lowerExprs(n.Filters)
	if err != nil {
		return nil, err
	}
	body, err := lowerExpr(n.Body)
	if err != nil {
		return nil, err
	}
	var into, reduce *Op
	if n.Into != nil {
		v, err := lowerExpr(n.Into)
		if err != nil {
			return nil, err
		}
		into = v
	}
	if n.Reduce != nil {
		v, err := lowerExpr(n.Reduce)
		if err != nil {
			return nil, err
		}
		reduce = v
	}
	return &Op{
		Kind:       OpFor,
		Offset:     n.Offset(),
		ForClauses: clauses,
		ForFilters: filters,
		ForBody:    body,
		ForInto:    into,
		ForReduce:  reduce,
		ForAccVar:  n.ReduceVar,
	}, nil
}

func lowerFn(n *ast.Fn) (*Op, error) {
	params := make([]string, len(n.Params))
	patterns := make([]ast.Expr, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.Name
		patterns[i] = p.Pattern
	}
	var guard *Op
	if n.Guard != nil {
		g, err := lowerExpr(n.Guard)
		if err != nil {
			return nil, err
		}
		guard = g
	}
	body, err := lowerBody(n.Body)
	if err != nil {
		return nil, err
	}
	return &Op{
		Kind:           OpMakeClosure,
		Offset:         n.Offset(),
		ClosureParams:  params,
		ClosurePattern: patterns,
		ClosureGuard:   guard,
		ClosureBody:    body,
	}, nil
}

// lowerCaptureShorthand desugars `&(&1 + &2)` into an immediate closure
// whose parameters are synthesized from every `&N` reference found in expr.
func lowerCaptureShorthand(n *ast.CaptureShorthand) (*Op, error) {
	maxArg := maxShorthandArg(n.Expr)
	params := make([]string, maxArg)
	patterns := make([]ast.Expr, maxArg)
	for i := range params {
		params[i] = shorthandName(i + 1)
	}
	body, err := lowerExpr(n.Expr)
	if err != nil {
		return nil, err
	}
	return &Op{
		Kind:           OpMakeClosure,
		Offset:         n.Offset(),
		ClosureParams:  params,
		ClosurePattern: patterns,
		ClosureBody:    []Op{*body},
	}, nil
}

func shorthandName(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "&" + string(digits[i])
	}
	// capture shorthands beyond &9 are not part of the surface grammar;
	// fall back to a stable multi-digit name rather than panicking.
	return "&N"
}

func maxShorthandArg(e ast.Expr) int {
	max := 0
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.Bind:
			if len(n.Name) >= 2 && n.Name[0] == '&' {
				d := int(n.Name[1] - '0')
				if d > max {
					max = d
				}
			}
		case *ast.Binary:
			walk(n.Left)
			walk(n.Right)
		case *ast.Unary:
			walk(n.Expr)
		case *ast.Call:
			walk(n.Callee)
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.Pipe:
			walk(n.Lhs)
			walk(n.Rhs)
		case *ast.Access:
			walk(n.Base)
			walk(n.Key)
		case *ast.DotAccess:
			walk(n.Base)
		case *ast.List:
			for _, el := range n.Elems {
				walk(el)
			}
		case *ast.Tuple:
			for _, el := range n.Elems {
				walk(el)
			}
		}
	}
	walk(e)
	return max
}

func lowerTry(n *ast.Try) (*Op, error) {
	body, err := lowerBody(n.Body)
	if err != nil {
		return nil, err
	}
	after, err := lowerBody(n.After)
	if err != nil {
		return nil, err
	}
	rescues := make([]RescueBranch, len(n.Rescues))
	for i, rc := range n.Rescues {
		rbody, err := lowerBody(rc.Body)
		if err != nil {
			return nil, err
		}
		rescues[i] = RescueBranch{Module: rc.Module, Binding: rc.Binding, Body: rbody}
	}
	return &Op{
		Kind:       OpTry,
		Offset:     n.Offset(),
		TryBody:    body,
		TryRescues: rescues,
		TryAfter:   after,
	}, nil
}
