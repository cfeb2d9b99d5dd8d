package parser

import (
	"strconv"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/token"
)

// --- patterns ---
//
// Patterns share most of the expression grammar's literal and collection
// shapes but never see calls, binary operators, or pipes (spec.md §3:
// Pattern is "a subset of AstExpr plus Bind, Pin, Wildcard").

func (p *parser) parsePattern() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.INT:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
		return &ast.Int{Value: v, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.FLOAT:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.Float{Value: v, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.BOOL:
		p.advance()
		return &ast.Bool{Value: tok.Lexeme == "true", Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.NIL:
		p.advance()
		return &ast.Nil{Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.STRING:
		p.advance()
		return &ast.String{Value: tok.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.STRINGPART:
		return p.parseInterpolatedString()
	case token.ATOM:
		p.advance()
		return &ast.Atom{Name: tok.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.Caret:
		p.advance()
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Pin{Name: name.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.Minus:
		p.advance()
		inner, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", Expr: inner, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.LBracket:
		return p.parseListPattern()
	case token.LBrace:
		return p.parseTupleOrMapPattern()
	case token.IDENT:
		return p.parseIdentPattern()
	default:
		return nil, p.errorf("expected pattern, found %s", tok.Kind)
	}
}

func (p *parser) parseListPattern() (ast.Expr, error) {
	off := p.advance().Offset // '['
	var elems []ast.Expr
	for !p.at(token.RBracket) {
		e, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return &ast.List{Elems: elems, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseTupleOrMapPattern() (ast.Expr, error) {
	off := p.advance().Offset // '{'
	if p.at(token.RBrace) {
		p.advance()
		return &ast.Tuple{Pos: ast.Pos{Off: off}}, nil
	}
	if p.at(token.IDENT) && p.peekIsColon() {
		entries, err := p.parseKeywordPatternEntries()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.Keyword{Entries: entries, Pos: ast.Pos{Off: off}}, nil
	}

	first, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	if p.at(token.FatArrow) {
		p.advance()
		val, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		entries := []ast.MapEntry{{Key: first, Value: val}}
		for p.at(token.Comma) {
			p.advance()
			k, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.FatArrow); err != nil {
				return nil, err
			}
			v, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.MapEntry{Key: k, Value: v})
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.Map{Entries: entries, Pos: ast.Pos{Off: off}}, nil
	}

	elems := []ast.Expr{first}
	for p.at(token.Comma) {
		p.advance()
		e, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.Tuple{Elems: elems, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseKeywordPatternEntries() ([]ast.KeywordEntry, error) {
	var entries []ast.KeywordEntry
	for p.at(token.IDENT) && p.peekIsColon() {
		key := p.advance()
		p.advance() // ':'
		v, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.KeywordEntry{Key: key.Lexeme, Value: v})
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return entries, nil
}

func (p *parser) parseIdentPattern() (ast.Expr, error) {
	tok := p.advance()
	if tok.Lexeme == "_" {
		return &ast.Wildcard{Pos: ast.Pos{Off: tok.Offset}}, nil
	}
	if p.at(token.Dot) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.IDENT {
		name := tok.Lexeme
		for p.at(token.Dot) {
			next := p.toks[p.pos+1]
			if !isUpper(next.Lexeme) {
				break
			}
			p.advance()
			seg := p.advance()
			name += "." + seg.Lexeme
		}
		if p.at(token.LBrace) && isUpper(lastSegment(name)) {
			return p.parseStructPattern(name, tok.Offset)
		}
		return &ast.Bind{Name: name, Pos: ast.Pos{Off: tok.Offset}}, nil
	}
	if p.at(token.LBrace) && isUpper(tok.Lexeme) {
		return p.parseStructPattern(tok.Lexeme, tok.Offset)
	}
	return &ast.Bind{Name: tok.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
}

func (p *parser) parseStructPattern(module string, off int) (ast.Expr, error) {
	p.advance() // '{'
	fields, err := p.parseKeywordPatternEntries()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.StructLiteral{Module: module, Fields: fields, Pos: ast.Pos{Off: off}}, nil
}

// --- branch bodies ---
//
// A branch body is a `;`-separated run of expressions that ends at a block
// terminator (end/else/rescue/after/EOF) or at the start of the next branch,
// detected by a speculative parse of the next branch's head that backtracks
// on failure.

func (p *parser) snapshot() int    { return p.pos }
func (p *parser) restore(mark int) { p.pos = mark }

func (p *parser) looksLikeNextHead(parseHead func() error) bool {
	mark := p.snapshot()
	defer p.restore(mark)
	if err := parseHead(); err != nil {
		return false
	}
	return p.at(token.Arrow) || p.at(token.KwWhen)
}

func (p *parser) looksLikeRescueHead() bool {
	mark := p.snapshot()
	defer p.restore(mark)
	if !p.at(token.IDENT) {
		return false
	}
	p.advance()
	if !(p.at(token.IDENT) && p.cur().Lexeme == "in") {
		return false
	}
	p.advance()
	if _, err := p.parseModulePath(); err != nil {
		return false
	}
	return p.at(token.Arrow)
}

func (p *parser) parseBranchBody(isNextHead func() bool) ([]ast.Expr, error) {
	var exprs []ast.Expr
	for {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		for p.at(token.Semicolon) {
			p.advance()
		}
		if p.atBlockEnd() || isNextHead() {
			return exprs, nil
		}
	}
}

func (p *parser) patternHeadLookahead() func() bool {
	return func() bool {
		return p.looksLikeNextHead(func() error {
			_, err := p.parsePattern()
			return err
		})
	}
}

func (p *parser) exprHeadLookahead() func() bool {
	return func() bool {
		return p.looksLikeNextHead(func() error {
			_, err := p.parseExpr(precLowest)
			return err
		})
	}
}

// --- case ---

func (p *parser) parseCase() (ast.Expr, error) {
	off := p.advance().Offset // 'case'
	subject, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	var branches []ast.CaseBranch
	for !p.at(token.KwEnd) {
		branch, err := p.parseCaseBranch()
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.Case{Subject: subject, Branches: branches, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseCaseBranch() (ast.CaseBranch, error) {
	pattern, err := p.parsePattern()
	if err != nil {
		return ast.CaseBranch{}, err
	}
	var guard ast.Expr
	if p.at(token.KwWhen) {
		p.advance()
		guard, err = p.parseExpr(precOr)
		if err != nil {
			return ast.CaseBranch{}, err
		}
	}
	if _, err := p.expect(token.Arrow); err != nil {
		return ast.CaseBranch{}, err
	}
	body, err := p.parseBranchBody(p.patternHeadLookahead())
	if err != nil {
		return ast.CaseBranch{}, err
	}
	return ast.CaseBranch{Pattern: pattern, Guard: guard, Body: body}, nil
}

// --- if / unless ---

func (p *parser) parseIf() (ast.Expr, error) {
	off := p.advance().Offset // 'if'
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	thenExpr, elseExpr, err := p.parseDoElseEnd()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: thenExpr, Else: elseExpr, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseUnless() (ast.Expr, error) {
	off := p.advance().Offset // 'unless'
	cond, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}
	thenExpr, elseExpr, err := p.parseDoElseEnd()
	if err != nil {
		return nil, err
	}
	return &ast.Unless{Cond: cond, Then: thenExpr, Else: elseExpr, Pos: ast.Pos{Off: off}}, nil
}

// parseDoElseEnd parses `do <body> [else <body>] end`, wrapping each body's
// expression sequence in an implicit block value (the last expression's
// value, or nil if empty) since If/Unless hold a single Then/Else Expr.
func (p *parser) parseDoElseEnd() (ast.Expr, ast.Expr, error) {
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, nil, err
	}
	thenBody, err := p.parseBlockBody()
	if err != nil {
		return nil, nil, err
	}
	var elseExpr ast.Expr
	if p.at(token.KwElse) {
		p.advance()
		elseBody, err := p.parseBlockBody()
		if err != nil {
			return nil, nil, err
		}
		elseExpr = blockExpr(elseBody)
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, nil, err
	}
	return blockExpr(thenBody), elseExpr, nil
}

// blockExpr folds a body's expressions into a single value: a lone
// expression is returned as-is (the common case); an empty body yields
// Nil; a multi-expression body is sequenced via nested Case subjects that
// discard all but the final result, matching how `do...end` blocks behave
// as single-value expressions elsewhere in the language.
func blockExpr(body []ast.Expr) ast.Expr {
	if len(body) == 0 {
		return &ast.Nil{}
	}
	if len(body) == 1 {
		return body[0]
	}
	last := body[len(body)-1]
	result := last
	for i := len(body) - 2; i >= 0; i-- {
		result = &ast.Case{
			Subject:  body[i],
			Branches: []ast.CaseBranch{{Pattern: &ast.Wildcard{}, Body: []ast.Expr{result}}},
			Pos:      ast.Pos{Off: body[i].Offset()},
		}
	}
	return result
}

// --- cond ---

func (p *parser) parseCond() (ast.Expr, error) {
	off := p.advance().Offset // 'cond'
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	var clauses []ast.CondClause
	for !p.at(token.KwEnd) {
		cond, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Arrow); err != nil {
			return nil, err
		}
		body, err := p.parseBranchBody(p.exprHeadLookahead())
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.CondClause{Cond: cond, Body: body})
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.Cond{Clauses: clauses, Pos: ast.Pos{Off: off}}, nil
}

// --- with ---

func (p *parser) parseWith() (ast.Expr, error) {
	off := p.advance().Offset // 'with'
	var clauses []ast.WithClause
	for {
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LeftArrow); err != nil {
			return nil, err
		}
		value, err := p.parseExpr(precPipe)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ast.WithClause{Pattern: pattern, Value: value})
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}
	var elseBranches []ast.CaseBranch
	if p.at(token.KwElse) {
		p.advance()
		for !p.at(token.KwEnd) {
			branch, err := p.parseCaseBranch()
			if err != nil {
				return nil, err
			}
			elseBranches = append(elseBranches, branch)
		}
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.With{Clauses: clauses, Body: body, Else: elseBranches, Pos: ast.Pos{Off: off}}, nil
}

// --- for ---

func (p *parser) parseFor() (ast.Expr, error) {
	off := p.advance().Offset // 'for'
	var clauses []ast.ForClause
	var filters []ast.Expr
	var into, reduce ast.Expr
	reduceVar := ""

	for {
		if p.at(token.IDENT) && p.peekIsColon() && (p.cur().Lexeme == "into" || p.cur().Lexeme == "reduce") {
			break
		}
		if p.isGeneratorClauseAhead() {
			pattern, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.LeftArrow); err != nil {
				return nil, err
			}
			source, err := p.parseExpr(precPipe)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, ast.ForClause{Pattern: pattern, Source: source})
		} else {
			filter, err := p.parseExpr(precPipe)
			if err != nil {
				return nil, err
			}
			filters = append(filters, filter)
		}
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}

	for p.at(token.IDENT) && p.peekIsColon() {
		key := p.advance()
		p.advance() // ':'
		switch key.Lexeme {
		case "into":
			v, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			into = v
		case "reduce":
			v, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			reduce = v
		default:
			return nil, p.errorf("unsupported for option '%s'; supported options: into:/reduce:", key.Lexeme)
		}
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if into != nil && reduce != nil {
		return nil, p.errorf("for comprehension cannot combine 'into:' and 'reduce:'")
	}

	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	if reduce != nil {
		accVar, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		reduceVar = accVar.Lexeme
		if _, err := p.expect(token.Arrow); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.For{
		Clauses: clauses, Filters: filters, Body: blockExpr(body),
		Into: into, Reduce: reduce, ReduceVar: reduceVar,
		Pos: ast.Pos{Off: off},
	}, nil
}

// isGeneratorClauseAhead reports whether the upcoming tokens form a
// `pattern <- source` generator clause rather than a boolean filter
// expression.
func (p *parser) isGeneratorClauseAhead() bool {
	mark := p.snapshot()
	defer p.restore(mark)
	if _, err := p.parsePattern(); err != nil {
		return false
	}
	return p.at(token.LeftArrow)
}

// --- try ---

func (p *parser) parseTry() (ast.Expr, error) {
	off := p.advance().Offset // 'try'
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	body, err := p.parseBranchBody(func() bool { return false })
	if err != nil {
		return nil, err
	}

	var rescues []ast.RescueClause
	if p.at(token.KwRescue) {
		p.advance()
		for {
			clause, err := p.parseRescueClause()
			if err != nil {
				return nil, err
			}
			rescues = append(rescues, clause)
			if p.at(token.KwAfter) || p.at(token.KwEnd) {
				break
			}
		}
	}

	var after []ast.Expr
	if p.at(token.KwAfter) {
		p.advance()
		after, err = p.parseBlockBody()
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.Try{Body: body, Rescues: rescues, After: after, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseRescueClause() (ast.RescueClause, error) {
	binding, err := p.expect(token.IDENT)
	if err != nil {
		return ast.RescueClause{}, err
	}
	if !(p.at(token.IDENT) && p.cur().Lexeme == "in") {
		return ast.RescueClause{}, p.errorf("expected 'in', found %s", p.cur().Kind)
	}
	p.advance() // 'in'
	module, err := p.parseModulePath()
	if err != nil {
		return ast.RescueClause{}, err
	}
	if _, err := p.expect(token.Arrow); err != nil {
		return ast.RescueClause{}, err
	}
	body, err := p.parseBranchBody(func() bool { return p.looksLikeRescueHead() })
	if err != nil {
		return ast.RescueClause{}, err
	}
	return ast.RescueClause{Module: module, Binding: binding.Lexeme, Body: body}, nil
}

// --- raise ---

func (p *parser) parseRaise() (ast.Expr, error) {
	off := p.advance().Offset // 'raise'
	module, err := p.parseModulePath()
	if err != nil {
		return nil, err
	}
	var fields []ast.KeywordEntry
	if p.at(token.Comma) {
		p.advance()
		fields, err = p.parseKeywordEntries()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Raise{Module: module, Fields: fields, Pos: ast.Pos{Off: off}}, nil
}

// --- fn literal ---

func (p *parser) parseFn() (ast.Expr, error) {
	off := p.advance().Offset // 'fn'
	var params []ast.Param
	if p.at(token.LParen) {
		p.advance()
		for !p.at(token.RParen) {
			param, err := p.parseParam()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if p.at(token.Comma) {
				p.advance()
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}
	var guard ast.Expr
	if p.at(token.KwWhen) {
		p.advance()
		g, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		guard = g
	}
	if _, err := p.expect(token.Arrow); err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return &ast.Fn{Params: params, Guard: guard, Body: body, Pos: ast.Pos{Off: off}}, nil
}
