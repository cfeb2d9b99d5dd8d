package parser

import (
	"strconv"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/token"
)

// Precedence levels, loosest to tightest (spec.md §4.2, documented from
// tight to loose; reversed here so higher constants bind tighter).
const (
	precLowest = iota
	precAssign // =
	precPipe   // |>
	precOr     // or / ||
	precAnd    // and / &&
	precComparison
	precRange        // .. / ..//
	precConcatAppend // ++ / --
	precDiamond      // <>
	precAdd          // + -
	precMul          // * / %
	precUnary        // not / - / &
	precCall         // member access / call
)

func (p *parser) parseExpr(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(left, minPrec)
}

func (p *parser) parseBinaryRHS(left ast.Expr, minPrec int) (ast.Expr, error) {
	for {
		op, prec, rightAssoc, ok := p.infixOp()
		if !ok || prec < minPrec {
			return left, nil
		}
		offset := p.advance().Offset

		if op == "=" {
			rhs, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			left = &ast.Call{Callee: &ast.Bind{Name: "__match__"}, Args: []ast.Expr{left, rhs}, Pos: ast.Pos{Off: offset}}
			continue
		}
		if op == "|>" {
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			rhs, err = p.parseBinaryRHS(rhs, precPipe+1)
			if err != nil {
				return nil, err
			}
			left = &ast.Pipe{Lhs: left, Rhs: rhs, Pos: ast.Pos{Off: offset}}
			continue
		}

		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		right, err = p.parseBinaryRHS(right, nextMin)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: op, Left: left, Right: right, Pos: ast.Pos{Off: offset}}
	}
}

func (p *parser) infixOp() (op string, prec int, rightAssoc bool, ok bool) {
	switch p.cur().Kind {
	case token.Assign:
		return "=", precAssign, true, true
	case token.PipeOp:
		return "|>", precPipe, false, true
	case token.OrOr:
		return "||", precOr, false, true
	case token.IDENT:
		if p.cur().Lexeme == "or" {
			return "or", precOr, false, true
		}
		if p.cur().Lexeme == "and" {
			return "and", precAnd, false, true
		}
		return "", 0, false, false
	case token.AndAnd:
		return "&&", precAnd, false, true
	case token.Eq:
		return "==", precComparison, false, true
	case token.NotEq:
		return "!=", precComparison, false, true
	case token.Lt:
		return "<", precComparison, false, true
	case token.Gt:
		return ">", precComparison, false, true
	case token.LtEq:
		return "<=", precComparison, false, true
	case token.GtEq:
		return ">=", precComparison, false, true
	case token.DotDot:
		return "..", precRange, false, true
	case token.DotDotSlash:
		return "..//", precRange, false, true
	case token.PlusPlus:
		return "++", precConcatAppend, false, true
	case token.MinusMinus:
		return "--", precConcatAppend, false, true
	case token.Diamond:
		return "<>", precDiamond, false, true
	case token.Plus:
		return "+", precAdd, false, true
	case token.Minus:
		return "-", precAdd, false, true
	case token.Star:
		return "*", precMul, false, true
	case token.Slash:
		return "/", precMul, false, true
	case token.Percent:
		return "%", precMul, false, true
	default:
		return "", 0, false, false
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	switch {
	case p.at(token.Minus):
		off := p.advance().Offset
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", Expr: operand, Pos: ast.Pos{Off: off}}, nil
	case p.at(token.Bang), p.at(token.IDENT) && p.cur().Lexeme == "not":
		off := p.advance().Offset
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "not", Expr: operand, Pos: ast.Pos{Off: off}}, nil
	case p.at(token.Amp):
		return p.parseCapture()
	default:
		return p.parsePostfix()
	}
}

func (p *parser) parseCapture() (ast.Expr, error) {
	off := p.advance().Offset // '&'
	if p.at(token.LParen) {
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		return &ast.CaptureShorthand{Expr: inner, Pos: ast.Pos{Off: off}}, nil
	}
	// &N inside a capture shorthand body: the N-th synthesized parameter.
	if p.at(token.INT) {
		n := p.advance()
		return &ast.Bind{Name: "&" + n.Lexeme, Pos: ast.Pos{Off: off}}, nil
	}
	// &Module.name/arity or &name/arity
	module := ""
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	for p.at(token.Dot) {
		p.advance()
		next, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if module == "" {
			module = name.Lexeme
		} else {
			module += "." + name.Lexeme
		}
		name = next
	}
	if _, err := p.expect(token.Slash); err != nil {
		return nil, err
	}
	arity, err := p.expect(token.INT)
	if err != nil {
		return nil, err
	}
	return &ast.CaptureNamed{Module: module, Name: name.Lexeme, Arity: mustInt(arity.Lexeme), Pos: ast.Pos{Off: off}}, nil
}

// parsePostfix handles call/member-access chaining after a primary
// expression: `.field`, `.(args)`, `[key]`, and bare `name(args)` calls.
func (p *parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.LParen) && isCallable(expr):
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			expr = &ast.Call{Callee: expr, Args: args, Pos: ast.Pos{Off: expr.Offset()}}
		case p.at(token.Dot):
			off := p.advance().Offset
			if p.at(token.LParen) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &ast.Call{Callee: expr, Args: args, Pos: ast.Pos{Off: off}}
				continue
			}
			field, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.DotAccess{Base: expr, Field: field.Lexeme, Pos: ast.Pos{Off: off}}
		case p.at(token.LBracket):
			off := p.advance().Offset
			key, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = &ast.Access{Base: expr, Key: key, Pos: ast.Pos{Off: off}}
		case p.at(token.Question):
			off := p.advance().Offset
			expr = &ast.Question{Expr: expr, Pos: ast.Pos{Off: off}}
		default:
			return expr, nil
		}
	}
}

func isCallable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Bind, *ast.DotAccess:
		return true
	default:
		return false
	}
}

func (p *parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(token.RParen) {
		arg, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
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
	case token.LBracket:
		return p.parseList()
	case token.LBrace:
		return p.parseTupleOrMap()
	case token.Caret:
		p.advance()
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Pin{Name: name.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
	case token.IDENT:
		return p.parseIdentPrimary()
	case token.LParen:
		p.advance()
		inner, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case token.KwFn:
		return p.parseFn()
	case token.KwCase:
		return p.parseCase()
	case token.KwIf:
		return p.parseIf()
	case token.KwUnless:
		return p.parseUnless()
	case token.KwCond:
		return p.parseCond()
	case token.KwWith:
		return p.parseWith()
	case token.KwFor:
		return p.parseFor()
	case token.KwTry:
		return p.parseTry()
	case token.KwRaise:
		return p.parseRaise()
	default:
		return nil, p.errorf("expected expression, found %s", tok.Kind)
	}
}

func (p *parser) parseInterpolatedString() (ast.Expr, error) {
	off := p.cur().Offset
	var segments []ast.Segment
	for {
		tok := p.advance() // STRINGPART or STRING
		if tok.Lexeme != "" || tok.Kind == token.STRING {
			segments = append(segments, ast.Segment{Text: tok.Lexeme})
		}
		if tok.Kind == token.STRING {
			break
		}
		expr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		segments = append(segments, ast.Segment{Expr: expr})
	}
	return &ast.InterpolatedString{Segments: segments, Pos: ast.Pos{Off: off}}, nil
}

func (p *parser) parseList() (ast.Expr, error) {
	off := p.advance().Offset // '['
	var elems []ast.Expr
	for !p.at(token.RBracket) {
		e, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return &ast.List{Elems: elems, Pos: ast.Pos{Off: off}}, nil
}

// parseTupleOrMap parses `{a, b}` as a Tuple or `%{k => v}`-style (without
// the leading `%`, accepted bare as `{k => v, ...}`) as a Map, disambiguated
// by the presence of `=>` after the first element, and `key: value` pairs
// as a Keyword list.
func (p *parser) parseTupleOrMap() (ast.Expr, error) {
	off := p.advance().Offset // '{'
	if p.at(token.RBrace) {
		p.advance()
		return &ast.Tuple{Pos: ast.Pos{Off: off}}, nil
	}

	if p.at(token.IDENT) && p.peekIsColon() {
		entries, err := p.parseKeywordEntries()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.Keyword{Entries: entries, Pos: ast.Pos{Off: off}}, nil
	}

	first, err := p.parseExpr(precAssign)
	if err != nil {
		return nil, err
	}
	if p.at(token.FatArrow) {
		p.advance()
		val, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		entries := []ast.MapEntry{{Key: first, Value: val}}
		for p.at(token.Comma) {
			p.advance()
			k, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.FatArrow); err != nil {
				return nil, err
			}
			v, err := p.parseExpr(precAssign)
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
		e, err := p.parseExpr(precAssign)
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

func (p *parser) parseIdentPrimary() (ast.Expr, error) {
	tok := p.advance()
	if tok.Lexeme == "_" {
		return &ast.Wildcard{Pos: ast.Pos{Off: tok.Offset}}, nil
	}
	if p.at(token.Dot) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.IDENT {
		// Qualified module path used as a struct literal or call target;
		// fold dotted segments then let parsePostfix handle field/call.
		name := tok.Lexeme
		for p.at(token.Dot) {
			next := p.toks[p.pos+1]
			if !isUpper(next.Lexeme) && !(p.pos+2 < len(p.toks) && p.toks[p.pos+2].Kind == token.LBrace) {
				break
			}
			p.advance()
			seg := p.advance()
			name += "." + seg.Lexeme
		}
		if p.at(token.LBrace) && isUpper(lastSegment(name)) {
			return p.parseStructLiteralOrUpdate(name, tok.Offset)
		}
		return &ast.Bind{Name: name, Pos: ast.Pos{Off: tok.Offset}}, nil
	}
	if p.at(token.LBrace) && isUpper(tok.Lexeme) {
		return p.parseStructLiteralOrUpdate(tok.Lexeme, tok.Offset)
	}
	return &ast.Bind{Name: tok.Lexeme, Pos: ast.Pos{Off: tok.Offset}}, nil
}

func (p *parser) parseStructLiteralOrUpdate(module string, off int) (ast.Expr, error) {
	p.advance() // '{'
	if p.at(token.Pipe) {
		p.advance()
		base, err := p.parseExpr(precAssign)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Pipe); err != nil {
			return nil, err
		}
		fields, err := p.parseKeywordEntries()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.StructUpdate{Module: module, Base: base, Fields: fields, Pos: ast.Pos{Off: off}}, nil
	}
	fields, err := p.parseKeywordEntries()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.StructLiteral{Module: module, Fields: fields, Pos: ast.Pos{Off: off}}, nil
}

func isUpper(s string) bool { return s != "" && s[0] >= 'A' && s[0] <= 'Z' }

func lastSegment(s string) string {
	last := s
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			last = s[i+1:]
			break
		}
	}
	return last
}

func mustInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
