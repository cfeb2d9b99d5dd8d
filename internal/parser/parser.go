// Package parser builds an ast.Module tree from a token stream.
package parser

import (
	"fmt"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/lexer"
	"github.com/tonic-lang/tonic/internal/token"
)

// Error is a syntactic failure: "expected X, found Y" anchored to the
// offending token.
type Error struct {
	Message string
	Offset  int
}

func (e *Error) Error() string { return fmt.Sprintf("%s at offset %d", e.Message, e.Offset) }

// Parse lexes and parses src into zero or more top-level modules.
func Parse(src []byte) ([]*ast.Module, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var modules []*ast.Module
	for !p.at(token.EOF) {
		mod, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}
	return modules, nil
}

type parser struct {
	toks []token.Token
	pos  int
}

func (p *parser) cur() token.Token     { return p.toks[p.pos] }
func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }
func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, &Error{
			Message: fmt.Sprintf("expected %s, found %s", k, p.cur().Kind),
			Offset:  p.cur().Offset,
		}
	}
	return p.advance(), nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...), Offset: p.cur().Offset}
}

// parseModule parses `defmodule Name do <body> end`.
func (p *parser) parseModule() (*ast.Module, error) {
	start, err := p.expect(token.KwDefmodule)
	if err != nil {
		return nil, err
	}
	name, err := p.parseModulePath()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}

	mod := &ast.Module{Name: name, Offset: start.Offset}
	for !p.at(token.KwEnd) && !p.at(token.EOF) {
		if err := p.parseModuleForm(mod); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}
	return mod, nil
}

func (p *parser) parseModulePath() (string, error) {
	tok, err := p.expect(token.IDENT)
	if err != nil {
		return "", err
	}
	name := tok.Lexeme
	for p.at(token.Dot) {
		p.advance()
		part, err := p.expect(token.IDENT)
		if err != nil {
			return "", err
		}
		name += "." + part.Lexeme
	}
	return name, nil
}

func (p *parser) parseModuleForm(mod *ast.Module) error {
	switch p.cur().Kind {
	case token.KwAlias:
		return p.parseAlias(mod)
	case token.KwImport:
		return p.parseImport(mod)
	case token.KwRequire:
		return p.parseRequire(mod)
	case token.KwUse:
		return p.parseUse(mod)
	case token.KwDefprotocol:
		return p.parseDefprotocol(mod)
	case token.KwDefimpl:
		return p.parseDefimpl(mod)
	case token.KwDefstruct:
		return p.parseDefstruct(mod)
	case token.At:
		return p.parseAttribute(mod)
	case token.KwDef, token.KwDefp:
		fn, err := p.parseFunction()
		if err != nil {
			return err
		}
		mod.Functions = append(mod.Functions, fn)
		return nil
	default:
		return p.errorf("expected module form, found %s", p.cur().Kind)
	}
}

func (p *parser) parseAlias(mod *ast.Module) error {
	off := p.advance().Offset // 'alias'
	name, err := p.parseModulePath()
	if err != nil {
		return err
	}
	form := ast.AliasForm{Module: name, Offset: off}
	form.As = lastSegment(name)
	if p.at(token.Comma) {
		p.advance()
		key, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		if key.Lexeme != "as" {
			return &Error{
				Message: fmt.Sprintf("unsupported alias option '%s'; supported syntax: alias Module, as: Name", key.Lexeme),
				Offset:  key.Offset,
			}
		}
		if _, err := p.expect(token.Colon); err != nil {
			return err
		}
		asName, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		form.As = asName.Lexeme
	}
	mod.Aliases = append(mod.Aliases, form)
	return nil
}

func (p *parser) parseImport(mod *ast.Module) error {
	off := p.advance().Offset
	name, err := p.parseModulePath()
	if err != nil {
		return err
	}
	form := ast.ImportForm{Module: name, Offset: off}
	for p.at(token.Comma) {
		p.advance()
		key, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return err
		}
		list, err := p.parseNameArityList()
		if err != nil {
			return err
		}
		if form.Filter == nil {
			form.Filter = &ast.ImportFilter{}
		}
		switch key.Lexeme {
		case "only":
			form.Filter.Only = list
		case "except":
			form.Filter.Except = list
		default:
			return &Error{
				Message: fmt.Sprintf("unsupported import option '%s'; supported syntax: only:/except:", key.Lexeme),
				Offset:  key.Offset,
			}
		}
	}
	mod.Imports = append(mod.Imports, form)
	return nil
}

func (p *parser) parseNameArityList() ([]ast.NameArity, error) {
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var result []ast.NameArity
	for !p.at(token.RBracket) {
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		arity, err := p.expect(token.INT)
		if err != nil {
			return nil, err
		}
		result = append(result, ast.NameArity{Name: name.Lexeme, Arity: mustInt(arity.Lexeme)})
		if p.at(token.Comma) {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *parser) parseRequire(mod *ast.Module) error {
	off := p.advance().Offset
	name, err := p.parseModulePath()
	if err != nil {
		return err
	}
	if p.at(token.Comma) {
		return p.errorf("require does not support options")
	}
	mod.Requires = append(mod.Requires, ast.RequireForm{Module: name, Offset: off})
	return nil
}

func (p *parser) parseUse(mod *ast.Module) error {
	off := p.advance().Offset
	name, err := p.parseModulePath()
	if err != nil {
		return err
	}
	if p.at(token.Comma) {
		return p.errorf("use does not support options")
	}
	mod.Uses = append(mod.Uses, ast.UseForm{Module: name, Offset: off})
	return nil
}

func (p *parser) parseDefprotocol(mod *ast.Module) error {
	off := p.advance().Offset
	name, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return err
	}
	var fns []ast.NameArity
	for !p.at(token.KwEnd) {
		if _, err := p.expect(token.KwDef); err != nil {
			return err
		}
		fnName, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		if _, err := p.expect(token.LParen); err != nil {
			return err
		}
		arity := 0
		for !p.at(token.RParen) {
			if _, err := p.expect(token.IDENT); err != nil {
				return err
			}
			arity++
			if p.at(token.Comma) {
				p.advance()
			}
		}
		p.advance() // ')'
		fns = append(fns, ast.NameArity{Name: fnName.Lexeme, Arity: arity})
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return err
	}
	mod.Protocols = append(mod.Protocols, ast.ProtocolForm{Name: name.Lexeme, Functions: fns, Offset: off})
	return nil
}

func (p *parser) parseDefimpl(mod *ast.Module) error {
	off := p.advance().Offset
	protocol, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.Comma); err != nil {
		return err
	}
	forKey, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	if forKey.Lexeme != "for" {
		return &Error{Message: "expected 'for:' option in defimpl", Offset: forKey.Offset}
	}
	if _, err := p.expect(token.Colon); err != nil {
		return err
	}
	target, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	if _, err := p.expect(token.KwDo); err != nil {
		return err
	}
	var fns []*ast.Function
	for !p.at(token.KwEnd) {
		fn, err := p.parseFunction()
		if err != nil {
			return err
		}
		fns = append(fns, fn)
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return err
	}
	mod.Impls = append(mod.Impls, ast.ImplForm{Protocol: protocol.Lexeme, Target: target.Lexeme, Functions: fns, Offset: off})
	return nil
}

func (p *parser) parseDefstruct(mod *ast.Module) error {
	off := p.advance().Offset
	fields, err := p.parseKeywordEntries()
	if err != nil {
		return err
	}
	mod.Structs = append(mod.Structs, ast.StructForm{Fields: fields, Offset: off})
	return nil
}

// parseKeywordEntries parses a bare `key: value, key2: value2` list not
// wrapped in brackets, as used by defstruct and raise.
func (p *parser) parseKeywordEntries() ([]ast.KeywordEntry, error) {
	var entries []ast.KeywordEntry
	for p.at(token.IDENT) && p.peekIsColon() {
		key := p.advance()
		p.advance() // ':'
		var value ast.Expr
		if !p.atEntryBoundary() {
			v, err := p.parseExpr(precAssign)
			if err != nil {
				return nil, err
			}
			value = v
		}
		entries = append(entries, ast.KeywordEntry{Key: key.Lexeme, Value: value})
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return entries, nil
}

func (p *parser) peekIsColon() bool {
	return p.pos+1 < len(p.toks) && p.toks[p.pos+1].Kind == token.Colon
}

func (p *parser) atEntryBoundary() bool {
	switch p.cur().Kind {
	case token.Comma, token.KwEnd, token.RParen, token.RBracket, token.RBrace, token.EOF:
		return true
	default:
		return false
	}
}

func (p *parser) parseAttribute(mod *ast.Module) error {
	off := p.advance().Offset // '@'
	name, err := p.expect(token.IDENT)
	if err != nil {
		return err
	}
	var value ast.Expr
	if !p.atEntryBoundary() && !p.at(token.KwDo) {
		value, err = p.parseExpr(precAssign)
		if err != nil {
			return err
		}
	}
	mod.Attributes = append(mod.Attributes, ast.Attribute{Name: name.Lexeme, Value: value, Offset: off})
	return nil
}

// parseFunction parses `def|defp name(params) [when guard] do body end`.
func (p *parser) parseFunction() (*ast.Function, error) {
	kw := p.advance()
	vis := ast.Public
	if kw.Kind == token.KwDefp {
		vis = ast.Private
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
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
		guard, err = p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.KwDo); err != nil {
		return nil, err
	}
	body, err := p.parseBlockBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KwEnd); err != nil {
		return nil, err
	}

	return &ast.Function{
		Name: name.Lexeme, Visibility: vis, Params: params,
		Guard: guard, Body: body, Offset: kw.Offset,
	}, nil
}

func (p *parser) parseParam() (ast.Param, error) {
	pat, err := p.parsePattern()
	if err != nil {
		return ast.Param{}, err
	}
	param := ast.Param{}
	if bind, ok := pat.(*ast.Bind); ok {
		param.Name = bind.Name
	} else {
		param.Pattern = pat
	}
	if p.at(token.Assign) {
		p.advance()
		def, err := p.parseExpr(precAssign)
		if err != nil {
			return ast.Param{}, err
		}
		param.Default = def
	}
	return param, nil
}

// parseBlockBody parses a `;`/newline-insensitive sequence of expressions
// until the enclosing terminator keyword.
func (p *parser) parseBlockBody() ([]ast.Expr, error) {
	var exprs []ast.Expr
	for !p.atBlockEnd() {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		for p.at(token.Semicolon) {
			p.advance()
		}
	}
	return exprs, nil
}

func (p *parser) atBlockEnd() bool {
	switch p.cur().Kind {
	case token.KwEnd, token.KwElse, token.KwRescue, token.KwAfter, token.EOF:
		return true
	default:
		return false
	}
}
