// Package token defines the lexical token kinds shared by the lexer and
// parser.
package token

// Kind enumerates every token kind the lexer can produce.
type Kind int

const (
	EOF Kind = iota
	ILLEGAL

	// literals
	INT
	FLOAT
	STRING
	STRINGPART // a segment of an interpolated string, followed by the embedded expression's tokens
	ATOM
	BOOL
	NIL
	IDENT

	// keywords
	KwDefmodule
	KwDef
	KwDefp
	KwDo
	KwEnd
	KwCase
	KwFn
	KwWhen
	KwTry
	KwRescue
	KwAfter
	KwFor
	KwWith
	KwCond
	KwIf
	KwUnless
	KwElse
	KwAlias
	KwImport
	KwRequire
	KwUse
	KwDefprotocol
	KwDefimpl
	KwDefstruct
	KwRaise

	// punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Dot
	Colon
	Semicolon
	At
	Question
	Pipe // the single `|` used in struct update / cons patterns

	// operators
	Arrow       // ->
	FatArrow    // =>
	LeftArrow   // <-
	PipeOp      // |>
	OrOr        // ||
	AndAnd      // &&
	PlusPlus    // ++
	MinusMinus  // --
	Diamond     // <>
	DotDot      // ..
	DotDotSlash // ..//
	DoubleColon // ::
	Amp         // &
	Assign      // =
	Eq          // ==
	NotEq       // !=
	LtEq        // <=
	GtEq        // >=
	Lt          // <
	Gt          // >
	Plus
	Minus
	Star
	Slash
	Percent
	Bang // !
	Caret
)

var names = map[Kind]string{
	EOF: "EOF", ILLEGAL: "ILLEGAL",
	INT: "INT", FLOAT: "FLOAT", STRING: "STRING", STRINGPART: "STRINGPART",
	ATOM: "ATOM", BOOL: "BOOL", NIL: "NIL", IDENT: "IDENT",
	KwDefmodule: "defmodule", KwDef: "def", KwDefp: "defp", KwDo: "do", KwEnd: "end",
	KwCase: "case", KwFn: "fn", KwWhen: "when", KwTry: "try", KwRescue: "rescue",
	KwAfter: "after", KwFor: "for", KwWith: "with", KwCond: "cond", KwIf: "if",
	KwUnless: "unless", KwElse: "else", KwAlias: "alias", KwImport: "import", KwRequire: "require",
	KwUse: "use", KwDefprotocol: "defprotocol", KwDefimpl: "defimpl",
	KwDefstruct: "defstruct", KwRaise: "raise",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Comma: ",", Dot: ".", Colon: ":", Semicolon: ";", At: "@", Question: "?", Pipe: "|",
	Arrow: "->", FatArrow: "=>", LeftArrow: "<-", PipeOp: "|>", OrOr: "||", AndAnd: "&&",
	PlusPlus: "++", MinusMinus: "--", Diamond: "<>", DotDot: "..", DotDotSlash: "..//",
	DoubleColon: "::", Amp: "&", Assign: "=", Eq: "==", NotEq: "!=", LtEq: "<=", GtEq: ">=",
	Lt: "<", Gt: ">", Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Bang: "!", Caret: "^",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Keywords maps keyword lexemes to their token kind.
var Keywords = map[string]Kind{
	"defmodule": KwDefmodule, "def": KwDef, "defp": KwDefp, "do": KwDo, "end": KwEnd,
	"case": KwCase, "fn": KwFn, "when": KwWhen, "try": KwTry, "rescue": KwRescue,
	"after": KwAfter, "for": KwFor, "with": KwWith, "cond": KwCond, "if": KwIf,
	"unless": KwUnless, "else": KwElse, "alias": KwAlias, "import": KwImport, "require": KwRequire,
	"use": KwUse, "defprotocol": KwDefprotocol, "defimpl": KwDefimpl,
	"defstruct": KwDefstruct, "raise": KwRaise,
	"true": BOOL, "false": BOOL, "nil": NIL,
}

// Token is one lexical unit: its kind, literal lexeme (for literals and
// identifiers), and byte offset into the source file.
type Token struct {
	Kind   Kind
	Lexeme string
	Offset int
}
