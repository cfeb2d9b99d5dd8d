package source

import (
	"fmt"
	"strings"
)

// Diagnostic codes. E1001-E1015 are resolver/visibility, E2001 is the lone
// typing diagnostic, E3001-E3002 are result/case exhaustiveness.
const (
	EUndefinedSymbol          = "E1001"
	EPrivateFunctionCall      = "E1002"
	EDuplicateModule          = "E1003"
	EUndefinedStructModule    = "E1004"
	EUndefinedStructField     = "E1005"
	EUndefinedProtocol        = "E1008"
	EDuplicateImplTarget      = "E1009"
	EMissingProtocolFunction  = "E1010"
	EUnknownUseTarget         = "E1011"
	EUnknownRequireTarget     = "E1012"
	EFilterExcludedCall       = "E1013"
	EAmbiguousImport          = "E1014"
	EGuardBuiltinOutsideGuard = "E1015"

	ETypeMismatch           = "E2001"
	EQuestionRequiresResult = "E3001"
	ENonExhaustiveCase      = "E3002"
)

// Diagnostic is a stable, source-anchored compiler error. It is the Go
// counterpart of the original's per-phase error enums, unified behind one
// renderable shape so the top-level driver can print any of them uniformly.
type Diagnostic struct {
	Code      string // stable E#### code, or "" for untagged lexical/syntax errors
	Message   string
	Module    string // enclosing module name, if known
	Function  string // enclosing function name, if known
	Offset    int
	HasOffset bool
	file      *File // set by WithFile to enable snippet rendering
}

// New creates an untagged diagnostic (lexical/syntax errors have no stable
// code in this spec).
func New(message string) *Diagnostic {
	return &Diagnostic{Message: message}
}

// Coded creates a diagnostic carrying one of the stable E#### codes.
func Coded(code, message string) *Diagnostic {
	return &Diagnostic{Code: code, Message: message}
}

// At returns a copy of d anchored to a byte offset.
func (d *Diagnostic) At(offset int) *Diagnostic {
	c := *d
	c.Offset = offset
	c.HasOffset = true
	return &c
}

// In returns a copy of d annotated with the enclosing module/function.
func (d *Diagnostic) In(module, function string) *Diagnostic {
	c := *d
	c.Module = module
	c.Function = function
	return &c
}

// WithFile attaches the source file used to render a snippet.
func (d *Diagnostic) WithFile(f *File) *Diagnostic {
	c := *d
	c.file = f
	return &c
}

func (d *Diagnostic) Error() string {
	var msg string
	if d.Code != "" {
		msg = fmt.Sprintf("error: [%s] %s", d.Code, d.Message)
	} else {
		msg = fmt.Sprintf("error: %s", d.Message)
	}
	if d.Module != "" && d.Function != "" {
		msg += fmt.Sprintf(" in %s.%s", d.Module, d.Function)
	}
	if d.HasOffset && d.file != nil {
		pos := d.file.Position(d.Offset)
		msg += fmt.Sprintf("\n  --> line %d, column %d\n%s", pos.Line, pos.Column, indent(d.file.Snippet(d.Offset)))
	} else if d.HasOffset {
		msg += fmt.Sprintf(" at offset %d", d.Offset)
	}
	return msg
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
