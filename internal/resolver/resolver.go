// Package resolver walks a parsed program, resolving bare and qualified
// calls against imports/aliases/visibility, checking protocol/struct/guard
// constraints, and assigning the stable E-series diagnostic codes.
package resolver

import (
	"fmt"
	"sort"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/source"
)

// guardBuiltins is the closed set of arity-1 functions usable only inside a
// guard expression.
var guardBuiltins = map[string]bool{
	"is_integer": true, "is_float": true, "is_number": true, "is_atom": true,
	"is_binary": true, "is_list": true, "is_tuple": true, "is_map": true, "is_nil": true,
}

type function struct {
	mod  *moduleInfo
	decl *ast.Function
}

type moduleInfo struct {
	name      string
	ast       *ast.Module
	functions map[string][]*function // by name, all arities (ordered by arity)
	aliases   map[string]string      // As -> full module path
	imports   []*ast.ImportForm
	protocols map[string]*ast.ProtocolForm
	impls     map[string]map[string]*ast.ImplForm // protocol -> target -> impl
	structs   *ast.StructForm
}

// program is the internal module table built while validating a parsed
// source file against its own imports, aliases, and protocol/struct
// constraints; it does not survive past Resolve.
type program struct {
	Modules map[string]*moduleInfo
	Order   []string
}

// Resolve validates every module in mods -- import/alias/visibility
// resolution, protocol/struct/guard constraints -- returning the first
// diagnostic encountered (phases short-circuit per the error-handling
// design: at most one error per file). IR lowering operates on the
// already-parsed ASTs directly and does not need Resolve's return value.
func Resolve(mods []*ast.Module) error {
	prog := &program{Modules: map[string]*moduleInfo{}}
	for _, m := range mods {
		if _, dup := prog.Modules[m.Name]; dup {
			return source.Coded(source.EDuplicateModule,
				fmt.Sprintf("duplicate module '%s'", m.Name)).At(m.Offset)
		}
		mi := &moduleInfo{
			name: m.Name, ast: m,
			functions: map[string][]*function{},
			aliases:   map[string]string{},
			protocols: map[string]*ast.ProtocolForm{},
			impls:     map[string]map[string]*ast.ImplForm{},
		}
		for _, a := range m.Aliases {
			as := a.As
			if as == "" {
				as = lastSegment(a.Module)
			}
			mi.aliases[as] = a.Module
		}
		for i := range m.Imports {
			mi.imports = append(mi.imports, &m.Imports[i])
		}
		for i := range m.Protocols {
			mi.protocols[m.Protocols[i].Name] = &m.Protocols[i]
		}
		for i := range m.Structs {
			mi.structs = &m.Structs[i]
		}
		for _, fn := range m.Functions {
			mi.functions[fn.Name] = append(mi.functions[fn.Name], &function{mod: mi, decl: fn})
		}
		prog.Modules[m.Name] = mi
		prog.Order = append(prog.Order, m.Name)
	}
	sort.Strings(prog.Order)

	for _, m := range mods {
		mi := prog.Modules[m.Name]
		for idx := range m.Impls {
			impl := &m.Impls[idx]
			proto, ok := lookupProtocol(prog, impl.Protocol)
			if !ok {
				return source.Coded(source.EUndefinedProtocol,
					fmt.Sprintf("undefined protocol '%s'", impl.Protocol)).At(impl.Offset).In(m.Name, "")
			}
			targets := mi.impls[impl.Protocol]
			if targets == nil {
				targets = map[string]*ast.ImplForm{}
				mi.impls[impl.Protocol] = targets
			}
			if _, dup := targets[impl.Target]; dup {
				return source.Coded(source.EDuplicateImplTarget,
					fmt.Sprintf("duplicate implementation of '%s' for '%s'", impl.Protocol, impl.Target)).At(impl.Offset).In(m.Name, "")
			}
			targets[impl.Target] = impl
			have := map[string]bool{}
			for _, f := range impl.Functions {
				have[fmt.Sprintf("%s/%d", f.Name, len(f.Params))] = true
			}
			for _, sig := range proto.Functions {
				key := fmt.Sprintf("%s/%d", sig.Name, sig.Arity)
				if !have[key] {
					return source.Coded(source.EMissingProtocolFunction,
						fmt.Sprintf("implementation of '%s' for '%s' is missing function '%s'", impl.Protocol, impl.Target, key)).
						At(impl.Offset).In(m.Name, "")
				}
			}
		}
		for _, req := range m.Requires {
			if _, ok := prog.Modules[req.Module]; !ok {
				return source.Coded(source.EUnknownRequireTarget,
					fmt.Sprintf("unknown module required: '%s'", req.Module)).At(req.Offset).In(m.Name, "")
			}
		}
		for _, use := range m.Uses {
			if _, ok := prog.Modules[use.Module]; !ok {
				return source.Coded(source.EUnknownUseTarget,
					fmt.Sprintf("unknown module used: '%s'", use.Module)).At(use.Offset).In(m.Name, "")
			}
		}
	}

	for _, m := range mods {
		mi := prog.Modules[m.Name]
		for _, fn := range m.Functions {
			r := &funcResolver{prog: prog, mod: mi, fn: fn}
			for _, p := range fn.Params {
				r.bind(p.Name)
				if p.Pattern != nil {
					r.bindPattern(p.Pattern)
				}
			}
			if fn.Guard != nil {
				if err := r.walkGuard(fn.Guard); err != nil {
					return err.(*source.Diagnostic).In(m.Name, fn.Name)
				}
			}
			for _, e := range fn.Body {
				if err := r.walk(e); err != nil {
					return err.(*source.Diagnostic).In(m.Name, fn.Name)
				}
			}
		}
	}

	return nil
}

func lookupProtocol(prog *program, name string) (*ast.ProtocolForm, bool) {
	for _, mi := range prog.Modules {
		if p, ok := mi.protocols[name]; ok {
			return p, true
		}
	}
	return nil, false
}

func lastSegment(s string) string {
	last := s
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return last
}

// funcResolver walks one function body resolving Bind/Call references
// against a growing set of locally-bound names.
type funcResolver struct {
	prog   *program
	mod    *moduleInfo
	fn     *ast.Function
	locals map[string]bool
}

func (r *funcResolver) bind(name string) {
	if r.locals == nil {
		r.locals = map[string]bool{}
	}
	r.locals[name] = true
}

func (r *funcResolver) bindPattern(p ast.Expr) {
	switch n := p.(type) {
	case *ast.Bind:
		r.bind(n.Name)
	case *ast.List:
		for _, e := range n.Elems {
			r.bindPattern(e)
		}
	case *ast.Tuple:
		for _, e := range n.Elems {
			r.bindPattern(e)
		}
	case *ast.Map:
		for _, e := range n.Entries {
			r.bindPattern(e.Value)
		}
	case *ast.Keyword:
		for _, e := range n.Entries {
			r.bindPattern(e.Value)
		}
	case *ast.StructLiteral:
		for _, f := range n.Fields {
			r.bindPattern(f.Value)
		}
	}
}

// walkGuard resolves a guard expression and additionally rejects guard
// builtins used outside a guard -- since this *is* a guard, it accepts them.
func (r *funcResolver) walkGuard(e ast.Expr) error {
	return r.walkExpr(e, true)
}

func (r *funcResolver) walk(e ast.Expr) error {
	return r.walkExpr(e, false)
}

func (r *funcResolver) walkExpr(e ast.Expr, inGuard bool) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Bind:
		return r.resolveCall(n.Name, 0, n.Offset(), inGuard)
	case *ast.Call:
		return r.walkCall(n, inGuard)
	case *ast.Pipe:
		if err := r.walkExpr(n.Lhs, inGuard); err != nil {
			return err
		}
		return r.walkExpr(n.Rhs, inGuard)
	case *ast.Unary:
		return r.walkExpr(n.Expr, inGuard)
	case *ast.Binary:
		if err := r.walkExpr(n.Left, inGuard); err != nil {
			return err
		}
		return r.walkExpr(n.Right, inGuard)
	case *ast.List:
		for _, el := range n.Elems {
			if err := r.walkExpr(el, inGuard); err != nil {
				return err
			}
		}
	case *ast.Tuple:
		for _, el := range n.Elems {
			if err := r.walkExpr(el, inGuard); err != nil {
				return err
			}
		}
	case *ast.Map:
		for _, en := range n.Entries {
			if err := r.walkExpr(en.Key, inGuard); err != nil {
				return err
			}
			if err := r.walkExpr(en.Value, inGuard); err != nil {
				return err
			}
		}
	case *ast.Keyword:
		for _, en := range n.Entries {
			if err := r.walkExpr(en.Value, inGuard); err != nil {
				return err
			}
		}
	case *ast.InterpolatedString:
		for _, seg := range n.Segments {
			if seg.Expr != nil {
				if err := r.walkExpr(seg.Expr, inGuard); err != nil {
					return err
				}
			}
		}
	case *ast.StructLiteral:
		if _, ok := r.prog.Modules[n.Module]; !ok {
			return source.Coded(source.EUndefinedStructModule,
				fmt.Sprintf("undefined struct module '%s'", n.Module)).At(n.Offset())
		}
		if err := r.checkStructFields(n.Module, n.Fields, n.Offset()); err != nil {
			return err
		}
		for _, f := range n.Fields {
			if err := r.walkExpr(f.Value, inGuard); err != nil {
				return err
			}
		}
	case *ast.StructUpdate:
		if _, ok := r.prog.Modules[n.Module]; !ok {
			return source.Coded(source.EUndefinedStructModule,
				fmt.Sprintf("undefined struct module '%s'", n.Module)).At(n.Offset())
		}
		if err := r.checkStructFields(n.Module, n.Fields, n.Offset()); err != nil {
			return err
		}
		if err := r.walkExpr(n.Base, inGuard); err != nil {
			return err
		}
		for _, f := range n.Fields {
			if err := r.walkExpr(f.Value, inGuard); err != nil {
				return err
			}
		}
	case *ast.Case:
		if err := r.walkExpr(n.Subject, inGuard); err != nil {
			return err
		}
		for _, b := range n.Branches {
			sub := r.fork()
			sub.bindPattern(b.Pattern)
			if b.Guard != nil {
				if err := sub.walkGuard(b.Guard); err != nil {
					return err
				}
			}
			for _, be := range b.Body {
				if err := sub.walk(be); err != nil {
					return err
				}
			}
		}
	case *ast.If:
		if err := r.walkExpr(n.Cond, inGuard); err != nil {
			return err
		}
		if err := r.walkExpr(n.Then, inGuard); err != nil {
			return err
		}
		return r.walkExpr(n.Else, inGuard)
	case *ast.Unless:
		if err := r.walkExpr(n.Cond, inGuard); err != nil {
			return err
		}
		if err := r.walkExpr(n.Then, inGuard); err != nil {
			return err
		}
		return r.walkExpr(n.Else, inGuard)
	case *ast.Cond:
		for _, c := range n.Clauses {
			if err := r.walkExpr(c.Cond, inGuard); err != nil {
				return err
			}
			for _, be := range c.Body {
				if err := r.walkExpr(be, inGuard); err != nil {
					return err
				}
			}
		}
	case *ast.With:
		sub := r.fork()
		for _, c := range n.Clauses {
			if err := sub.walkExpr(c.Value, inGuard); err != nil {
				return err
			}
			sub.bindPattern(c.Pattern)
		}
		for _, be := range n.Body {
			if err := sub.walk(be); err != nil {
				return err
			}
		}
		for _, b := range n.Else {
			esub := r.fork()
			esub.bindPattern(b.Pattern)
			for _, be := range b.Body {
				if err := esub.walk(be); err != nil {
					return err
				}
			}
		}
	case *ast.For:
		sub := r.fork()
		for _, c := range n.Clauses {
			if err := sub.walkExpr(c.Source, inGuard); err != nil {
				return err
			}
			sub.bindPattern(c.Pattern)
		}
		for _, f := range n.Filters {
			if err := sub.walkExpr(f, inGuard); err != nil {
				return err
			}
		}
		if n.Reduce != nil {
			if err := r.walkExpr(n.Reduce, inGuard); err != nil {
				return err
			}
			sub.bind(n.ReduceVar)
		}
		if n.Into != nil {
			if err := r.walkExpr(n.Into, inGuard); err != nil {
				return err
			}
		}
		return sub.walkExpr(n.Body, inGuard)
	case *ast.Fn:
		sub := r.fork()
		for _, p := range n.Params {
			sub.bind(p.Name)
			if p.Pattern != nil {
				sub.bindPattern(p.Pattern)
			}
		}
		if n.Guard != nil {
			if err := sub.walkGuard(n.Guard); err != nil {
				return err
			}
		}
		for _, be := range n.Body {
			if err := sub.walk(be); err != nil {
				return err
			}
		}
	case *ast.Try:
		for _, be := range n.Body {
			if err := r.walk(be); err != nil {
				return err
			}
		}
		for _, rc := range n.Rescues {
			sub := r.fork()
			sub.bind(rc.Binding)
			for _, be := range rc.Body {
				if err := sub.walk(be); err != nil {
					return err
				}
			}
		}
		for _, be := range n.After {
			if err := r.walk(be); err != nil {
				return err
			}
		}
	case *ast.Raise:
		if _, ok := r.prog.Modules[n.Module]; !ok {
			return source.Coded(source.EUndefinedStructModule,
				fmt.Sprintf("undefined struct module '%s'", n.Module)).At(n.Offset())
		}
		for _, f := range n.Fields {
			if err := r.walkExpr(f.Value, inGuard); err != nil {
				return err
			}
		}
	case *ast.Question:
		return r.walkExpr(n.Expr, inGuard)
	case *ast.Access:
		if err := r.walkExpr(n.Base, inGuard); err != nil {
			return err
		}
		return r.walkExpr(n.Key, inGuard)
	case *ast.DotAccess:
		return r.walkExpr(n.Base, inGuard)
	case *ast.CaptureNamed:
		if n.Module != "" {
			return r.resolveQualified(n.Module, n.Name, n.Arity, n.Offset())
		}
		return r.resolveCall(n.Name, n.Arity, n.Offset(), inGuard)
	case *ast.CaptureShorthand:
		sub := r.fork()
		for i := 1; i <= 9; i++ {
			sub.bind(fmt.Sprintf("&%d", i))
		}
		return sub.walk(n.Expr)
	}
	return nil
}

func (r *funcResolver) fork() *funcResolver {
	locals := map[string]bool{}
	for k, v := range r.locals {
		locals[k] = v
	}
	return &funcResolver{prog: r.prog, mod: r.mod, fn: r.fn, locals: locals}
}

func (r *funcResolver) checkStructFields(module string, fields []ast.KeywordEntry, off int) error {
	mi := r.prog.Modules[module]
	if mi.structs == nil {
		return nil
	}
	known := map[string]bool{}
	for _, f := range mi.structs.Fields {
		known[f.Key] = true
	}
	for _, f := range fields {
		if !known[f.Key] {
			return source.Coded(source.EUndefinedStructField,
				fmt.Sprintf("struct '%s' has no field '%s'", module, f.Key)).At(off)
		}
	}
	return nil
}

func (r *funcResolver) walkCall(n *ast.Call, inGuard bool) error {
	if callee, ok := n.Callee.(*ast.Bind); ok && callee.Name == "__match__" && len(n.Args) == 2 {
		// desugared `pattern = value`: the left side binds, it is never a
		// reference, so it must not pass through resolveCall.
		if err := r.walkExpr(n.Args[1], inGuard); err != nil {
			return err
		}
		r.bindPattern(n.Args[0])
		return nil
	}
	for _, a := range n.Args {
		if err := r.walkExpr(a, inGuard); err != nil {
			return err
		}
	}
	switch callee := n.Callee.(type) {
	case *ast.Bind:
		return r.resolveCall(callee.Name, len(n.Args), n.Offset(), inGuard)
	case *ast.DotAccess:
		if base, ok := callee.Base.(*ast.Bind); ok {
			if module, isModule := r.resolveModuleRef(base.Name); isModule {
				return r.resolveQualified(module, callee.Field, len(n.Args), n.Offset())
			}
		}
		return r.walkExpr(callee.Base, inGuard)
	default:
		return r.walkExpr(n.Callee, inGuard)
	}
}

func (r *funcResolver) resolveModuleRef(name string) (string, bool) {
	if full, ok := r.mod.aliases[name]; ok {
		return full, true
	}
	if _, ok := r.prog.Modules[name]; ok {
		return name, true
	}
	return "", false
}

func (r *funcResolver) resolveQualified(module, name string, arity int, off int) error {
	mi, ok := r.prog.Modules[module]
	if !ok {
		return source.Coded(source.EUndefinedSymbol,
			fmt.Sprintf("undefined symbol '%s.%s/%d'", module, name, arity)).At(off)
	}
	fns, ok := fnByArity(mi.functions[name], arity)
	if !ok {
		return source.Coded(source.EUndefinedSymbol,
			fmt.Sprintf("undefined symbol '%s.%s/%d'", module, name, arity)).At(off)
	}
	if mi != r.mod && fns.decl.Visibility == ast.Private {
		return source.Coded(source.EPrivateFunctionCall,
			fmt.Sprintf("cannot call private function '%s.%s/%d'", module, name, arity)).At(off)
	}
	return nil
}

// resolveCall resolves a bare (unqualified) name: locals, then filtered
// imports, then the module's own definitions.
func (r *funcResolver) resolveCall(name string, arity int, off int, inGuard bool) error {
	if r.locals[name] {
		return nil
	}
	if guardBuiltins[name] && arity == 1 {
		if !inGuard {
			return source.Coded(source.EGuardBuiltinOutsideGuard,
				fmt.Sprintf("guard builtin '%s/1' used outside a guard", name)).At(off)
		}
		return nil
	}
	if _, ok := fnByArity(r.mod.functions[name], arity); ok {
		return nil
	}

	var matches []*moduleInfo
	for _, imp := range r.mod.imports {
		if !importAllows(imp, name, arity) {
			continue
		}
		target, ok := r.prog.Modules[imp.Module]
		if !ok {
			continue
		}
		if fns, ok := fnByArity(target.functions[name], arity); ok {
			if fns.decl.Visibility == ast.Private {
				continue
			}
			matches = append(matches, target)
		}
	}
	if len(matches) > 1 {
		return source.Coded(source.EAmbiguousImport,
			fmt.Sprintf("call to '%s/%d' is ambiguous across imported modules", name, arity)).At(off)
	}
	if len(matches) == 1 {
		return nil
	}

	for _, imp := range r.mod.imports {
		if !importExcludes(imp, name, arity) {
			continue
		}
		if _, ok := r.prog.Modules[imp.Module]; ok {
			if _, ok := fnByArity(r.prog.Modules[imp.Module].functions[name], arity); ok {
				return source.Coded(source.EFilterExcludedCall,
					fmt.Sprintf("call to '%s/%d' is excluded by an import filter", name, arity)).At(off)
			}
		}
	}

	if arity == 0 {
		// a bare lowercase identifier with no matching function is a local
		// variable reference; those are validated at the binding site, not
		// here, so an unmatched arity-0 name is not itself an error.
		return nil
	}

	return source.Coded(source.EUndefinedSymbol,
		fmt.Sprintf("undefined symbol '%s/%d'", name, arity)).At(off)
}

func fnByArity(fns []*function, arity int) (*function, bool) {
	for _, f := range fns {
		if len(f.decl.Params) == arity {
			return f, true
		}
	}
	return nil, false
}

func importAllows(imp *ast.ImportForm, name string, arity int) bool {
	if imp.Filter == nil || imp.Filter.Only == nil {
		return imp.Filter == nil || !inList(imp.Filter.Except, name, arity)
	}
	return inList(imp.Filter.Only, name, arity)
}

func importExcludes(imp *ast.ImportForm, name string, arity int) bool {
	return imp.Filter != nil && inList(imp.Filter.Except, name, arity)
}

func inList(list []ast.NameArity, name string, arity int) bool {
	for _, na := range list {
		if na.Name == name && na.Arity == arity {
			return true
		}
	}
	return false
}
