package cbackend

import (
	"fmt"
	"strings"

	"github.com/tonic-lang/tonic/internal/dispatch"
	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
)

// Generate lowers a program's MIR functions into one C translation unit:
// forward declarations, one C function per clause (plus every
// lambda-lifted closure/for-body/try-body/rescue-handler function
// reachable from them), dispatcher functions for groups that need one,
// and a main() entrypoint invoking Module.run/0 per spec.md §4.6.2.
func Generate(entryModule string, fns []*mir.Function) (string, error) {
	groups := dispatch.Groups(fns)
	g := &generator{
		out:     newOutputWriter("    "),
		sym:     map[*mir.Function]string{},
		visited: map[*mir.Function]bool{},
	}
	for _, grp := range groups {
		for i, clause := range grp.Clauses {
			g.sym[clause] = grp.MangledSymbol(i)
		}
	}

	g.writeHeader()

	// Forward-declare every named clause and dispatcher before emitting
	// bodies, since clauses may call each other regardless of source order.
	for _, k := range dispatch.SortedKeys(groups) {
		grp := groupFor(groups, k)
		for i, clause := range grp.Clauses {
			g.out.writel(fmt.Sprintf("static TnResult %s(%s);", grp.MangledSymbol(i), paramList(clause.Arity)))
		}
		if grp.RequiresDispatcher {
			g.out.writel(fmt.Sprintf("static TnResult %s(%s);", grp.DispatcherSymbol(), paramList(grp.Key.Arity)))
		}
	}
	g.out.writel("")

	for _, k := range dispatch.SortedKeys(groups) {
		grp := groupFor(groups, k)
		for i, clause := range grp.Clauses {
			if err := g.emitClause(grp, i, clause); err != nil {
				return "", err
			}
		}
		if grp.RequiresDispatcher {
			if err := g.emitDispatcher(grp); err != nil {
				return "", err
			}
		}
	}

	entryKey := dispatch.Key{Module: entryModule, Name: "run", Arity: 0}
	g.out.writel("int main(void) {")
	g.out.in()
	g.out.writeilf("TnResult __r = %s();", dispatch.MangleFunctionName(entryKey.Module, entryKey.Name, entryKey.Arity))
	g.out.writeil("if (!__r.ok) { tn_report_uncaught(__r); return 1; }")
	g.out.writeil("return 0;")
	g.out.out()
	g.out.writel("}")

	return g.out.String(), nil
}

func groupFor(groups []*dispatch.Group, k dispatch.Key) *dispatch.Group {
	for _, g := range groups {
		if g.Key == k {
			return g
		}
	}
	return nil
}

func paramList(arity int) string {
	if arity == 0 {
		return "void"
	}
	parts := make([]string, arity)
	for i := range parts {
		parts[i] = fmt.Sprintf("TValue a%d", i)
	}
	return strings.Join(parts, ", ")
}

type generator struct {
	out      *outputWriter
	sym      map[*mir.Function]string
	visited  map[*mir.Function]bool
	anon     int
	guardTmp int
}

func (g *generator) writeHeader() {
	g.out.writel("/* Generated by the Tonic native backend. Do not edit by hand. */")
	g.out.writel(`#include "tonic_runtime.h"`)
	g.out.writel("")
}

// nestedSymbol allocates (and caches) a C symbol for a lambda-lifted
// function that isn't part of a dispatch group (closures, for-bodies,
// try-bodies, rescue handlers all have empty Module per mir.Function's
// own doc comment).
func (g *generator) nestedSymbol(fn *mir.Function) string {
	if s, ok := g.sym[fn]; ok {
		return s
	}
	g.anon++
	s := fmt.Sprintf("tn_anon_%s_%d", sanitizeName(fn.Name), g.anon)
	g.sym[fn] = s
	return s
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// emitClause emits one dispatch clause as a C function: its parameter
// patterns are bound inline (this is the non-dispatcher, single-clause
// case, or one numbered clause of a dispatcher) since tryBindParams'
// runtime pattern check already succeeded by construction when there is
// no dispatcher, or is re-checked by the dispatcher before calling in.
func (g *generator) emitClause(grp *dispatch.Group, idx int, fn *mir.Function) error {
	sym := grp.MangledSymbol(idx)
	g.out.writel(fmt.Sprintf("static TnResult %s(%s) {", sym, paramList(fn.Arity)))
	g.out.in()
	if err := g.emitParamBindings(fn); err != nil {
		return err
	}
	if err := g.emitFunctionBody(sym, fn); err != nil {
		return err
	}
	g.out.out()
	g.out.writel("}")
	g.out.writel("")
	return nil
}

// emitDispatcher emits the bare-symbol function a multi-clause or
// guarded/patterned group is actually called through: it re-tests each
// clause's parameter patterns/guard in source order, falling through to
// no_matching_clause if every clause rejects.
func (g *generator) emitDispatcher(grp *dispatch.Group) error {
	g.out.writel(fmt.Sprintf("static TnResult %s(%s) {", grp.DispatcherSymbol(), paramList(grp.Key.Arity)))
	g.out.in()
	for i, clause := range grp.Clauses {
		pg := &patternGen{}
		argNames := make([]string, clause.Arity)
		for p, param := range clause.Params {
			argv := fmt.Sprintf("a%d", p)
			argNames[p] = argv
			if param.Pattern != nil {
				pg.emit(param.Pattern, argv)
			} else {
				pg.binds = append(pg.binds, fmt.Sprintf("TValue %s = %s;", cIdent(param.Name), argv))
			}
		}
		g.out.writeilf("{ /* clause %d */", i)
		g.out.in()
		for _, b := range pg.binds {
			g.out.writeil(b)
		}
		cond := pg.condExpr()
		if clause.Guard != nil {
			guardVal, err := g.emitGuardExpr(clause.Guard)
			if err != nil {
				return err
			}
			cond = fmt.Sprintf("(%s) && tn_truthy(%s)", cond, guardVal)
		}
		g.out.writeilf("if (%s) {", cond)
		g.out.in()
		g.out.writeilf("return %s(%s);", grp.MangledSymbol(i), strings.Join(argNames, ", "))
		g.out.out()
		g.out.writeil("}")
		g.out.out()
		g.out.writeil("}")
	}
	g.out.writeilf("return tn_no_matching_clause(%s, %s, %d);",
		cStringLiteral(grp.Key.Module), cStringLiteral(grp.Key.Name), grp.Key.Arity)
	g.out.out()
	g.out.writel("}")
	g.out.writel("")
	return nil
}

// emitParamBindings binds a non-dispatched clause's own parameters
// directly (no conditional: either there's exactly one clause with no
// patterns/guard, reached here only because RequiresDispatcher is
// false, or this is being emitted as one of a dispatcher's numbered
// clause bodies which the dispatcher has already pattern-matched into).
func (g *generator) emitParamBindings(fn *mir.Function) error {
	for i, p := range fn.Params {
		argv := fmt.Sprintf("a%d", i)
		if p.Pattern == nil {
			g.out.writeilf("TValue %s = %s;", cIdent(p.Name), argv)
			continue
		}
		pg := &patternGen{}
		pg.emit(p.Pattern, argv)
		for _, b := range pg.binds {
			g.out.writeil(b)
		}
	}
	return nil
}

// emitFunctionBody walks fn's block CFG, translating each block to a C
// label and its instructions/terminator to straight-line C with goto for
// control flow — the standard structured-CFG-to-goto lowering any
// SSA-shaped IR compiles to when the target language lacks block
// arguments natively.
func (g *generator) emitFunctionBody(sym string, fn *mir.Function) error {
	for _, blk := range fn.Blocks {
		for _, arg := range blk.Args {
			g.out.writeilf("TValue r%d;", arg)
		}
	}
	for _, blk := range fn.Blocks {
		g.out.writeilf("L%d:;", blk.ID)
		g.out.in()
		for _, instr := range blk.Instructions {
			if err := g.emitInstr(sym, instr); err != nil {
				return err
			}
		}
		if err := g.emitTerm(fn, blk.Term); err != nil {
			return err
		}
		g.out.out()
	}
	return nil
}

func (g *generator) emitTerm(fn *mir.Function, term mir.Terminator) error {
	switch term.Kind {
	case mir.TReturn:
		g.out.writeilf("return tn_ok(r%d);", term.Value)
	case mir.TJump:
		if target := fn.Block(term.Target); target != nil {
			g.emitPhiAssign(term.Target, target.Args, term.Args)
		}
		g.out.writeilf("goto L%d;", term.Target)
	case mir.TShortCircuit:
		truthy := fmt.Sprintf("tn_truthy(r%d)", term.Condition)
		thenBranch, elseBranch := term.Then, term.Else
		if term.ShortCircuitOp == "&&" {
			g.out.writeilf("if (!%s) { goto L%d; } else { goto L%d; }", truthy, elseBranch, thenBranch)
		} else {
			g.out.writeilf("if (%s) { goto L%d; } else { goto L%d; }", truthy, elseBranch, thenBranch)
		}
	case mir.TMatch:
		return g.emitMatchTerm(term)
	}
	return nil
}

// emitPhiAssign assigns a Jump's argument values into the target block's
// own phi registers (pre-declared once per function by
// emitFunctionBody), immediately before the goto that enters it.
func (g *generator) emitPhiAssign(target mir.BlockID, phiDest []mir.Reg, args []mir.Reg) {
	for i, src := range args {
		g.out.writeilf("r%d = r%d;", phiDest[i], src)
	}
}

func (g *generator) emitMatchTerm(term mir.Terminator) error {
	for i, arm := range term.Arms {
		pg := &patternGen{}
		scrutinee := fmt.Sprintf("r%d", term.Scrutinee)
		pg.emit(arm.Pattern, scrutinee)
		g.out.writeilf("{ /* arm %d */", i)
		g.out.in()
		for _, b := range pg.binds {
			g.out.writeil(b)
		}
		cond := pg.condExpr()
		if arm.Guard != nil {
			guardVal, err := g.emitGuardExpr(arm.Guard)
			if err != nil {
				return err
			}
			cond = fmt.Sprintf("(%s) && tn_truthy(%s)", cond, guardVal)
		}
		g.out.writeilf("if (%s) { goto L%d; }", cond, arm.Target)
		g.out.out()
		g.out.writeil("}")
	}
	g.out.writeilf("goto L%d;", term.NoMatch)
	return nil
}

func (g *generator) newGuardTemp() string {
	g.guardTmp++
	return fmt.Sprintf("__g%d", g.guardTmp)
}

func isShortCircuitBinOp(op string) bool {
	return op == "&&" || op == "and" || op == "||" || op == "or"
}

// emitGuardExpr re-lowers a clause guard or match-arm guard's unflattened
// ir.Op tree into C statements producing a TValue, rather than flattening
// it into the enclosing block's own register stream the way mir.Build
// does for ordinary expressions: a guard runs in its pattern's own binding
// scope and is only re-entered once that pattern matched, the same reason
// mir.Arm/mir.Function keep it unflattened (see DESIGN.md). This covers
// the same restricted expression subset internal/interp's evalOp accepts
// for guards and for-filters.
func (g *generator) emitGuardExpr(op *ir.Op) (string, error) {
	tmp := g.newGuardTemp()
	switch op.Kind {
	case ir.OpConstInt:
		g.out.writeilf("TValue %s = tn_int(%dLL);", tmp, op.Int)
	case ir.OpConstFloat:
		g.out.writeilf("TValue %s = tn_float(%v);", tmp, op.Float)
	case ir.OpConstBool:
		g.out.writeilf("TValue %s = tn_bool(%v);", tmp, op.Bool)
	case ir.OpConstNil:
		g.out.writeilf("TValue %s = tn_nil();", tmp)
	case ir.OpConstString:
		g.out.writeilf("TValue %s = tn_string(%s);", tmp, cStringLiteral(op.String))
	case ir.OpConstAtom:
		g.out.writeilf("TValue %s = tn_atom(%s);", tmp, cStringLiteral(op.Atom))
	case ir.OpLoadVariable:
		g.out.writeilf("TValue %s = %s;", tmp, cIdent(op.Name))
	case ir.OpUnary:
		inner, err := g.emitGuardExpr(op.Left)
		if err != nil {
			return "", err
		}
		g.out.writeilf("TValue %s = tn_unary(%s, %s);", tmp, cStringLiteral(op.UnOp), inner)
	case ir.OpBinary:
		if isShortCircuitBinOp(op.BinOp) {
			left, err := g.emitGuardExpr(op.Left)
			if err != nil {
				return "", err
			}
			g.out.writeilf("TValue %s;", tmp)
			if op.BinOp == "&&" || op.BinOp == "and" {
				g.out.writeilf("if (!tn_truthy(%s)) {", left)
			} else {
				g.out.writeilf("if (tn_truthy(%s)) {", left)
			}
			g.out.in()
			g.out.writeilf("%s = %s;", tmp, left)
			g.out.out()
			g.out.writeil("} else {")
			g.out.in()
			right, err := g.emitGuardExpr(op.Right)
			if err != nil {
				return "", err
			}
			g.out.writeilf("%s = %s;", tmp, right)
			g.out.out()
			g.out.writeil("}")
			return tmp, nil
		}
		left, err := g.emitGuardExpr(op.Left)
		if err != nil {
			return "", err
		}
		right, err := g.emitGuardExpr(op.Right)
		if err != nil {
			return "", err
		}
		g.out.writeilf("TValue %s = tn_binary(%s, %s, %s);", tmp, cStringLiteral(op.BinOp), left, right)
	case ir.OpCall:
		args := make([]string, len(op.Args))
		for i := range op.Args {
			a, err := g.emitGuardExpr(&op.Args[i])
			if err != nil {
				return "", err
			}
			args[i] = a
		}
		argList := strings.Join(args, ", ")
		switch op.Callee.Kind {
		case ir.CalleeBuiltin:
			g.out.writeilf("TValue %s_args[] = { %s };", tmp, argList)
			g.out.writeilf("TnResult %s__c = tn_call_builtin(%s, %s_args, %d);", tmp, cStringLiteral(op.Callee.Name), tmp, len(args))
		case ir.CalleeLocal:
			g.out.writeilf("TnResult %s__c = tn_call_local(%s, %s);", tmp, cStringLiteral(op.Callee.Name), argList)
		case ir.CalleeQualified:
			g.out.writeilf("TnResult %s__c = tn_call_qualified(%s, %s, %s);", tmp, cStringLiteral(op.Callee.Module), cStringLiteral(op.Callee.Name), argList)
		case ir.CalleeClosure:
			closureVal, err := g.emitGuardExpr(op.Callee.Closure)
			if err != nil {
				return "", err
			}
			g.out.writeilf("TValue %s_args[] = { %s };", tmp, argList)
			g.out.writeilf("TnResult %s__c = tn_invoke_closure(%s, %s_args, %d);", tmp, closureVal, tmp, len(args))
		default:
			return "", unsupported("guard", "unsupported callee kind in guard expression")
		}
		g.out.writeilf("TValue %s = %s__c.ok ? %s__c.value : tn_bool(0);", tmp, tmp, tmp)
	case ir.OpAccess:
		base, err := g.emitGuardExpr(op.Base)
		if err != nil {
			return "", err
		}
		key, err := g.emitGuardExpr(op.Key)
		if err != nil {
			return "", err
		}
		g.out.writeilf("TnResult %s__a = tn_access(%s, %s);", tmp, base, key)
		g.out.writeilf("TValue %s = %s__a.ok ? %s__a.value : tn_bool(0);", tmp, tmp, tmp)
	case ir.OpDotAccess:
		base, err := g.emitGuardExpr(op.Base)
		if err != nil {
			return "", err
		}
		g.out.writeilf("TnResult %s__d = tn_dot_access(%s, %s);", tmp, base, cStringLiteral(op.Field))
		g.out.writeilf("TValue %s = %s__d.ok ? %s__d.value : tn_bool(0);", tmp, tmp, tmp)
	default:
		return "", unsupported("guard", "expression shape not supported in a guard")
	}
	return tmp, nil
}

func (g *generator) emitInstr(sym string, instr mir.Instruction) error {
	dest := fmt.Sprintf("r%d", instr.Dest)
	switch instr.Kind {
	case mir.IConstInt:
		g.out.writeilf("TValue %s = tn_int(%dLL);", dest, instr.Int)
	case mir.IConstFloat:
		g.out.writeilf("TValue %s = tn_float(%v);", dest, instr.Float)
	case mir.IConstBool:
		g.out.writeilf("TValue %s = tn_bool(%v);", dest, instr.Bool)
	case mir.IConstNil:
		g.out.writeilf("TValue %s = tn_nil();", dest)
	case mir.IConstString:
		g.out.writeilf("TValue %s = tn_string(%s);", dest, cStringLiteral(instr.String))
	case mir.IConstAtom:
		g.out.writeilf("TValue %s = tn_atom(%s);", dest, cStringLiteral(instr.Atom))
	case mir.ILoadVariable:
		g.out.writeilf("TValue %s = %s;", dest, cIdent(instr.Name))
	case mir.IUnary:
		g.out.writeilf("TValue %s = tn_unary(%s, r%d);", dest, cStringLiteral(instr.UnOp), instr.Operands[0])
	case mir.IBinary:
		g.out.writeilf("TValue %s = tn_binary(%s, r%d, r%d);", dest, cStringLiteral(instr.BinOp), instr.Operands[0], instr.Operands[1])
	case mir.ICall:
		return g.emitCall(dest, instr)
	case mir.IMakeClosure:
		return g.emitMakeClosure(sym, dest, instr)
	case mir.IQuestion:
		g.out.writeilf("TnResult %s__q = tn_question(r%d);", dest, instr.Operands[0])
		g.out.writeilf("if (!%s__q.ok) return %s__q;", dest, dest)
		g.out.writeilf("TValue %s = %s__q.value;", dest, dest)
	case mir.IMakeList:
		g.emitMakeCollection(dest, "tn_make_list", instr.Operands)
	case mir.IMakeTuple:
		g.emitMakeCollection(dest, "tn_make_tuple", instr.Operands)
	case mir.IMakeMap:
		g.emitMakeCollection(dest, "tn_make_map", instr.Operands)
	case mir.IMakeKeyword:
		return g.emitMakeKeyword(dest, instr)
	case mir.IMakeStruct:
		return g.emitMakeStruct(dest, instr)
	case mir.IUpdateStruct:
		return g.emitUpdateStruct(dest, instr)
	case mir.IAccess:
		g.out.writeilf("TnResult %s__a = tn_access(r%d, r%d);", dest, instr.Operands[0], instr.Operands[1])
		g.out.writeilf("if (!%s__a.ok) return %s__a;", dest, dest)
		g.out.writeilf("TValue %s = %s__a.value;", dest, dest)
	case mir.IDotAccess:
		g.out.writeilf("TnResult %s__d = tn_dot_access(r%d, %s);", dest, instr.Operands[0], cStringLiteral(instr.Field))
		g.out.writeilf("if (!%s__d.ok) return %s__d;", dest, dest)
		g.out.writeilf("TValue %s = %s__d.value;", dest, dest)
	case mir.IRaise:
		return g.emitRaise(instr)
	case mir.IFor:
		return g.emitFor(sym, dest, instr)
	case mir.ITry:
		return g.emitTry(sym, dest, instr)
	case mir.IAssign:
		pg := &patternGen{}
		pg.emit(instr.AssignPattern, fmt.Sprintf("r%d", instr.Operands[0]))
		g.out.writeilf("if (!(%s)) return tn_bad_match(r%d);", pg.condExpr(), instr.Operands[0])
		for _, b := range pg.binds {
			g.out.writeil(b)
		}
		g.out.writeilf("TValue %s = r%d;", dest, instr.Operands[0])
	default:
		return unsupported(sym, fmt.Sprintf("unhandled instruction kind %d", instr.Kind))
	}
	return nil
}

func (g *generator) emitMakeCollection(dest, helper string, operands []mir.Reg) {
	g.out.writeilf("TValue %s_elems[] = { %s };", dest, regList(operands))
	g.out.writeilf("TValue %s = %s(%s_elems, %d);", dest, helper, dest, len(operands))
}

func regList(regs []mir.Reg) string {
	if len(regs) == 0 {
		return "{0}"
	}
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fmt.Sprintf("r%d", r)
	}
	return strings.Join(parts, ", ")
}

func (g *generator) emitMakeKeyword(dest string, instr mir.Instruction) error {
	g.out.writeilf("const char* %s_keys[] = { %s };", dest, stringLiteralList(instr.Keys))
	g.out.writeilf("TValue %s_vals[] = { %s };", dest, regList(instr.Operands))
	g.out.writeilf("TValue %s = tn_make_keyword(%s_keys, %s_vals, %d);", dest, dest, dest, len(instr.Keys))
	return nil
}

func (g *generator) emitMakeStruct(dest string, instr mir.Instruction) error {
	g.out.writeilf("const char* %s_keys[] = { %s };", dest, stringLiteralList(instr.Keys))
	g.out.writeilf("TValue %s_vals[] = { %s };", dest, regList(instr.Operands))
	g.out.writeilf("TValue %s = tn_make_struct(%s, %s_keys, %s_vals, %d);", dest, cStringLiteral(instr.Module), dest, dest, len(instr.Keys))
	return nil
}

func (g *generator) emitUpdateStruct(dest string, instr mir.Instruction) error {
	base := instr.Operands[0]
	updates := instr.Operands[1:]
	g.out.writeilf("const char* %s_keys[] = { %s };", dest, stringLiteralList(instr.Keys))
	g.out.writeilf("TValue %s_vals[] = { %s };", dest, regList(updates))
	g.out.writeilf("TnResult %s__u = tn_update_struct(r%d, %s_keys, %s_vals, %d);", dest, base, dest, dest, len(instr.Keys))
	g.out.writeilf("if (!%s__u.ok) return %s__u;", dest, dest)
	g.out.writeilf("TValue %s = %s__u.value;", dest, dest)
	return nil
}

func stringLiteralList(ss []string) string {
	if len(ss) == 0 {
		return "0"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = cStringLiteral(s)
	}
	return strings.Join(parts, ", ")
}

func (g *generator) emitCall(dest string, instr mir.Instruction) error {
	args := regList(instr.Operands)
	switch instr.Callee.Kind {
	case ir.CalleeBuiltin:
		g.out.writeilf("TValue %s_args[] = { %s };", dest, args)
		g.out.writeilf("TnResult %s__c = tn_call_builtin(%s, %s_args, %d);", dest, cStringLiteral(instr.Callee.Name), dest, len(instr.Operands))
	case ir.CalleeLocal:
		g.out.writeilf("TnResult %s__c = tn_call_local(%s, %s);", dest, cStringLiteral(instr.Callee.Name), args)
	case ir.CalleeQualified:
		g.out.writeilf("TnResult %s__c = tn_call_qualified(%s, %s, %s);", dest, cStringLiteral(instr.Callee.Module), cStringLiteral(instr.Callee.Name), args)
	case ir.CalleeClosure:
		g.out.writeilf("TValue %s_args[] = { %s };", dest, args)
		g.out.writeilf("TnResult %s__c = tn_invoke_closure(r%d, %s_args, %d);", dest, instr.Operands[0], dest, len(instr.Operands)-1)
	default:
		return unsupported("call", "unknown callee kind")
	}
	g.out.writeilf("if (!%s__c.ok) return %s__c;", dest, dest)
	g.out.writeilf("TValue %s = %s__c.value;", dest, dest)
	return nil
}

// emitMakeClosure emits the lifted body as its own top-level C function
// (recursively, if not already emitted) and constructs a closure value
// capturing the named registers by value.
func (g *generator) emitMakeClosure(sym, dest string, instr mir.Instruction) error {
	if !g.visited[instr.ClosureFn] {
		g.visited[instr.ClosureFn] = true
		if err := g.emitLifted(instr.ClosureFn); err != nil {
			return err
		}
	}
	fnSym := g.nestedSymbol(instr.ClosureFn)
	g.out.writeilf("TValue %s_caps[] = { %s };", dest, regList(instr.Captures))
	g.out.writeilf("const char* %s_capnames[] = { %s };", dest, stringLiteralList(instr.CaptureName))
	g.out.writeilf("TValue %s = tn_make_closure(%s, %s_caps, %s_capnames, %d);", dest, fnSym, dest, dest, len(instr.Captures))
	return nil
}

// emitLifted emits a lambda-lifted function (closure body, for body, try
// body, rescue handler) as its own C function under a synthetic symbol.
func (g *generator) emitLifted(fn *mir.Function) error {
	sym := g.nestedSymbol(fn)
	g.out.writel(fmt.Sprintf("static TnResult %s(%s) {", sym, paramList(fn.Arity)))
	g.out.in()
	if err := g.emitParamBindings(fn); err != nil {
		return err
	}
	if err := g.emitFunctionBody(sym, fn); err != nil {
		return err
	}
	g.out.out()
	g.out.writel("}")
	g.out.writel("")
	return nil
}

func (g *generator) emitRaise(instr mir.Instruction) error {
	g.out.writeilf("const char* __raise_keys[] = { %s };", stringLiteralList(instr.Keys))
	g.out.writeilf("TValue __raise_vals[] = { %s };", regList(instr.Operands))
	g.out.writeilf("return tn_raise(%s, __raise_keys, __raise_vals, %d);", cStringLiteral(instr.Module), len(instr.Keys))
	return nil
}

// emitFor lowers a for-comprehension into nested C for-loops over each
// generator clause's materialized list, calling the lambda-lifted
// ForBodyFn per combination (its own parameter patterns, emitted the
// same way a regular function clause's are, handle each clause's
// binding) and folding results the way into:/reduce: specify.
func (g *generator) emitFor(sym, dest string, instr mir.Instruction) error {
	if !g.visited[instr.ForBodyFn] {
		g.visited[instr.ForBodyFn] = true
		if err := g.emitLifted(instr.ForBodyFn); err != nil {
			return err
		}
	}
	bodySym := g.nestedSymbol(instr.ForBodyFn)

	accVar := fmt.Sprintf("%s_acc", dest)
	switch {
	case instr.ForHasReduce:
		g.out.writeilf("TValue %s = r%d;", accVar, instr.ForReduce)
	case instr.ForHasInto:
		g.out.writeilf("TValue %s = r%d;", accVar, instr.ForInto)
	default:
		g.out.writeilf("TValue %s = tn_make_list(0, 0);", accVar)
	}

	idxVars := make([]string, len(instr.ForClauses))
	for i, c := range instr.ForClauses {
		idxVars[i] = fmt.Sprintf("%s_i%d", dest, i)
		g.out.writeilf("for (int64_t %s = 0; %s < tn_list_len(r%d); %s++) {", idxVars[i], idxVars[i], c.Source, idxVars[i])
		g.out.in()
		elemVar := fmt.Sprintf("%s_e%d", dest, i)
		g.out.writeilf("TValue %s = tn_list_get(r%d, %s);", elemVar, c.Source, idxVars[i])
		pg := &patternGen{}
		pg.emit(c.Pattern, elemVar)
		for _, b := range pg.binds {
			g.out.writeil(b)
		}
		g.out.writeilf("if (!(%s)) continue;", pg.condExpr())
	}

	elemArgs := make([]string, len(instr.ForClauses))
	for i := range instr.ForClauses {
		elemArgs[i] = fmt.Sprintf("%s_e%d", dest, i)
	}
	for fi := range instr.ForFilters {
		fv, err := g.emitGuardExpr(&instr.ForFilters[fi])
		if err != nil {
			return err
		}
		g.out.writeilf("if (!tn_truthy(%s)) continue;", fv)
	}
	g.out.writeilf("TnResult %s__body = %s(%s);", dest, bodySym, strings.Join(elemArgs, ", "))
	g.out.writeilf("if (!%s__body.ok) return %s__body;", dest, dest)
	switch {
	case instr.ForHasReduce:
		g.out.writeilf("%s = %s__body.value;", accVar, dest)
	default:
		g.out.writeilf("%s = tn_append(%s, %s__body.value);", accVar, accVar, dest)
	}

	for range instr.ForClauses {
		g.out.out()
		g.out.writeil("}")
	}
	g.out.writeilf("TValue %s = %s;", dest, accVar)
	return nil
}

// emitTry lowers try/rescue/after: run the body, and on a raise whose
// module matches a rescue clause, run that handler instead; the after
// function runs however the body or handler ended, and its own failure
// replaces the outcome only when that outcome was a success — the same
// order internal/interp's execTry uses.
func (g *generator) emitTry(sym, dest string, instr mir.Instruction) error {
	if !g.visited[instr.TryBodyFn] {
		g.visited[instr.TryBodyFn] = true
		if err := g.emitLifted(instr.TryBodyFn); err != nil {
			return err
		}
	}
	bodySym := g.nestedSymbol(instr.TryBodyFn)
	g.out.writeilf("TnResult %s__try = %s();", dest, bodySym)
	g.out.writeilf("TnResult %s__res = %s__try;", dest, dest)
	g.out.writeilf("if (!%s__try.ok && %s__try.raised_module) {", dest, dest)
	g.out.in()
	for _, rh := range instr.TryRescues {
		if !g.visited[rh.BodyFn] {
			g.visited[rh.BodyFn] = true
			if err := g.emitLifted(rh.BodyFn); err != nil {
				return err
			}
		}
		rSym := g.nestedSymbol(rh.BodyFn)
		g.out.writeilf("if (strcmp(%s__try.raised_module, %s) == 0) {", dest, cStringLiteral(rh.Module))
		g.out.in()
		g.out.writeilf("%s__res = %s(%s__try.raised_value);", dest, rSym, dest)
		g.out.writeilf("goto %s_after;", dest)
		g.out.out()
		g.out.writeil("}")
	}
	g.out.out()
	g.out.writeil("}")
	g.out.writeilf("%s_after:;", dest)
	if instr.TryAfterFn != nil {
		if !g.visited[instr.TryAfterFn] {
			g.visited[instr.TryAfterFn] = true
			if err := g.emitLifted(instr.TryAfterFn); err != nil {
				return err
			}
		}
		afterSym := g.nestedSymbol(instr.TryAfterFn)
		g.out.writeilf("TnResult %s__after = %s();", dest, afterSym)
		g.out.writeilf("if (!%s__after.ok && %s__res.ok) %s__res = %s__after;", dest, dest, dest, dest)
	}
	g.out.writeilf("if (!%s__res.ok) return %s__res;", dest, dest)
	g.out.writeilf("TValue %s = %s__res.value;", dest, dest)
	return nil
}
