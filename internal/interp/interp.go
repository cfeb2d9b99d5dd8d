// Package interp is the tree-walking interpreter backend: it evaluates
// lowered MIR directly, grounded on spec.md §4.6.1 and shaped after the
// teacher's own Interpreter/Options/New entry point (interp/interp.go).
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/tonic-lang/tonic/internal/dispatch"
	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/runtime"
)

// Options are the interpreter's user-settable options, following the
// teacher's own Options/New split.
type Options struct {
	// Stdout/Stderr default to os.Stdout/os.Stderr.
	Stdout, Stderr io.Writer

	// Args is stored on the interpreter as given; the interpreter itself
	// does not read it. host_call(:sys_argv) answers from the argv handed
	// to internal/host.Standard, which is registered through Hosts or
	// RegisterHost.
	Args []string

	// Hosts registers additional host_call capabilities beyond whatever
	// internal/host wires in; tests may pass a handful of fakes directly.
	Hosts map[string]runtime.HostFunc
}

// opt mirrors the teacher's own lower-case embedded opt struct: resolved
// defaults, never re-read from Options after New.
type opt struct {
	stdout io.Writer
	stderr io.Writer
	args   []string
}

// Interpreter evaluates lowered MIR by tree-walking its blocks.
type Interpreter struct {
	opt

	groups map[dispatch.Key]*dispatch.Group
	hosts  map[string]runtime.HostFunc
}

// New returns a new interpreter, following the teacher's New(options
// Options) *Interpreter idiom.
func New(options Options) *Interpreter {
	i := &Interpreter{
		groups: map[dispatch.Key]*dispatch.Group{},
		hosts:  map[string]runtime.HostFunc{},
	}
	i.opt.stdout = options.Stdout
	if i.opt.stdout == nil {
		i.opt.stdout = os.Stdout
	}
	i.opt.stderr = options.Stderr
	if i.opt.stderr == nil {
		i.opt.stderr = os.Stderr
	}
	i.opt.args = options.Args
	for name, fn := range options.Hosts {
		i.hosts[name] = fn
	}
	return i
}

// RegisterHost adds (or replaces) one host_call capability.
func (i *Interpreter) RegisterHost(name string, fn runtime.HostFunc) {
	i.hosts[name] = fn
}

// Load groups a program's lowered MIR functions by (module, name, arity)
// for call dispatch. Call it once per program before Run/Eval.
func (i *Interpreter) Load(fns []*mir.Function) {
	for _, g := range dispatch.Groups(fns) {
		i.groups[g.Key] = g
	}
}

// Run invokes <module>.run/0, the canonical program entry point
// (spec.md §6).
func (i *Interpreter) Run(module string) (runtime.Value, error) {
	return i.Eval(module, "run", nil)
}

// Eval invokes (module, name, len(args)) with args already-evaluated
// Values, returning its result or the error that unwound the call.
func (i *Interpreter) Eval(module, name string, args []runtime.Value) (runtime.Value, error) {
	key := dispatch.Key{Module: module, Name: name, Arity: len(args)}
	group, ok := i.groups[key]
	if !ok {
		return runtime.Value{}, &runtime.UndefinedFunctionError{Module: module, Name: name, Arity: len(args)}
	}
	return i.invokeGroup(group, args)
}

func (i *Interpreter) invokeGroup(group *dispatch.Group, args []runtime.Value) (runtime.Value, error) {
	for _, clause := range group.Clauses {
		frame, ok, err := i.tryBindParams(clause.Params, args, nil, group.Key.Module)
		if err != nil {
			return runtime.Value{}, err
		}
		if !ok {
			continue
		}
		guardOK, err := i.checkGuard(clause.Guard, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		if !guardOK {
			continue
		}
		return i.execFunction(clause, frame)
	}
	return runtime.Value{}, &runtime.NoMatchingClauseError{Module: group.Key.Module, Name: group.Key.Name, Arity: group.Key.Arity}
}

func (i *Interpreter) invokeClosure(cv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	if cv.Kind != runtime.KClosure {
		return runtime.Value{}, &runtime.BadArgumentError{Op: "call", Msg: "value is not callable"}
	}
	c := cv.Closure
	frame, ok, err := i.tryBindParams(c.Fn.Params, args, c.Env, c.Env.Module())
	if err != nil {
		return runtime.Value{}, err
	}
	if !ok {
		return runtime.Value{}, &runtime.NoMatchingClauseError{Module: "", Name: c.Fn.Name, Arity: len(args)}
	}
	guardOK, err := i.checkGuard(c.Fn.Guard, frame)
	if err != nil {
		return runtime.Value{}, err
	}
	if !guardOK {
		return runtime.Value{}, &runtime.NoMatchingClauseError{Module: "", Name: c.Fn.Name, Arity: len(args)}
	}
	return i.execFunction(c.Fn, frame)
}

// tryBindParams matches args positionally against params, filling missing
// trailing args from Default expressions (evaluated left-to-right so a
// later default may reference an earlier parameter's bound name) and
// destructuring any parameter with a Pattern. Returns ok=false (no error)
// on an arity or pattern mismatch, the ordinary "try the next clause" case.
func (i *Interpreter) tryBindParams(params []ir.Param, args []runtime.Value, anc *runtime.Frame, module string) (*runtime.Frame, bool, error) {
	if len(args) > len(params) {
		return nil, false, nil
	}
	frame := runtime.NewFrame(anc, module)
	for idx, p := range params {
		var val runtime.Value
		if idx < len(args) {
			val = args[idx]
		} else if p.Default != nil {
			v, err := i.evalOp(p.Default, frame)
			if err != nil {
				return nil, false, err
			}
			val = v
		} else {
			return nil, false, nil
		}
		if p.Pattern != nil {
			bindings := map[string]runtime.Value{}
			if !dispatch.MatchPattern(p.Pattern, val, bindings) {
				return nil, false, nil
			}
			for k, v := range bindings {
				frame.Set(k, v)
			}
		} else {
			frame.Set(p.Name, val)
		}
	}
	return frame, true, nil
}

func (i *Interpreter) checkGuard(guard *ir.Op, frame *runtime.Frame) (bool, error) {
	if guard == nil {
		return true, nil
	}
	v, err := i.evalOp(guard, frame)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// evalOp evaluates an unflattened ir.Op directly against a Frame — used
// for function-clause guards, parameter defaults, Match-arm guards and
// For-comprehension filters, the places MIR leaves an ir.Op unflattened
// into registers (see DESIGN.md).
// It is a miniature version of the instruction executor that only needs
// to cover expression-shaped ops, since guards/filters are expressions.
func (i *Interpreter) evalOp(op *ir.Op, frame *runtime.Frame) (runtime.Value, error) {
	switch op.Kind {
	case ir.OpConstInt:
		return runtime.Int(op.Int), nil
	case ir.OpConstFloat:
		return runtime.Float(op.Float), nil
	case ir.OpConstBool:
		return runtime.Bool_(op.Bool), nil
	case ir.OpConstNil:
		return runtime.Nil(), nil
	case ir.OpConstString:
		return runtime.Str(op.String), nil
	case ir.OpConstAtom:
		return runtime.Atom(op.Atom), nil
	case ir.OpLoadVariable:
		v, ok := frame.Get(op.Name)
		if !ok {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "load", Msg: "undefined variable " + op.Name}
		}
		return v, nil
	case ir.OpUnary:
		v, err := i.evalOp(op.Left, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.ApplyUnary(op.UnOp, v)
	case ir.OpBinary:
		if op.BinOp == "&&" || op.BinOp == "and" || op.BinOp == "||" || op.BinOp == "or" {
			l, err := i.evalOp(op.Left, frame)
			if err != nil {
				return runtime.Value{}, err
			}
			isAnd := op.BinOp == "&&" || op.BinOp == "and"
			if isAnd && !l.Truthy() {
				return l, nil
			}
			if !isAnd && l.Truthy() {
				return l, nil
			}
			return i.evalOp(op.Right, frame)
		}
		l, err := i.evalOp(op.Left, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		r, err := i.evalOp(op.Right, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		return runtime.ApplyBinary(op.BinOp, l, r)
	case ir.OpCall:
		return i.evalOpCall(op, frame)
	case ir.OpAccess:
		base, err := i.evalOp(op.Base, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		key, err := i.evalOp(op.Key, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		return accessValue(base, key)
	case ir.OpDotAccess:
		base, err := i.evalOp(op.Base, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		return dotAccessValue(base, op.Field)
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "guard/filter", Msg: "expression shape not supported in a guard or filter"}
	}
}

func (i *Interpreter) evalOpCall(op *ir.Op, frame *runtime.Frame) (runtime.Value, error) {
	args := make([]runtime.Value, len(op.Args))
	for idx := range op.Args {
		v, err := i.evalOp(&op.Args[idx], frame)
		if err != nil {
			return runtime.Value{}, err
		}
		args[idx] = v
	}
	switch op.Callee.Kind {
	case ir.CalleeBuiltin:
		return i.callBuiltin(op.Callee.Name, args)
	case ir.CalleeLocal:
		return i.Eval(frame.Module(), op.Callee.Name, args)
	case ir.CalleeQualified:
		return i.Eval(op.Callee.Module, op.Callee.Name, args)
	case ir.CalleeClosure:
		cv, err := i.evalOp(op.Callee.Closure, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		return i.invokeClosure(cv, args)
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "call", Msg: "unknown callee kind"}
	}
}

func accessValue(base, key runtime.Value) (runtime.Value, error) {
	switch base.Kind {
	case runtime.KList:
		if key.Kind != runtime.KInt {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "access", Msg: "list index must be an integer"}
		}
		if key.Int < 0 || key.Int >= int64(len(base.Elems)) {
			return runtime.Nil(), nil
		}
		return base.Elems[key.Int], nil
	case runtime.KMap:
		for _, e := range base.Entries {
			if runtime.Equal(e.Key, key) {
				return e.Value, nil
			}
		}
		return runtime.Nil(), nil
	case runtime.KTuple:
		if key.Kind != runtime.KInt {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "access", Msg: "tuple index must be an integer"}
		}
		if key.Int < 0 || key.Int >= int64(len(base.Elems)) {
			return runtime.Nil(), nil
		}
		return base.Elems[key.Int], nil
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "access", Msg: "value does not support [] access"}
	}
}

func dotAccessValue(base runtime.Value, field string) (runtime.Value, error) {
	switch base.Kind {
	case runtime.KStruct:
		v, ok := base.Fields[field]
		if !ok {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "dotaccess", Msg: fmt.Sprintf("%s has no field %s", base.StructModule, field)}
		}
		return v, nil
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "dotaccess", Msg: "value is not a struct"}
	}
}

// execFunction runs fn's entry block (always Blocks[0] — buildFunction
// always allocates it first) to completion.
func (i *Interpreter) execFunction(fn *mir.Function, frame *runtime.Frame) (runtime.Value, error) {
	regs := map[mir.Reg]runtime.Value{}
	return i.execFrom(fn, fn.Blocks[0], nil, regs, frame)
}

func (i *Interpreter) execFrom(fn *mir.Function, blk *mir.Block, phiArgs []runtime.Value, regs map[mir.Reg]runtime.Value, frame *runtime.Frame) (runtime.Value, error) {
	for idx, argReg := range blk.Args {
		regs[argReg] = phiArgs[idx]
	}
	for _, instr := range blk.Instructions {
		v, err := i.execInstr(instr, regs, frame)
		if err != nil {
			return runtime.Value{}, err
		}
		regs[instr.Dest] = v
	}
	term := blk.Term
	switch term.Kind {
	case mir.TReturn:
		return regs[term.Value], nil
	case mir.TJump:
		args := make([]runtime.Value, len(term.Args))
		for idx, r := range term.Args {
			args[idx] = regs[r]
		}
		return i.execFrom(fn, fn.Block(term.Target), args, regs, frame)
	case mir.TShortCircuit:
		cond := regs[term.Condition]
		isAnd := term.ShortCircuitOp == "&&" || term.ShortCircuitOp == "and"
		target := term.Then
		if (isAnd && !cond.Truthy()) || (!isAnd && cond.Truthy()) {
			target = term.Else
		}
		return i.execFrom(fn, fn.Block(target), nil, regs, frame)
	case mir.TMatch:
		scrutinee := regs[term.Scrutinee]
		for _, arm := range term.Arms {
			bindings := map[string]runtime.Value{}
			if !dispatch.MatchPattern(arm.Pattern, scrutinee, bindings) {
				continue
			}
			armFrame := runtime.NewFrame(frame, frame.Module())
			for k, v := range bindings {
				armFrame.Set(k, v)
			}
			if arm.Guard != nil {
				gv, err := i.evalOp(arm.Guard, armFrame)
				if err != nil {
					return runtime.Value{}, err
				}
				if !gv.Truthy() {
					continue
				}
			}
			return i.execFrom(fn, fn.Block(arm.Target), nil, regs, armFrame)
		}
		return i.execFrom(fn, fn.Block(term.NoMatch), nil, regs, frame)
	default:
		return runtime.Value{}, fmt.Errorf("interp: unknown terminator kind %v", term.Kind)
	}
}

func (i *Interpreter) execInstr(instr mir.Instruction, regs map[mir.Reg]runtime.Value, frame *runtime.Frame) (runtime.Value, error) {
	switch instr.Kind {
	case mir.IConstInt:
		return runtime.Int(instr.Int), nil
	case mir.IConstFloat:
		return runtime.Float(instr.Float), nil
	case mir.IConstBool:
		return runtime.Bool_(instr.Bool), nil
	case mir.IConstNil:
		return runtime.Nil(), nil
	case mir.IConstString:
		return runtime.Str(instr.String), nil
	case mir.IConstAtom:
		return runtime.Atom(instr.Atom), nil
	case mir.ILoadVariable:
		v, ok := frame.Get(instr.Name)
		if !ok {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "load", Msg: "undefined variable " + instr.Name}
		}
		return v, nil
	case mir.IUnary:
		return runtime.ApplyUnary(instr.UnOp, regs[instr.Operands[0]])
	case mir.IBinary:
		return runtime.ApplyBinary(instr.BinOp, regs[instr.Operands[0]], regs[instr.Operands[1]])
	case mir.ICall:
		return i.execCall(instr, regs, frame)
	case mir.IMakeClosure:
		return runtime.Value{Kind: runtime.KClosure, Closure: &runtime.Closure{Symbol: instr.ClosureFn.Name, Fn: instr.ClosureFn, Env: frame}}, nil
	case mir.IQuestion:
		return execQuestion(regs[instr.Operands[0]])
	case mir.IMakeList:
		elems := regsToValues(instr.Operands, regs)
		return runtime.Value{Kind: runtime.KList, Elems: elems}, nil
	case mir.IMakeTuple:
		elems := regsToValues(instr.Operands, regs)
		return runtime.Value{Kind: runtime.KTuple, Elems: elems}, nil
	case mir.IMakeMap:
		entries := make([]runtime.MapEntry, 0, len(instr.Operands)/2)
		for idx := 0; idx+1 < len(instr.Operands); idx += 2 {
			entries = append(entries, runtime.MapEntry{Key: regs[instr.Operands[idx]], Value: regs[instr.Operands[idx+1]]})
		}
		return runtime.Value{Kind: runtime.KMap, Entries: entries}, nil
	case mir.IMakeKeyword:
		entries := make([]runtime.KeywordEntry, len(instr.Keys))
		for idx, k := range instr.Keys {
			entries[idx] = runtime.KeywordEntry{Key: k, Value: regs[instr.Operands[idx]]}
		}
		return runtime.Value{Kind: runtime.KKeyword, KwEntries: entries}, nil
	case mir.IMakeStruct:
		fields := map[string]runtime.Value{}
		for idx, k := range instr.Keys {
			fields[k] = regs[instr.Operands[idx]]
		}
		return runtime.Value{Kind: runtime.KStruct, StructModule: instr.Module, Fields: fields}, nil
	case mir.IUpdateStruct:
		base := regs[instr.Operands[0]]
		if base.Kind != runtime.KStruct {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "struct update", Msg: "base value is not a struct"}
		}
		fields := map[string]runtime.Value{}
		for k, v := range base.Fields {
			fields[k] = v
		}
		for idx, k := range instr.Keys {
			fields[k] = regs[instr.Operands[idx+1]]
		}
		return runtime.Value{Kind: runtime.KStruct, StructModule: base.StructModule, Fields: fields}, nil
	case mir.IAccess:
		return accessValue(regs[instr.Operands[0]], regs[instr.Operands[1]])
	case mir.IDotAccess:
		return dotAccessValue(regs[instr.Operands[0]], instr.Field)
	case mir.IRaise:
		fields := map[string]runtime.Value{}
		for idx, k := range instr.Keys {
			fields[k] = regs[instr.Operands[idx]]
		}
		return runtime.Value{}, &runtime.RaisedError{Module: instr.Module, Value: runtime.Value{Kind: runtime.KStruct, StructModule: instr.Module, Fields: fields}}
	case mir.IFor:
		return i.execFor(instr, regs, frame)
	case mir.ITry:
		return i.execTry(instr, frame)
	case mir.IAssign:
		v := regs[instr.Operands[0]]
		bindings := map[string]runtime.Value{}
		if !dispatch.MatchPattern(instr.AssignPattern, v, bindings) {
			return runtime.Value{}, &runtime.BadMatchError{Value: v}
		}
		for k, bv := range bindings {
			frame.Set(k, bv)
		}
		return v, nil
	default:
		return runtime.Value{}, fmt.Errorf("interp: unsupported instruction kind %v", instr.Kind)
	}
}

func regsToValues(rs []mir.Reg, regs map[mir.Reg]runtime.Value) []runtime.Value {
	out := make([]runtime.Value, len(rs))
	for i, r := range rs {
		out[i] = regs[r]
	}
	return out
}

func execQuestion(v runtime.Value) (runtime.Value, error) {
	switch v.Kind {
	case runtime.KResultOk:
		return *v.Inner, nil
	case runtime.KResultErr:
		return runtime.Value{}, &runtime.RaisedError{Module: "Result", Value: *v.Inner}
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "?", Msg: "expected a Result value"}
	}
}

func (i *Interpreter) execCall(instr mir.Instruction, regs map[mir.Reg]runtime.Value, frame *runtime.Frame) (runtime.Value, error) {
	operands := instr.Operands
	if instr.Callee.Kind == ir.CalleeClosure {
		cv := regs[operands[0]]
		args := regsToValues(operands[1:], regs)
		return i.invokeClosure(cv, args)
	}
	args := regsToValues(operands, regs)
	switch instr.Callee.Kind {
	case ir.CalleeBuiltin:
		return i.callBuiltin(instr.Callee.Name, args)
	case ir.CalleeLocal:
		return i.Eval(frame.Module(), instr.Callee.Name, args)
	case ir.CalleeQualified:
		return i.Eval(instr.Callee.Module, instr.Callee.Name, args)
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: "call", Msg: "unknown callee kind"}
	}
}

// callBuiltin implements the closed-world builtin surface a program can
// reach from CalleeBuiltin ICall instructions: arithmetic/comparison
// operators exposed as callables (`Kernel.+/2`-style), to_string (used by
// interpolation lowering), the is_* guard predicates, a handful of
// collection helpers, and host_call's dispatch into the host registry.
func (i *Interpreter) callBuiltin(name string, args []runtime.Value) (runtime.Value, error) {
	switch name {
	case "+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">=", "<>", "++", "--":
		if len(args) != 2 {
			return runtime.Value{}, &runtime.BadArgumentError{Op: name, Msg: "expected 2 arguments"}
		}
		return runtime.ApplyBinary(name, args[0], args[1])
	case "to_string":
		if len(args) != 1 {
			return runtime.Value{}, &runtime.BadArgumentError{Op: name, Msg: "expected 1 argument"}
		}
		v := args[0]
		if v.Kind == runtime.KString {
			return v, nil
		}
		return runtime.Str(runtime.Render(v)), nil
	case "length":
		if len(args) != 1 {
			return runtime.Value{}, &runtime.BadArgumentError{Op: name, Msg: "expected 1 argument"}
		}
		switch args[0].Kind {
		case runtime.KList, runtime.KTuple:
			return runtime.Int(int64(len(args[0].Elems))), nil
		case runtime.KString:
			return runtime.Int(int64(len([]rune(args[0].Str)))), nil
		case runtime.KMap:
			return runtime.Int(int64(len(args[0].Entries))), nil
		}
		return runtime.Value{}, &runtime.BadArgumentError{Op: name, Msg: "expected a list, tuple, string, or map"}
	case "is_integer":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KInt), nil
	case "is_float":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KFloat), nil
	case "is_number":
		return runtime.Bool_(len(args) == 1 && (args[0].Kind == runtime.KInt || args[0].Kind == runtime.KFloat)), nil
	case "is_atom":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KAtom), nil
	case "is_binary":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KString), nil
	case "is_list":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KList), nil
	case "is_tuple":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KTuple), nil
	case "is_map":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KMap), nil
	case "is_nil":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KNil), nil
	case "is_boolean":
		return runtime.Bool_(len(args) == 1 && args[0].Kind == runtime.KBool), nil
	case "host_call":
		return i.callHost(args)
	default:
		return runtime.Value{}, &runtime.BadArgumentError{Op: name, Msg: "undefined builtin " + name}
	}
}

// callHost implements host_call(:name, arg1, arg2, ...): typing.go already
// enforces the first argument is an atom literal (E2001); here it's
// resolved dynamically against the interpreter's host registry.
func (i *Interpreter) callHost(args []runtime.Value) (runtime.Value, error) {
	if len(args) == 0 || args[0].Kind != runtime.KAtom {
		return runtime.Value{}, &runtime.BadArgumentError{Op: "host_call", Msg: "first argument must be an atom"}
	}
	name := args[0].Str
	fn, ok := i.hosts[name]
	if !ok {
		return runtime.Value{}, &runtime.HostError{Name: name, Err: fmt.Errorf("no such host function")}
	}
	v, err := fn(args[1:])
	if err != nil {
		return runtime.Value{}, &runtime.HostError{Name: name, Err: err}
	}
	return v, nil
}

func (i *Interpreter) execFor(instr mir.Instruction, regs map[mir.Reg]runtime.Value, frame *runtime.Frame) (runtime.Value, error) {
	lists := make([][]runtime.Value, len(instr.ForClauses))
	for idx, c := range instr.ForClauses {
		src := regs[c.Source]
		if src.Kind != runtime.KList {
			return runtime.Value{}, &runtime.BadArgumentError{Op: "for", Msg: "generator source must be a list"}
		}
		lists[idx] = src.Elems
	}

	bodyFn := instr.ForBodyFn
	var results []runtime.Value
	var acc runtime.Value
	if instr.ForHasReduce {
		acc = regs[instr.ForReduce]
	}

	var iterErr error
	var iterate func(idx int, bindings map[string]runtime.Value)
	iterate = func(idx int, bindings map[string]runtime.Value) {
		if iterErr != nil {
			return
		}
		if idx == len(lists) {
			filterFrame := runtime.NewFrame(frame, frame.Module())
			for k, v := range bindings {
				filterFrame.Set(k, v)
			}
			for fi := range instr.ForFilters {
				fv, err := i.evalOp(&instr.ForFilters[fi], filterFrame)
				if err != nil {
					iterErr = err
					return
				}
				if !fv.Truthy() {
					return
				}
			}
			bodyFrame := runtime.NewFrame(frame, frame.Module())
			for k, v := range bindings {
				bodyFrame.Set(k, v)
			}
			if instr.ForHasReduce {
				bodyFrame.Set(instr.ForAccVar, acc)
			}
			result, err := i.execFunction(bodyFn, bodyFrame)
			if err != nil {
				iterErr = err
				return
			}
			if instr.ForHasReduce {
				acc = result
			} else {
				results = append(results, result)
			}
			return
		}
		pattern := instr.ForClauses[idx].Pattern
		for _, elem := range lists[idx] {
			nb := make(map[string]runtime.Value, len(bindings)+1)
			for k, v := range bindings {
				nb[k] = v
			}
			if dispatch.MatchPattern(pattern, elem, nb) {
				iterate(idx+1, nb)
				if iterErr != nil {
					return
				}
			}
		}
	}
	iterate(0, map[string]runtime.Value{})
	if iterErr != nil {
		return runtime.Value{}, iterErr
	}

	if instr.ForHasReduce {
		return acc, nil
	}
	if instr.ForHasInto {
		return runtime.CollectInto(regs[instr.ForInto], results)
	}
	return runtime.Value{Kind: runtime.KList, Elems: results}, nil
}

func (i *Interpreter) execTry(instr mir.Instruction, frame *runtime.Frame) (runtime.Value, error) {
	result, bodyErr := i.execFunction(instr.TryBodyFn, runtime.NewFrame(frame, frame.Module()))

	var finalVal runtime.Value
	var finalErr error
	if bodyErr == nil {
		finalVal = result
	} else if raised, ok := bodyErr.(*runtime.RaisedError); ok {
		handled := false
		for _, rh := range instr.TryRescues {
			if rh.Module != "" && rh.Module != raised.Module {
				continue
			}
			rescueFrame := runtime.NewFrame(frame, frame.Module())
			if len(rh.BodyFn.Params) > 0 {
				rescueFrame.Set(rh.BodyFn.Params[0].Name, raised.Value)
			}
			v, err := i.execFunction(rh.BodyFn, rescueFrame)
			finalVal, finalErr = v, err
			handled = true
			break
		}
		if !handled {
			finalErr = bodyErr
		}
	} else {
		finalErr = bodyErr
	}

	if instr.TryAfterFn != nil {
		_, afterErr := i.execFunction(instr.TryAfterFn, runtime.NewFrame(frame, frame.Module()))
		if afterErr != nil && finalErr == nil {
			finalErr = afterErr
		}
	}
	return finalVal, finalErr
}
