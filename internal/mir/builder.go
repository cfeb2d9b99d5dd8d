package mir

import (
	"fmt"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/ir"
)

// Build lowers every ir.Function into an mir.Function, lambda-lifting
// closures/for-bodies/try-handlers into their own synthetic functions
// appended after the primary ones.
func Build(fns []*ir.Function) ([]*Function, error) {
	ctx := &buildCtx{}
	out := make([]*Function, 0, len(fns))
	for _, fn := range fns {
		mfn, err := buildFunction(ctx, fn.Module, fn.Name, fn.Params, fn.Guard, fn.Body, fn.Offset, fn.Public)
		if err != nil {
			return nil, err
		}
		out = append(out, mfn)
	}
	return append(out, ctx.extra...), nil
}

// buildCtx is shared across the whole Build call so lifted closures get
// globally unique synthetic names.
type buildCtx struct {
	seq   int
	extra []*Function
}

func (c *buildCtx) nextName(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s$%d", prefix, c.seq)
}

type builder struct {
	ctx         *buildCtx
	blocks      []*Block
	cur         *Block
	nextReg     Reg
	nextBlockID BlockID
}

func buildFunction(ctx *buildCtx, module, name string, params []ir.Param, guard *ir.Op, body []ir.Op, offset int, public bool) (*Function, error) {
	b := &builder{ctx: ctx}
	b.cur = b.newBlock(nil)
	last, err := b.lowerSeq(body, offset)
	if err != nil {
		return nil, err
	}
	b.cur.Term = Terminator{Kind: TReturn, Value: last}
	return &Function{
		Module: module,
		Name:   name,
		Arity:  len(params),
		Params: params,
		Guard:  guard,
		Blocks: b.blocks,
		Offset: offset,
		Public: public,
	}, nil
}

func (b *builder) newBlock(args []Reg) *Block {
	blk := &Block{ID: b.nextBlockID, Args: args}
	b.nextBlockID++
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *builder) freshReg() Reg {
	r := b.nextReg
	b.nextReg++
	return r
}

func (b *builder) emit(instr Instruction) Reg {
	instr.Dest = b.freshReg()
	b.cur.Instructions = append(b.cur.Instructions, instr)
	return instr.Dest
}

// lowerSeq lowers a sequence of sibling ir.Op statements, returning the
// last one's result register (or a fresh nil constant if body is empty).
func (b *builder) lowerSeq(body []ir.Op, offset int) (Reg, error) {
	var last Reg
	has := false
	for i := range body {
		r, err := b.lower(&body[i])
		if err != nil {
			return 0, err
		}
		last, has = r, true
	}
	if !has {
		last = b.emit(Instruction{Kind: IConstNil, Offset: offset})
	}
	return last, nil
}

func (b *builder) lowerMany(ops []ir.Op) ([]Reg, error) {
	out := make([]Reg, len(ops))
	for i := range ops {
		r, err := b.lower(&ops[i])
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (b *builder) lower(op *ir.Op) (Reg, error) {
	switch op.Kind {
	case ir.OpConstInt:
		return b.emit(Instruction{Kind: IConstInt, Offset: op.Offset, Int: op.Int}), nil
	case ir.OpConstFloat:
		return b.emit(Instruction{Kind: IConstFloat, Offset: op.Offset, Float: op.Float}), nil
	case ir.OpConstBool:
		return b.emit(Instruction{Kind: IConstBool, Offset: op.Offset, Bool: op.Bool}), nil
	case ir.OpConstNil:
		return b.emit(Instruction{Kind: IConstNil, Offset: op.Offset}), nil
	case ir.OpConstString:
		return b.emit(Instruction{Kind: IConstString, Offset: op.Offset, String: op.String}), nil
	case ir.OpConstAtom:
		return b.emit(Instruction{Kind: IConstAtom, Offset: op.Offset, Atom: op.Atom}), nil
	case ir.OpLoadVariable:
		return b.emit(Instruction{Kind: ILoadVariable, Offset: op.Offset, Name: op.Name}), nil
	case ir.OpUnary:
		l, err := b.lower(op.Left)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IUnary, Offset: op.Offset, UnOp: op.UnOp, Operands: []Reg{l}}), nil
	case ir.OpBinary:
		if op.BinOp == "&&" || op.BinOp == "||" || op.BinOp == "and" || op.BinOp == "or" {
			return b.lowerShortCircuit(op)
		}
		l, err := b.lower(op.Left)
		if err != nil {
			return 0, err
		}
		r, err := b.lower(op.Right)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IBinary, Offset: op.Offset, BinOp: op.BinOp, Operands: []Reg{l, r}}), nil
	case ir.OpPipe:
		// `lhs |> rhs` is call sugar: rhs must be a call whose arg list gains
		// lhs prepended. The parser keeps Pipe distinct for diagnostics; MIR
		// folds it into a plain call the same way the dispatcher sees any
		// other call.
		lhs, err := b.lower(op.Lhs)
		if err != nil {
			return 0, err
		}
		if op.Rhs.Kind != ir.OpCall {
			return 0, fmt.Errorf("mir: pipe target is not a call at offset %d", op.Offset)
		}
		args := make([]Reg, 0, len(op.Rhs.Args)+1)
		args = append(args, lhs)
		rest, err := b.lowerMany(op.Rhs.Args)
		if err != nil {
			return 0, err
		}
		args = append(args, rest...)
		return b.emit(Instruction{Kind: ICall, Offset: op.Offset, Callee: op.Rhs.Callee, Operands: args}), nil
	case ir.OpCall:
		var closureReg []Reg
		callee := op.Callee
		if callee.Kind == ir.CalleeClosure {
			cr, err := b.lower(callee.Closure)
			if err != nil {
				return 0, err
			}
			closureReg = []Reg{cr}
		}
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: ICall, Offset: op.Offset, Callee: callee, Operands: append(closureReg, args...)}), nil
	case ir.OpQuestion:
		r, err := b.lower(op.Subject)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IQuestion, Offset: op.Offset, Operands: []Reg{r}}), nil
	case ir.OpMakeList:
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IMakeList, Offset: op.Offset, Operands: args}), nil
	case ir.OpMakeTuple:
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IMakeTuple, Offset: op.Offset, Operands: args}), nil
	case ir.OpMakeMap:
		entries, err := b.lowerMany(op.Entry)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IMakeMap, Offset: op.Offset, Operands: entries}), nil
	case ir.OpMakeKeyword:
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IMakeKeyword, Offset: op.Offset, Keys: op.Keys, Operands: args}), nil
	case ir.OpMakeStruct:
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IMakeStruct, Offset: op.Offset, Module: op.Module, Keys: op.Keys, Operands: args}), nil
	case ir.OpUpdateStruct:
		base, err := b.lower(op.Base)
		if err != nil {
			return 0, err
		}
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IUpdateStruct, Offset: op.Offset, Module: op.Module, Keys: op.Keys,
			Operands: append([]Reg{base}, args...)}), nil
	case ir.OpAccess:
		base, err := b.lower(op.Base)
		if err != nil {
			return 0, err
		}
		key, err := b.lower(op.Key)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IAccess, Offset: op.Offset, Operands: []Reg{base, key}}), nil
	case ir.OpDotAccess:
		base, err := b.lower(op.Base)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IDotAccess, Offset: op.Offset, Field: op.Field, Operands: []Reg{base}}), nil
	case ir.OpRaise:
		args, err := b.lowerMany(op.Args)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IRaise, Offset: op.Offset, Module: op.Module, Keys: op.Keys, Operands: args}), nil
	case ir.OpAssign:
		v, err := b.lower(op.AssignValue)
		if err != nil {
			return 0, err
		}
		return b.emit(Instruction{Kind: IAssign, Offset: op.Offset, AssignPattern: op.AssignPattern, Operands: []Reg{v}}), nil
	case ir.OpMakeClosure:
		return b.lowerMakeClosure(op)
	case ir.OpCase:
		return b.lowerCase(op)
	case ir.OpFor:
		return b.lowerFor(op)
	case ir.OpTry:
		return b.lowerTry(op)
	default:
		return b.emit(Instruction{Kind: IConstNil, Offset: op.Offset}), nil
	}
}

// lowerShortCircuit lowers &&/|| without evaluating the right operand
// unless it can affect the result: the left operand is evaluated eagerly
// in the entry block, then a ShortCircuit terminator branches to either a
// block that evaluates the right operand or one that jumps straight to
// the merge block with the left operand's own value.
func (b *builder) lowerShortCircuit(op *ir.Op) (Reg, error) {
	cond, err := b.lower(op.Left)
	if err != nil {
		return 0, err
	}
	entryBlock := b.cur

	evalRight := b.newBlock(nil)
	b.cur = evalRight
	rightReg, err := b.lower(op.Right)
	if err != nil {
		return 0, err
	}
	evalRightEnd := b.cur // lower(op.Right) may itself have advanced b.cur

	shortCircuit := b.newBlock(nil)

	mergeArg := b.freshReg()
	merge := b.newBlock([]Reg{mergeArg})

	evalRightEnd.Term = Terminator{Kind: TJump, Target: merge.ID, Args: []Reg{rightReg}}
	shortCircuit.Term = Terminator{Kind: TJump, Target: merge.ID, Args: []Reg{cond}}

	entryBlock.Term = Terminator{
		Kind:           TShortCircuit,
		Condition:      cond,
		ShortCircuitOp: op.BinOp,
		Then:           evalRight.ID,
		Else:           shortCircuit.ID,
	}
	b.cur = merge
	return mergeArg, nil
}

func (b *builder) lowerMakeClosure(op *ir.Op) (Reg, error) {
	name := b.ctx.nextName("closure")

	// CaptureNamed (&Module.fun/N or &fun/N) carries no ClosureBody of its
	// own: synthesize one that forwards every synthesized parameter
	// straight through to the captured function.
	if op.Callee.Name != "" && len(op.ClosureBody) == 0 {
		arity := int(op.Int)
		params := make([]ir.Param, arity)
		args := make([]ir.Op, arity)
		for i := 0; i < arity; i++ {
			pname := fmt.Sprintf("arg%d", i)
			params[i] = ir.Param{Name: pname}
			args[i] = ir.Op{Kind: ir.OpLoadVariable, Offset: op.Offset, Name: pname}
		}
		body := []ir.Op{{Kind: ir.OpCall, Offset: op.Offset, Callee: op.Callee, Args: args}}
		fn, err := buildFunction(b.ctx, "", name, params, nil, body, op.Offset, false)
		if err != nil {
			return 0, err
		}
		b.ctx.extra = append(b.ctx.extra, fn)
		return b.emit(Instruction{Kind: IMakeClosure, Offset: op.Offset, ClosureFn: fn}), nil
	}

	params := make([]ir.Param, len(op.ClosureParams))
	for i, p := range op.ClosureParams {
		var pat ast.Expr
		if i < len(op.ClosurePattern) {
			pat = op.ClosurePattern[i]
		}
		params[i] = ir.Param{Name: p, Pattern: pat}
	}
	fn, err := buildFunction(b.ctx, "", name, params, op.ClosureGuard, op.ClosureBody, op.Offset, false)
	if err != nil {
		return 0, err
	}
	b.ctx.extra = append(b.ctx.extra, fn)
	return b.emit(Instruction{Kind: IMakeClosure, Offset: op.Offset, ClosureFn: fn}), nil
}

func (b *builder) lowerCase(op *ir.Op) (Reg, error) {
	subject, err := b.lower(op.Subject)
	if err != nil {
		return 0, err
	}
	entryBlock := b.cur

	arms := make([]Arm, len(op.Branches))
	armBlocks := make([]*Block, len(op.Branches))
	armResults := make([]Reg, len(op.Branches))
	for i, br := range op.Branches {
		armBlock := b.newBlock(nil)
		b.cur = armBlock
		result, err := b.lowerSeq(br.Body, op.Offset)
		if err != nil {
			return 0, err
		}
		armBlocks[i] = b.cur // lowerSeq may have advanced b.cur past nested cases
		armResults[i] = result
		arms[i] = Arm{Pattern: br.Pattern, Guard: br.Guard, Target: armBlock.ID}
	}

	noMatch := b.newBlock(nil)
	noMatch.Term = Terminator{Kind: TReturn, Value: b.emitIn(noMatch, Instruction{Kind: IConstNil, Offset: op.Offset})}

	mergeArg := b.freshReg()
	merge := b.newBlock([]Reg{mergeArg})
	for i, blk := range armBlocks {
		blk.Term = Terminator{Kind: TJump, Target: merge.ID, Args: []Reg{armResults[i]}}
	}

	entryBlock.Term = Terminator{Kind: TMatch, Scrutinee: subject, Arms: arms, NoMatch: noMatch.ID}
	b.cur = merge
	return mergeArg, nil
}

// emitIn appends instr to blk rather than b.cur, used when constructing a
// block other than the builder's current one (e.g. the shared NoMatch
// block of a Match terminator).
func (b *builder) emitIn(blk *Block, instr Instruction) Reg {
	instr.Dest = b.freshReg()
	blk.Instructions = append(blk.Instructions, instr)
	return instr.Dest
}

func (b *builder) lowerFor(op *ir.Op) (Reg, error) {
	clauses := make([]ForClause, len(op.ForClauses))
	for i, c := range op.ForClauses {
		src, err := b.lower(&c.Source)
		if err != nil {
			return 0, err
		}
		clauses[i] = ForClause{Pattern: c.Pattern, Source: src}
	}
	params := make([]ir.Param, len(op.ForClauses))
	for i, c := range op.ForClauses {
		params[i] = ir.Param{Name: fmt.Sprintf("for$%d", i), Pattern: c.Pattern}
	}
	name := b.ctx.nextName("for_body")
	bodyFn, err := buildFunction(b.ctx, "", name, params, nil, []ir.Op{*op.ForBody}, op.Offset, false)
	if err != nil {
		return 0, err
	}
	b.ctx.extra = append(b.ctx.extra, bodyFn)

	instr := Instruction{
		Kind:       IFor,
		Offset:     op.Offset,
		ForClauses: clauses,
		ForFilters: op.ForFilters,
		ForBodyFn:  bodyFn,
		ForAccVar:  op.ForAccVar,
	}
	if op.ForInto != nil {
		r, err := b.lower(op.ForInto)
		if err != nil {
			return 0, err
		}
		instr.ForInto, instr.ForHasInto = r, true
	}
	if op.ForReduce != nil {
		r, err := b.lower(op.ForReduce)
		if err != nil {
			return 0, err
		}
		instr.ForReduce, instr.ForHasReduce = r, true
	}
	return b.emit(instr), nil
}

func (b *builder) lowerTry(op *ir.Op) (Reg, error) {
	bodyName := b.ctx.nextName("try_body")
	bodyFn, err := buildFunction(b.ctx, "", bodyName, nil, nil, op.TryBody, op.Offset, false)
	if err != nil {
		return 0, err
	}
	b.ctx.extra = append(b.ctx.extra, bodyFn)

	rescues := make([]RescueHandler, len(op.TryRescues))
	for i, rc := range op.TryRescues {
		rname := b.ctx.nextName("rescue")
		rfn, err := buildFunction(b.ctx, "", rname,
			[]ir.Param{{Name: rc.Binding}}, nil, rc.Body, op.Offset, false)
		if err != nil {
			return 0, err
		}
		b.ctx.extra = append(b.ctx.extra, rfn)
		rescues[i] = RescueHandler{Module: rc.Module, BodyFn: rfn}
	}

	var afterFn *Function
	if len(op.TryAfter) > 0 {
		aname := b.ctx.nextName("after")
		afterFn, err = buildFunction(b.ctx, "", aname, nil, nil, op.TryAfter, op.Offset, false)
		if err != nil {
			return 0, err
		}
		b.ctx.extra = append(b.ctx.extra, afterFn)
	}

	return b.emit(Instruction{
		Kind:       ITry,
		Offset:     op.Offset,
		TryBodyFn:  bodyFn,
		TryRescues: rescues,
		TryAfterFn: afterFn,
	}), nil
}
