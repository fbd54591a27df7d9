package hsp

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	maxCallDepth = 16
	maxLoopDepth = 16
)

// benchAvailable stands in for a compile-time timer toggle: flipping it
// off makes codegen reject bench at compile time rather than deferring
// to a runtime check.
const benchAvailable = true

// callFrame is one entry of the gosub/return call stack.
type callFrame struct {
	returnPC int
}

// loopFrame is one entry of the repeat/loop runtime stack: the position
// to jump back to, the iteration limit (if any), and the running count
// exposed as the cnt system variable.
type loopFrame struct {
	startPC  int
	hasLimit bool
	limit    int64
	counter  int64
}

// VM is a stack-based interpreter: a value stack, a bounded call-frame
// stack, a bounded loop-frame stack, and a fixed bank of
// system-variable slots, executing one Bytecode program against one
// VariableTable.
type VM struct {
	bc     *Bytecode
	vars   *VariableTable
	labels *LabelTable
	sys    sysvars

	stack []Value
	calls []callFrame
	loops []loopFrame
	pc    int
	ended bool

	out   io.Writer
	in    io.Reader
	inBuf *bufio.Reader
	rng   *rand.Rand
}

// NewVM creates a VM ready to execute bc against vars, resolving
// labels/gosub/goto through labels.
func NewVM(bc *Bytecode, vars *VariableTable, labels *LabelTable, out io.Writer, in io.Reader) *VM {
	vm := &VM{bc: bc, vars: vars, labels: labels, out: out, in: in}
	vm.seedRNG(time.Now().UnixNano())
	return vm
}

func (vm *VM) seedRNG(seed int64) {
	vm.rng = rand.New(rand.NewSource(seed))
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (Value, error) {
	n := len(vm.stack)
	if n == 0 {
		return Value{}, raise(StageRuntime, 0, ErrStackUnderflow)
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// Run executes the whole program starting at pc 0 until an END
// instruction or the end of the buffer is reached.
func (vm *VM) Run() error {
	vm.pc = 0
	for !vm.ended && vm.pc < vm.bc.Len() {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) step() error {
	op := vm.bc.ReadOp(vm.pc)
	pc := vm.pc + 1

	switch op {
	case OpNop, OpLabel:
		vm.pc = pc

	case OpEnd:
		vm.ended = true

	case OpPushInt:
		v, next := vm.bc.ReadInt(pc)
		vm.push(IntValue(v))
		vm.pc = next

	case OpPushDouble:
		v, next := vm.bc.ReadDouble(pc)
		vm.push(DoubleValue(v))
		vm.pc = next

	case OpPushString:
		s, next := vm.bc.ReadString(pc)
		vm.push(StringValue(s))
		vm.pc = next

	case OpPushVariable:
		name, next := vm.bc.ReadString(pc)
		idxVal, err := vm.pop()
		if err != nil {
			return err
		}
		v := vm.vars.LookupOrCreate(name)
		idx := int(idxVal.AsInt())
		if err := v.checkIndex(idx); err != nil {
			return err
		}
		vm.push(VarRefValue(v, idx))
		vm.pc = next

	case OpPushSysvar:
		id64, next := vm.bc.ReadInt(pc)
		id := sysvarID(id64)
		if id == sysvarCnt {
			if len(vm.loops) == 0 {
				return raise(StageRuntime, 0, ErrCntOutsideLoop)
			}
			vm.push(IntValue(vm.loops[len(vm.loops)-1].counter))
		} else {
			vm.push(vm.sys.get(id))
		}
		vm.pc = next

	case OpAssign, OpAddAssign, OpSubAssign, OpMulAssign, OpDivAssign,
		OpModAssign, OpBOrAssign, OpBAndAssign, OpBXorAssign:
		name, next := vm.bc.ReadString(pc)
		rhs, err := vm.pop()
		if err != nil {
			return err
		}
		idxVal, err := vm.pop()
		if err != nil {
			return err
		}
		v := vm.vars.LookupOrCreate(name)
		idx := int(idxVal.AsInt())
		if err := vm.applyAssign(op, v, idx, rhs); err != nil {
			return err
		}
		vm.pc = next

	case OpBOr, OpBAnd, OpBXor, OpEq, OpNeq, OpGt, OpGtoe, OpLt, OpLtoe,
		OpAdd, OpSub, OpMul, OpDiv, OpMod:
		right, err := vm.pop()
		if err != nil {
			return err
		}
		left, err := vm.pop()
		if err != nil {
			return err
		}
		result, err := vm.binaryOp(op, left, right)
		if err != nil {
			return err
		}
		vm.push(result)
		vm.pc = pc

	case OpUnaryMinus:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		r, err := valueUnaryMinus(0, v)
		if err != nil {
			return err
		}
		vm.push(r)
		vm.pc = pc

	case OpIf:
		target, next := vm.bc.ReadInt(pc)
		cond, err := vm.pop()
		if err != nil {
			return err
		}
		if cond.AsBool() {
			vm.pc = next
		} else {
			vm.pc = int(target)
		}

	case OpJump:
		target, _ := vm.bc.ReadInt(pc)
		vm.pc = int(target)

	case OpRepeat:
		limitVal, err := vm.pop()
		if err != nil {
			return err
		}
		if len(vm.loops) >= maxLoopDepth {
			return raise(StageRuntime, 0, ErrRepeatOverflow)
		}
		limit := limitVal.AsInt()
		vm.loops = append(vm.loops, loopFrame{startPC: pc, hasLimit: limit >= 0, limit: limit})
		vm.sys.looplev = int64(len(vm.loops))
		vm.pc = pc

	case OpLoop:
		target, next := vm.bc.ReadInt(pc)
		if len(vm.loops) == 0 {
			return raise(StageRuntime, 0, ErrLoopOutsideRepeat)
		}
		top := &vm.loops[len(vm.loops)-1]
		top.counter++
		if !top.hasLimit || top.counter < top.limit {
			vm.pc = int(target)
		} else {
			vm.loops = vm.loops[:len(vm.loops)-1]
			vm.sys.looplev = int64(len(vm.loops))
			vm.pc = next
		}

	case OpContinue:
		target, _ := vm.bc.ReadInt(pc)
		if len(vm.loops) == 0 {
			return raise(StageRuntime, 0, ErrLoopOutsideRepeat)
		}
		vm.pc = int(target)

	case OpBreak:
		target, _ := vm.bc.ReadInt(pc)
		if len(vm.loops) == 0 {
			return raise(StageRuntime, 0, ErrLoopOutsideRepeat)
		}
		vm.loops = vm.loops[:len(vm.loops)-1]
		vm.sys.looplev = int64(len(vm.loops))
		vm.pc = int(target)

	case OpGoto, OpGosub:
		name, next := vm.bc.ReadString(pc)
		pos, ok := vm.labels.Position(name)
		if !ok {
			return raise(StageRuntime, 0, ErrUnknownLabel)
		}
		if op == OpGosub {
			if len(vm.calls) >= maxCallDepth {
				return raise(StageRuntime, 0, ErrGosubOverflow)
			}
			vm.calls = append(vm.calls, callFrame{returnPC: next})
		}
		vm.pc = pos

	case OpReturn:
		hasValue, _ := vm.bc.ReadInt(pc)
		if hasValue != 0 {
			v, err := vm.pop()
			if err != nil {
				return err
			}
			switch v.primitiveKind() {
			case KindDouble:
				vm.sys.refdval = v.AsDouble()
			case KindString:
				vm.sys.refstr = v.AsString()
			default:
				vm.sys.stat = v.AsInt()
			}
		}
		if len(vm.calls) == 0 {
			return raise(StageRuntime, 0, ErrReturnOutsideGosub)
		}
		top := vm.calls[len(vm.calls)-1]
		vm.calls = vm.calls[:len(vm.calls)-1]
		vm.pc = top.returnPC

	case OpCommand:
		name, next := vm.bc.ReadString(pc)
		argc, next2 := vm.bc.ReadInt(next)
		args, err := vm.popArgs(int(argc))
		if err != nil {
			return err
		}
		impl, ok := lookupCommand(name)
		if !ok {
			return raisef(StageRuntime, 0, "%w: %s", ErrUnknownCommand, name)
		}
		if err := impl(vm, args); err != nil {
			return err
		}
		vm.pc = next2

	case OpFunction:
		name, next := vm.bc.ReadString(pc)
		argc, next2 := vm.bc.ReadInt(next)
		args, err := vm.popArgs(int(argc))
		if err != nil {
			return err
		}
		impl, ok := lookupFunction(name)
		if !ok {
			return raisef(StageRuntime, 0, "%w: %s", ErrUnknownFunction, name)
		}
		result, err := impl(vm, args)
		if err != nil {
			return err
		}
		vm.push(result)
		vm.pc = next2

	default:
		return raisef(StageRuntime, 0, "%w: opcode %d", ErrMalformedStmt, op)
	}
	return nil
}

// popArgs pops n values off the stack and returns them in call order
// (the order they were pushed/evaluated in).
func (vm *VM) popArgs(n int) ([]Value, error) {
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (vm *VM) binaryOp(op OpCode, left, right Value) (Value, error) {
	switch op {
	case OpBOr:
		return valueBOr(0, left, right)
	case OpBAnd:
		return valueBAnd(0, left, right)
	case OpBXor:
		return valueBXor(0, left, right)
	case OpEq:
		return valueEq(left, right), nil
	case OpNeq:
		return valueNeq(left, right), nil
	case OpGt:
		return valueGt(0, left, right)
	case OpGtoe:
		return valueGtoe(0, left, right)
	case OpLt:
		return valueLt(0, left, right)
	case OpLtoe:
		return valueLtoe(0, left, right)
	case OpAdd:
		return valueAdd(0, left, right)
	case OpSub:
		return valueSub(0, left, right)
	case OpMul:
		return valueMul(0, left, right)
	case OpDiv:
		return valueDiv(0, left, right)
	case OpMod:
		return valueMod(0, left, right)
	default:
		return Value{}, raisef(StageRuntime, 0, "%w: opcode %d", ErrMalformedStmt, op)
	}
}

func (vm *VM) applyAssign(op OpCode, v *Variable, idx int, rhs Value) error {
	switch op {
	case OpAssign:
		return v.Set(idx, rhs)
	case OpAddAssign:
		return v.Add(idx, rhs)
	case OpSubAssign:
		return v.Sub(idx, rhs)
	case OpMulAssign:
		return v.Mul(idx, rhs)
	case OpDivAssign:
		return v.Div(idx, rhs)
	case OpModAssign:
		return v.Mod(idx, rhs)
	case OpBOrAssign:
		return v.BOr(idx, rhs)
	case OpBAndAssign:
		return v.BAnd(idx, rhs)
	case OpBXorAssign:
		return v.BXor(idx, rhs)
	default:
		return raisef(StageRuntime, 0, "%w: opcode %d", ErrMalformedStmt, op)
	}
}

// runBenchmark times count iterations of doing nothing but the loop
// overhead itself — a crude placeholder for the original's instruction
// counter, since this VM has no separate "tight inner loop" to
// benchmark in isolation. Stores elapsed microseconds in refdval and a
// human-readable "N iterations in <duration>" summary in refstr.
func (vm *VM) runBenchmark(count int64) {
	start := time.Now()
	for i := int64(0); i < count; i++ {
	}
	elapsed := time.Since(start)
	vm.sys.refdval = float64(elapsed.Microseconds())
	vm.sys.refstr = fmt.Sprintf("%s iterations in %s", humanize.Comma(count), elapsed)
}
