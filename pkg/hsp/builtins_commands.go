package hsp

import (
	"bufio"
	"fmt"
)

// builtinCommand is a side-effecting builtin invoked from statement
// context. Commands do not produce a value.
type builtinCommand func(vm *VM, args []Value) error

var builtinCommands map[string]builtinCommand

func init() {
	builtinCommands = map[string]builtinCommand{
		"dim":       cmdDim,
		"ddim":      cmdDDim,
		"sdim":      cmdSDim,
		"poke":      cmdPoke,
		"wpoke":     cmdWPoke,
		"lpoke":     cmdLPoke,
		"mes":       cmdMes,
		"input":     cmdInput,
		"randomize": cmdRandomize,
		"bench":     cmdBench,
	}
}

func lookupCommand(name string) (builtinCommand, bool) {
	c, ok := builtinCommands[asciiLower(name)]
	return c, ok
}

func dimTarget(name string, args []Value) (int, error) {
	if len(args) < 1 {
		return 0, argCountError(name, 1, len(args))
	}
	if len(args) > 1 {
		return 0, raise(StageRuntime, 0, ErrMultiDimIndex)
	}
	length := int(args[0].AsInt())
	if length < 1 {
		length = 1
	}
	return length, nil
}

// cmdDim/cmdDDim/cmdSDim declare a variable's array shape from scratch,
// discarding any prior contents — mirroring dim/ddim/sdim's role as
// explicit allocation commands rather than assignments.
func cmdDim(vm *VM, args []Value) error {
	return declareVariable(vm, "dim", args, VarInt, defaultGranule)
}

func cmdDDim(vm *VM, args []Value) error {
	return declareVariable(vm, "ddim", args, VarDouble, defaultGranule)
}

func cmdSDim(vm *VM, args []Value) error {
	return declareVariable(vm, "sdim", args, VarString, 64)
}

func declareVariable(vm *VM, cmdName string, args []Value, typ VarType, granule int) error {
	if len(args) < 1 || args[0].Kind != KindVarRef {
		return raisef(StageRuntime, 0, "%w: %s requires a variable target", ErrNotAVariable, cmdName)
	}
	name := args[0].Var.Name
	length, err := dimTarget(cmdName, args[1:])
	if err != nil {
		return err
	}
	v := &Variable{Name: name}
	v.prepare(typ, granule, length)
	vm.vars.Declare(v)
	return nil
}

func cmdPoke(vm *VM, args []Value) error { return pokeCommand("poke", args, 1) }
func cmdWPoke(vm *VM, args []Value) error { return pokeCommand("wpoke", args, 2) }
func cmdLPoke(vm *VM, args []Value) error { return pokeCommand("lpoke", args, 4) }

func pokeCommand(name string, args []Value, width int) error {
	if len(args) != 3 {
		return argCountError(name, 3, len(args))
	}
	if args[0].Kind != KindVarRef || args[0].Var.Type != VarString {
		return raisef(StageRuntime, 0, "%w: %s requires a string variable", ErrTypeMismatch, name)
	}
	buf := args[0].Var.strs[args[0].Idx]
	off := int(args[1].AsInt())
	if off < 0 || off+width > len(buf) {
		return raise(StageRuntime, 0, ErrOutOfRange)
	}
	v := args[2].AsInt()
	switch width {
	case 1:
		buf[off] = byte(v)
	case 2:
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	case 4:
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	return nil
}

func cmdMes(vm *VM, args []Value) error {
	var line string
	if len(args) > 0 {
		line = args[0].AsString()
	}
	fmt.Fprintln(vm.out, line)
	return nil
}

// input reads up to len bytes from vm.in into a string variable: mode 0
// (default) reads exactly len bytes, mode 1 stops early at a bare '\n',
// mode 2 stops early at '\r\n' or a bare '\n'. The terminator is
// consumed but not stored. Always writes a STRING regardless of the
// target's prior type, and sets strsize to the number of bytes actually
// read.
func cmdInput(vm *VM, args []Value) error {
	if len(args) < 2 {
		return argCountError("input", 2, len(args))
	}
	if len(args) > 3 {
		return raisef(StageRuntime, 0, "%w: input wants at most 3 arguments, got %d", ErrArgCount, len(args))
	}
	if args[0].Kind != KindVarRef {
		return raisef(StageRuntime, 0, "%w: input requires a variable target", ErrNotAVariable)
	}
	if args[0].Idx > 0 {
		return raisef(StageRuntime, 0, "%w: input target may not be an array element", ErrNotAVariable)
	}

	length := int(args[1].AsInt())
	if length < 0 {
		length = 0
	}
	mode := 0
	if len(args) > 2 {
		mode = int(args[2].AsInt())
	}

	reader := vm.inReader()
	buf := make([]byte, 0, length)
	for len(buf) < length {
		b, err := reader.ReadByte()
		if err != nil {
			break
		}
		if mode == 1 && b == '\n' {
			break
		}
		if mode == 2 {
			if b == '\r' {
				nb, err := reader.ReadByte()
				if err == nil {
					if nb == '\n' {
						break
					}
					reader.UnreadByte()
				}
			} else if b == '\n' {
				break
			}
		}
		buf = append(buf, b)
	}

	vm.sys.strsize = int64(len(buf))
	target := args[0].Var
	return target.Set(args[0].Idx, StringValue(string(buf)))
}

func cmdRandomize(vm *VM, args []Value) error {
	var seed int64
	if len(args) > 0 {
		seed = args[0].AsInt()
	}
	vm.seedRNG(seed)
	return nil
}

// bench brackets a run count with a wall-clock measurement (see
// runBenchmark in vm.go) and stores the elapsed microseconds in
// refdval. codegen already rejected this call if benchAvailable is
// false, so by the time the VM executes it the timer is known to be
// compiled in.
func cmdBench(vm *VM, args []Value) error {
	count := int64(1)
	if len(args) > 0 {
		count = args[0].AsInt()
	}
	vm.runBenchmark(count)
	return nil
}

// inReader lazily wraps vm.in so callers don't need to construct a
// bufio.Reader up front.
func (vm *VM) inReader() *bufio.Reader {
	if vm.inBuf == nil {
		vm.inBuf = bufio.NewReader(vm.in)
	}
	return vm.inBuf
}
