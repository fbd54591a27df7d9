package hsp

import "math"

// builtinFunc is a value-returning builtin invoked from an expression
// context. Every function receives its already-evaluated argument
// list.
type builtinFunc func(vm *VM, args []Value) (Value, error)

var builtinFunctions map[string]builtinFunc

func init() {
	builtinFunctions = map[string]builtinFunc{
		"int":    fnInt,
		"double": fnDouble,
		"str":    fnStr,
		"peek":   fnPeek,
		"wpeek":  fnWPeek,
		"lpeek":  fnLPeek,
		"rnd":    fnRnd,
		"abs":    fnAbs,
		"absf":   fnAbsf,
		"deg2rad": fnDeg2Rad,
		"rad2deg": fnRad2Deg,
		"sin":    fnSin,
		"cos":    fnCos,
		"tan":    fnTan,
		"atan":   fnAtan,
		"expf":   fnExpf,
		"logf":   fnLogf,
		"powf":   fnPowf,
		"sqrt":   fnSqrt,
		"limit":  fnLimit,
		"limitf": fnLimitf,
		"strlen": fnStrlen,
	}
}

func lookupFunction(name string) (builtinFunc, bool) {
	f, ok := builtinFunctions[asciiLower(name)]
	return f, ok
}

func argCountError(name string, want, got int) error {
	return raisef(StageRuntime, 0, "%w: %s wants %d, got %d", ErrArgCount, name, want, got)
}

func fnInt(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("int", 1, len(args))
	}
	return IntValue(args[0].AsInt()), nil
}

func fnDouble(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("double", 1, len(args))
	}
	return DoubleValue(args[0].AsDouble()), nil
}

func fnStr(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("str", 1, len(args))
	}
	return StringValue(args[0].AsString()), nil
}

// peek/wpeek/lpeek read 1/2/4 bytes out of a string variable's raw
// backing buffer at a byte offset, zero-extending for peek/wpeek and
// interpreting the 4-byte read as a signed little-endian int32 for
// lpeek — the inverse of the poke family.
func fnPeek(vm *VM, args []Value) (Value, error) {
	buf, off, err := peekArgs("peek", args)
	if err != nil {
		return Value{}, err
	}
	if off < 0 || off >= len(buf) {
		return Value{}, raise(StageRuntime, 0, ErrOutOfRange)
	}
	return IntValue(int64(buf[off])), nil
}

func fnWPeek(vm *VM, args []Value) (Value, error) {
	buf, off, err := peekArgs("wpeek", args)
	if err != nil {
		return Value{}, err
	}
	if off < 0 || off+2 > len(buf) {
		return Value{}, raise(StageRuntime, 0, ErrOutOfRange)
	}
	v := uint16(buf[off]) | uint16(buf[off+1])<<8
	return IntValue(int64(v)), nil
}

func fnLPeek(vm *VM, args []Value) (Value, error) {
	buf, off, err := peekArgs("lpeek", args)
	if err != nil {
		return Value{}, err
	}
	if off < 0 || off+4 > len(buf) {
		return Value{}, raise(StageRuntime, 0, ErrOutOfRange)
	}
	v := uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	return IntValue(int64(int32(v))), nil
}

func peekArgs(name string, args []Value) ([]byte, int, error) {
	if len(args) != 2 {
		return nil, 0, argCountError(name, 2, len(args))
	}
	if args[0].Kind != KindVarRef {
		return nil, 0, raisef(StageRuntime, 0, "%w: %s requires a variable", ErrTypeMismatch, name)
	}
	v := args[0].Var
	if v.Type != VarString {
		return nil, 0, raisef(StageRuntime, 0, "%w: %s requires a string variable", ErrTypeMismatch, name)
	}
	return v.strs[args[0].Idx], int(args[1].AsInt()), nil
}

func fnRnd(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("rnd", 1, len(args))
	}
	n := args[0].AsInt()
	if n < 1 {
		return Value{}, raisef(StageRuntime, 0, "%w: rnd requires n >= 1, got %d", ErrOutOfRange, n)
	}
	return IntValue(vm.rng.Int63n(n)), nil
}

func fnAbs(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("abs", 1, len(args))
	}
	n := args[0].AsInt()
	if n < 0 {
		n = -n
	}
	return IntValue(n), nil
}

func fnAbsf(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("absf", 1, len(args))
	}
	return DoubleValue(math.Abs(args[0].AsDouble())), nil
}

func fnDeg2Rad(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("deg2rad", 1, len(args))
	}
	return DoubleValue(args[0].AsDouble() * math.Pi / 180.0), nil
}

func fnRad2Deg(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("rad2deg", 1, len(args))
	}
	return DoubleValue(args[0].AsDouble() * 180.0 / math.Pi), nil
}

func fnSin(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("sin", 1, len(args))
	}
	return DoubleValue(math.Sin(args[0].AsDouble())), nil
}

func fnCos(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("cos", 1, len(args))
	}
	return DoubleValue(math.Cos(args[0].AsDouble())), nil
}

func fnTan(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("tan", 1, len(args))
	}
	return DoubleValue(math.Tan(args[0].AsDouble())), nil
}

// atan takes one or two arguments: atan(x) or atan(y, x) (atan2).
func fnAtan(vm *VM, args []Value) (Value, error) {
	switch len(args) {
	case 1:
		return DoubleValue(math.Atan(args[0].AsDouble())), nil
	case 2:
		return DoubleValue(math.Atan2(args[0].AsDouble(), args[1].AsDouble())), nil
	default:
		return Value{}, argCountError("atan", 2, len(args))
	}
}

func fnExpf(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("expf", 1, len(args))
	}
	return DoubleValue(math.Exp(args[0].AsDouble())), nil
}

func fnLogf(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("logf", 1, len(args))
	}
	return DoubleValue(math.Log(args[0].AsDouble())), nil
}

func fnPowf(vm *VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, argCountError("powf", 2, len(args))
	}
	return DoubleValue(math.Pow(args[0].AsDouble(), args[1].AsDouble())), nil
}

func fnSqrt(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("sqrt", 1, len(args))
	}
	return DoubleValue(math.Sqrt(args[0].AsDouble())), nil
}

func fnLimit(vm *VM, args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, argCountError("limit", 3, len(args))
	}
	v, lo, hi := args[0].AsInt(), args[1].AsInt(), args[2].AsInt()
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return IntValue(v), nil
}

func fnLimitf(vm *VM, args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, argCountError("limitf", 3, len(args))
	}
	v, lo, hi := args[0].AsDouble(), args[1].AsDouble(), args[2].AsDouble()
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return DoubleValue(v), nil
}

func fnStrlen(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, argCountError("strlen", 1, len(args))
	}
	if args[0].primitiveKind() != KindString {
		return Value{}, raisef(StageRuntime, 0, "%w: strlen requires a string argument", ErrTypeMismatch)
	}
	return IntValue(int64(len(args[0].AsString()))), nil
}
