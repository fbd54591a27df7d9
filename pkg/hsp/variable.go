package hsp

// VarType is the storage type of a Variable's backing buffer. Distinct
// from ValueKind because a variable additionally needs "this buffer holds
// raw int32/float64/fixed-width-string cells", which a transient Value
// never does. Mirrors the original's value_tag as used on variable_t.
type VarType int

const (
	VarNone VarType = iota
	VarInt
	VarDouble
	VarString
)

func (t VarType) valueKind() ValueKind {
	switch t {
	case VarInt:
		return KindInt
	case VarDouble:
		return KindDouble
	case VarString:
		return KindString
	default:
		return KindNone
	}
}

const (
	defaultGranule = 64
	defaultLength  = 16
)

// Variable is a named, typed, one-dimensional array slot. Every variable
// (even a "plain" scalar) is backed by this array shape — a bare
// assignment targets element 0, matching the original's variable_t and
// its implicit-element-0 rule. Granule is the per-element byte width
// and only matters for VarString (each string cell is a fixed-size,
// NUL-padded slot, like the original's granule_size_*length_ byte buffer).
type Variable struct {
	Name    string
	Type    VarType
	Granule int
	Length  int
	ints    []int32
	doubles []float64
	strs    [][]byte // each slice has len == Granule
}

// NewVariable creates a variable with the implicit default shape used the
// first time a bare identifier is referenced without an explicit dim:
// INT type, array length 16. Mirrors create_variable's
// prepare_variable(res, VALUE_INT, 64, 16).
func NewVariable(name string) *Variable {
	v := &Variable{Name: name}
	v.prepare(VarInt, defaultGranule, defaultLength)
	return v
}

// prepare (re)allocates the backing storage for type/granule/length,
// discarding any previous contents. Mirrors prepare_variable.
func (v *Variable) prepare(typ VarType, granule, length int) {
	if length < 1 {
		length = 1
	}
	v.Type = typ
	v.Granule = granule
	v.Length = length
	v.ints = nil
	v.doubles = nil
	v.strs = nil
	switch typ {
	case VarInt:
		v.ints = make([]int32, length)
	case VarDouble:
		v.doubles = make([]float64, length)
	case VarString:
		v.strs = make([][]byte, length)
		for i := range v.strs {
			v.strs[i] = make([]byte, granule)
		}
	}
}

func (v *Variable) checkIndex(idx int) error {
	if idx < 0 {
		return raisef(StageRuntime, 0, "%w: %s(%d)", ErrOutOfRange, v.Name, idx)
	}
	if idx >= v.Length {
		return raisef(StageRuntime, 0, "%w: %s(%d)", ErrOutOfRange, v.Name, idx)
	}
	return nil
}

// IntAt/DoubleAt/StringAt read element idx, converting from the
// variable's actual storage type the way variable_calc_int/_double/
// variable_get_string do. Callers that know idx is in range (VM's hot
// read path, after Dim/ReDim bookkeeping) may ignore the implicit panic
// on an out-of-range idx; most paths go through Get, which returns an
// error instead.
func (v *Variable) IntAt(idx int) int64 {
	switch v.Type {
	case VarInt:
		return int64(v.ints[idx])
	case VarDouble:
		return int64(v.doubles[idx])
	default:
		return atoiPrefix(v.stringCell(idx))
	}
}

func (v *Variable) DoubleAt(idx int) float64 {
	switch v.Type {
	case VarInt:
		return float64(v.ints[idx])
	case VarDouble:
		return v.doubles[idx]
	default:
		return atofPrefix(v.stringCell(idx))
	}
}

func (v *Variable) StringAt(idx int) string {
	switch v.Type {
	case VarInt:
		return formatInt32(v.ints[idx])
	case VarDouble:
		return formatDouble(v.doubles[idx])
	default:
		return v.stringCell(idx)
	}
}

func (v *Variable) stringCell(idx int) string {
	cell := v.strs[idx]
	for i, b := range cell {
		if b == 0 {
			return string(cell[:i])
		}
	}
	return string(cell)
}

func formatInt32(i int32) string { return IntValue(int64(i)).AsString() }

// Get reads element idx as a Value of the variable's natural type, doing
// the bounds check variable_data_ptr does before any access.
func (v *Variable) Get(idx int) (Value, error) {
	if err := v.checkIndex(idx); err != nil {
		return Value{}, err
	}
	switch v.Type {
	case VarInt:
		return IntValue(v.IntAt(idx)), nil
	case VarDouble:
		return DoubleValue(v.DoubleAt(idx)), nil
	default:
		return StringValue(v.StringAt(idx)), nil
	}
}

// Set assigns val to element idx. When idx==0 and val's kind differs from
// the variable's current type, the variable is reinitialized (type,
// granule, and length all reset) before the write — the "first
// assignment decides the type, and element 0 can change it again later"
// rule, grounded on variable_set's
// `if (var->type_ != v.type_) { ... prepare_variable(...) }` branch
// (which additionally forbids the type change at any idx other than 0).
func (v *Variable) Set(idx int, val Value) error {
	isolated := val.Isolate()
	newType := kindToVarType(isolated.primitiveKind())

	if v.Type != newType {
		if idx > 0 {
			return raisef(StageRuntime, 0, "%w: %s(%d)", ErrTypeMismatch, v.Name, idx)
		}
		granule := defaultGranule
		if newType == VarString {
			granule = len(isolated.AsString()) + 1
		}
		v.prepare(newType, granule, 1)
	} else if newType == VarString {
		need := len(isolated.AsString()) + 1
		if need > v.Granule {
			v.prepare(newType, need, v.Length)
		}
	}

	if err := v.checkIndex(idx); err != nil {
		return err
	}

	switch v.Type {
	case VarInt:
		v.ints[idx] = int32(isolated.I)
	case VarDouble:
		v.doubles[idx] = isolated.D
	case VarString:
		cell := v.strs[idx]
		for i := range cell {
			cell[i] = 0
		}
		copy(cell, isolated.AsString())
	}
	return nil
}

func kindToVarType(k ValueKind) VarType {
	switch k {
	case KindInt:
		return VarInt
	case KindDouble:
		return VarDouble
	default:
		return VarString
	}
}

// compound op kind, shared by Add/Sub/Mul/Div/Mod/BOr/BAnd/BXor: each
// requires the incoming value's primitive kind to already match the
// variable's type (no implicit reinit, unlike Set), matching
// variable_add/_sub/.../_bxor's `if (var->type_ != v.type_) raise_error`.
func (v *Variable) requireSameType(val Value, op string) (Value, error) {
	isolated := val.Isolate()
	if kindToVarType(isolated.primitiveKind()) != v.Type {
		return Value{}, raisef(StageRuntime, 0, "%w: %s (%s)", ErrTypeMismatch, op, v.Name)
	}
	return isolated, nil
}

func (v *Variable) Add(idx int, val Value) error {
	r, err := v.requireSameType(val, "+=")
	if err != nil {
		return err
	}
	if err := v.checkIndex(idx); err != nil {
		return err
	}
	switch v.Type {
	case VarInt:
		v.ints[idx] += int32(r.I)
	case VarDouble:
		v.doubles[idx] += r.D
	case VarString:
		cur := v.stringCell(idx)
		combined := cur + r.AsString()
		if len(combined)+1 > v.Granule {
			if idx > 0 {
				return raisef(StageRuntime, 0, "%w: %s(%d)", ErrOutOfRange, v.Name, idx)
			}
			old := make([][]byte, v.Length)
			copy(old, v.strs)
			v.prepare(VarString, len(combined)+4, 1)
			cell := v.strs[0]
			copy(cell, combined)
			return nil
		}
		cell := v.strs[idx]
		copy(cell[len(cur):], r.AsString())
	}
	return nil
}

func (v *Variable) Sub(idx int, val Value) error { return v.arith(idx, val, "-=", false) }
func (v *Variable) Mul(idx int, val Value) error { return v.arith(idx, val, "*=", false) }
func (v *Variable) Div(idx int, val Value) error { return v.arith(idx, val, "/=", false) }
func (v *Variable) Mod(idx int, val Value) error { return v.arith(idx, val, "\\=", false) }
func (v *Variable) BOr(idx int, val Value) error  { return v.arith(idx, val, "|=", true) }
func (v *Variable) BAnd(idx int, val Value) error { return v.arith(idx, val, "&=", true) }
func (v *Variable) BXor(idx int, val Value) error { return v.arith(idx, val, "^=", true) }

func (v *Variable) arith(idx int, val Value, op string, intOnly bool) error {
	r, err := v.requireSameType(val, op)
	if err != nil {
		return err
	}
	if v.Type == VarString {
		return raisef(StageRuntime, 0, "%w: %s (%s)", ErrStringArithmetic, op, v.Name)
	}
	if intOnly && v.Type != VarInt {
		return raisef(StageRuntime, 0, "%w: %s (%s)", ErrStringArithmetic, op, v.Name)
	}
	if err := v.checkIndex(idx); err != nil {
		return err
	}
	switch op {
	case "-=":
		if v.Type == VarInt {
			v.ints[idx] -= int32(r.I)
		} else {
			v.doubles[idx] -= r.D
		}
	case "*=":
		if v.Type == VarInt {
			v.ints[idx] *= int32(r.I)
		} else {
			v.doubles[idx] *= r.D
		}
	case "/=":
		if v.Type == VarInt {
			if r.I == 0 {
				return raise(StageRuntime, 0, ErrDivisionByZero)
			}
			v.ints[idx] /= int32(r.I)
		} else {
			if r.D == 0 {
				return raise(StageRuntime, 0, ErrDivisionByZero)
			}
			v.doubles[idx] /= r.D
		}
	case "\\=":
		if v.Type == VarInt {
			if r.I == 0 {
				return raise(StageRuntime, 0, ErrModuloByZero)
			}
			v.ints[idx] %= int32(r.I)
		} else {
			if r.D == 0 {
				return raise(StageRuntime, 0, ErrModuloByZero)
			}
			v.doubles[idx] = float64(int64(v.doubles[idx]) % int64(r.D))
		}
	case "|=":
		v.ints[idx] |= int32(r.I)
	case "&=":
		v.ints[idx] &= int32(r.I)
	case "^=":
		v.ints[idx] ^= int32(r.I)
	}
	return nil
}

// VariableTable is an ordered, case-insensitively-keyed collection of
// Variables, mirroring the original's use of a generic list_t for the
// variable table plus string_equal_igcase lookups.
type VariableTable struct {
	order []string
	byKey map[string]*Variable
}

func NewVariableTable() *VariableTable {
	return &VariableTable{byKey: make(map[string]*Variable)}
}

func (t *VariableTable) Lookup(name string) *Variable {
	return t.byKey[asciiLower(name)]
}

// LookupOrCreate returns the existing variable named name, or creates a
// fresh default-shaped one and registers it, matching the two-arg
// variable_set(table, v, name, idx) overload's "search, else create"
// behavior.
func (t *VariableTable) LookupOrCreate(name string) *Variable {
	key := asciiLower(name)
	if v, ok := t.byKey[key]; ok {
		return v
	}
	v := NewVariable(name)
	t.byKey[key] = v
	t.order = append(t.order, key)
	return v
}

// Declare installs an explicitly dim'd/sdim'd variable, replacing any
// existing one of the same name (dim always starts from a clean slate).
func (t *VariableTable) Declare(v *Variable) {
	key := asciiLower(v.Name)
	if _, exists := t.byKey[key]; !exists {
		t.order = append(t.order, key)
	}
	t.byKey[key] = v
}
