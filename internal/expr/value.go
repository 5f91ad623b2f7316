package expr

import "fmt"

// Value is a typed, nullable expression operand. Exactly one of the
// numeric/bool/string fields is
// meaningful, selected by Type; Null suppresses all of them.
type Value struct {
	Type Type
	Null bool

	I64 int64
	F64 float64
	B   bool
	S   string
}

func NullValue(t Type) Value       { return Value{Type: t, Null: true} }
func Int32Value(v int32) Value     { return Value{Type: TypeInt32, I64: int64(v)} }
func Int64Value(v int64) Value     { return Value{Type: TypeInt64, I64: v} }
func BoolValue(v bool) Value       { return Value{Type: TypeBool, B: v} }
func FloatValue(v float32) Value   { return Value{Type: TypeFloat, F64: float64(v)} }
func DoubleValue(v float64) Value  { return Value{Type: TypeDouble, F64: v} }
func DecimalValue(v float64) Value { return Value{Type: TypeDecimal, F64: v} }
func StringValue(v string) Value   { return Value{Type: TypeString, S: v} }

func (v Value) String() string {
	if v.Null {
		return fmt.Sprintf("NULL(%d)", v.Type)
	}
	switch v.Type {
	case TypeBool:
		return fmt.Sprintf("%v", v.B)
	case TypeString:
		return v.S
	case TypeFloat, TypeDouble, TypeDecimal:
		return fmt.Sprintf("%g", v.F64)
	default:
		return fmt.Sprintf("%d", v.I64)
	}
}

func (v Value) isNumeric() bool {
	switch v.Type {
	case TypeInt32, TypeInt64, TypeFloat, TypeDouble, TypeDecimal:
		return true
	default:
		return false
	}
}

// asFloat widens any numeric value to float64, per the INT32 -> INT64
// -> DOUBLE widening rule used for comparisons/arithmetic.
func (v Value) asFloat() float64 {
	switch v.Type {
	case TypeFloat, TypeDouble, TypeDecimal:
		return v.F64
	default:
		return float64(v.I64)
	}
}

// widenedType returns the common type two numeric operand types widen
// to before an arithmetic/comparison op is applied.
func widenedType(a, b Type) Type {
	rank := func(t Type) int {
		switch t {
		case TypeInt32:
			return 0
		case TypeInt64:
			return 1
		case TypeFloat:
			return 2
		case TypeDouble, TypeDecimal:
			return 3
		default:
			return 3
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
