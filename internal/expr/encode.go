package expr

import (
	"encoding/binary"
	"math"
)

// Encoder builds a bytecode program by appending instructions in
// reverse-Polish order, mirroring Decode's wire format exactly. It
// exists for round-trip testing and for callers assembling programs
// programmatically rather than receiving them off the wire.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Null(t Type) *Encoder {
	e.buf = append(e.buf, nullPrefix|byte(t))
	return e
}

func (e *Encoder) ConstBool(v bool) *Encoder {
	if v {
		e.buf = append(e.buf, constBool)
	} else {
		e.buf = append(e.buf, constNBool)
	}
	return e
}

func (e *Encoder) ConstInt32(v int32) *Encoder {
	return e.constInt(TypeInt32, int64(v))
}

func (e *Encoder) ConstInt64(v int64) *Encoder {
	return e.constInt(TypeInt64, v)
}

func (e *Encoder) constInt(t Type, v int64) *Encoder {
	neg := v < 0
	abs := v
	if neg {
		abs = -v
	}
	pfx := constPfx
	if neg {
		pfx = constNPfx
	}
	e.buf = append(e.buf, pfx|byte(t))
	e.buf = appendUvarint(e.buf, uint64(abs))
	return e
}

func (e *Encoder) ConstFloat(v float32) *Encoder {
	e.buf = append(e.buf, constPfx|byte(TypeFloat))
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], math.Float32bits(v))
	e.buf = append(e.buf, tmp[:]...)
	return e
}

func (e *Encoder) ConstDouble(v float64) *Encoder {
	e.buf = append(e.buf, constPfx|byte(TypeDouble))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v))
	e.buf = append(e.buf, tmp[:]...)
	return e
}

func (e *Encoder) ConstString(v string) *Encoder {
	e.buf = append(e.buf, constPfx|byte(TypeString))
	e.buf = appendUvarint(e.buf, uint64(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

func (e *Encoder) Var(t Type, index int) *Encoder {
	e.buf = append(e.buf, varIPfx|byte(t))
	e.buf = appendUvarint(e.buf, uint64(index))
	return e
}

func (e *Encoder) op1(op byte, t Type) *Encoder {
	e.buf = append(e.buf, op, byte(t))
	return e
}

func (e *Encoder) Pos(t Type) *Encoder     { return e.op1(opPos, t) }
func (e *Encoder) Neg(t Type) *Encoder     { return e.op1(opNeg, t) }
func (e *Encoder) Add(t Type) *Encoder     { return e.op1(opAdd, t) }
func (e *Encoder) Sub(t Type) *Encoder     { return e.op1(opSub, t) }
func (e *Encoder) Mul(t Type) *Encoder     { return e.op1(opMul, t) }
func (e *Encoder) Div(t Type) *Encoder     { return e.op1(opDiv, t) }
func (e *Encoder) Mod(t Type) *Encoder     { return e.op1(opMod, t) }
func (e *Encoder) Eq(t Type) *Encoder      { return e.op1(opEq, t) }
func (e *Encoder) Ge(t Type) *Encoder      { return e.op1(opGe, t) }
func (e *Encoder) Gt(t Type) *Encoder      { return e.op1(opGt, t) }
func (e *Encoder) Le(t Type) *Encoder      { return e.op1(opLe, t) }
func (e *Encoder) Lt(t Type) *Encoder      { return e.op1(opLt, t) }
func (e *Encoder) Ne(t Type) *Encoder      { return e.op1(opNe, t) }
func (e *Encoder) IsNull(t Type) *Encoder  { return e.op1(opIsNull, t) }
func (e *Encoder) IsTrue(t Type) *Encoder  { return e.op1(opIsTrue, t) }
func (e *Encoder) IsFalse(t Type) *Encoder { return e.op1(opIsFalse, t) }

func (e *Encoder) Not() *Encoder { e.buf = append(e.buf, opNot); return e }
func (e *Encoder) And() *Encoder { e.buf = append(e.buf, opAnd); return e }
func (e *Encoder) Or() *Encoder  { e.buf = append(e.buf, opOr); return e }

func (e *Encoder) Cast(from, to Type) *Encoder {
	e.buf = append(e.buf, opCast, byte(from)<<4|byte(to))
	return e
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}
