package expr

import (
	"encoding/binary"
	"math"

	"github.com/dingodb/region-engine/internal/codec"
	"github.com/dingodb/region-engine/internal/rerr"
)

// kind classifies a decoded instruction for the evaluator's dispatch.
type kind byte

const (
	kindNullConst kind = iota
	kindConst
	kindVar
	kindUnaryArith // POS, NEG
	kindBinaryArith
	kindCompare
	kindIsNull
	kindIsTrue
	kindIsFalse
	kindNot
	kindAnd
	kindOr
	kindCast
)

// instr is one decoded entry of the operator vector (reverse-Polish
// program).
type instr struct {
	kind     kind
	op       byte // the arithmetic/compare opcode, for kindUnaryArith/kindBinaryArith/kindCompare
	typ      Type // operand type for typed ops, element type for const/var
	typ2     Type // destination type, for kindCast
	constVal Value
	varIndex int
}

// Program is a decoded operator vector, ready for repeated Eval calls.
type Program struct {
	instrs []instr
}

// Len reports the instruction count, mostly useful for tests.
func (p *Program) Len() int { return len(p.instrs) }

// Decode parses a bytecode program. Decoding is
// strictly forward-only: an unknown opcode or operand-type tag fails
// with InvalidProgram (rerr.IllegalParameters), surfacing a hex dump
// of the offending byte range starting at the last accepted
// instruction, matching operator_vector.cc's ConvertBytesToHex on
// failure.
func Decode(code []byte) (*Program, error) {
	p := &Program{}
	pos := 0
	lastAccepted := 0
	for pos < len(code) {
		lastAccepted = pos
		op := code[pos]
		switch {
		case op&0xF0 == nullPrefix:
			// NULL_* forms: 0x00 | type. Reject if type is out of range.
			t := Type(op)
			if !t.valid() {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindNullConst, typ: t})
			pos++
		case op&0xF0 == constPfx:
			t := Type(op &^ constPfx)
			if !t.valid() {
				return nil, invalidProgram(code, lastAccepted)
			}
			pos++
			v, n, err := decodeConstPayload(t, code[pos:], false)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindConst, typ: t, constVal: v})
			pos += n
		case op&0xF0 == constNPfx:
			t := Type(op &^ constNPfx)
			if !t.valid() {
				return nil, invalidProgram(code, lastAccepted)
			}
			pos++
			v, n, err := decodeConstPayload(t, code[pos:], true)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindConst, typ: t, constVal: v})
			pos += n
		case op&0xF0 == varIPfx:
			t := Type(op &^ varIPfx)
			if !t.valid() {
				return nil, invalidProgram(code, lastAccepted)
			}
			pos++
			idx, n, err := decodeUvarint(code[pos:])
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindVar, typ: t, varIndex: int(idx)})
			pos += n
		case op == opNot:
			p.instrs = append(p.instrs, instr{kind: kindNot})
			pos++
		case op == opAnd:
			p.instrs = append(p.instrs, instr{kind: kindAnd})
			pos++
		case op == opOr:
			p.instrs = append(p.instrs, instr{kind: kindOr})
			pos++
		case op == opPos || op == opNeg:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindUnaryArith, op: op, typ: t})
		case op == opAdd || op == opSub || op == opMul || op == opDiv || op == opMod:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindBinaryArith, op: op, typ: t})
		case op == opEq || op == opGe || op == opGt || op == opLe || op == opLt || op == opNe:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindCompare, op: op, typ: t})
		case op == opIsNull:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindIsNull, typ: t})
		case op == opIsTrue:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindIsTrue, typ: t})
		case op == opIsFalse:
			pos++
			t, err := readOperandType(code, &pos)
			if err != nil {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindIsFalse, typ: t})
		case op == opCast:
			pos++
			if pos >= len(code) {
				return nil, invalidProgram(code, lastAccepted)
			}
			b := code[pos]
			from := Type(b >> 4)
			to := Type(b & 0x0F)
			if !from.valid() || !to.valid() || !castAllowed(from, to) {
				return nil, invalidProgram(code, lastAccepted)
			}
			p.instrs = append(p.instrs, instr{kind: kindCast, typ: from, typ2: to})
			pos++
		default:
			return nil, invalidProgram(code, lastAccepted)
		}
	}
	return p, nil
}

// readOperandType reads the one-byte operand-type tag immediately
// following an operator opcode, before any operand bytes, and
// advances *pos past it.
func readOperandType(code []byte, pos *int) (Type, error) {
	if *pos >= len(code) {
		return 0, errTruncated
	}
	t := Type(code[*pos])
	if !t.valid() {
		return 0, errTruncated
	}
	*pos++
	return t, nil
}

var errTruncated = rerr.New(rerr.IllegalParameters, "truncated bytecode")

func invalidProgram(code []byte, from int) error {
	to := len(code)
	return rerr.New(rerr.IllegalParameters, "InvalidProgram: unknown opcode/operand at offset %d, bytes=%s",
		from, codec.ToHex(code[from:to]))
}

// decodeConstPayload reads the inline payload for a typed constant.
// negate applies to integer CONST_N_* forms (absolute value is
// varint-encoded). CONST_BOOL always decodes to
// true with no payload; CONST_N_BOOL decodes to false with no
// payload — neither consumes any bytes, matching the observed form
// from operator_vector.cc.
func decodeConstPayload(t Type, rest []byte, negate bool) (Value, int, error) {
	switch t {
	case TypeBool:
		return BoolValue(!negate), 0, nil
	case TypeInt32:
		v, n, err := decodeVarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if negate {
			v = -v
		}
		return Int32Value(int32(v)), n, nil
	case TypeInt64:
		v, n, err := decodeVarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if negate {
			v = -v
		}
		return Int64Value(v), n, nil
	case TypeFloat:
		if negate || len(rest) < 4 {
			return Value{}, 0, errTruncated
		}
		bits := binary.BigEndian.Uint32(rest[:4])
		return FloatValue(math.Float32frombits(bits)), 4, nil
	case TypeDouble:
		if negate || len(rest) < 8 {
			return Value{}, 0, errTruncated
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		return DoubleValue(math.Float64frombits(bits)), 8, nil
	case TypeDecimal:
		// Decimal constants are wire-compatible with DOUBLE payload encoding;
		// the original leaves CONST_DECIMAL as a TODO (operator_vector.cc).
		if negate || len(rest) < 8 {
			return Value{}, 0, errTruncated
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		return DecimalValue(math.Float64frombits(bits)), 8, nil
	case TypeString:
		if negate {
			return Value{}, 0, errTruncated
		}
		l, n, err := decodeUvarint(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if uint64(len(rest)) < uint64(n)+l {
			return Value{}, 0, errTruncated
		}
		s := string(rest[n : n+int(l)])
		return StringValue(s), n + int(l), nil
	default:
		return Value{}, 0, errTruncated
	}
}

// decodeVarint reads a zig-zag-free, sign-magnitude-free signed
// varint as used for CONST_INT32/CONST_INT64 payloads: the wire
// carries the absolute value (negation is signalled by the CONST_N_*
// opcode, not the payload), so this just reads an unsigned varint and
// the caller negates.
func decodeVarint(b []byte) (int64, int, error) {
	v, n, err := decodeUvarint(b)
	if err != nil {
		return 0, 0, err
	}
	return int64(v), n, nil
}

func decodeUvarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, errTruncated
	}
	return v, n, nil
}

// castAllowed enforces the CAST rules: identity casts are
// silently accepted; DECIMAL<->DECIMAL and STRING<->STRING are
// allowed; all numeric cross-casts are defined; anything touching
// STRING/DECIMAL that isn't identity is rejected (the original leaves
// these as unimplemented template instantiations).
func castAllowed(from, to Type) bool {
	if from == to {
		return true
	}
	isNumeric := func(t Type) bool {
		switch t {
		case TypeInt32, TypeInt64, TypeBool, TypeFloat, TypeDouble:
			return true
		default:
			return false
		}
	}
	return isNumeric(from) && isNumeric(to)
}
