// Package vm ties the value kernel, the heap object model, and the
// generational collector together into the bytecode interpreter: it
// decodes fixed-width instructions, drives the per-frame register
// windows and operand stack, and exposes the loader-facing
// construction and execution entry points.
package vm

import "github.com/w41ter/Nerankage/vmerrors"

// Op is the opcode discriminant of a decoded Instruction. Numbering is
// this implementation's own stable enumeration; nothing outside this
// package is required to match it bit-for-bit, only the 4-byte framing
// and little-endian multi-byte immediates are a wire contract.
type Op uint8

const (
	OpGoto Op = iota
	OpNot
	OpInc
	OpDec
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpGT
	OpGE
	OpLT
	OpLE
	OpEQ
	OpNE
	OpMoveS
	OpMoveI
	OpMoveF
	OpMoveN
	OpMove
	OpLoad
	OpStore
	OpLoadGlobal
	OpStoreGlobal
	OpLoadCaptured
	OpStoreCaptured
	OpIndex
	OpSetIndex
	OpIf
	OpBEQ
	OpBNE
	OpBGT
	OpBLT
	OpBGE
	OpBLE
	OpBZ
	OpBNZ
	OpPush
	OpPushN
	OpPop
	OpCall
	OpTailCall
	OpReturn
	OpReturnVoid
	OpNewHash
	OpNewArray
	OpNewClosure
	OpNewUserClosure
	OpHalt

	opCount
)

func (op Op) String() string {
	names := [opCount]string{
		"Goto", "Not", "Inc", "Dec", "Add", "Sub", "Mul", "Div", "Mod", "Pow",
		"GT", "GE", "LT", "LE", "EQ", "NE",
		"MoveS", "MoveI", "MoveF", "MoveN", "Move",
		"Load", "Store", "LoadGlobal", "StoreGlobal", "LoadCaptured", "StoreCaptured",
		"Index", "SetIndex", "If",
		"BEQ", "BNE", "BGT", "BLT", "BGE", "BLE", "BZ", "BNZ",
		"Push", "PushN", "Pop",
		"Call", "TailCall", "Return", "ReturnVoid",
		"NewHash", "NewArray", "NewClosure", "NewUserClosure", "Halt",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "Unknown"
}

// InstructionSize is the fixed width of every instruction on the wire.
const InstructionSize = 4

// Instruction is a decoded 4-byte instruction word. Every field is
// populated regardless of which shape (ABC/ABx/Ax) the opcode actually
// uses; handlers read only the fields their own shape defines, exactly
// as a plain big-switch dispatcher over an eagerly-decoded struct does
// in the reference model this design traces back to.
type Instruction struct {
	Op   Op
	A, B, C uint8
	Bx   uint16 // B and C read together, little-endian
	Ax   uint32 // A, B and C read together, little-endian, 24 bits
}

// BxSigned reinterprets Bx as a signed 16-bit displacement, used by
// jump-shaped opcodes (If) that encode a negative offset.
func (i Instruction) BxSigned() int16 { return int16(i.Bx) }

// AxSigned sign-extends the 24-bit Ax field, used by Goto.
func (i Instruction) AxSigned() int32 {
	v := int32(i.Ax)
	if v&0x00800000 != 0 {
		v |= ^0x00FFFFFF
	}
	return v
}

// CSigned reinterprets C as a signed byte, used by the BEQ/BNE/... family
// whose branch offset rides in the 8-bit C field.
func (i Instruction) CSigned() int8 { return int8(i.C) }

// Decode reads one instruction from code at byte offset pc. It panics
// with an IllegalInstruction fault if fewer than InstructionSize bytes
// remain, which the dispatch loop's fatal-abort discipline treats the
// same as an unrecognized opcode.
func Decode(code []byte, pc uint32) Instruction {
	if uint64(pc)+InstructionSize > uint64(len(code)) {
		vmerrors.Raisef(vmerrors.IllegalInstruction, "pc %d: truncated instruction at end of code buffer", pc)
	}
	b := code[pc : pc+InstructionSize]
	return Instruction{
		Op: Op(b[0]),
		A:  b[1],
		B:  b[2],
		C:  b[3],
		Bx: uint16(b[2]) | uint16(b[3])<<8,
		Ax: uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16,
	}
}

// EncodeABC, EncodeABx and EncodeAx are the inverse of Decode, used by
// tests that need to build a code buffer without a real assembler. Only one of (A,B,C), (A,Bx), or
// (Ax) is meaningful for a given opcode; callers pass whichever shape
// matches and leave the rest at zero.
func EncodeABC(op Op, a, b, c uint8) []byte {
	return []byte{byte(op), a, b, c}
}

func EncodeABx(op Op, a uint8, bx uint16) []byte {
	return []byte{byte(op), a, byte(bx), byte(bx >> 8)}
}

func EncodeAx(op Op, ax uint32) []byte {
	return []byte{byte(op), byte(ax), byte(ax >> 8), byte(ax >> 16)}
}
