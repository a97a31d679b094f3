package vm

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/object"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

// run is the dispatch loop: it repeatedly decodes the instruction at
// the current top frame's saved program counter and executes it. Per
// §4.6, every handler advances pc by one instruction (InstructionSize
// bytes) except jumps, which set it explicitly, and Call/Return, which
// change which frame is on top. The loop ends when a Halt executes or
// the outermost frame returns; any fatal condition propagates as a
// panic that Scene.Execute recovers.
func run(sc *Scene) {
	h := sc.h
	s := sc.state

	for sc.hasTop {
		frame := sc.top
		proto := object.ClosureCallee(h, object.CallInfoCallee(h, frame))
		code := object.PrototypeCode(h, proto)
		pc := object.CallInfoSavedPC(h, frame)
		instr := Decode(code, pc)

		switch instr.Op {
		case OpGoto:
			object.CallInfoSetPC(h, frame, uint32(int64(pc)+int64(instr.AxSigned())*InstructionSize))
			continue

		case OpNot:
			setReg(h, frame, instr.A, object.Not(h, reg(h, frame, instr.B)))
		case OpInc:
			setReg(h, frame, instr.A, object.Inc(h, reg(h, frame, instr.B)))
		case OpDec:
			setReg(h, frame, instr.A, object.Dec(h, reg(h, frame, instr.B)))
		case OpAdd:
			setReg(h, frame, instr.A, object.Add(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpSub:
			setReg(h, frame, instr.A, object.Sub(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpMul:
			setReg(h, frame, instr.A, object.Mul(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpDiv:
			setReg(h, frame, instr.A, object.Div(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpMod:
			setReg(h, frame, instr.A, object.Mod(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpPow:
			setReg(h, frame, instr.A, object.Pow(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpGT:
			setReg(h, frame, instr.A, value.Bool(object.GT(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))
		case OpGE:
			setReg(h, frame, instr.A, value.Bool(object.GE(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))
		case OpLT:
			setReg(h, frame, instr.A, value.Bool(object.LT(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))
		case OpLE:
			setReg(h, frame, instr.A, value.Bool(object.LE(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))
		case OpEQ:
			setReg(h, frame, instr.A, value.Bool(object.Equal(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))
		case OpNE:
			setReg(h, frame, instr.A, value.Bool(object.NE(h, reg(h, frame, instr.B), reg(h, frame, instr.C))))

		case OpMoveS:
			setReg(h, frame, instr.A, value.FromRef(s.strings[instr.Bx]))
		case OpMoveI:
			setReg(h, frame, instr.A, value.Int(s.ints[instr.Bx]))
		case OpMoveF:
			setReg(h, frame, instr.A, value.FromRef(s.floats[instr.Bx]))
		case OpMoveN:
			setReg(h, frame, instr.A, value.Nil)
		case OpMove:
			setReg(h, frame, instr.A, reg(h, frame, instr.B))

		case OpLoad:
			setReg(h, frame, instr.A, object.StackGet(h, sc.stack, uint32(instr.B)))
		case OpStore:
			object.StackSet(h, sc.stack, uint32(instr.A), reg(h, frame, instr.B))

		case OpLoadGlobal:
			setReg(h, frame, instr.A, s.global(instr.Bx))
		case OpStoreGlobal:
			s.setGlobal(instr.Bx, reg(h, frame, instr.A))

		case OpLoadCaptured:
			setReg(h, frame, instr.A, object.CallInfoCaptured(h, frame, instr.Bx))
		case OpStoreCaptured:
			object.CallInfoSetCaptured(h, frame, instr.Bx, reg(h, frame, instr.A))

		case OpIndex:
			setReg(h, frame, instr.A, object.Index(h, reg(h, frame, instr.B), reg(h, frame, instr.C)))
		case OpSetIndex:
			object.SetIndex(h, reg(h, frame, instr.A), reg(h, frame, instr.B), reg(h, frame, instr.C))

		case OpIf:
			if object.Truthy(h, reg(h, frame, instr.A)) {
				object.CallInfoSetPC(h, frame, uint32(int64(pc)+int64(instr.BxSigned())*InstructionSize))
			} else {
				object.CallInfoSetPC(h, frame, pc+InstructionSize)
			}
			continue

		case OpBEQ, OpBNE, OpBGT, OpBLT, OpBGE, OpBLE:
			taken := branchTaken(h, instr.Op, reg(h, frame, instr.A), reg(h, frame, instr.B))
			branch(h, frame, pc, taken, instr.CSigned())
			continue

		case OpBZ, OpBNZ:
			nz := object.NZ(h, reg(h, frame, instr.A))
			taken := nz
			if instr.Op == OpBZ {
				taken = !nz
			}
			branch(h, frame, pc, taken, instr.CSigned())
			continue

		case OpPush:
			object.StackPush(h, sc.stack, reg(h, frame, instr.A))
		case OpPushN:
			object.StackPushN(h, sc.stack, reg(h, frame, instr.A), instr.B)
		case OpPop:
			object.StackPopN(h, sc.stack, instr.A)

		case OpCall:
			if execCall(sc, frame, instr) {
				continue
			}
			object.CallInfoSetPC(h, frame, pc+InstructionSize)
			continue

		case OpTailCall:
			vmerrors.Raise(vmerrors.IllegalInstruction, "TailCall is reserved and must not be executed")

		case OpReturn:
			if !execReturn(sc, frame, instr) {
				return
			}
			continue

		case OpReturnVoid:
			if !execReturnVoid(sc, frame) {
				return
			}
			continue

		case OpNewHash:
			setReg(h, frame, instr.A, object.NewHashMap(h))
		case OpNewArray:
			setReg(h, frame, instr.A, object.NewVector(h, object.DefaultVectorCapacity))

		case OpNewClosure:
			setReg(h, frame, instr.A, makeClosure(sc, frame, instr.Bx))
		case OpNewUserClosure:
			setReg(h, frame, instr.A, value.FromRef(s.userClosures[instr.Bx]))

		case OpHalt:
			return

		default:
			vmerrors.Raisef(vmerrors.IllegalInstruction, "unrecognized opcode %d at pc %d", instr.Op, pc)
		}

		object.CallInfoSetPC(h, frame, pc+InstructionSize)
	}
}

func reg(h *heap.Heap, frame heap.Ref, idx uint8) value.Value {
	return object.CallInfoReg(h, frame, idx)
}

func setReg(h *heap.Heap, frame heap.Ref, idx uint8, v value.Value) {
	object.CallInfoSetReg(h, frame, idx, v)
}

// branchTaken evaluates the BEQ/BNE/BGT/BLT/BGE/BLE family's relop
// against a and b.
func branchTaken(h *heap.Heap, op Op, a, b value.Value) bool {
	switch op {
	case OpBEQ:
		return object.Equal(h, a, b)
	case OpBNE:
		return object.NE(h, a, b)
	case OpBGT:
		return object.GT(h, a, b)
	case OpBLT:
		return object.LT(h, a, b)
	case OpBGE:
		return object.GE(h, a, b)
	case OpBLE:
		return object.LE(h, a, b)
	default:
		return false
	}
}

// branch applies a conditional jump: taken advances pc by offset
// instructions, not-taken advances by exactly one, matching every
// conditional-branch row of §4.6.
func branch(h *heap.Heap, frame heap.Ref, pc uint32, taken bool, offset int8) {
	if taken {
		object.CallInfoSetPC(h, frame, uint32(int64(pc)+int64(offset)*InstructionSize))
	} else {
		object.CallInfoSetPC(h, frame, pc+InstructionSize)
	}
}

// execCall implements Call per §4.6: the callee sits argCount slots
// below the current stack top (the caller having pushed it, then its
// arguments, in that order); Call does not pop any of them itself. A
// Closure callee gets a full frame pushed and bytecode dispatch resumes
// there (returns true: caller's pc must NOT advance yet, it stays
// parked at the Call instruction until the callee returns). A
// UserClosure runs synchronously and the caller resumes immediately
// (returns false: caller's pc advances normally).
func execCall(sc *Scene, frame heap.Ref, instr Instruction) bool {
	h := sc.h
	argCount := instr.C

	if sc.depth >= MaxCallDepth {
		vmerrors.Raise(vmerrors.StackOverflow, "call chain depth exceeded")
	}

	calleeVal := object.StackGet(h, sc.stack, uint32(argCount))
	if !calleeVal.IsHeapRef() {
		vmerrors.Raise(vmerrors.TypeError, "call target is not callable")
	}
	calleeRef := calleeVal.AsRef()

	switch h.TypeOf(calleeRef) {
	case object.TagClosure:
		proto := object.ClosureCallee(h, calleeRef)
		numParams := object.PrototypeNumParams(h, proto)
		newFrame := object.NewClosureFrame(h, calleeRef, frame, true, instr.A, instr.B, argCount)
		n := numParams
		if argCount < n {
			n = argCount
		}
		for i := uint8(0); i < n; i++ {
			v := object.StackGet(h, sc.stack, uint32(argCount-1-i))
			object.CallInfoSetReg(h, newFrame, i, v)
		}
		sc.pushFrame(newFrame)
		return true

	case object.TagUserClosure:
		newFrame := object.NewUserClosureFrame(h, calleeRef, frame, true, instr.A, instr.B, argCount)
		sc.pushFrame(newFrame)
		fn := object.UserClosureFunc(h, calleeRef)
		fn(sc, instr.A, instr.B, argCount)
		sc.popFrame()
		return false

	default:
		vmerrors.Raise(vmerrors.TypeError, "call target is not callable")
		return false
	}
}

// execReturn implements Return: copy r[A..B) from the returning frame
// into the caller's recorded [begin,end) window, padding with nil,
// then pop. Reports whether the dispatch loop should continue (false
// when the outermost frame just returned, which Execute treats the
// same as Halt).
func execReturn(sc *Scene, frame heap.Ref, instr Instruction) bool {
	h := sc.h
	begin := object.CallInfoBegin(h, frame)
	end := object.CallInfoEnd(h, frame)
	parent, hasParent := sc.popFrame()
	if !hasParent {
		return false
	}
	width := end - begin
	for i := uint8(0); i < width; i++ {
		srcIdx := instr.A + i
		var v value.Value
		if srcIdx < instr.B {
			v = object.CallInfoReg(h, frame, srcIdx)
		} else {
			v = value.Nil
		}
		object.CallInfoSetReg(h, parent, begin+i, v)
	}
	advancePastCall(h, parent)
	return true
}

// execReturnVoid implements ReturnVoid: fill the caller's recorded
// window with nil and pop.
func execReturnVoid(sc *Scene, frame heap.Ref) bool {
	h := sc.h
	begin := object.CallInfoBegin(h, frame)
	end := object.CallInfoEnd(h, frame)
	parent, hasParent := sc.popFrame()
	if !hasParent {
		return false
	}
	for i := begin; i < end; i++ {
		object.CallInfoSetReg(h, parent, i, value.Nil)
	}
	advancePastCall(h, parent)
	return true
}

func advancePastCall(h *heap.Heap, frame heap.Ref) {
	object.CallInfoSetPC(h, frame, object.CallInfoSavedPC(h, frame)+InstructionSize)
}

// makeClosure implements NewClosure: build a Closure from
// prototypes[idx], resolving each capture descriptor against either
// the operand stack (at the defining frame's current top) or the
// defining frame's own captured area.
func makeClosure(sc *Scene, frame heap.Ref, idx uint16) value.Value {
	h := sc.h
	protoRef := sc.state.prototypes[idx]
	n := object.PrototypeNumCaptures(h, protoRef)
	captured := make([]value.Value, n)
	for k := uint16(0); k < n; k++ {
		desc := object.PrototypeCaptured(h, protoRef, k)
		if desc.InStack {
			captured[k] = object.StackGet(h, sc.stack, uint32(desc.Index))
		} else {
			captured[k] = object.CallInfoCaptured(h, frame, desc.Index)
		}
	}
	return object.NewClosure(h, protoRef, captured)
}
