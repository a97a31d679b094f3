package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

const NumRegisters = 32

// callInfoData is one call frame: a register window plus the upvalue
// copies captured at push time, a saved program counter (an offset
// into the callee prototype's code rather than a raw pointer - Go
// slices don't support the source's pointer-into-buffer arithmetic
// safely, and an offset is exactly as cheap), and the parent link
// that makes a VMScene's frames a singly-linked chain.
type callInfoData struct {
	isLight    bool // true: callee is a UserClosure; false: a Closure
	begin      uint8
	end        uint8
	numParams  uint8
	savedPC    uint32
	callee     heap.Ref
	hasParent  bool
	parent     heap.Ref
	registers  [NumRegisters]value.Value
	captured   []value.Value
}

func init() {
	heap.RegisterType(TagCallInfo, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			ci := a.(*callInfoData)
			ci.callee = cb(ci.callee)
			if ci.hasParent {
				ci.parent = cb(ci.parent)
			}
			for i, v := range ci.registers {
				if v.IsHeapRef() {
					ci.registers[i] = value.FromRef(cb(v.AsRef()))
				}
			}
			for i, v := range ci.captured {
				if v.IsHeapRef() {
					ci.captured[i] = value.FromRef(cb(v.AsRef()))
				}
			}
		},
		Size: func(a any) uint32 {
			return uint32(16 + NumRegisters*8 + len(a.(*callInfoData).captured)*8)
		},
	})
}

// NewClosureFrame pushes a call frame for a bytecode closure: all 32
// registers start nil, the captured area is a copy of the closure's
// own captures, and saved_pc starts at the callee prototype's code.
func NewClosureFrame(h *heap.Heap, closure heap.Ref, parent heap.Ref, hasParent bool, begin, end, numParams uint8) heap.Ref {
	ci := &callInfoData{
		isLight:   false,
		begin:     begin,
		end:       end,
		numParams: numParams,
		callee:    closure,
		hasParent: hasParent,
		parent:    parent,
	}
	for i := range ci.registers {
		ci.registers[i] = value.Nil
	}
	n := ClosureNumCaptured(h, closure)
	ci.captured = make([]value.Value, n)
	for i := uint16(0); i < n; i++ {
		ci.captured[i] = ClosureCaptured(h, closure, i)
	}

	self := h.Static(TagCallInfo, ciSize(len(ci.captured)), ci)
	h.WriteBarrier(self, closure)
	if hasParent {
		h.WriteBarrier(self, parent)
	}
	return self
}

// NewUserClosureFrame pushes a frame for a host function: there is no
// bytecode to run, so no saved_pc/registers/captures are meaningful -
// only the return window the dispatcher needs to hand the host.
func NewUserClosureFrame(h *heap.Heap, userClosure heap.Ref, parent heap.Ref, hasParent bool, begin, end, numParams uint8) heap.Ref {
	ci := &callInfoData{
		isLight:   true,
		begin:     begin,
		end:       end,
		numParams: numParams,
		callee:    userClosure,
		hasParent: hasParent,
		parent:    parent,
	}
	self := h.Static(TagCallInfo, ciSize(0), ci)
	h.WriteBarrier(self, userClosure)
	if hasParent {
		h.WriteBarrier(self, parent)
	}
	return self
}

func ciSize(numCaptured int) uint32 { return uint32(16 + NumRegisters*8 + numCaptured*8) }

func callInfoOf(h *heap.Heap, r heap.Ref) *callInfoData {
	return h.Payload(r).(*callInfoData)
}

func CallInfoIsLight(h *heap.Heap, r heap.Ref) bool   { return callInfoOf(h, r).isLight }
func CallInfoCallee(h *heap.Heap, r heap.Ref) heap.Ref { return callInfoOf(h, r).callee }
func CallInfoBegin(h *heap.Heap, r heap.Ref) uint8     { return callInfoOf(h, r).begin }
func CallInfoEnd(h *heap.Heap, r heap.Ref) uint8       { return callInfoOf(h, r).end }
func CallInfoNumParams(h *heap.Heap, r heap.Ref) uint8 { return callInfoOf(h, r).numParams }

func CallInfoParent(h *heap.Heap, r heap.Ref) (heap.Ref, bool) {
	ci := callInfoOf(h, r)
	return ci.parent, ci.hasParent
}

func CallInfoSavedPC(h *heap.Heap, r heap.Ref) uint32 { return callInfoOf(h, r).savedPC }

func CallInfoSetPC(h *heap.Heap, r heap.Ref, pc uint32) { callInfoOf(h, r).savedPC = pc }

func CallInfoReg(h *heap.Heap, r heap.Ref, idx uint8) value.Value {
	return callInfoOf(h, r).registers[idx]
}

func CallInfoSetReg(h *heap.Heap, r heap.Ref, idx uint8, v value.Value) {
	ci := callInfoOf(h, r)
	ci.registers[idx] = v
	if v.IsHeapRef() {
		h.WriteBarrier(r, v.AsRef())
	}
}

func CallInfoCaptured(h *heap.Heap, r heap.Ref, idx uint16) value.Value {
	return callInfoOf(h, r).captured[idx]
}

func CallInfoSetCaptured(h *heap.Heap, r heap.Ref, idx uint16, v value.Value) {
	ci := callInfoOf(h, r)
	ci.captured[idx] = v
	if v.IsHeapRef() {
		h.WriteBarrier(r, v.AsRef())
	}
}
