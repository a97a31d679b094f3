package object

import "github.com/w41ter/Nerankage/heap"

// Captured describes one upvalue a Closure built from this Prototype
// must capture: either a slot on the defining frame's operand stack
// (InStack) or an index into the defining frame's own captured array.
type Captured struct {
	InStack bool
	Index   uint16
}

type prototypeData struct {
	code         []byte
	numParams    uint8
	isVararg     bool
	captured     []Captured
}

func init() {
	heap.RegisterType(TagPrototype, heap.MethodTable{
		// A Prototype holds a non-owning view of the loader's bytecode
		// buffer and a capture-shape descriptor, neither of which is a
		// heap reference. Trace is left nil.
		Size: func(a any) uint32 { return uint32(4 + len(a.(*prototypeData).captured)*4) },
	})
}

// NewPrototype registers a function's code and capture shape. Per
// §4.2 prototypes are long-lived by construction, so this always
// allocates in the old generation.
func NewPrototype(h *heap.Heap, code []byte, numParams uint8, isVararg bool, captured []Captured) heap.Ref {
	pd := &prototypeData{code: code, numParams: numParams, isVararg: isVararg, captured: captured}
	return h.Static(TagPrototype, uint32(4+len(captured)*4), pd)
}

func prototypeOf(h *heap.Heap, r heap.Ref) *prototypeData {
	return h.Payload(r).(*prototypeData)
}

func PrototypeCode(h *heap.Heap, r heap.Ref) []byte          { return prototypeOf(h, r).code }
func PrototypeNumParams(h *heap.Heap, r heap.Ref) uint8       { return prototypeOf(h, r).numParams }
func PrototypeIsVararg(h *heap.Heap, r heap.Ref) bool         { return prototypeOf(h, r).isVararg }
func PrototypeNumCaptures(h *heap.Heap, r heap.Ref) uint16    { return uint16(len(prototypeOf(h, r).captured)) }
func PrototypeCaptured(h *heap.Heap, r heap.Ref, idx uint16) Captured {
	return prototypeOf(h, r).captured[idx]
}
