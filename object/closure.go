package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

type closureData struct {
	callee    heap.Ref
	captured  []value.Value
}

func init() {
	heap.RegisterType(TagClosure, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			cd := a.(*closureData)
			cd.callee = cb(cd.callee)
			for i, v := range cd.captured {
				if v.IsHeapRef() {
					cd.captured[i] = value.FromRef(cb(v.AsRef()))
				}
			}
		},
		Size: func(a any) uint32 { return uint32(8 * (len(a.(*closureData).captured) + 1)) },
	})
}

// NewClosure pairs a Prototype with its resolved captured values,
// allocated in the young generation (the common case: closures
// created by the NewClosure opcode at call time).
func NewClosure(h *heap.Heap, callee heap.Ref, captured []value.Value) value.Value {
	cd := &closureData{callee: callee, captured: captured}
	self := h.Allocate(TagClosure, uint32(8*(len(captured)+1)), cd)
	h.WriteBarrier(self, callee)
	for _, v := range captured {
		if v.IsHeapRef() {
			h.WriteBarrier(self, v.AsRef())
		}
	}
	return value.FromRef(self)
}

func closureOf(h *heap.Heap, r heap.Ref) *closureData {
	return h.Payload(r).(*closureData)
}

func ClosureCallee(h *heap.Heap, r heap.Ref) heap.Ref { return closureOf(h, r).callee }

func ClosureNumCaptured(h *heap.Heap, r heap.Ref) uint16 {
	return uint16(len(closureOf(h, r).captured))
}

func ClosureCaptured(h *heap.Heap, r heap.Ref, idx uint16) value.Value {
	return closureOf(h, r).captured[idx]
}

func ClosureSetCaptured(h *heap.Heap, r heap.Ref, idx uint16, v value.Value) {
	cd := closureOf(h, r)
	cd.captured[idx] = v
	if v.IsHeapRef() {
		h.WriteBarrier(r, v.AsRef())
	}
}
