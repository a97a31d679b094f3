package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

type arrayData struct {
	slots []value.Value
}

func init() {
	heap.RegisterType(TagArray, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			ad := a.(*arrayData)
			for i, v := range ad.slots {
				if v.IsHeapRef() {
					ad.slots[i] = value.FromRef(cb(v.AsRef()))
				}
			}
		},
		Size: func(a any) uint32 { return uint32(len(a.(*arrayData).slots)) * 8 },
	})
}

// NewArray allocates a young-generation array of length size, every
// slot initialized to nil.
func NewArray(h *heap.Heap, size uint32) value.Value {
	slots := make([]value.Value, size)
	for i := range slots {
		slots[i] = value.Nil
	}
	return value.FromRef(h.Allocate(TagArray, size*8, &arrayData{slots: slots}))
}

// NewStaticArray allocates an old-generation array, used for bucket
// tables and other structures that are themselves tenured.
func NewStaticArray(h *heap.Heap, size uint32) value.Value {
	slots := make([]value.Value, size)
	for i := range slots {
		slots[i] = value.Nil
	}
	return value.FromRef(h.Static(TagArray, size*8, &arrayData{slots: slots}))
}

func arrayOf(h *heap.Heap, r heap.Ref) *arrayData {
	return h.Payload(r).(*arrayData)
}

// ArrayLength reports the fixed length of the array at r.
func ArrayLength(h *heap.Heap, r heap.Ref) uint32 {
	return uint32(len(arrayOf(h, r).slots))
}

// ArrayGet bounds-checks idx against the array's length.
func ArrayGet(h *heap.Heap, r heap.Ref, idx uint32) value.Value {
	ad := arrayOf(h, r)
	if idx >= uint32(len(ad.slots)) {
		vmerrors.Raisef(vmerrors.RangeError, "array index %d out of range (length %d)", idx, len(ad.slots))
	}
	return ad.slots[idx]
}

// ArraySet bounds-checks idx and installs v, running the write
// barrier if v is itself a heap reference.
func ArraySet(h *heap.Heap, r heap.Ref, idx uint32, v value.Value) {
	ad := arrayOf(h, r)
	if idx >= uint32(len(ad.slots)) {
		vmerrors.Raisef(vmerrors.RangeError, "array index %d out of range (length %d)", idx, len(ad.slots))
	}
	ad.slots[idx] = v
	if v.IsHeapRef() {
		h.WriteBarrier(r, v.AsRef())
	}
}
