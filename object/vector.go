package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

type vectorData struct {
	length   uint32
	capacity uint32
	buffer   heap.Ref
}

func init() {
	heap.RegisterType(TagVector, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			vd := a.(*vectorData)
			vd.buffer = cb(vd.buffer)
		},
		Size: func(any) uint32 { return 12 },
	})
}

// DefaultVectorCapacity is the backing-array size given to a Vector
// created with no explicit capacity (the NewArray opcode).
const DefaultVectorCapacity = 8

// NewVector allocates a growable vector backed by an Array of the
// given initial capacity.
func NewVector(h *heap.Heap, capacity uint32) value.Value {
	if capacity == 0 {
		capacity = 1
	}
	backing := NewArray(h, capacity).AsRef()
	vd := &vectorData{length: 0, capacity: capacity}
	h.PushScratch(&backing)
	self := h.Allocate(TagVector, 12, vd)
	h.PopScratch()
	vd.buffer = backing
	h.WriteBarrier(self, backing)
	return value.FromRef(self)
}

func vectorOf(h *heap.Heap, r heap.Ref) *vectorData {
	return h.Payload(r).(*vectorData)
}

func VectorLength(h *heap.Heap, r heap.Ref) uint32 { return vectorOf(h, r).length }

func VectorEmpty(h *heap.Heap, r heap.Ref) bool { return vectorOf(h, r).length == 0 }

// VectorGet bounds-checks idx against the vector's logical length
// (not its backing array's capacity).
func VectorGet(h *heap.Heap, r heap.Ref, idx uint32) value.Value {
	vd := vectorOf(h, r)
	if idx >= vd.length {
		vmerrors.Raisef(vmerrors.RangeError, "vector index %d out of range (length %d)", idx, vd.length)
	}
	return ArrayGet(h, vd.buffer, idx)
}

func VectorSet(h *heap.Heap, r heap.Ref, idx uint32, v value.Value) {
	vd := vectorOf(h, r)
	if idx >= vd.length {
		vmerrors.Raisef(vmerrors.RangeError, "vector index %d out of range (length %d)", idx, vd.length)
	}
	ArraySet(h, vd.buffer, idx, v)
}

// VectorPush appends e, growing the backing array (doubling) if full.
func VectorPush(h *heap.Heap, r heap.Ref, e value.Value) {
	vd := vectorOf(h, r)
	if vd.capacity == vd.length {
		vectorExtend(h, r, vd)
	}
	ArraySet(h, vd.buffer, vd.length, e)
	vd.length++
}

// VectorPop removes and returns the last element.
func VectorPop(h *heap.Heap, r heap.Ref) value.Value {
	vd := vectorOf(h, r)
	if vd.length == 0 {
		vmerrors.Raise(vmerrors.RangeError, "pop from empty vector")
	}
	vd.length--
	return ArrayGet(h, vd.buffer, vd.length)
}

// vectorExtend doubles the backing array, pinning the old one across
// the new allocation per the GC scratch-stack discipline - a Vector
// construction always involves more than one allocation (the new
// backing Array) while the old backing Array Ref is still the only
// live handle to its contents.
func vectorExtend(h *heap.Heap, self heap.Ref, vd *vectorData) {
	old := vd.buffer
	h.PushScratch(&old)
	newBacking := NewArray(h, vd.capacity*2)
	h.PopScratch()

	newRef := newBacking.AsRef()
	oldData, newData := arrayOf(h, old), arrayOf(h, newRef)
	copy(newData.slots, oldData.slots[:vd.length])

	vd.buffer = newRef
	vd.capacity *= 2
	h.WriteBarrier(self, newRef)
}
