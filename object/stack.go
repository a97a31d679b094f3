package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

// stackData is the chunked operand stack: a linked list of fixed-size
// Array chunks (SpliceSize data slots plus one link slot at index 0),
// with depth counting completed chunks and offset the 1-based write
// cursor into the current one. offset starts at 1 on an empty stack
// by construction - Empty must check depth too, since offset alone
// returns to 1 every time a chunk boundary is crossed, not only when
// the whole stack is empty.
type stackData struct {
	depth  uint32
	offset uint32
	top    value.Value
	chunk  heap.Ref
}

func init() {
	heap.RegisterType(TagStack, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			sd := a.(*stackData)
			sd.chunk = cb(sd.chunk)
			if sd.top.IsHeapRef() {
				sd.top = value.FromRef(cb(sd.top.AsRef()))
			}
		},
		Size: func(any) uint32 { return 16 },
	})
}

// NewStack allocates an empty operand stack. Stacks are long-lived by
// construction (one per VMScene), so both the header and its first
// chunk are tenured.
func NewStack(h *heap.Heap) value.Value {
	self := h.Static(TagStack, 16, &stackData{depth: 0, offset: 1, top: value.Nil})
	h.PushScratch(&self)
	chunk := NewStaticArray(h, SpliceSize+1)
	h.PopScratch()

	sd := stackOf(h, self)
	sd.chunk = chunk.AsRef()
	h.WriteBarrier(self, sd.chunk)
	return value.FromRef(self)
}

func stackOf(h *heap.Heap, r heap.Ref) *stackData {
	return h.Payload(r).(*stackData)
}

// StackEmpty mirrors §9's corrected check: both depth and offset must
// be at their initial values, not offset alone.
func StackEmpty(h *heap.Heap, r heap.Ref) bool {
	sd := stackOf(h, r)
	return SpliceSize*sd.depth+sd.offset == 1
}

// StackLength counts the values on the stack: SpliceSize for each of
// the depth full chunks below the current one (every chunk, first or
// extended, holds SpliceSize data slots after its link slot), plus
// offset-1 in the current chunk. An empty stack reports 0.
func StackLength(h *heap.Heap, r heap.Ref) uint32 {
	sd := stackOf(h, r)
	return sd.depth*SpliceSize + sd.offset - 1
}

func StackTop(h *heap.Heap, r heap.Ref) value.Value {
	if StackEmpty(h, r) {
		vmerrors.Raise(vmerrors.RangeError, "top of empty stack")
	}
	return stackOf(h, r).top
}

// StackPush appends e to the current chunk, extending into a new one
// first if the current chunk is full.
func StackPush(h *heap.Heap, r heap.Ref, e value.Value) {
	sd := stackOf(h, r)
	off := sd.offset
	if off > SpliceSize {
		stackExtend(h, r, sd)
		off = 1
	}
	ArraySet(h, sd.chunk, off, e)
	if e.IsHeapRef() {
		h.WriteBarrier(r, e.AsRef())
	}
	sd.offset = off + 1
	sd.top = e
}

// StackPushN pushes e n times.
func StackPushN(h *heap.Heap, r heap.Ref, e value.Value, n uint8) {
	for i := uint8(0); i < n; i++ {
		StackPush(h, r, e)
	}
}

// StackPop removes and returns the top value.
func StackPop(h *heap.Heap, r heap.Ref) value.Value {
	if StackEmpty(h, r) {
		vmerrors.Raise(vmerrors.RangeError, "pop from empty stack")
	}
	sd := stackOf(h, r)
	off := sd.offset
	if off == 1 {
		stackShrink(h, r, sd)
		off = SpliceSize + 1
	}

	e := sd.top
	off--

	if off == 1 {
		link := ArrayGet(h, sd.chunk, 0)
		if link.IsNil() {
			sd.top = value.Nil
		} else {
			sd.top = ArrayGet(h, link.AsRef(), SpliceSize)
		}
	} else {
		sd.top = ArrayGet(h, sd.chunk, off-1)
	}
	sd.offset = off
	return e
}

// StackPopN pops and discards n values.
func StackPopN(h *heap.Heap, r heap.Ref, n uint8) {
	for i := uint8(0); i < n; i++ {
		StackPop(h, r)
	}
}

func stackExtend(h *heap.Heap, self heap.Ref, sd *stackData) {
	old := sd.chunk
	h.PushScratch(&old)
	next := NewStaticArray(h, SpliceSize+1)
	h.PopScratch()

	nextRef := next.AsRef()
	ArraySet(h, nextRef, 0, value.FromRef(old))
	sd.chunk = nextRef
	sd.offset = 1
	sd.depth++
	h.WriteBarrier(self, nextRef)
}

func stackShrink(h *heap.Heap, self heap.Ref, sd *stackData) {
	link := ArrayGet(h, sd.chunk, 0)
	sd.chunk = link.AsRef()
	sd.offset = SpliceSize
	sd.depth--
}

// StackGet returns the value `length` slots below the top (0 is the
// current top), walking back through chunk links as needed.
func StackGet(h *heap.Heap, r heap.Ref, length uint32) value.Value {
	sd := stackOf(h, r)
	chunk := sd.chunk
	spliceLength := sd.offset - 1
	idx := int64(length)
	for {
		if idx < int64(spliceLength) {
			return ArrayGet(h, chunk, spliceLength-uint32(idx))
		}
		idx -= int64(spliceLength)
		link := ArrayGet(h, chunk, 0)
		chunk = link.AsRef()
		spliceLength = SpliceSize
	}
}

// StackSet is StackGet's write counterpart.
func StackSet(h *heap.Heap, r heap.Ref, length uint32, e value.Value) {
	sd := stackOf(h, r)
	chunk := sd.chunk
	spliceLength := sd.offset - 1
	idx := int64(length)
	for {
		if idx < int64(spliceLength) {
			ArraySet(h, chunk, spliceLength-uint32(idx), e)
			return
		}
		idx -= int64(spliceLength)
		link := ArrayGet(h, chunk, 0)
		chunk = link.AsRef()
		spliceLength = SpliceSize
	}
}
