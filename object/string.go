package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

func init() {
	heap.RegisterType(TagString, heap.MethodTable{
		Equal: func(h *heap.Heap, a, b any) bool {
			return a.(string) == b.(string)
		},
		Hash: func(h *heap.Heap, a any) uint32 {
			return stringHash(a.(string))
		},
		// Strings hold no heap references; Trace is left nil.
		Size: func(a any) uint32 {
			return uint32(len(a.(string)))
		},
	})
}

// stringHash is the polynomial hash the source uses, ported byte for
// byte: a rolling hash with an overflow-correction step, masked down
// to 31 bits.
func stringHash(s string) uint32 {
	var hash, x uint32
	for i := 0; i < len(s); i++ {
		hash = (hash << 4) + uint32(s[i])
		x = hash & 0xF0000000
		if x != 0 {
			hash ^= x >> 24
			hash &= ^x
		}
	}
	return hash & 0x7FFFFFFF
}

// NewString allocates a young-generation string.
func NewString(h *heap.Heap, s string) value.Value {
	return value.FromRef(h.Allocate(TagString, uint32(len(s)), s))
}

// NewGlobalString allocates a tenured string, used for constant-pool
// entries registered by the loader.
func NewGlobalString(h *heap.Heap, s string) value.Value {
	return value.FromRef(h.Static(TagString, uint32(len(s)), s))
}

// StringValue recovers the Go string backing a String heap object.
func StringValue(h *heap.Heap, r heap.Ref) string {
	return h.Payload(r).(string)
}
