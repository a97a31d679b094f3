package object

import (
	"math"

	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

// floatEqualTolerance is the |Δ| ≤ bound used to compare two floats
// for Value equality.
const floatEqualTolerance = 1e-16

func init() {
	heap.RegisterType(TagFloat, heap.MethodTable{
		Equal: func(h *heap.Heap, a, b any) bool {
			return math.Abs(a.(float64)-b.(float64)) <= floatEqualTolerance
		},
		// Trace/Hash left at their defaults: floats hold no heap
		// references and are never used as HashMap keys.
		Size: func(any) uint32 { return 8 },
	})
}

// NewFloat boxes a float64 in the young generation.
func NewFloat(h *heap.Heap, f float64) value.Value {
	return value.FromRef(h.Allocate(TagFloat, 8, f))
}

// NewGlobalFloat boxes a float64 in the old generation, for the
// constant pool.
func NewGlobalFloat(h *heap.Heap, f float64) value.Value {
	return value.FromRef(h.Static(TagFloat, 8, f))
}

// FloatValue recovers the float64 backing a Float heap object.
func FloatValue(h *heap.Heap, r heap.Ref) float64 {
	return h.Payload(r).(float64)
}

// AsFloat64 converts any numeric Value (small-int or Float) to a raw
// float64, promoting integers. It panics (a programming error, not a
// fatal VM fault) if v is not numeric; callers are expected to check
// IsNumeric first.
func AsFloat64(h *heap.Heap, v value.Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return FloatValue(h, v.AsRef())
}
