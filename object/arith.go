package object

import (
	"math"

	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

// IsNumeric reports whether v is a small-int or a boxed Float.
func IsNumeric(h *heap.Heap, v value.Value) bool {
	if v.IsInt() {
		return true
	}
	return v.IsHeapRef() && h.TypeOf(v.AsRef()) == TagFloat
}

func requireNumeric(h *heap.Heap, v value.Value, op string) {
	if !IsNumeric(h, v) {
		vmerrors.Raisef(vmerrors.TypeError, "%s: operand is not numeric", op)
	}
}

// bothInt reports whether a and b are both small-ints - the condition
// that keeps an arithmetic op in the integer domain instead of
// promoting to float.
func bothInt(a, b value.Value) bool { return a.IsInt() && b.IsInt() }

// Add implements r[A] = r[B] + r[C]. Two small-ints stay small-ints
// unless the sum overflows SmallInt's range, in which case the result
// promotes to float rather than wrapping or saturating - the source
// leaves this undefined (§9); promotion keeps the value numerically
// correct, which a silent wrap or an arbitrary clamp would not.
func Add(h *heap.Heap, a, b value.Value) value.Value {
	requireNumeric(h, a, "add")
	requireNumeric(h, b, "add")
	if bothInt(a, b) {
		x, y := int64(a.AsInt()), int64(b.AsInt())
		sum := x + y
		if sum >= math.MinInt32 && sum <= math.MaxInt32 {
			return value.Int(value.SmallInt(sum))
		}
		return NewFloat(h, float64(sum))
	}
	return NewFloat(h, AsFloat64(h, a)+AsFloat64(h, b))
}

func Sub(h *heap.Heap, a, b value.Value) value.Value {
	requireNumeric(h, a, "sub")
	requireNumeric(h, b, "sub")
	if bothInt(a, b) {
		x, y := int64(a.AsInt()), int64(b.AsInt())
		diff := x - y
		if diff >= math.MinInt32 && diff <= math.MaxInt32 {
			return value.Int(value.SmallInt(diff))
		}
		return NewFloat(h, float64(diff))
	}
	return NewFloat(h, AsFloat64(h, a)-AsFloat64(h, b))
}

func Mul(h *heap.Heap, a, b value.Value) value.Value {
	requireNumeric(h, a, "mul")
	requireNumeric(h, b, "mul")
	if bothInt(a, b) {
		x, y := int64(a.AsInt()), int64(b.AsInt())
		prod := x * y
		if prod >= math.MinInt32 && prod <= math.MaxInt32 {
			return value.Int(value.SmallInt(prod))
		}
		return NewFloat(h, float64(prod))
	}
	return NewFloat(h, AsFloat64(h, a)*AsFloat64(h, b))
}

// Div: integer division by zero is fatal; otherwise two small-ints
// produce a small-int (truncating, as Go's / already does for ints),
// and anything else promotes to float division.
func Div(h *heap.Heap, a, b value.Value) value.Value {
	requireNumeric(h, a, "div")
	requireNumeric(h, b, "div")
	if bothInt(a, b) {
		if b.AsInt() == 0 {
			vmerrors.Raise(vmerrors.DivideByZero, "integer division by zero")
		}
		return value.Int(a.AsInt() / b.AsInt())
	}
	return NewFloat(h, AsFloat64(h, a)/AsFloat64(h, b))
}

// Mod is integer-only; a non-integer operand is a type error, not a
// float fallback.
func Mod(h *heap.Heap, a, b value.Value) value.Value {
	if !bothInt(a, b) {
		vmerrors.Raise(vmerrors.TypeError, "mod only supports small-ints")
	}
	if b.AsInt() == 0 {
		vmerrors.Raise(vmerrors.DivideByZero, "integer modulus by zero")
	}
	return value.Int(a.AsInt() % b.AsInt())
}

// Pow always promotes to float, even when both operands are
// small-ints - the source does this unconditionally.
func Pow(h *heap.Heap, a, b value.Value) value.Value {
	requireNumeric(h, a, "pow")
	requireNumeric(h, b, "pow")
	return NewFloat(h, math.Pow(AsFloat64(h, a), AsFloat64(h, b)))
}

// compare returns -1/0/1 for a vs b, promoting both to float.
func compare(h *heap.Heap, a, b value.Value) int {
	requireNumeric(h, a, "compare")
	requireNumeric(h, b, "compare")
	fa, fb := AsFloat64(h, a), AsFloat64(h, b)
	d := fa - fb
	if math.Abs(d) <= floatEqualTolerance {
		return 0
	}
	if d > 0 {
		return 1
	}
	return -1
}

func GT(h *heap.Heap, a, b value.Value) bool {
	if bothInt(a, b) {
		return a.AsInt() > b.AsInt()
	}
	return compare(h, a, b) > 0
}

func GE(h *heap.Heap, a, b value.Value) bool {
	if bothInt(a, b) {
		return a.AsInt() >= b.AsInt()
	}
	return compare(h, a, b) >= 0
}

func LT(h *heap.Heap, a, b value.Value) bool {
	if bothInt(a, b) {
		return a.AsInt() < b.AsInt()
	}
	return compare(h, a, b) < 0
}

func LE(h *heap.Heap, a, b value.Value) bool {
	if bothInt(a, b) {
		return a.AsInt() <= b.AsInt()
	}
	return compare(h, a, b) <= 0
}

// Equal is the full cross-tag Value equality rule: numeric values
// compare across int/float via promotion; heap objects of the same
// type tag defer to their registered Equal (falling back to
// identity); everything else requires matching tags.
func Equal(h *heap.Heap, a, b value.Value) bool {
	if IsNumeric(h, a) && IsNumeric(h, b) {
		if bothInt(a, b) {
			return a.AsInt() == b.AsInt()
		}
		return math.Abs(AsFloat64(h, a)-AsFloat64(h, b)) <= floatEqualTolerance
	}
	if a.Tag() != b.Tag() {
		return false
	}
	if a.IsHeapRef() {
		ra, rb := a.AsRef(), b.AsRef()
		if h.TypeOf(ra) != h.TypeOf(rb) {
			return false
		}
		return h.Equal(ra, rb)
	}
	return a.Equal(b)
}

func NE(h *heap.Heap, a, b value.Value) bool {
	if bothInt(a, b) {
		return a.AsInt() != b.AsInt()
	}
	if IsNumeric(h, a) && IsNumeric(h, b) {
		return compare(h, a, b) != 0
	}
	return !Equal(h, a, b)
}

// NZ: nil is always zero; a small-int or float is zero exactly when
// its numeric value is (NaN is explicitly not zero); every other heap
// object is never zero.
func NZ(h *heap.Heap, v value.Value) bool {
	if v.IsInt() {
		return v.AsInt() != 0
	}
	if v.IsHeapRef() && h.TypeOf(v.AsRef()) == TagFloat {
		f := FloatValue(h, v.AsRef())
		return f != 0 || math.IsNaN(f)
	}
	return !v.IsNil()
}

// Truthy is True() from the source: booleans report their own value,
// everything else defers to NZ.
func Truthy(h *heap.Heap, v value.Value) bool {
	if v.IsBool() {
		return v.AsBool()
	}
	return NZ(h, v)
}

func Not(h *heap.Heap, v value.Value) value.Value {
	return value.Bool(!Truthy(h, v))
}

func Inc(h *heap.Heap, v value.Value) value.Value { return Add(h, v, value.Int(1)) }
func Dec(h *heap.Heap, v value.Value) value.Value { return Sub(h, v, value.Int(1)) }

// Index implements container[key] for HashMap, Vector and String; any
// other container, or an out-of-range/wrong-kind key, is a fatal
// error.
func Index(h *heap.Heap, container, key value.Value) value.Value {
	if !container.IsHeapRef() {
		vmerrors.Raise(vmerrors.TypeError, "value is not indexable")
	}
	r := container.AsRef()
	switch h.TypeOf(r) {
	case TagHashMap:
		return HashMapFind(h, r, key)
	case TagVector:
		idx := requireIndex(key)
		return VectorGet(h, r, idx)
	case TagString:
		idx := requireIndex(key)
		s := StringValue(h, r)
		if idx >= uint32(len(s)) {
			vmerrors.Raisef(vmerrors.RangeError, "string index %d out of range (length %d)", idx, len(s))
		}
		return value.Int(value.SmallInt(s[idx]))
	default:
		vmerrors.Raise(vmerrors.TypeError, "value is not indexable")
		return value.Nil
	}
}

// SetIndex implements container[key] = val for HashMap and Vector.
func SetIndex(h *heap.Heap, container, key, val value.Value) {
	if !container.IsHeapRef() {
		vmerrors.Raise(vmerrors.TypeError, "value is not indexable")
	}
	r := container.AsRef()
	switch h.TypeOf(r) {
	case TagHashMap:
		HashMapSet(h, r, key, val)
	case TagVector:
		idx := requireIndex(key)
		VectorSet(h, r, idx, val)
	default:
		vmerrors.Raise(vmerrors.TypeError, "value is not indexable")
	}
}

func requireIndex(key value.Value) uint32 {
	if !key.IsInt() || key.AsInt() < 0 {
		vmerrors.Raise(vmerrors.TypeError, "index must be a non-negative small-int")
	}
	return uint32(key.AsInt())
}
