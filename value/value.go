// Package value implements the tagged-value kernel of the VM core.
//
// A Value is either an immediate (nil, a boolean, or a small integer) or a
// reference into the managed heap. The source this core is modeled on
// steals the low two bits of a machine word to tell those cases apart
// (see §3 of the design docs); here we use an explicit tagged struct
// instead, which is the idiomatic Go equivalent and avoids any unsafe
// pointer arithmetic. heap.Ref is kept opaque to this package on purpose:
// the value kernel never needs to know how the heap is laid out, only
// that a HeapRef value names some live object.
package value

import "github.com/w41ter/Nerankage/heap"

// Tag discriminates the four immediate/reference categories a Value can
// hold.
type Tag uint8

const (
	TagNil Tag = iota
	TagBool
	TagSmallInt
	TagHeap
)

// SmallInt is the machine word used for the small-integer immediate. The
// source bit-steals two tag bits out of a native word, leaving it at
// least [-2^29, 2^29-1]; since we no longer share bits with a tag, a full
// int32 is used and comfortably covers that range.
type SmallInt = int32

// Value is a single VM-visible value: nil, a boolean, a small integer, or
// a reference to a heap object. Values are small, comparable structs
// that are copied freely - registers, stack slots, and struct fields all
// hold Values directly.
type Value struct {
	tag   Tag
	small SmallInt
	boolv bool
	ref   heap.Ref
}

// Nil is the canonical nil value.
var Nil = Value{tag: TagNil}

// True and False are the two boolean immediates.
var (
	True  = Value{tag: TagBool, boolv: true}
	False = Value{tag: TagBool, boolv: false}
)

// Bool returns the canonical True/False value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int returns a small-integer value.
func Int(i SmallInt) Value {
	return Value{tag: TagSmallInt, small: i}
}

// FromRef returns a value referencing a heap object.
func FromRef(ref heap.Ref) Value {
	return Value{tag: TagHeap, ref: ref}
}

func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNil() bool     { return v.tag == TagNil }
func (v Value) IsBool() bool    { return v.tag == TagBool }
func (v Value) IsInt() bool     { return v.tag == TagSmallInt }
func (v Value) IsHeapRef() bool { return v.tag == TagHeap }

// AsInt returns the payload of a small-integer value. Calling it on a
// value of another tag panics; callers are expected to have checked
// IsInt first (the interpreter always does).
func (v Value) AsInt() SmallInt {
	if v.tag != TagSmallInt {
		panic("value: AsInt on non-integer value")
	}
	return v.small
}

func (v Value) AsBool() bool {
	if v.tag != TagBool {
		panic("value: AsBool on non-boolean value")
	}
	return v.boolv
}

func (v Value) AsRef() heap.Ref {
	if v.tag != TagHeap {
		panic("value: AsRef on non-heap value")
	}
	return v.ref
}

// Equal performs the cheap structural equality check available without
// any knowledge of heap object kinds: it handles nil, bool, and
// small-int directly and reports heap references as unequal unless they
// name the exact same object. object.Equal layers the heap-object and
// cross-numeric-tag rules (string content, float tolerance, int/float
// promotion) on top of this.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	switch v.tag {
	case TagNil:
		return true
	case TagBool:
		return v.boolv == other.boolv
	case TagSmallInt:
		return v.small == other.small
	case TagHeap:
		return v.ref == other.ref
	}
	return false
}

// String renders a Value for debugging; it never allocates or touches
// the heap, so it cannot render the contents of heap objects: every
// heap reference prints as "<heap-ref>".
func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagBool:
		if v.boolv {
			return "true"
		}
		return "false"
	case TagSmallInt:
		return itoa(v.small)
	case TagHeap:
		return "<heap-ref>"
	default:
		return "<invalid>"
	}
}

func itoa(i int32) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	var buf [12]byte
	pos := len(buf)
	u := uint32(i)
	if neg {
		u = uint32(-i)
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
