// Package object implements the concrete heap object kinds and the
// Value-aware operations (arithmetic, comparison, indexing, the
// HashMap protocol) that need to know what a heap reference actually
// points at. It is the layer above heap (which only ever sees opaque
// payloads behind a type tag) and value (which only ever sees tags and
// raw heap.Refs).
package object

// Tag values identify the concrete object kind stamped on a heap
// cell at allocation time; they are heap's type_tag field.
const (
	TagString uint8 = iota
	TagFloat
	TagArray
	TagVector
	TagHashNode
	TagHashMap
	TagPrototype
	TagClosure
	TagUserClosure
	TagStack
	TagCallInfo
)

// SpliceSize is the number of data slots per operand-stack chunk.
const SpliceSize = 64

// MaxAge mirrors heap.MaxAge. Nothing in package object reads it; the
// promotion threshold the collector applies is heap.MaxAge.
const MaxAge = 64
