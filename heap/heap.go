// Package heap implements the managed arena and generational collector
// that back every object the VM allocates. It knows nothing about the
// concrete object kinds (strings, vectors, closures, ...) that live on
// top of it - those are defined in package object. What heap provides
// is the substrate they are built from: typed references (Ref) into a
// region-partitioned arena, a per-type-tag method table registry used
// to trace live references during collection, and the write barrier
// that keeps the remembered set sound.
//
// The source this is modeled on bit-steals a raw pointer and compares
// raw addresses against region boundaries to classify an object. That
// is not an idiom Go code should imitate: instead a Ref names a
// (space, slot) pair, and region membership is a direct field
// comparison rather than an address-range test. Promotion, copying and
// compaction become slice operations on per-region slot tables instead
// of memcpy/memmove over raw bytes - same algorithm, safer mechanism.
package heap

import (
	"github.com/pkg/errors"

	"github.com/w41ter/Nerankage/vmerrors"
)

// Space identifies which arena region a Ref was allocated from.
type Space uint8

const (
	SpaceYoung Space = iota
	SpaceSurvivor0
	SpaceSurvivor1
	SpaceOld
)

func (s Space) String() string {
	switch s {
	case SpaceYoung:
		return "young"
	case SpaceSurvivor0:
		return "survivor0"
	case SpaceSurvivor1:
		return "survivor1"
	case SpaceOld:
		return "old"
	default:
		return "unknown"
	}
}

// Ref is an opaque reference to a heap object. It is the handle-based
// stand-in for a raw pointer: cheap to copy and comparable. The
// collector rewrites a Ref it moves wherever it can see it - in a
// RootHolder, inside a traced object's payload, or in a variable
// pinned with PushScratch - so only a Ref held in one of those places
// stays valid across an allocation.
type Ref struct {
	space Space
	slot  uint32
}

// Space reports which arena region r currently lives in.
func (r Ref) Space() Space { return r.space }

// IsOld reports whether r lives in the tenured generation.
func (r Ref) IsOld() bool { return r.space == SpaceOld }

// ChildCallback is applied to every heap-pointer-bearing field a traced
// object holds; it returns the (possibly moved) reference that should
// replace it. This is the one traversal hook shared by minor GC's
// copying, promotion, major GC's marking, and major GC's reference
// rewriting - exactly as in the source's unified trace_children.
type ChildCallback func(Ref) Ref

// MethodTable is the per-type-tag dispatch table a heap object kind
// registers once, at package init, instead of carrying a vtable
// pointer inline on every instance.
type MethodTable struct {
	// Equal compares two payloads of the same registered type tag for
	// value equality (string content, float tolerance, ...). Heap
	// objects of differing type tags are never passed to the same
	// table, so Equal only has to handle its own kind. It receives the
	// owning Heap so kinds that nest other heap references (HashNode's
	// key/value) can recurse through Heap.Equal.
	Equal func(h *Heap, a, b any) bool
	// Hash returns a kind-specific hash of the payload. Kinds that do
	// not override this (the default) are hashed by identity elsewhere.
	Hash func(h *Heap, a any) uint32
	// Trace invokes cb on every heap reference the payload holds and
	// writes back whatever cb returns.
	Trace func(a any, cb ChildCallback)
	// Size reports a synthetic byte size for a payload; it has no
	// bearing on storage, which is a Go value sitting in a slice slot.
	// The heap itself never calls it: region budgets and the 16MiB
	// object-size check use the size passed to Allocate or Static.
	Size func(a any) uint32
}

var registry [256]*MethodTable

// RegisterType installs the method table for a type tag. Called once
// per object kind, from that package's init.
func RegisterType(tag uint8, table MethodTable) {
	registry[tag] = &table
}

func methodTableFor(tag uint8) *MethodTable {
	t := registry[tag]
	if t == nil {
		panic(errors.Errorf("heap: no method table registered for type tag %d", tag))
	}
	return t
}

// Equal dispatches to a's registered Equal, as required for two heap
// objects of the same type tag (object kinds must never call this
// across differing tags). Kinds that register no Equal (the default)
// compare by identity.
func (h *Heap) Equal(a, b Ref) bool {
	table := methodTableFor(h.cellOf(a).typeTag)
	if table.Equal == nil {
		return a == b
	}
	return table.Equal(h, h.Payload(a), h.Payload(b))
}

// Hash dispatches to r's registered Hash. Kinds that register no Hash
// (the default) are hashed by their slot index XOR a fixed seed,
// standing in for the source's address-derived default.
func (h *Heap) Hash(r Ref) uint32 {
	table := methodTableFor(h.cellOf(r).typeTag)
	if table.Hash == nil {
		return r.slot ^ 0x5bd1e995
	}
	return table.Hash(h, h.Payload(r))
}

// cell is one object's header plus its opaque payload. The header
// mirrors §3's HeapObject layout (age, forwarded, size, type tag) minus
// the vtable pointer, which is replaced by a registry lookup on typeTag.
type cell struct {
	age       uint8
	forwarded bool
	forward   Ref
	typeTag   uint8
	size      uint32
	payload   any
}

// MaxAge is the survivor generation count at which an object is
// promoted to the old generation.
const MaxAge = 64

// MaxObjectSize mirrors the 24-bit object_size field's ceiling.
const MaxObjectSize = 1 << 24

// region is a single bump-allocated slot table plus a nominal byte
// budget, standing in for one of the arena's four byte ranges.
type region struct {
	cells    []cell
	used     uint32
	capacity uint32
}

func (r *region) reset() {
	r.cells = r.cells[:0]
	r.used = 0
}

func (r *region) fits(size uint32) bool {
	return r.used+size <= r.capacity
}

func (r *region) append(c cell) uint32 {
	idx := uint32(len(r.cells))
	r.cells = append(r.cells, c)
	r.used += c.size
	return idx
}

func (r *region) cell(idx uint32) *cell { return &r.cells[idx] }

// RootHolder is implemented by every object outside the arena that
// owns Refs into it (VM scenes, the global state's constant pools, ...).
// Root holders register themselves with a Heap and are walked by every
// collection; ProcessRoots must apply cb to each Ref it owns and store
// the Ref cb returns back in the same place.
type RootHolder interface {
	ProcessRoots(cb ChildCallback)
}

// Heap owns the arena, the generational collector state, and the root
// holder registry. There is exactly one Heap per VM instance; nothing
// about it is safe for concurrent use, matching the single-threaded
// contract of the core.
type Heap struct {
	young         region
	survivor      [2]region
	fromIdx       int // index into survivor[] currently playing "from"
	old           region
	rememberedSet map[Ref]struct{}
	roots         []RootHolder
	scratch       []*Ref
	totalBudget   uint32
	minorCount    int
	majorCount    int
}

// New creates a Heap with the given total byte budget, partitioned per
// §4.4: young 20%, two 10% survivor spaces, and a 60% old generation.
func New(totalBytes uint32) *Heap {
	h := &Heap{
		rememberedSet: make(map[Ref]struct{}),
	}
	h.totalBudget = totalBytes
	h.young.capacity = totalBytes * 20 / 100
	h.survivor[0].capacity = totalBytes * 10 / 100
	h.survivor[1].capacity = totalBytes * 10 / 100
	h.old.capacity = totalBytes - h.young.capacity - h.survivor[0].capacity - h.survivor[1].capacity
	h.fromIdx = 0
	return h
}

func (h *Heap) regionFor(s Space) *region {
	switch s {
	case SpaceYoung:
		return &h.young
	case SpaceSurvivor0:
		return &h.survivor[0]
	case SpaceSurvivor1:
		return &h.survivor[1]
	case SpaceOld:
		return &h.old
	default:
		panic("heap: invalid space")
	}
}

func (h *Heap) cellOf(r Ref) *cell {
	return h.regionFor(r.space).cell(r.slot)
}

// Payload returns the opaque payload stored for r. Object kinds use
// this to recover their concrete struct after allocation or after a
// Ref has been rewritten by a collection.
func (h *Heap) Payload(r Ref) any {
	return h.cellOf(r).payload
}

// Age returns the object's current survival count.
func (h *Heap) Age(r Ref) uint8 { return h.cellOf(r).age }

// TypeOf returns the type tag stamped on r's object at allocation time.
func (h *Heap) TypeOf(r Ref) uint8 { return h.cellOf(r).typeTag }

// RegisterRoot adds a root holder to the registry, deduplicating by
// identity as the source requires.
func (h *Heap) RegisterRoot(holder RootHolder) {
	for _, existing := range h.roots {
		if existing == holder {
			return
		}
	}
	h.roots = append(h.roots, holder)
}

// UnregisterRoot removes a previously registered root holder. Go has
// no destructors, so callers must call this explicitly when a root
// holder's lifetime ends (e.g. a VMScene being torn down).
func (h *Heap) UnregisterRoot(holder RootHolder) {
	for i, existing := range h.roots {
		if existing == holder {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// PushScratch pins a local Ref variable across subsequent allocations:
// the collector will treat *ref as an extra root until the matching
// PopScratch. Composite-construction sites (HashMap allocating its
// bucket Array, Vector allocating its backing Array, ...) must pin the
// already-allocated part before making the next allocation.
func (h *Heap) PushScratch(ref *Ref) {
	h.scratch = append(h.scratch, ref)
}

// PopScratch unpins the most recently pushed scratch root.
func (h *Heap) PopScratch() {
	h.scratch = h.scratch[:len(h.scratch)-1]
}

func (h *Heap) processAllRoots(cb ChildCallback) {
	for _, holder := range h.roots {
		holder.ProcessRoots(cb)
	}
	for _, ref := range h.scratch {
		*ref = cb(*ref)
	}
}

// Allocate reserves size bytes in the young generation for an object of
// the given type tag, running a minor collection if eden is full. It
// is the Heap flavor of allocation from §4.2: never promotes directly,
// and aborts with a vmerrors.OutOfMemory fault if a minor GC cannot
// make room, matching the source's fatal allocation failure.
func (h *Heap) Allocate(typeTag uint8, size uint32, payload any) Ref {
	if size >= MaxObjectSize {
		vmerrors.Raisef(vmerrors.RangeError, "heap: object size %d exceeds %d byte limit", size, MaxObjectSize)
	}
	if !h.young.fits(size) {
		h.MinorGC()
		if !h.young.fits(size) {
			vmerrors.Raise(vmerrors.OutOfMemory, "heap: young generation exhausted after minor GC")
		}
	}
	idx := h.young.append(cell{typeTag: typeTag, size: size, payload: payload})
	return Ref{space: SpaceYoung, slot: idx}
}

// Static reserves size bytes directly in the old generation, as used
// for objects that are long-lived by construction (prototypes, call
// frames, stacks, user-closures, constant-pool entries). It never
// triggers a minor GC; on exhaustion it runs a major GC and retries
// once before aborting.
func (h *Heap) Static(typeTag uint8, size uint32, payload any) Ref {
	if size >= MaxObjectSize {
		vmerrors.Raisef(vmerrors.RangeError, "heap: object size %d exceeds %d byte limit", size, MaxObjectSize)
	}
	if !h.old.fits(size) {
		h.MajorGC()
		if !h.old.fits(size) {
			vmerrors.Raise(vmerrors.OutOfMemory, "heap: old generation exhausted after major GC")
		}
	}
	idx := h.old.append(cell{typeTag: typeTag, age: MaxAge, size: size, payload: payload})
	return Ref{space: SpaceOld, slot: idx}
}

// WriteBarrier must be called whenever a heap-allocated container's
// field is updated to reference another heap object. Per §4.3: if the
// container lives in old space and the new referent lives in young
// space, the container is (idempotently) added to the remembered set.
// Writes of immediates never reach this call - object package setters
// only invoke it for heap-to-heap field writes. A call whose container
// is young (or whose referent is old) leaves the set unchanged.
func (h *Heap) WriteBarrier(container, referent Ref) {
	if container.space == SpaceOld && referent.space != SpaceOld {
		h.rememberedSet[container] = struct{}{}
	}
}

// Stats reports a snapshot of arena occupancy, useful for tests and for
// diagnosing fatal OutOfMemory aborts.
type Stats struct {
	YoungUsed, YoungCap          uint32
	Survivor0Used, Survivor1Used uint32
	OldUsed, OldCap              uint32
	RememberedSetSize            int
	MinorCollections             int
	MajorCollections             int
}

func (h *Heap) Stats() Stats {
	return Stats{
		YoungUsed:         h.young.used,
		YoungCap:          h.young.capacity,
		Survivor0Used:     h.survivor[0].used,
		Survivor1Used:     h.survivor[1].used,
		OldUsed:           h.old.used,
		OldCap:            h.old.capacity,
		RememberedSetSize: len(h.rememberedSet),
		MinorCollections:  h.minorCount,
		MajorCollections:  h.majorCount,
	}
}
