package object

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

const (
	hashMapInitialCapacity = 16
	hashMapLoadFactor      = 0.75
	// smallIntHashSeed is the XOR seed small-int keys are hashed
	// against; the source hashes other kinds by address, which has no
	// analogue for an immediate small-int, so it needs its own rule -
	// picked once here and used consistently.
	smallIntHashSeed uint32 = 0x9e3779b9
)

type hashNodeData struct {
	key, val, next value.Value
}

type hashMapData struct {
	loadFactor float64
	count      uint32
	buckets    heap.Ref
}

func init() {
	heap.RegisterType(TagHashNode, heap.MethodTable{
		Equal: func(h *heap.Heap, a, b any) bool {
			na, nb := a.(*hashNodeData), b.(*hashNodeData)
			return Equal(h, na.key, nb.key) && Equal(h, na.val, nb.val)
		},
		Trace: func(a any, cb heap.ChildCallback) {
			nd := a.(*hashNodeData)
			if nd.key.IsHeapRef() {
				nd.key = value.FromRef(cb(nd.key.AsRef()))
			}
			if nd.val.IsHeapRef() {
				nd.val = value.FromRef(cb(nd.val.AsRef()))
			}
			if nd.next.IsHeapRef() {
				nd.next = value.FromRef(cb(nd.next.AsRef()))
			}
		},
		Size: func(any) uint32 { return 24 },
	})
	heap.RegisterType(TagHashMap, heap.MethodTable{
		Trace: func(a any, cb heap.ChildCallback) {
			md := a.(*hashMapData)
			md.buckets = cb(md.buckets)
		},
		Size: func(any) uint32 { return 16 },
	})
}

// NewHashMap allocates an empty HashMap with a 16-bucket backing
// array. Construction does two allocations (the map header, then the
// bucket Array), so the header is pinned before the second one.
func NewHashMap(h *heap.Heap) value.Value {
	self := h.Allocate(TagHashMap, 16, &hashMapData{loadFactor: hashMapLoadFactor})
	h.PushScratch(&self)
	buckets := NewStaticArray(h, hashMapInitialCapacity)
	h.PopScratch()

	md := hashMapOf(h, self)
	md.buckets = buckets.AsRef()
	h.WriteBarrier(self, md.buckets)
	return value.FromRef(self)
}

func hashMapOf(h *heap.Heap, r heap.Ref) *hashMapData {
	return h.Payload(r).(*hashMapData)
}

func HashMapLength(h *heap.Heap, r heap.Ref) uint32 { return hashMapOf(h, r).count }

// validateKeyType implements the corrected predicate: a HashMap key
// must be a small-int or a String heap object. (The source's own
// check ANDs the negation of each disjunct together, a condition that
// can never be satisfied; this is the intended logic, not a literal
// port of that bug.)
func validateKeyType(h *heap.Heap, key value.Value) {
	if key.IsInt() {
		return
	}
	if key.IsHeapRef() && h.TypeOf(key.AsRef()) == TagString {
		return
	}
	vmerrors.Raise(vmerrors.TypeError, "hash map key must be a small-int or string")
}

func keyHash(h *heap.Heap, key value.Value) uint32 {
	if key.IsInt() {
		return uint32(key.AsInt()) ^ smallIntHashSeed
	}
	return h.Hash(key.AsRef())
}

func keyEquals(h *heap.Heap, a, b value.Value) bool {
	if a.IsInt() && b.IsInt() {
		return a.AsInt() == b.AsInt()
	}
	if a.IsHeapRef() && b.IsHeapRef() {
		return h.Equal(a.AsRef(), b.AsRef())
	}
	return false
}

func bucketCapacity(h *heap.Heap, md *hashMapData) uint32 {
	return ArrayLength(h, md.buckets)
}

// getHashNodeLink returns the chain head for key's bucket. The source
// has a documented `&` vs `%` inconsistency between lookup and
// insertion; every call site here uses `%`, the corrected choice.
func getHashNodeLink(h *heap.Heap, md *hashMapData, key value.Value) value.Value {
	idx := keyHash(h, key) % bucketCapacity(h, md)
	return ArrayGet(h, md.buckets, idx)
}

func setHashNodeLink(h *heap.Heap, self heap.Ref, md *hashMapData, key value.Value, link value.Value) {
	idx := keyHash(h, key) % bucketCapacity(h, md)
	ArraySet(h, md.buckets, idx, link)
}

// HashMapFind returns the value bound to key, or value.Nil if absent.
func HashMapFind(h *heap.Heap, r heap.Ref, key value.Value) value.Value {
	validateKeyType(h, key)
	md := hashMapOf(h, r)
	link := getHashNodeLink(h, md, key)
	for link.IsHeapRef() {
		node := hashNodeOf(h, link.AsRef())
		if keyEquals(h, node.key, key) {
			return node.val
		}
		link = node.next
	}
	return value.Nil
}

func hashNodeOf(h *heap.Heap, r heap.Ref) *hashNodeData {
	return h.Payload(r).(*hashNodeData)
}

// HashMapSet binds key to val, removing the entry instead if val is
// nil, then runs the resize policy.
func HashMapSet(h *heap.Heap, r heap.Ref, key, val value.Value) {
	validateKeyType(h, key)
	if val.IsNil() {
		HashMapRemove(h, r, key)
		hashMapUpdate(h, r)
		return
	}
	setWithoutUpdate(h, r, key, val)
	hashMapUpdate(h, r)
}

func setWithoutUpdate(h *heap.Heap, r heap.Ref, key, val value.Value) {
	md := hashMapOf(h, r)
	start := getHashNodeLink(h, md, key)

	for link := start; link.IsHeapRef(); {
		node := hashNodeOf(h, link.AsRef())
		if keyEquals(h, node.key, key) {
			node.val = val
			if val.IsHeapRef() {
				h.WriteBarrier(link.AsRef(), val.AsRef())
			}
			return
		}
		link = node.next
	}

	self := h.Allocate(TagHashNode, 24, &hashNodeData{key: key, val: val, next: start})
	if key.IsHeapRef() {
		h.WriteBarrier(self, key.AsRef())
	}
	if val.IsHeapRef() {
		h.WriteBarrier(self, val.AsRef())
	}
	if start.IsHeapRef() {
		h.WriteBarrier(self, start.AsRef())
	}
	setHashNodeLink(h, r, md, key, value.FromRef(self))
	h.WriteBarrier(r, self)
	md.count++
}

// HashMapRemove unlinks key's entry, if any.
func HashMapRemove(h *heap.Heap, r heap.Ref, key value.Value) {
	md := hashMapOf(h, r)
	link := getHashNodeLink(h, md, key)
	if !link.IsHeapRef() {
		return
	}

	node := hashNodeOf(h, link.AsRef())
	if keyEquals(h, node.key, key) {
		setHashNodeLink(h, r, md, key, node.next)
		md.count--
		return
	}

	for {
		next := node.next
		if !next.IsHeapRef() {
			return
		}
		nextNode := hashNodeOf(h, next.AsRef())
		if keyEquals(h, nextNode.key, key) {
			node.next = nextNode.next
			if node.next.IsHeapRef() {
				h.WriteBarrier(link.AsRef(), node.next.AsRef())
			}
			md.count--
			return
		}
		link = next
		node = nextNode
	}
}

func hashMapUpdate(h *heap.Heap, r heap.Ref) {
	md := hashMapOf(h, r)
	cap := bucketCapacity(h, md)
	threshold := uint32(md.loadFactor * float64(cap))
	if md.count >= threshold {
		rehash(h, r, cap*2)
		return
	}
	shrinkThreshold := uint32((1.0 - md.loadFactor) * float64(cap))
	if cap > hashMapInitialCapacity && md.count < shrinkThreshold {
		rehash(h, r, cap/2)
	}
}

func rehash(h *heap.Heap, r heap.Ref, newCap uint32) {
	md := hashMapOf(h, r)
	old := md.buckets
	h.PushScratch(&old)
	newBuckets := NewStaticArray(h, newCap)
	h.PopScratch()

	newRef := newBuckets.AsRef()
	md.buckets = newRef
	h.WriteBarrier(r, newRef)

	oldCap := ArrayLength(h, old)
	for i := uint32(0); i < oldCap; i++ {
		link := ArrayGet(h, old, i)
		for link.IsHeapRef() {
			node := hashNodeOf(h, link.AsRef())
			next := node.next
			targetKey := node.key
			targetLink := getHashNodeLink(h, md, targetKey)
			node.next = targetLink
			if targetLink.IsHeapRef() {
				h.WriteBarrier(link.AsRef(), targetLink.AsRef())
			}
			setHashNodeLink(h, r, md, targetKey, link)
			h.WriteBarrier(r, link.AsRef())
			link = next
		}
	}
}
