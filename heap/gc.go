package heap

import "github.com/w41ter/Nerankage/vmerrors"

// FullGC runs a major collection followed by a minor one. Order
// matters: the major pass frees and compacts old space first, then the
// minor pass can promote into the now-larger free region instead of
// contending with whatever the major pass just reclaimed.
func (h *Heap) FullGC() {
	h.MajorGC()
	h.MinorGC()
}

// MinorGC runs a Cheney-style copying collection over the young
// generation: every live object reachable from a root is copied into
// the inactive survivor half (ages one generation, or is promoted to
// old space past MaxAge), eden is then discarded wholesale, and the
// two survivor halves swap roles for next time.
func (h *Heap) MinorGC() {
	toIdx := 1 - h.fromIdx
	h.survivor[toIdx].reset()

	h.processAllRoots(h.Copy)
	h.sweepRememberedSet()

	h.fromIdx = toIdx
	h.young.reset()
	h.minorCount++
}

// Copy is the ChildCallback driving minor GC. Old-space references are
// returned unchanged (the young collector never touches tenured
// objects). A reference already forwarded this cycle returns its
// cached forward. Otherwise the object is copied into the active "to"
// survivor half, its age incremented, its children traced (recursively
// copying whatever they in turn reference), and the original cell is
// marked forwarded so any other reference to it converges on the same
// copy. An object that has already reached MaxAge is promoted to the
// old generation instead of copied again.
func (h *Heap) Copy(obj Ref) Ref {
	if obj.space == SpaceOld {
		return obj
	}
	c := h.cellOf(obj)
	if c.forwarded {
		return c.forward
	}
	if c.age >= MaxAge {
		return h.promote(obj)
	}

	next := c.age + 1
	toSpace := spaceForIdx(1 - h.fromIdx)
	idx := h.regionFor(toSpace).append(cell{
		age:     next,
		typeTag: c.typeTag,
		size:    c.size,
		payload: c.payload,
	})
	newRef := Ref{space: toSpace, slot: idx}

	c.forwarded = true
	c.forward = newRef

	h.traceChildren(newRef, h.Copy)
	return newRef
}

// promote moves an object that has survived MaxAge collections into
// the old generation. The promoted copy keeps the object's payload and
// age as-is; if old space cannot fit it, a major GC runs and the
// promotion is retried once before aborting, mirroring Static's own
// retry policy.
func (h *Heap) promote(obj Ref) Ref {
	c := h.cellOf(obj)
	if !h.old.fits(c.size) {
		h.MajorGC()
		if !h.old.fits(c.size) {
			vmerrors.Raise(vmerrors.OutOfMemory, "heap: old generation exhausted while promoting")
		}
	}

	idx := h.old.append(cell{
		age:     c.age,
		typeTag: c.typeTag,
		size:    c.size,
		payload: c.payload,
	})
	newRef := Ref{space: SpaceOld, slot: idx}

	c.forwarded = true
	c.forward = newRef

	stillYoung := false
	h.traceChildren(newRef, func(child Ref) Ref {
		moved := h.Copy(child)
		if moved.space != SpaceOld {
			stillYoung = true
		}
		return moved
	})
	if stillYoung {
		h.rememberedSet[newRef] = struct{}{}
	}
	return newRef
}

// sweepRememberedSet re-traces every old object recorded as holding a
// young reference. Each one's children are retraced through Copy (so
// any reference it holds into the just-collected young generation is
// advanced to that object's survivor or old copy); entries that no
// longer reference anything outside old space are dropped.
func (h *Heap) sweepRememberedSet() {
	for ref := range h.rememberedSet {
		stillYoung := false
		h.traceChildren(ref, func(child Ref) Ref {
			moved := h.Copy(child)
			if moved.space != SpaceOld {
				stillYoung = true
			}
			return moved
		})
		if !stillYoung {
			delete(h.rememberedSet, ref)
		}
	}
}

// traceChildren dispatches to ref's registered method table, applying
// cb to every heap reference its payload holds.
func (h *Heap) traceChildren(ref Ref, cb ChildCallback) {
	c := h.cellOf(ref)
	table := methodTableFor(c.typeTag)
	if table.Trace != nil {
		table.Trace(c.payload, cb)
	}
}

func spaceForIdx(idx int) Space {
	if idx == 0 {
		return SpaceSurvivor0
	}
	return SpaceSurvivor1
}

// markSet records every old-generation cell reached during the mark
// phase of a major GC, keyed by slot index. Go's own allocator makes
// an explicit mark bitmap unnecessary for memory safety, but the old
// region is still a bump arena that needs compaction, so MajorGC keeps
// its own liveness bookkeeping exactly as the source's mark phase does.
type markSet map[uint32]bool

// MajorGC runs a mark-and-compact collection over the old generation.
// Unlike minor GC, an object's address (slot index) can change as a
// result, so every live old-space object is assigned a new slot up
// front (RecordForwarding), every outstanding reference - young or old
// - is rewritten to match (ResetReferences), and only then is the old
// region physically compacted down to just the live cells.
func (h *Heap) MajorGC() {
	live := h.mark()
	forwarding := h.recordForwarding(live)
	h.resetReferences(forwarding)
	h.compact(live, forwarding)
	h.majorCount++
}

// mark walks every root and every object reachable from it, tagging
// each old-space cell actually reachable. Young objects are never
// themselves marked (a major GC neither moves nor reclaims young
// space), but their children are still traced: an old object reachable
// only through a young referrer - a promoted object whose sole
// surviving pointer is from a young Vector, closure, or global - is
// just as live as one reached directly from a root, so the walk must
// keep going through young cells instead of stopping at them. visited
// guards re-entering an already-traced young cell, since young space
// can hold cycles the old-space mark bit can't detect on its own.
func (h *Heap) mark() markSet {
	live := make(markSet)
	visited := make(map[Ref]bool)
	var visit func(Ref) Ref
	visit = func(r Ref) Ref {
		if r.space != SpaceOld {
			if visited[r] {
				return r
			}
			visited[r] = true
			h.traceChildren(r, visit)
			return r
		}
		if live[r.slot] {
			return r
		}
		live[r.slot] = true
		h.traceChildren(r, visit)
		return r
	}
	h.processAllRoots(visit)
	return live
}

// recordForwarding assigns every marked old-space slot a new, densely
// packed slot number, preserving relative order - the old generation's
// analogue of the young generation's copy-forward, except addresses
// move within the same region instead of between two.
func (h *Heap) recordForwarding(live markSet) map[uint32]uint32 {
	forwarding := make(map[uint32]uint32, len(live))
	next := uint32(0)
	for idx := uint32(0); idx < uint32(len(h.old.cells)); idx++ {
		if live[idx] {
			forwarding[idx] = next
			next++
		}
	}
	return forwarding
}

// resetReferences rewrites every outstanding reference to a marked
// old-space object to its post-compaction slot. It must run before
// compact physically moves anything, since it still needs the
// pre-compaction cells reachable by their original slot numbers to
// trace children. A young object holding the only reference to an old
// one is just as much an outstanding reference as a root is, so the
// rewrite has to recurse through young cells too - not just old ones -
// or that young-held pointer is left dangling at its pre-compaction
// slot once compact moves the object out from under it. visited stops
// the recursion from looping forever around a young-space cycle.
func (h *Heap) resetReferences(forwarding map[uint32]uint32) {
	visited := make(map[Ref]bool)
	var rewrite func(Ref) Ref
	rewrite = func(r Ref) Ref {
		if r.space != SpaceOld {
			if visited[r] {
				return r
			}
			visited[r] = true
			h.traceChildren(r, rewrite)
			return r
		}
		if newSlot, ok := forwarding[r.slot]; ok {
			return Ref{space: SpaceOld, slot: newSlot}
		}
		return r
	}
	h.processAllRoots(rewrite)
	for idx, isLive := range forwardingDomain(forwarding) {
		if isLive {
			h.traceChildren(Ref{space: SpaceOld, slot: idx}, rewrite)
		}
	}
	newRemembered := make(map[Ref]struct{}, len(h.rememberedSet))
	for ref := range h.rememberedSet {
		if newSlot, ok := forwarding[ref.slot]; ok {
			newRemembered[Ref{space: SpaceOld, slot: newSlot}] = struct{}{}
		}
	}
	h.rememberedSet = newRemembered
}

func forwardingDomain(forwarding map[uint32]uint32) map[uint32]bool {
	domain := make(map[uint32]bool, len(forwarding))
	for idx := range forwarding {
		domain[idx] = true
	}
	return domain
}

// compact physically moves every live cell down to its recorded slot
// and truncates the old region to the new, denser length.
func (h *Heap) compact(live markSet, forwarding map[uint32]uint32) {
	compacted := make([]cell, len(forwarding))
	var usedBytes uint32
	for oldIdx, newIdx := range forwarding {
		c := h.old.cells[oldIdx]
		c.forwarded = false
		c.forward = Ref{}
		compacted[newIdx] = c
		usedBytes += c.size
	}
	h.old.cells = compacted
	h.old.used = usedBytes
}
