package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTag is a minimal traceable object kind registered purely for
// these tests: a payload that optionally links to one other object,
// exercising Trace/promotion/marking without depending on package
// object at all.
const testTag uint8 = 250

type testNode struct {
	id      int
	hasNext bool
	next    Ref
}

func init() {
	RegisterType(testTag, MethodTable{
		Trace: func(a any, cb ChildCallback) {
			n := a.(*testNode)
			if n.hasNext {
				n.next = cb(n.next)
			}
		},
		Size: func(any) uint32 { return 16 },
	})
}

// testRoot is a RootHolder over a single slot, standing in for a
// VMScene/VMState in these whitebox tests.
type testRoot struct {
	ref    Ref
	hasRef bool
}

func (r *testRoot) ProcessRoots(cb ChildCallback) {
	if r.hasRef {
		r.ref = cb(r.ref)
	}
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	return New(1 << 20)
}

func TestAllocateStampsHeaderFields(t *testing.T) {
	h := newTestHeap(t)
	r := h.Allocate(testTag, 16, &testNode{id: 1})
	assert.Equal(t, testTag, h.TypeOf(r))
	assert.Equal(t, uint8(0), h.Age(r))
	assert.Equal(t, SpaceYoung, r.Space())

	s := h.Static(testTag, 16, &testNode{id: 2})
	assert.Equal(t, uint8(MaxAge), h.Age(s))
	assert.True(t, s.IsOld())
}

func TestMinorGCReachabilityAndNoDangling(t *testing.T) {
	h := newTestHeap(t)
	tail := h.Allocate(testTag, 16, &testNode{id: 1})
	head := h.Allocate(testTag, 16, &testNode{id: 2, hasNext: true, next: tail})

	root := &testRoot{ref: head, hasRef: true}
	h.RegisterRoot(root)

	h.MinorGC()

	require.Equal(t, SpaceSurvivor1, root.ref.Space())
	headPayload := h.Payload(root.ref).(*testNode)
	assert.Equal(t, 2, headPayload.id)
	require.True(t, headPayload.hasNext)
	assert.NotEqual(t, SpaceYoung, headPayload.next.Space())
	tailPayload := h.Payload(headPayload.next).(*testNode)
	assert.Equal(t, 1, tailPayload.id)
}

func TestWriteBarrierSoundness(t *testing.T) {
	h := newTestHeap(t)
	young := h.Allocate(testTag, 16, &testNode{id: 1})
	old := h.Static(testTag, 16, &testNode{id: 2, hasNext: true, next: young})

	h.WriteBarrier(old, young)
	_, inSet := h.rememberedSet[old]
	assert.True(t, inSet, "old->young reference must be recorded in the remembered set")

	root := &testRoot{ref: old, hasRef: true}
	h.RegisterRoot(root)
	h.MinorGC()

	_, stillInSet := h.rememberedSet[root.ref]
	assert.True(t, stillInSet, "old object still referencing (moved) young object stays in the set")
}

func TestMajorGCCompactsAndPreservesContent(t *testing.T) {
	h := newTestHeap(t)
	a := h.Static(testTag, 16, &testNode{id: 1})
	b := h.Static(testTag, 16, &testNode{id: 2})
	_ = a

	root := &testRoot{ref: b, hasRef: true}
	h.RegisterRoot(root)

	h.MajorGC()

	payload := h.Payload(root.ref).(*testNode)
	assert.Equal(t, 2, payload.id)
	assert.True(t, root.ref.IsOld())
	assert.EqualValues(t, 16, h.Stats().OldUsed, "only the surviving 16-byte object remains in old space")
}

func TestFullGCIdempotence(t *testing.T) {
	h := newTestHeap(t)
	root := &testRoot{}
	r := h.Static(testTag, 16, &testNode{id: 1})
	root.ref, root.hasRef = r, true
	h.RegisterRoot(root)

	h.FullGC()
	first := h.Stats()
	h.FullGC()
	second := h.Stats()

	assert.Equal(t, first.OldUsed, second.OldUsed)
	assert.Equal(t, first.YoungUsed, second.YoungUsed)
}

func TestPromotionAtMaxAge(t *testing.T) {
	h := newTestHeap(t)
	r := h.Allocate(testTag, 16, &testNode{id: 1})
	root := &testRoot{ref: r, hasRef: true}
	h.RegisterRoot(root)

	for i := 0; i < int(MaxAge)+1; i++ {
		h.MinorGC()
	}

	assert.True(t, root.ref.IsOld(), "object surviving MaxAge minor collections must be promoted")
}
