package object

import "github.com/w41ter/Nerankage/heap"

// HostFunc is the host-callable signature per §6. begin/end/numParams
// describe the call site (the caller's requested destination window
// and how many arguments it pushed), but a UserClosure call - unlike
// a bytecode Closure's Return - never copies anything back into the
// caller's registers; a host function that needs to communicate a
// result back does so through a global or a heap-resident out
// parameter. scene is an opaque any here to keep this leaf-ish
// package from depending on the root package's Scene type; the
// interpreter passes its *vm.Scene, which a host function may
// type-assert back.
type HostFunc func(scene any, begin, end, numParams uint8)

type userClosureData struct {
	name string
	fn   HostFunc
}

func init() {
	heap.RegisterType(TagUserClosure, heap.MethodTable{
		// A host-function pointer holds no heap references.
		Size: func(any) uint32 { return 8 },
	})
}

// NewUserClosure registers a host function by name. User-closures are
// long-lived by construction (registered once by the loader), so
// they are always tenured.
func NewUserClosure(h *heap.Heap, name string, fn HostFunc) heap.Ref {
	return h.Static(TagUserClosure, 8, &userClosureData{name: name, fn: fn})
}

func UserClosureFunc(h *heap.Heap, r heap.Ref) HostFunc {
	return h.Payload(r).(*userClosureData).fn
}

func UserClosureName(h *heap.Heap, r heap.Ref) string {
	return h.Payload(r).(*userClosureData).name
}
