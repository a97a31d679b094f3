package vm

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/object"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

// MaxCallDepth is the call-chain depth past which Call raises
// StackOverflow, per §7.
const MaxCallDepth = 65535

// Scene is one logical execution context: an operand stack plus a
// chain of CallInfo frames linked by parent. §3 calls this a VMScene;
// a State may own several of them, though the core only ever drives
// one at a time (the single-threaded contract of §5).
type Scene struct {
	state *State
	h     *heap.Heap

	stack heap.Ref
	top   heap.Ref
	hasTop bool
	depth uint32
}

// ProcessRoots implements heap.RootHolder. Only the Stack and the
// current top CallInfo need to be handed to the collector directly -
// the rest of the frame chain is discovered transitively, because
// CallInfo's own Trace rewrites its parent link whenever the frame
// holding it is traced.
func (sc *Scene) ProcessRoots(cb heap.ChildCallback) {
	sc.stack = cb(sc.stack)
	if sc.hasTop {
		sc.top = cb(sc.top)
	}
}

func (sc *Scene) pushFrame(frame heap.Ref) {
	sc.top = frame
	sc.hasTop = true
	sc.depth++
}

func (sc *Scene) popFrame() (parent heap.Ref, hasParent bool) {
	parent, hasParent = object.CallInfoParent(sc.h, sc.top)
	sc.top = parent
	sc.hasTop = hasParent
	sc.depth--
	return parent, hasParent
}

// Execute pushes a frame for closureRef and runs the dispatch loop
// until a Halt opcode, a Return from the outermost frame, or a fatal
// fault. Faults raised anywhere in the call chain (allocation, GC,
// arithmetic, indexing, ...) are recovered here and returned as a
// plain error, matching §7: the core has no in-bytecode try/catch, so
// recovery is only ever available to the embedder re-entering a fresh
// call.
func (sc *Scene) Execute(closureRef heap.Ref) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = vmerrors.Recover(r)
		}
	}()

	closureRef = sc.state.closureOrFail(closureRef)
	numParams := object.PrototypeNumParams(sc.h, object.ClosureCallee(sc.h, closureRef))
	frame := object.NewClosureFrame(sc.h, closureRef, heap.Ref{}, false, 0, numParams, numParams)
	sc.pushFrame(frame)

	run(sc)
	return nil
}

// Result reads register idx of the scene's current top frame, for
// embedders inspecting state after Execute returns (the end-to-end
// scenarios in §8 all conclude this way).
func (sc *Scene) Result(reg uint8) value.Value {
	return object.CallInfoReg(sc.h, sc.top, reg)
}
