package vm

import (
	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/object"
	"github.com/w41ter/Nerankage/value"
	"github.com/w41ter/Nerankage/vmerrors"
)

// DefaultArenaBytes is the total arena size NewState hands to heap.New
// when the embedder has no particular budget in mind.
const DefaultArenaBytes = 16 << 20

// State is the loader-facing handle: the bytecode buffer, every
// constant pool, the registered closures/prototypes/user-closures, the
// globals array, and the set of live VMScenes. It is a root holder in
// its own right - every one of its pools and the globals array must
// survive collection even when nothing on an operand stack currently
// points at them.
type State struct {
	Heap *heap.Heap

	code []byte

	ints    []int32
	floats  []heap.Ref
	strings []heap.Ref

	prototypes   []heap.Ref
	closures     []heap.Ref
	userClosures []heap.Ref
	userNames    map[string]uint16

	globals []value.Value

	scenes []*Scene
}

// NewState constructs an empty VMState over a bytecode buffer, wiring
// its own heap with a default-sized arena and registering itself as a
// root holder before anything else can allocate.
func NewState(code []byte) *State {
	return NewStateWithArena(code, DefaultArenaBytes)
}

// NewStateWithArena is NewState with an explicit arena budget, for
// embedders (the example loader, benchmark harnesses) that need to
// size the heap themselves rather than take the default.
func NewStateWithArena(code []byte, arenaBytes uint32) *State {
	s := &State{
		Heap:      heap.New(arenaBytes),
		code:      code,
		userNames: make(map[string]uint16),
	}
	s.Heap.RegisterRoot(s)
	return s
}

// ProcessRoots implements heap.RootHolder: every constant-pool entry,
// registered closure/prototype/user-closure, and heap-valued global
// must be rewritten in place so a collection never leaves the state
// holding a stale reference.
func (s *State) ProcessRoots(cb heap.ChildCallback) {
	for i, r := range s.floats {
		s.floats[i] = cb(r)
	}
	for i, r := range s.strings {
		s.strings[i] = cb(r)
	}
	for i, r := range s.prototypes {
		s.prototypes[i] = cb(r)
	}
	for i, r := range s.closures {
		s.closures[i] = cb(r)
	}
	for i, r := range s.userClosures {
		s.userClosures[i] = cb(r)
	}
	for i, v := range s.globals {
		if v.IsHeapRef() {
			s.globals[i] = value.FromRef(cb(v.AsRef()))
		}
	}
}

// RegisterInt appends a small-integer constant, returning its pool
// index for use as a MoveI instruction's Bx.
func (s *State) RegisterInt(v int32) uint16 {
	s.ints = append(s.ints, v)
	return uint16(len(s.ints) - 1)
}

// RegisterFloat boxes and tenures a float64 constant.
func (s *State) RegisterFloat(v float64) uint16 {
	s.floats = append(s.floats, object.NewGlobalFloat(s.Heap, v).AsRef())
	return uint16(len(s.floats) - 1)
}

// RegisterString tenures a string constant.
func (s *State) RegisterString(v string) uint16 {
	s.strings = append(s.strings, object.NewGlobalString(s.Heap, v).AsRef())
	return uint16(len(s.strings) - 1)
}

// RegisterPrototype records a function's code and capture shape;
// prototype index is insertion order, matching NewClosure's Bx.
func (s *State) RegisterPrototype(codeOffset, codeLen uint32, numParams uint8, isVararg bool, captured []object.Captured) uint16 {
	code := s.code[codeOffset : codeOffset+codeLen]
	s.prototypes = append(s.prototypes, object.NewPrototype(s.Heap, code, numParams, isVararg, captured))
	return uint16(len(s.prototypes) - 1)
}

// RegisterClosure pairs a previously-registered prototype with its
// already-resolved captured values and records it as a constant-pool
// closure (used by programs that don't build closures at runtime via
// NewClosure).
func (s *State) RegisterClosure(prototypeIdx uint16, captured []value.Value) uint16 {
	proto := s.prototypes[prototypeIdx]
	s.closures = append(s.closures, object.NewClosure(s.Heap, proto, captured).AsRef())
	return uint16(len(s.closures) - 1)
}

// RegisterUserClosure registers a host function under a stable name,
// retrievable both by the returned pool index and by UserClosureIndex.
func (s *State) RegisterUserClosure(name string, fn object.HostFunc) uint16 {
	idx := uint16(len(s.userClosures))
	s.userClosures = append(s.userClosures, object.NewUserClosure(s.Heap, name, fn))
	s.userNames[name] = idx
	return idx
}

// UserClosureIndex looks up a previously registered host function by
// name, as the loader-facing API requires.
func (s *State) UserClosureIndex(name string) (uint16, bool) {
	idx, ok := s.userNames[name]
	return idx, ok
}

// Closure returns the heap reference for a constant-pool closure
// previously registered with RegisterClosure, for an embedder that
// needs to pass it to Scene.Execute directly.
func (s *State) Closure(idx uint16) heap.Ref { return s.closures[idx] }

func (s *State) global(idx uint16) value.Value {
	if int(idx) >= len(s.globals) {
		return value.Nil
	}
	return s.globals[idx]
}

func (s *State) setGlobal(idx uint16, v value.Value) {
	if int(idx) >= len(s.globals) {
		grown := make([]value.Value, int(idx)+1)
		copy(grown, s.globals)
		for i := len(s.globals); i < len(grown); i++ {
			grown[i] = value.Nil
		}
		s.globals = grown
	}
	s.globals[idx] = v
}

// NewScene creates a fresh call stack (operand stack + call-frame
// chain) over this state's heap and registers it as its own root
// holder, per §3's ownership model (VMScene owns its Stack and
// call-frame chain, also a root holder).
func (s *State) NewScene() *Scene {
	sc := &Scene{state: s, h: s.Heap}
	sc.stack = object.NewStack(s.Heap).AsRef()
	s.Heap.RegisterRoot(sc)
	s.scenes = append(s.scenes, sc)
	return sc
}

// CloseScene deregisters a scene once the embedder is done with it.
func (s *State) CloseScene(sc *Scene) {
	s.Heap.UnregisterRoot(sc)
	for i, existing := range s.scenes {
		if existing == sc {
			s.scenes = append(s.scenes[:i], s.scenes[i+1:]...)
			return
		}
	}
}

// Execute is the loader-facing convenience entry point: it creates a
// scratch scene, runs closureRef to completion, and tears the scene
// down again. Embedders that need the operand stack or register state
// after a Halt should call NewScene/Scene.Execute directly instead.
func (s *State) Execute(closureRef heap.Ref) (err error) {
	sc := s.NewScene()
	defer s.CloseScene(sc)
	return sc.Execute(closureRef)
}

// closureOrFail validates that r names a Closure before Execute builds
// a frame around it, since a bare Prototype or UserClosure is not a
// legal entry point.
func (s *State) closureOrFail(r heap.Ref) heap.Ref {
	if s.Heap.TypeOf(r) != object.TagClosure {
		vmerrors.Raise(vmerrors.TypeError, "vm: entry point is not a closure")
	}
	return r
}
