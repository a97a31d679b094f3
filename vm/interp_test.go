package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w41ter/Nerankage/object"
	"github.com/w41ter/Nerankage/value"
)

// axOffset encodes a signed instruction-count displacement into
// Goto's 24-bit Ax field.
func axOffset(delta int32) uint32 { return uint32(delta) & 0x00FFFFFF }

// cOffset encodes a signed instruction-count displacement into the
// branch family's 8-bit C field.
func cOffset(delta int8) uint8 { return uint8(delta) }

func runEntry(t *testing.T, code []byte, entryOffset, entryLen uint32) (*State, *Scene) {
	t.Helper()
	s := NewState(code)
	protoIdx := s.RegisterPrototype(entryOffset, entryLen, 0, false, nil)
	closureIdx := s.RegisterClosure(protoIdx, nil)
	sc := s.NewScene()
	err := sc.Execute(s.Closure(closureIdx))
	require.NoError(t, err)
	return s, sc
}

func TestConstantLoadAndHalt(t *testing.T) {
	code := append(EncodeABx(OpMoveN, 0, 0), EncodeABC(OpHalt, 0, 0, 0)...)
	_, sc := runEntry(t, code, 0, uint32(len(code)))
	assert.True(t, sc.Result(0).IsNil())
}

func TestArithmetic(t *testing.T) {
	var code []byte
	code = append(code, EncodeABx(OpMoveI, 0, 0)...)
	code = append(code, EncodeABx(OpMoveI, 1, 1)...)
	code = append(code, EncodeABC(OpAdd, 2, 0, 1)...)
	code = append(code, EncodeABC(OpHalt, 0, 0, 0)...)

	s := NewState(code)
	s.RegisterInt(3)
	s.RegisterInt(4)
	protoIdx := s.RegisterPrototype(0, uint32(len(code)), 0, false, nil)
	closureIdx := s.RegisterClosure(protoIdx, nil)
	sc := s.NewScene()
	require.NoError(t, sc.Execute(s.Closure(closureIdx)))

	got := sc.Result(2)
	require.True(t, got.IsInt())
	assert.Equal(t, value.SmallInt(7), got.AsInt())
}

func TestConditionalBranch(t *testing.T) {
	runOne := func(cond int32, want value.SmallInt) {
		// pc 0:  MoveI r0, ints[0]=cond
		// pc 4:  BZ r0, C -> taken jumps to pc 16 (set r1=1), not taken falls to pc 8
		// pc 8:  MoveI r1, ints[1]=2
		// pc 12: Goto -> pc 20 (Halt)
		// pc 16: MoveI r1, ints[2]=1
		// pc 20: Halt
		var code []byte
		code = append(code, EncodeABx(OpMoveI, 0, 0)...)
		code = append(code, EncodeABC(OpBZ, 0, 0, cOffset(3))...)
		code = append(code, EncodeABx(OpMoveI, 1, 1)...)
		code = append(code, EncodeAx(OpGoto, axOffset(2))...)
		code = append(code, EncodeABx(OpMoveI, 1, 2)...)
		code = append(code, EncodeABC(OpHalt, 0, 0, 0)...)

		s := NewState(code)
		s.RegisterInt(cond)
		s.RegisterInt(2)
		s.RegisterInt(1)
		protoIdx := s.RegisterPrototype(0, uint32(len(code)), 0, false, nil)
		closureIdx := s.RegisterClosure(protoIdx, nil)
		sc := s.NewScene()
		require.NoError(t, sc.Execute(s.Closure(closureIdx)))

		got := sc.Result(1)
		require.True(t, got.IsInt())
		assert.Equal(t, want, got.AsInt())
	}

	runOne(0, 1) // zero takes the branch
	runOne(5, 2) // non-zero falls through
}

func TestCallAndReturn(t *testing.T) {
	calleeCode := append(EncodeABC(OpAdd, 2, 0, 1), EncodeABC(OpReturn, 2, 3, 0)...)

	var callerCode []byte
	// placeholder for NewClosure's Bx (the callee prototype index), filled below.
	newClosureAt := len(callerCode)
	callerCode = append(callerCode, EncodeABx(OpNewClosure, 2, 0)...)
	callerCode = append(callerCode, EncodeABx(OpMoveI, 0, 0)...)
	callerCode = append(callerCode, EncodeABx(OpMoveI, 1, 1)...)
	callerCode = append(callerCode, EncodeABC(OpPush, 2, 0, 0)...)
	callerCode = append(callerCode, EncodeABC(OpPush, 0, 0, 0)...)
	callerCode = append(callerCode, EncodeABC(OpPush, 1, 0, 0)...)
	callerCode = append(callerCode, EncodeABC(OpCall, 2, 3, 2)...)
	callerCode = append(callerCode, EncodeABC(OpHalt, 0, 0, 0)...)

	code := append(append([]byte{}, calleeCode...), callerCode...)
	calleeOffset := uint32(0)
	callerOffset := uint32(len(calleeCode))

	s := NewState(code)
	s.RegisterInt(5)
	s.RegisterInt(7)
	calleeProtoIdx := s.RegisterPrototype(calleeOffset, uint32(len(calleeCode)), 2, false, nil)

	// patch NewClosure's Bx now that the callee prototype index is known.
	patched := EncodeABx(OpNewClosure, 2, calleeProtoIdx)
	copy(code[callerOffset+uint32(newClosureAt):], patched)

	callerProtoIdx := s.RegisterPrototype(callerOffset, uint32(len(callerCode)), 0, false, nil)
	closureIdx := s.RegisterClosure(callerProtoIdx, nil)
	sc := s.NewScene()
	require.NoError(t, sc.Execute(s.Closure(closureIdx)))

	got := sc.Result(2)
	require.True(t, got.IsInt())
	assert.Equal(t, value.SmallInt(12), got.AsInt())
}

func TestSustainedAllocationOfShortLivedVectors(t *testing.T) {
	// pc 0:  MoveI r0, ints[0]=N
	// pc 4:  BZ r0 -> taken jumps to pc 20 (Halt)
	// pc 8:  NewArray r1      (dropped every iteration: no root holds it past the next one)
	// pc 12: Dec r0, r0
	// pc 16: Goto -> pc 4
	// pc 20: Halt
	const n = 10000
	var code []byte
	code = append(code, EncodeABx(OpMoveI, 0, 0)...)
	code = append(code, EncodeABC(OpBZ, 0, 0, cOffset(4))...)
	code = append(code, EncodeABC(OpNewArray, 1, 0, 0)...)
	code = append(code, EncodeABC(OpDec, 0, 0, 0)...)
	code = append(code, EncodeAx(OpGoto, axOffset(-3))...)
	code = append(code, EncodeABC(OpHalt, 0, 0, 0)...)

	// A 1 MiB arena gives a 209715-byte eden; each iteration allocates
	// 76 bytes (a 64-byte backing Array plus a 12-byte Vector), so the
	// loop fills eden several times over. The 16 MiB default eden would
	// hold all 10000 iterations without a single collection.
	s := NewStateWithArena(code, 1<<20)
	s.RegisterInt(n)
	protoIdx := s.RegisterPrototype(0, uint32(len(code)), 0, false, nil)
	closureIdx := s.RegisterClosure(protoIdx, nil)
	sc := s.NewScene()
	require.NoError(t, sc.Execute(s.Closure(closureIdx)))

	got := sc.Result(0)
	require.True(t, got.IsInt())
	assert.EqualValues(t, 0, got.AsInt())

	stats := s.Heap.Stats()
	assert.Greater(t, stats.MinorCollections, 0, "sustained allocation must have forced at least one minor GC")
}

func TestHashMapThroughBytecode(t *testing.T) {
	var code []byte
	code = append(code, EncodeABC(OpNewHash, 0, 0, 0)...)
	code = append(code, EncodeABx(OpMoveI, 1, 0)...)
	code = append(code, EncodeABx(OpMoveI, 2, 1)...)
	code = append(code, EncodeABC(OpSetIndex, 0, 1, 2)...)
	code = append(code, EncodeABC(OpIndex, 3, 0, 1)...)
	code = append(code, EncodeABC(OpHalt, 0, 0, 0)...)

	s := NewState(code)
	s.RegisterInt(1)
	s.RegisterInt(99)
	protoIdx := s.RegisterPrototype(0, uint32(len(code)), 0, false, nil)
	closureIdx := s.RegisterClosure(protoIdx, nil)
	sc := s.NewScene()
	require.NoError(t, sc.Execute(s.Closure(closureIdx)))

	got := sc.Result(3)
	require.True(t, got.IsInt())
	assert.Equal(t, value.SmallInt(99), got.AsInt())

	mapVal := sc.Result(0)
	require.True(t, mapVal.IsHeapRef())
	assert.EqualValues(t, 1, object.HashMapLength(s.Heap, mapVal.AsRef()))
}
