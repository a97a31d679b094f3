package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

func TestStackPushPopRoundTrip(t *testing.T) {
	h := heap.New(4 << 20)
	s := NewStack(h)
	r := s.AsRef()

	require.True(t, StackEmpty(h, r))

	StackPush(h, r, value.Int(7))
	assert.False(t, StackEmpty(h, r))
	assert.EqualValues(t, 1, StackLength(h, r))

	got := StackPop(h, r)
	assert.Equal(t, value.Int(7), got)
	assert.True(t, StackEmpty(h, r))
}

func TestStackTenThousandPushesThenPops(t *testing.T) {
	h := heap.New(16 << 20)
	s := NewStack(h)
	r := s.AsRef()

	const n = 10000
	for i := 0; i < n; i++ {
		StackPush(h, r, value.Int(int32(i)))
	}
	assert.EqualValues(t, n, StackLength(h, r))

	for i := n - 1; i >= 0; i-- {
		v := StackPop(h, r)
		require.True(t, v.IsInt())
		assert.Equal(t, int32(i), v.AsInt())
		assert.EqualValues(t, i, StackLength(h, r))
	}
	assert.True(t, StackEmpty(h, r))
}

func TestStackGetSetIndexing(t *testing.T) {
	h := heap.New(4 << 20)
	s := NewStack(h)
	r := s.AsRef()

	StackPush(h, r, value.Int(1))
	StackPush(h, r, value.Int(2))
	StackPush(h, r, value.Int(3))

	assert.Equal(t, value.Int(3), StackGet(h, r, 0))
	assert.Equal(t, value.Int(2), StackGet(h, r, 1))
	assert.Equal(t, value.Int(1), StackGet(h, r, 2))

	StackSet(h, r, 1, value.Int(99))
	assert.Equal(t, value.Int(99), StackGet(h, r, 1))
}

func TestStackPopFromEmptyFails(t *testing.T) {
	h := heap.New(1 << 20)
	s := NewStack(h)
	r := s.AsRef()

	assert.Panics(t, func() { StackPop(h, r) })
}
