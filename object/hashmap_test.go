package object

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

func TestHashMapSetFindRemove(t *testing.T) {
	h := heap.New(4 << 20)
	m := NewHashMap(h).AsRef()

	assert.True(t, HashMapFind(h, m, value.Int(1)).IsNil())

	HashMapSet(h, m, value.Int(1), NewString(h, "one"))
	assert.EqualValues(t, 1, HashMapLength(h, m))
	assert.Equal(t, "one", StringValue(h, HashMapFind(h, m, value.Int(1)).AsRef()))

	HashMapSet(h, m, value.Int(1), NewString(h, "uno"))
	assert.EqualValues(t, 1, HashMapLength(h, m))
	assert.Equal(t, "uno", StringValue(h, HashMapFind(h, m, value.Int(1)).AsRef()))

	HashMapRemove(h, m, value.Int(1))
	assert.EqualValues(t, 0, HashMapLength(h, m))
	assert.True(t, HashMapFind(h, m, value.Int(1)).IsNil())
}

func TestHashMapSetNilValueRemoves(t *testing.T) {
	h := heap.New(4 << 20)
	m := NewHashMap(h).AsRef()

	HashMapSet(h, m, value.Int(1), value.Int(42))
	assert.EqualValues(t, 1, HashMapLength(h, m))

	HashMapSet(h, m, value.Int(1), value.Nil)
	assert.EqualValues(t, 0, HashMapLength(h, m))
}

func TestHashMapRejectsBadKeyType(t *testing.T) {
	h := heap.New(1 << 20)
	m := NewHashMap(h).AsRef()
	assert.Panics(t, func() { HashMapSet(h, m, value.Bool(true), value.Int(1)) })
}

func TestHashMapThousandDistinctKeys(t *testing.T) {
	h := heap.New(16 << 20)
	m := NewHashMap(h).AsRef()

	const n = 1000
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%d", i)
		keys[i] = k
		HashMapSet(h, m, NewString(h, k), value.Int(int32(i)))
	}
	require.EqualValues(t, n, HashMapLength(h, m))

	for i, k := range keys {
		got := HashMapFind(h, m, NewString(h, k))
		require.True(t, got.IsInt(), "key %q missing", k)
		assert.Equal(t, int32(i), got.AsInt())
	}

	for i := 0; i < n; i += 2 {
		HashMapRemove(h, m, NewString(h, keys[i]))
	}
	assert.EqualValues(t, n/2, HashMapLength(h, m))

	for i, k := range keys {
		got := HashMapFind(h, m, NewString(h, k))
		if i%2 == 0 {
			assert.True(t, got.IsNil(), "key %q should have been removed", k)
		} else {
			require.True(t, got.IsInt(), "key %q missing", k)
			assert.Equal(t, int32(i), got.AsInt())
		}
	}
}
