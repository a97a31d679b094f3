package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilBoolInt(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.True(t, True.IsBool())
	assert.True(t, True.AsBool())
	assert.False(t, False.AsBool())
	assert.True(t, Int(42).IsInt())
	assert.Equal(t, SmallInt(42), Int(42).AsInt())
}

func TestEqual(t *testing.T) {
	assert.True(t, Nil.Equal(Nil))
	assert.True(t, Int(3).Equal(Int(3)))
	assert.False(t, Int(3).Equal(Int(4)))
	assert.False(t, Int(3).Equal(Nil))
	assert.True(t, True.Equal(Bool(true)))
	assert.False(t, True.Equal(False))
}

func TestAsIntPanicsOnWrongTag(t *testing.T) {
	assert.Panics(t, func() { Nil.AsInt() })
	assert.Panics(t, func() { Int(1).AsBool() })
}

func TestString(t *testing.T) {
	assert.Equal(t, "nil", Nil.String())
	assert.Equal(t, "true", True.String())
	assert.Equal(t, "false", False.String())
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "-7", Int(-7).String())
	assert.Equal(t, "0", Int(0).String())
}
