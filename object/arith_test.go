package object

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/w41ter/Nerankage/heap"
	"github.com/w41ter/Nerankage/value"
)

func TestAddExactWithinSmallIntRange(t *testing.T) {
	h := heap.New(1 << 20)
	sum := Add(h, value.Int(40), value.Int(2))
	assert.True(t, sum.IsInt())
	assert.Equal(t, value.SmallInt(42), sum.AsInt())
}

func TestAddPromotesOnOverflow(t *testing.T) {
	h := heap.New(1 << 20)
	sum := Add(h, value.Int(math.MaxInt32), value.Int(1))
	assert.True(t, sum.IsHeapRef())
	assert.Equal(t, TagFloat, h.TypeOf(sum.AsRef()))
	assert.InDelta(t, float64(math.MaxInt32)+1, FloatValue(h, sum.AsRef()), 1e-9)
}

func TestPowAlwaysPromotesToFloat(t *testing.T) {
	h := heap.New(1 << 20)
	p := Pow(h, value.Int(2), value.Int(3))
	assert.True(t, p.IsHeapRef())
	assert.Equal(t, TagFloat, h.TypeOf(p.AsRef()))
	assert.InDelta(t, 8.0, FloatValue(h, p.AsRef()), 1e-9)
}

func TestDivByZeroFaultsOnIntegers(t *testing.T) {
	h := heap.New(1 << 20)
	assert.Panics(t, func() { Div(h, value.Int(1), value.Int(0)) })
}

func TestDivPromotesNonIntegers(t *testing.T) {
	h := heap.New(1 << 20)
	f := NewFloat(h, 5.0)
	q := Div(h, f, value.Int(2))
	assert.True(t, q.IsHeapRef())
	assert.InDelta(t, 2.5, FloatValue(h, q.AsRef()), 1e-9)
}

func TestModRequiresIntegers(t *testing.T) {
	h := heap.New(1 << 20)
	assert.Equal(t, value.SmallInt(1), Mod(h, value.Int(7), value.Int(3)).AsInt())
	assert.Panics(t, func() { Mod(h, NewFloat(h, 7.5), value.Int(3)) })
}

func TestNotIsInverseOfTruthy(t *testing.T) {
	h := heap.New(1 << 20)
	cases := []value.Value{value.Nil, value.Int(0), value.Int(1), value.True, value.False, NewFloat(h, 0)}
	for _, v := range cases {
		assert.Equal(t, !Truthy(h, v), Not(h, v).AsBool())
	}
}

func TestNZRules(t *testing.T) {
	h := heap.New(1 << 20)
	assert.False(t, NZ(h, value.Nil))
	assert.False(t, NZ(h, value.Int(0)))
	assert.True(t, NZ(h, value.Int(1)))
	assert.False(t, NZ(h, NewFloat(h, 0.0)))
	assert.True(t, NZ(h, NewFloat(h, math.NaN())), "NaN is explicitly not zero")
}

func TestEqualCrossesIntFloatPromotion(t *testing.T) {
	h := heap.New(1 << 20)
	assert.True(t, Equal(h, value.Int(3), NewFloat(h, 3.0)))
	assert.False(t, Equal(h, value.Int(3), NewFloat(h, 3.5)))
}
