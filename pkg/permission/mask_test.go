package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSetClearHas(t *testing.T) {
	var m Mask
	m = m.Set(0).Set(5).Set(63)

	assert.True(t, m.Has(0))
	assert.True(t, m.Has(5))
	assert.True(t, m.Has(63))
	assert.False(t, m.Has(1))

	m = m.Clear(5)
	assert.False(t, m.Has(5))
	assert.Equal(t, 2, m.Count())

	// Clearing an unset bit is a no-op.
	assert.Equal(t, m, m.Clear(7))
}

func TestMaskOutOfRangePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"has negative", func() { Mask(0).Has(-1) }},
		{"set 64", func() { Mask(0).Set(64) }},
		{"clear 100", func() { Mask(0).Clear(100) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestUnion(t *testing.T) {
	assert.Equal(t, Mask(0), Union())
	assert.Equal(t, Mask(0b1111), Union(0b0001, 0b0110, 0b1000))
	assert.Equal(t, All, Union(All, 0b1))
}

func TestMaskBits(t *testing.T) {
	assert.Empty(t, Mask(0).Bits())
	assert.Equal(t, []int{0, 2, 3, 5}, Mask(0b101101).Bits())
	assert.Len(t, All.Bits(), MaxBits)
}

func TestMaskInt64RoundTrip(t *testing.T) {
	for _, m := range []Mask{0, 1, 0b101101, 1 << 62, 1 << 63, All} {
		assert.Equal(t, m, FromInt64(m.Int64()))
	}
	assert.Equal(t, int64(-1), All.Int64())
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "0b101101", Mask(0b101101).String())
	assert.Equal(t, "0b0", Mask(0).String())
}
