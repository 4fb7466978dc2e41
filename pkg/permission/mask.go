package permission

import (
	"fmt"
	"math/bits"
	"strconv"
)

// MaxBits is the number of representable permission positions.
const MaxBits = 64

// Mask is a set of granted permissions. Bit n set means the permission registered
// at position n is granted.
type Mask uint64

// All is the mask with every position set. The owner role carries it, so owners
// also hold codes registered after their organization was created.
const All = ^Mask(0)

func checkBit(bit int) {
	if bit < 0 || bit >= MaxBits {
		panic(fmt.Sprintf("permission: bit position %d out of range [0, %d]", bit, MaxBits-1))
	}
}

// Has reports whether bit is set. It panics if bit is outside [0, 63].
func (m Mask) Has(bit int) bool {
	checkBit(bit)
	return m&(1<<uint(bit)) != 0
}

// Set returns m with bit set. It panics if bit is outside [0, 63].
func (m Mask) Set(bit int) Mask {
	checkBit(bit)
	return m | 1<<uint(bit)
}

// Clear returns m with bit cleared. It panics if bit is outside [0, 63].
func (m Mask) Clear(bit int) Mask {
	checkBit(bit)
	return m &^ (1 << uint(bit))
}

// Union ORs all masks together.
func Union(masks ...Mask) Mask {
	var out Mask
	for _, m := range masks {
		out |= m
	}
	return out
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Bits returns the set positions in ascending order.
func (m Mask) Bits() []int {
	out := make([]int, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

// String renders the mask as a binary literal, e.g. 0b101101.
func (m Mask) String() string {
	return "0b" + strconv.FormatUint(uint64(m), 2)
}

// Int64 returns the mask reinterpreted as a signed integer. database/sql and BSON
// cannot carry uint64 values with the high bit set, so stores persist this form.
func (m Mask) Int64() int64 {
	return int64(m)
}

// FromInt64 reverses Int64.
func FromInt64(v int64) Mask {
	return Mask(uint64(v))
}
