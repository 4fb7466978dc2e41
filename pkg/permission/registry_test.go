package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, 22, reg.Len())

	tests := []struct {
		code string
		bit  int
	}{
		{"profile.view", 0},
		{"analytics.view", 2},
		{"webhooks.manage", 8},
		{"org.settings", 12},
		{"billing.manage", 17},
		{"support.priority", 21},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			bit, ok := reg.Bit(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.bit, bit)

			code, ok := reg.Code(tt.bit)
			require.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}

	_, ok := reg.Bit("does.not.exist")
	assert.False(t, ok)
	_, ok = reg.Code(40)
	assert.False(t, ok)
	_, ok = reg.Code(-1)
	assert.False(t, ok)
}

func TestRegistryPositionsUnique(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	seen := make(map[int]string)
	for _, d := range reg.Definitions() {
		prev, dup := seen[d.Bit]
		assert.False(t, dup, "bit %d shared by %q and %q", d.Bit, prev, d.Code)
		seen[d.Bit] = d.Code
	}
}

func TestBuilderRegisterAppends(t *testing.T) {
	b := NewBuilder()

	bit, err := b.Register(Definition{Code: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, bit)

	require.NoError(t, b.Define(Definition{Code: "c", Bit: 5}))

	// The gap at 1..4 is not reused.
	bit, err = b.Register(Definition{Code: "d"})
	require.NoError(t, err)
	assert.Equal(t, 6, bit)

	reg := b.Build()
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"a", "c", "d"}, reg.Codes(All))
}

func TestBuilderRejects(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
		want error
	}{
		{
			name: "reused position",
			defs: []Definition{{Code: "a", Bit: 3}, {Code: "b", Bit: 3}},
			want: ErrPositionTaken,
		},
		{
			name: "duplicate code",
			defs: []Definition{{Code: "a", Bit: 0}, {Code: "a", Bit: 1}},
			want: ErrDuplicateCode,
		},
		{
			name: "empty code",
			defs: []Definition{{Code: "  ", Bit: 0}},
			want: ErrEmptyCode,
		},
		{
			name: "position out of range",
			defs: []Definition{{Code: "a", Bit: 64}},
			want: ErrPositionRange,
		},
		{
			name: "negative position",
			defs: []Definition{{Code: "a", Bit: -1}},
			want: ErrPositionRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuilderFull(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Define(Definition{Code: "last", Bit: 63}))

	_, err := b.Register(Definition{Code: "overflow"})
	assert.ErrorIs(t, err, ErrRegistryFull)
}

func TestBuildIsSnapshot(t *testing.T) {
	b := NewBuilder()
	_, err := b.Register(Definition{Code: "a"})
	require.NoError(t, err)
	reg := b.Build()

	_, err = b.Register(Definition{Code: "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Bit("b")
	assert.False(t, ok)
}

func TestExtendKeepsPositions(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	b := Extend(reg)
	bit, err := b.Register(Definition{Code: "reports.schedule"})
	require.NoError(t, err)
	assert.Equal(t, 22, bit)

	extended := b.Build()
	for _, d := range reg.Definitions() {
		got, ok := extended.Bit(d.Code)
		require.True(t, ok)
		assert.Equal(t, d.Bit, got)
	}
}

func TestExpandAndMaskOf(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	m, err := reg.MaskOf("profile.view", "export.csv")
	require.NoError(t, err)
	assert.Equal(t, Mask(0b1001), m)

	_, err = reg.MaskOf("nope")
	assert.Error(t, err)

	expanded := reg.Expand(m)
	assert.Len(t, expanded, reg.Len())
	assert.True(t, expanded["profile.view"])
	assert.True(t, expanded["export.csv"])
	assert.False(t, expanded["profile.edit"])

	assert.Equal(t, reg.Len(), reg.Known().Count())
}

func TestLookup(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	d, ok := reg.Lookup("billing.manage")
	require.True(t, ok)
	assert.True(t, d.IsDangerous)
	assert.Equal(t, "admin", d.Category)

	d, ok = reg.Lookup("integrations.slack")
	require.True(t, ok)
	assert.True(t, d.IsAddon)
}
