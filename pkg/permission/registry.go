package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEmptyCode is returned when a definition has no code.
	ErrEmptyCode = errors.New("permission: empty code")
	// ErrDuplicateCode is returned when a code is registered twice.
	ErrDuplicateCode = errors.New("permission: duplicate code")
	// ErrPositionTaken is returned when a bit position is already assigned.
	ErrPositionTaken = errors.New("permission: bit position already assigned")
	// ErrPositionRange is returned for positions outside [0, 63].
	ErrPositionRange = errors.New("permission: bit position out of range")
	// ErrRegistryFull is returned when all 64 positions are in use.
	ErrRegistryFull = errors.New("permission: registry full")
)

// Definition describes one permission code.
type Definition struct {
	Code        string `yaml:"code" json:"code"`
	Bit         int    `yaml:"bit" json:"bit"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	IsAddon     bool   `yaml:"addon,omitempty" json:"is_addon,omitempty"`
	IsDangerous bool   `yaml:"dangerous,omitempty" json:"is_dangerous,omitempty"`
}

// Builder accumulates definitions before producing an immutable Registry.
// A Builder is not safe for concurrent use.
type Builder struct {
	defs   []Definition
	byCode map[string]int
	used   Mask
	next   int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byCode: make(map[string]int)}
}

// Register assigns def the next unused position, which is always one past the
// highest position assigned so far. Gaps left by retired codes are never filled.
func (b *Builder) Register(def Definition) (int, error) {
	if b.next >= MaxBits {
		return 0, fmt.Errorf("%w: cannot register %q", ErrRegistryFull, def.Code)
	}
	def.Bit = b.next
	if err := b.add(def); err != nil {
		return 0, err
	}
	return def.Bit, nil
}

// Define adds def at its explicit position, used when loading an existing catalog.
func (b *Builder) Define(def Definition) error {
	return b.add(def)
}

func (b *Builder) add(def Definition) error {
	def.Code = strings.TrimSpace(def.Code)
	if def.Code == "" {
		return ErrEmptyCode
	}
	if def.Bit < 0 || def.Bit >= MaxBits {
		return fmt.Errorf("%w: %q at %d", ErrPositionRange, def.Code, def.Bit)
	}
	if _, ok := b.byCode[def.Code]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCode, def.Code)
	}
	if b.used.Has(def.Bit) {
		return fmt.Errorf("%w: %q wants bit %d", ErrPositionTaken, def.Code, def.Bit)
	}
	if def.Name == "" {
		def.Name = def.Code
	}

	b.byCode[def.Code] = len(b.defs)
	b.defs = append(b.defs, def)
	b.used = b.used.Set(def.Bit)
	if def.Bit >= b.next {
		b.next = def.Bit + 1
	}
	return nil
}

// Build returns the immutable Registry. The Builder may keep being used; later
// registrations do not affect registries already built.
func (b *Builder) Build() *Registry {
	r := &Registry{
		byCode: make(map[string]int, len(b.defs)),
		defs:   make([]Definition, len(b.defs)),
	}
	copy(r.defs, b.defs)
	sort.Slice(r.defs, func(i, j int) bool { return r.defs[i].Bit < r.defs[j].Bit })
	for i, d := range r.defs {
		r.byCode[d.Code] = d.Bit
		r.byBit[d.Bit] = i + 1
		r.known = r.known.Set(d.Bit)
	}
	return r
}

// Registry is an immutable code to bit table. It is safe for concurrent use.
type Registry struct {
	byCode map[string]int
	byBit  [MaxBits]int // index+1 into defs, 0 when unassigned
	defs   []Definition
	known  Mask
}

// NewRegistry builds a Registry from definitions with explicit positions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	b := NewBuilder()
	for _, d := range defs {
		if err := b.Define(d); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Bit returns the position for code. ok is false for unknown codes, which callers
// must treat as denied.
func (r *Registry) Bit(code string) (int, bool) {
	bit, ok := r.byCode[code]
	return bit, ok
}

// Code returns the code registered at bit.
func (r *Registry) Code(bit int) (string, bool) {
	if bit < 0 || bit >= MaxBits || r.byBit[bit] == 0 {
		return "", false
	}
	return r.defs[r.byBit[bit]-1].Code, true
}

// Lookup returns the full definition for code.
func (r *Registry) Lookup(code string) (Definition, bool) {
	bit, ok := r.byCode[code]
	if !ok {
		return Definition{}, false
	}
	return r.defs[r.byBit[bit]-1], true
}

// Len returns the number of registered codes.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Definitions returns a copy of all definitions ordered by position.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Known returns the mask of every registered position.
func (r *Registry) Known() Mask {
	return r.known
}

// MaskOf returns the mask granting the given codes. Unknown codes are an error
// here since this is used to build fixtures and catalogs, not to answer checks.
func (r *Registry) MaskOf(codes ...string) (Mask, error) {
	var m Mask
	for _, c := range codes {
		bit, ok := r.byCode[c]
		if !ok {
			return 0, fmt.Errorf("permission: unknown code %q", c)
		}
		m = m.Set(bit)
	}
	return m, nil
}

// Expand reports, for every registered code, whether m grants it.
func (r *Registry) Expand(m Mask) map[string]bool {
	out := make(map[string]bool, len(r.defs))
	for _, d := range r.defs {
		out[d.Code] = m.Has(d.Bit)
	}
	return out
}

// Codes returns the registered codes granted by m, ordered by position.
func (r *Registry) Codes(m Mask) []string {
	var out []string
	for _, d := range r.defs {
		if m.Has(d.Bit) {
			out = append(out, d.Code)
		}
	}
	return out
}
