// Package label implements the label-set algebra: the set of provenance
// labels attached to one byte of shadow memory, shared-owned with explicit
// refcounts so a copy never duplicates members.
package label

import "github.com/bits-and-blooms/bitset"

// Label is an opaque identifier a caller attaches to a byte to mark its
// provenance. Assigned monotonically by the caller; the engine never
// interprets its value.
type Label uint32

// Type tags how a Set came to be: a straight copy of another set, or the
// union of two sources under a compute operation.
type Type uint8

const (
	TypeCopy Type = iota
	TypeCompute
)

func (t Type) String() string {
	if t == TypeCompute {
		return "COMPUTE"
	}
	return "COPY"
}

// Set is a reference-counted collection of labels. A nil *Set, and a Set
// whose bits are empty, are both "untainted" — callers never distinguish
// the two. Member storage is a variable-width bitset: add/union/iterate all
// run in O(words), not O(max label).
type Set struct {
	bits *bitset.BitSet
	typ  Type
	refs int32
}

// New returns a fresh, unshared empty set with refcount 1.
func New() *Set {
	return &Set{typ: TypeCopy, refs: 1}
}

// Add inserts l into s. s must not be nil.
func (s *Set) Add(l Label) {
	if s.bits == nil {
		s.bits = bitset.New(uint(l) + 1)
	}
	s.bits.Set(uint(l))
}

// IsEmpty reports whether s carries no labels. A nil receiver is empty.
func (s *Set) IsEmpty() bool {
	return s == nil || s.bits == nil || s.bits.None()
}

// SetType overrides the type tag.
func (s *Set) SetType(t Type) {
	if s != nil {
		s.typ = t
	}
}

// Type returns the type tag, or TypeCopy for a nil/absent set.
func (s *Set) Type() Type {
	if s == nil {
		return TypeCopy
	}
	return s.typ
}

// Copy returns a shared view of s: the same underlying object with its
// refcount bumped, not a duplicate of its members. Safe to call on nil.
func (s *Set) Copy() *Set {
	if s == nil {
		return nil
	}
	s.refs++
	return s
}

// Free releases one reference to s, dropping its storage once the count
// reaches zero. Safe to call on nil (a no-op).
func Free(s *Set) {
	if s == nil {
		return
	}
	s.refs--
	if s.refs <= 0 {
		s.bits = nil
	}
}

// UnionInto inserts every member of src into dst. dst must be a freshly
// allocated, exclusively-owned set (never a shared one — callers never
// mutate a Set in place once it has been handed out by Copy; label/union
// operations always build a new Set and replace the old shared reference).
func UnionInto(dst, src *Set) {
	if dst == nil || src == nil || src.bits == nil {
		return
	}
	if dst.bits == nil {
		dst.bits = src.bits.Clone()
		return
	}
	dst.bits.InPlaceUnion(src.bits)
}

// Iter calls fn for every label in s, in ascending order.
func (s *Set) Iter(fn func(Label)) {
	if s == nil || s.bits == nil {
		return
	}
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		fn(Label(i))
	}
}

// Members returns the sorted slice of labels in s. Convenience for tests and
// debug logging; the hot path uses Iter to avoid the allocation.
func (s *Set) Members() []Label {
	var out []Label
	s.Iter(func(l Label) { out = append(out, l) })
	return out
}
