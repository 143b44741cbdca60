package label

import "testing"

func TestNewIsEmpty(t *testing.T) {
	s := New()
	if !s.IsEmpty() {
		t.Fatalf("fresh set should be empty")
	}
}

func TestAddMakesNonEmpty(t *testing.T) {
	s := New()
	s.Add(7)
	if s.IsEmpty() {
		t.Fatalf("set with a member should not be empty")
	}
	members := s.Members()
	if len(members) != 1 || members[0] != 7 {
		t.Fatalf("members = %v, want [7]", members)
	}
}

func TestAddIdempotent(t *testing.T) {
	a := New()
	a.Add(3)
	b := New()
	b.Add(3)
	b.Add(3)
	if len(a.Members()) != len(b.Members()) {
		t.Fatalf("idempotence violated: %v vs %v", a.Members(), b.Members())
	}
}

func TestUnionIntoCommutesAndIsIdempotent(t *testing.T) {
	a := New()
	a.Add(1)
	b := New()
	b.Add(2)

	dst1 := New()
	UnionInto(dst1, a)
	UnionInto(dst1, b)

	dst2 := New()
	UnionInto(dst2, b)
	UnionInto(dst2, a)

	if len(dst1.Members()) != 2 || len(dst2.Members()) != 2 {
		t.Fatalf("union should contain both members: %v / %v", dst1.Members(), dst2.Members())
	}

	// idempotent: unioning again changes nothing
	UnionInto(dst1, a)
	if len(dst1.Members()) != 2 {
		t.Fatalf("union should be idempotent, got %v", dst1.Members())
	}
}

func TestCopySharesUnderlyingSet(t *testing.T) {
	a := New()
	a.Add(9)
	shared := a.Copy()
	if shared != a {
		t.Fatalf("Copy must return the same shared object, not a duplicate")
	}
}

func TestFreeReleasesOnZero(t *testing.T) {
	a := New()
	a.Add(1)
	shared := a.Copy() // refs=2
	Free(shared)       // refs=1, still alive conceptually
	if a.IsEmpty() {
		t.Fatalf("set should still report members while refs > 0")
	}
	Free(a) // refs=0, storage released
	if !a.IsEmpty() {
		t.Fatalf("set should be empty after its last reference is freed")
	}
}
