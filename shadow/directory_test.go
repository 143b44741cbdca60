package shadow

import (
	"testing"

	"github.com/shadowbyte/taintcore/label"
)

func ramBits() [3]uint { return [3]uint{10, 10, 12} }

func TestDirectoryAddFindRemove(t *testing.T) {
	d := NewDirectory(ramBits())
	ls := label.New()
	ls.Add(5)
	d.Add(0x1234, ls)

	got, ok := d.Find(0x1234)
	if !ok || got != ls {
		t.Fatalf("expected to find the set we added")
	}
	if d.Occupancy() != 1 {
		t.Fatalf("occupancy = %d, want 1", d.Occupancy())
	}

	d.Remove(0x1234)
	if _, ok := d.Find(0x1234); ok {
		t.Fatalf("address should be absent after remove")
	}
	if d.Occupancy() != 0 {
		t.Fatalf("occupancy = %d, want 0", d.Occupancy())
	}
}

func TestDirectoryAddEmptyRemoves(t *testing.T) {
	d := NewDirectory(ramBits())
	ls := label.New()
	ls.Add(1)
	d.Add(0x10, ls)

	d.Add(0x10, label.New()) // empty set overwrite == remove
	if _, ok := d.Find(0x10); ok {
		t.Fatalf("adding an empty set should remove the entry")
	}
	if d.Occupancy() != 0 {
		t.Fatalf("occupancy = %d, want 0", d.Occupancy())
	}
}

func TestDirectoryRemoveAbsentIsNoop(t *testing.T) {
	d := NewDirectory(ramBits())
	d.Remove(0xdead) // must not panic
}

func TestDirectorySparsePagesElided(t *testing.T) {
	d := NewDirectory(ramBits())
	ls := label.New()
	ls.Add(1)
	d.Add(0x1000, ls)
	if len(d.mid) != 1 {
		t.Fatalf("expected exactly one top-level page allocated, got %d", len(d.mid))
	}
}
