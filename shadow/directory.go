// Package shadow holds the sparse, page-tree-structured directories and the
// flat register files that together mirror the guest's hard disk, RAM, I/O
// buffers, registers, and IR virtual registers.
package shadow

import "github.com/shadowbyte/taintcore/label"

// Directory is a sparse, three-level page tree mapping a byte address to a
// label set. Zero-initialized pages are never allocated; occupancy is
// tracked incrementally so callers can ask "how many bytes are tainted"
// without a full scan.
type Directory struct {
	bits [3]uint // bit width of each level, most significant first
	mid  map[uint64]*dirMid

	occupancy int
}

type dirMid struct {
	leaf map[uint64]*dirLeaf
}

type dirLeaf struct {
	slots []*label.Set
	used  int
}

// NewDirectory builds a directory partitioned by the given three bit
// widths (e.g. {10, 10, 12} for 32-bit RAM, {12, 12, 16} for a 64-bit
// space), most significant first.
func NewDirectory(bits [3]uint) *Directory {
	return &Directory{bits: bits, mid: make(map[uint64]*dirMid)}
}

func (d *Directory) split(addr uint64) (top, mid, leaf uint64) {
	leafBits := d.bits[2]
	midBits := d.bits[1]
	leaf = addr & ((1 << leafBits) - 1)
	mid = (addr >> leafBits) & ((1 << midBits) - 1)
	top = addr >> (leafBits + midBits)
	return
}

// Find returns the label set occupying addr, or (nil, false) if no entry
// exists there.
func (d *Directory) Find(addr uint64) (*label.Set, bool) {
	top, mid, leaf := d.split(addr)
	m, ok := d.mid[top]
	if !ok {
		return nil, false
	}
	l, ok := m.leaf[mid]
	if !ok {
		return nil, false
	}
	ls := l.slots[leaf]
	if ls == nil {
		return nil, false
	}
	return ls, true
}

// Add stores ls at addr, releasing any prior occupant first. A nil or
// empty ls removes the entry instead, preserving the invariant that a
// directory entry exists iff the byte is tainted.
func (d *Directory) Add(addr uint64, ls *label.Set) {
	if ls.IsEmpty() {
		d.Remove(addr)
		return
	}
	top, mid, leaf := d.split(addr)
	m, ok := d.mid[top]
	if !ok {
		m = &dirMid{leaf: make(map[uint64]*dirLeaf)}
		d.mid[top] = m
	}
	l, ok := m.leaf[mid]
	if !ok {
		l = &dirLeaf{slots: make([]*label.Set, 1<<d.bits[2])}
		m.leaf[mid] = l
	}
	if l.slots[leaf] != nil {
		label.Free(l.slots[leaf])
	} else {
		l.used++
		d.occupancy++
	}
	l.slots[leaf] = ls
}

// Remove releases any occupant at addr; a no-op if none exists.
func (d *Directory) Remove(addr uint64) {
	top, mid, leaf := d.split(addr)
	m, ok := d.mid[top]
	if !ok {
		return
	}
	l, ok := m.leaf[mid]
	if !ok {
		return
	}
	if l.slots[leaf] == nil {
		return
	}
	label.Free(l.slots[leaf])
	l.slots[leaf] = nil
	l.used--
	d.occupancy--
	if l.used == 0 {
		delete(m.leaf, mid)
		if len(m.leaf) == 0 {
			delete(d.mid, top)
		}
	}
}

// Occupancy reports the number of occupied (tainted) bytes, in O(1).
func (d *Directory) Occupancy() int { return d.occupancy }

// ForEachKey calls fn once for every occupied address in the directory, in
// no particular order. Used by consistency checks that must walk every
// live entry rather than trust an aggregate count.
func (d *Directory) ForEachKey(fn func(key uint64)) {
	leafBits := d.bits[2]
	midBits := d.bits[1]
	for top, m := range d.mid {
		for mid, l := range m.leaf {
			for leaf, ls := range l.slots {
				if ls == nil {
					continue
				}
				key := (top << (leafBits + midBits)) | (mid << leafBits) | uint64(leaf)
				fn(key)
			}
		}
	}
}

// Release frees every live label set still held by the directory. Called
// once at shadow-memory teardown.
func (d *Directory) Release() {
	for _, m := range d.mid {
		for _, l := range m.leaf {
			for i, ls := range l.slots {
				if ls != nil {
					label.Free(ls)
					l.slots[i] = nil
				}
			}
		}
	}
	d.mid = make(map[uint64]*dirMid)
	d.occupancy = 0
}
