package shadow

import (
	"testing"

	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/label"
)

func testConfig() Config {
	return Config{HDSize: 1 << 20, MemSize: 1 << 20, IOSize: 1 << 16, MaxVals: 64}
}

func mkAddr(typ addr.Type, val uint64, off uint8) addr.Addr {
	return addr.Addr{Typ: typ, Val: val, Offset: off}
}

func TestLabelCreatesTaint(t *testing.T) {
	m := New(testConfig())
	a := mkAddr(addr.MADDR, 0x1000, 0)
	LabelAddr(m, a, 7)
	if !Query(m, a) {
		t.Fatalf("expected byte to be tainted after label")
	}
	ls := m.find(a)
	found := false
	ls.Iter(func(l label.Label) {
		if l == 7 {
			found = true
		}
	})
	if !found {
		t.Fatalf("expected label 7 in set, got %v", ls.Members())
	}
}

func TestDeleteUntaints(t *testing.T) {
	m := New(testConfig())
	a := mkAddr(addr.MADDR, 0x2000, 0)
	LabelAddr(m, a, 1)
	DeleteAddr(m, a)
	if Query(m, a) {
		t.Fatalf("expected byte to be untainted after delete")
	}
}

func TestCopySemantics(t *testing.T) {
	m := New(testConfig())
	a := mkAddr(addr.GREG, 2, 0)
	b := mkAddr(addr.MADDR, 0x3000, 0)
	LabelAddr(m, a, 1)
	CopyAddr(m, a, b)
	if !Query(m, b) {
		t.Fatalf("expected b to be tainted after copy")
	}

	c := mkAddr(addr.GREG, 3, 0)
	d := mkAddr(addr.MADDR, 0x4000, 0)
	LabelAddr(m, d, 99) // d starts tainted
	CopyAddr(m, c, d)   // c is untainted
	if Query(m, d) {
		t.Fatalf("copying an untainted source must untaint the destination")
	}
}

func TestComputeIsUnion(t *testing.T) {
	m := New(testConfig())
	a := mkAddr(addr.MADDR, 0x100, 0)
	b := mkAddr(addr.MADDR, 0x200, 0)
	c := mkAddr(addr.MADDR, 0x300, 0)
	LabelAddr(m, a, 1)
	LabelAddr(m, b, 2)
	ComputeAddr(m, a, b, c)

	ls := m.find(c)
	if ls.Type() != label.TypeCompute {
		t.Fatalf("compute result must be typed COMPUTE")
	}
	members := ls.Members()
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}
}

func TestLabelIdempotent(t *testing.T) {
	m := New(testConfig())
	a := mkAddr(addr.MADDR, 0x500, 0)
	LabelAddr(m, a, 4)
	LabelAddr(m, a, 4)
	if len(m.find(a).Members()) != 1 {
		t.Fatalf("labeling twice with the same label should not duplicate it")
	}
}

func TestFrameIsolation(t *testing.T) {
	m := New(testConfig())
	funcArg := addr.Addr{Typ: addr.LADDR, Val: 3, Flag: addr.FlagFuncArg}
	LabelAddr(m, funcArg, 11)

	plain := mkAddr(addr.LADDR, 3, 0)
	if Query(m, plain) {
		t.Fatalf("FUNCARG write must not be visible in the current frame")
	}

	m.SetCurrentFrame(1)
	if !Query(m, plain) {
		t.Fatalf("FUNCARG write must be visible once the callee frame is current")
	}
}

func TestRAMBitmapConsistency(t *testing.T) {
	m := New(testConfig())
	for i := uint64(0); i < 64; i++ {
		LabelAddr(m, mkAddr(addr.MADDR, i, 0), label.Label(i))
	}
	if !m.RAMBitmapConsistent() {
		t.Fatalf("bitmap/directory mismatch after labeling")
	}
	for i := uint64(0); i < 64; i += 2 {
		DeleteAddr(m, mkAddr(addr.MADDR, i, 0))
	}
	if !m.RAMBitmapConsistent() {
		t.Fatalf("bitmap/directory mismatch after deleting")
	}
}

func TestReleaseClearsEverything(t *testing.T) {
	m := New(testConfig())
	LabelAddr(m, mkAddr(addr.MADDR, 1, 0), 1)
	LabelAddr(m, mkAddr(addr.GREG, 0, 0), 2)
	m.Release()
	if m.hd.Occupancy() != 0 || m.ram.Occupancy() != 0 || m.io.Occupancy() != 0 {
		t.Fatalf("release should drain all directories")
	}
	if m.gregs[0] != nil {
		t.Fatalf("release should clear the guest register file")
	}
}
