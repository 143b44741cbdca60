package tob

import (
	"testing"

	"github.com/shadowbyte/taintcore/addr"
)

func TestBufferRoundTrip(t *testing.T) {
	b := NewBuffer(4096)
	ops := []Op{
		{Kind: KLabel, Label: LabelOp{A: addr.Addr{Typ: addr.MADDR, Val: 1}, L: 7}},
		{Kind: KDelete, Delete: DeleteOp{A: addr.Addr{Typ: addr.MADDR, Val: 2}}},
		{Kind: KCopy, Copy: CopyOp{A: addr.Addr{Typ: addr.GREG, Val: 1}, B: addr.Addr{Typ: addr.MADDR, Val: 3}}},
	}
	for _, op := range ops {
		if err := b.Write(op); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if b.Len() != len(ops) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(ops))
	}

	b.Rewind()
	for i, want := range ops {
		if b.End() {
			t.Fatalf("buffer ended early at record %d", i)
		}
		got := b.Read()
		if got.Kind != want.Kind {
			t.Fatalf("record %d: kind = %v, want %v", i, got.Kind, want.Kind)
		}
	}
	if !b.End() {
		t.Fatalf("expected buffer to be exhausted after reading all records")
	}
}

func TestBufferFullFrac(t *testing.T) {
	b := NewBuffer(recordSize * 4)
	if b.FullFrac() != 0 {
		t.Fatalf("empty buffer should report 0 full_frac")
	}
	for i := 0; i < 2; i++ {
		_ = b.Write(Op{Kind: KRet})
	}
	if frac := b.FullFrac(); frac <= 0 || frac >= 1 {
		t.Fatalf("full_frac = %f, want strictly between 0 and 1", frac)
	}
}

func TestBufferWriteOverflow(t *testing.T) {
	b := NewBuffer(recordSize) // room for exactly one record
	if err := b.Write(Op{Kind: KRet}); err != nil {
		t.Fatalf("first write should fit: %v", err)
	}
	if err := b.Write(Op{Kind: KRet}); err == nil {
		t.Fatalf("second write should overflow")
	}
}

func TestBufferPatchDoesNotMoveCursor(t *testing.T) {
	b := NewBuffer(4096)
	_ = b.Write(Op{Kind: KInsnStart, Insn: InsnStartOp{InsnKind: InsnLoad, NumOps: 1}})
	_ = b.Write(Op{Kind: KCopy, Copy: CopyOp{A: addr.Addr{Typ: addr.UNK}, B: addr.Addr{Typ: addr.LADDR, Val: 5}}})

	b.Rewind()
	insn := b.Read() // cursor now points at the COPY record
	if insn.Kind != KInsnStart {
		t.Fatalf("expected INSN_START first")
	}

	patched := b.PeekAt(0)
	patched.Copy.A = addr.Addr{Typ: addr.MADDR, Val: 0x9000}
	b.PatchAt(0, patched)

	// cursor must not have moved: Read() still returns the patched record.
	got := b.Read()
	if got.Kind != KCopy || got.Copy.A.Typ != addr.MADDR || got.Copy.A.Val != 0x9000 {
		t.Fatalf("patch did not take effect in place: %+v", got)
	}
}

func TestUnitFindBlock(t *testing.T) {
	u := NewUnit("blk", 2)
	u.Entry = NewBlock(0, 64)
	u.AddBlock(NewBlock(11, 64))
	u.AddBlock(NewBlock(22, 64))

	if _, ok := u.FindBlock(0); ok {
		t.Fatalf("entry block must not be matched as a successor")
	}
	blk, ok := u.FindBlock(22)
	if !ok || blk.Label != 22 {
		t.Fatalf("expected to find successor block 22")
	}
}
