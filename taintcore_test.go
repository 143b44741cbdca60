package taintcore

import (
	"testing"

	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/dynlog"
	"github.com/shadowbyte/taintcore/tob"
)

// Labels a RAM byte directly and queries it and its neighbor.
func TestEngineLabelAndQuery(t *testing.T) {
	e := New(1<<20, 1<<20, 1<<16, 64)
	defer e.Close()

	a := Addr{Typ: addr.MADDR, Val: 0x1000}
	e.Label(a, 7)

	if !e.Query(a) {
		t.Fatalf("expected labeled address to be tainted")
	}
	neighbor := Addr{Typ: addr.MADDR, Val: 0x1001}
	if e.Query(neighbor) {
		t.Fatalf("neighboring byte must not be tainted")
	}
}

func TestEngineRegisterUnitAndCall(t *testing.T) {
	e := New(1<<20, 1<<20, 1<<16, 64)
	defer e.Close()

	callee := tob.NewUnit("callee", 0)
	callee.Entry = tob.NewBlock(0, 64)
	_ = callee.Entry.Buf.Write(tob.Op{Kind: tob.KRet})
	ref := e.RegisterUnit(1, callee)

	caller := tob.NewUnit("caller", 0)
	caller.Entry = tob.NewBlock(0, 64)
	_ = caller.Entry.Buf.Write(tob.Op{Kind: tob.KCall, Call: tob.CallOp{TTBRef: ref}})

	e.Execute(caller, dynlog.New(nil))
	if e.CurrentFrame() != 0 {
		t.Fatalf("frame should return to 0, got %d", e.CurrentFrame())
	}
}
