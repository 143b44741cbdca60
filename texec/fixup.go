package texec

import (
	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/dynlog"
	"github.com/shadowbyte/taintcore/internal/fault"
	"github.com/shadowbyte/taintcore/tob"
)

// fixup consumes one dynamic-log record and patches the next insn.NumOps
// operations in buf in place, without advancing buf's outer cursor.
// Returns true if the log signaled an exception, in which case the caller
// must return immediately.
func (e *Executor) fixup(buf *tob.Buffer, insn tob.InsnStartOp, log *dynlog.Log) (exception bool) {
	// phi consumes no log record: it resolves purely from taken_branch,
	// the outcome of whichever condbranch/switch fixup ran previously.
	if insn.InsnKind == tob.InsnPhi {
		e.fixupPhi(buf, insn)
		return false
	}

	rec, ok := log.Next()
	if !ok {
		fault.Fatalf("dynamic log exhausted during %s fixup", insn.InsnKind)
	}
	if rec.Kind == dynlog.KException {
		e.nextStep = stepExcept
		return true
	}

	switch insn.InsnKind {
	case tob.InsnLoad:
		e.fixupLoad(buf, insn, rec)
	case tob.InsnStore:
		e.fixupStore(buf, insn, rec)
	case tob.InsnCondBranch:
		e.fixupCondBranch(insn, rec)
	case tob.InsnSwitch:
		e.fixupSwitch(insn, rec)
	case tob.InsnSelect:
		e.fixupSelect(buf, insn, rec)
	default:
		fault.Fatalf("unknown insn_start kind %v", insn.InsnKind)
	}
	return false
}

func (e *Executor) fixupLoad(buf *tob.Buffer, insn tob.InsnStartOp, rec dynlog.Record) {
	if rec.Kind != dynlog.KAddr || rec.AddrOp != dynlog.OpLoad {
		fault.Fatalf("log misalignment: load fixup expected ADDRENTRY(LOAD), got %v", rec.Kind)
	}
	for i := 0; i < int(insn.NumOps); i++ {
		op := buf.PeekAt(i)
		if op.Kind != tob.KCopy {
			fault.Fatalf("load fixup expects COPY ops, got %v", op.Kind)
		}
		src := rec.Addr
		src.Offset = op.Copy.A.Offset
		src.Flag = addr.FlagNone
		if rec.Addr.Flag == addr.FlagIrrelevant {
			src.Flag = addr.FlagIrrelevant
		}
		op.Copy.A = src
		buf.PatchAt(i, op)
	}
}

func (e *Executor) fixupStore(buf *tob.Buffer, insn tob.InsnStartOp, rec dynlog.Record) {
	if rec.Kind != dynlog.KAddr || rec.AddrOp != dynlog.OpStore {
		fault.Fatalf("log misalignment: store fixup expected ADDRENTRY(STORE), got %v", rec.Kind)
	}
	for i := 0; i < int(insn.NumOps); i++ {
		op := buf.PeekAt(i)
		switch op.Kind {
		case tob.KCopy:
			dst := rec.Addr
			dst.Offset = op.Copy.B.Offset
			dst.Flag = addr.FlagNone
			if rec.Addr.Flag == addr.FlagIrrelevant {
				dst.Flag = addr.FlagIrrelevant
			}
			op.Copy.B = dst
		case tob.KDelete:
			target := rec.Addr
			target.Offset = op.Delete.A.Offset
			op.Delete.A = target
		case tob.KCompute:
			if !e.taintedPointer {
				fault.Fatalf("unexpected COMPUTE in store fixup outside tainted-pointer mode")
			}
			switch {
			case rec.Addr.Flag == addr.FlagIrrelevant:
				op.Compute.B.Flag = addr.FlagIrrelevant
				op.Compute.C.Flag = addr.FlagIrrelevant
			case op.Compute.B.Typ != addr.UNK && op.Compute.C.Typ != addr.UNK:
				// both already resolved, leave alone
			default:
				target := rec.Addr
				target.Flag = addr.FlagNone
				op.Compute.B = target
				op.Compute.C = target
			}
		default:
			fault.Fatalf("unexpected op kind %v in store fixup", op.Kind)
		}
		buf.PatchAt(i, op)
	}
}

func (e *Executor) fixupCondBranch(insn tob.InsnStartOp, rec dynlog.Record) {
	if rec.Kind != dynlog.KBranch {
		fault.Fatalf("log misalignment: condbranch fixup expected BRANCHENTRY, got %v", rec.Kind)
	}
	idx := 0
	if rec.Branch {
		idx = 1
	}
	e.takenBranch = insn.BranchLabels[idx]
	e.nextStep = stepBranch
}

func (e *Executor) fixupSwitch(insn tob.InsnStartOp, rec dynlog.Record) {
	if rec.Kind != dynlog.KSwitch {
		fault.Fatalf("log misalignment: switch fixup expected SWITCHENTRY, got %v", rec.Kind)
	}
	match := -1
	for i := 0; i < int(insn.NumCases); i++ {
		if insn.SwitchConds[i] == rec.Switch {
			match = i
			break
		}
	}
	if match >= 0 {
		e.takenBranch = insn.SwitchLabels[match+1]
	} else {
		e.takenBranch = insn.SwitchLabels[0] // default
	}
	e.nextStep = stepSwitch
}

func (e *Executor) fixupSelect(buf *tob.Buffer, insn tob.InsnStartOp, rec dynlog.Record) {
	if rec.Kind != dynlog.KSelect {
		fault.Fatalf("log misalignment: select fixup expected SELECTENTRY, got %v", rec.Kind)
	}
	idx := 0
	if rec.Branch {
		idx = 1
	}
	chosen := insn.BranchLabels[idx]
	for i := 0; i < int(insn.NumOps); i++ {
		op := buf.PeekAt(i)
		if op.Kind != tob.KCopy {
			fault.Fatalf("select fixup expects COPY ops, got %v", op.Kind)
		}
		if chosen == SelectConstSentinel {
			op.Kind = tob.KDelete
			op.Delete.A = op.Copy.B
		} else {
			op.Copy.A = addr.Addr{Typ: addr.LADDR, Val: uint64(chosen), Offset: op.Copy.A.Offset}
		}
		buf.PatchAt(i, op)
	}
}

func (e *Executor) fixupPhi(buf *tob.Buffer, insn tob.InsnStartOp) {
	match := -1
	for i := 0; i < int(insn.NumCases); i++ {
		if insn.PhiBlocks[i] == e.takenBranch {
			match = i
			break
		}
	}
	if match < 0 {
		fault.Fatalf("no phi predecessor entry for block %d", e.takenBranch)
	}
	for i := 0; i < int(insn.NumOps); i++ {
		op := buf.PeekAt(i)
		if op.Kind != tob.KCopy {
			fault.Fatalf("phi fixup expects COPY ops, got %v", op.Kind)
		}
		op.Copy.A = addr.Addr{Typ: addr.LADDR, Val: uint64(insn.PhiVals[match]), Offset: op.Copy.A.Offset}
		buf.PatchAt(i, op)
	}
}
