// Package tob implements the taint-op buffer: the append-only, fixed-record
// encoding the lifter emits static taint operations into, and the taint
// translation block (TTB) that groups a buffer per basic block.
package tob

import (
	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/label"
)

// Kind discriminates the op variants carried by an Op record.
type Kind uint8

const (
	KLabel Kind = iota
	KDelete
	KCopy
	KCompute
	KInsnStart
	KCall
	KRet
)

func (k Kind) String() string {
	switch k {
	case KLabel:
		return "LABEL"
	case KDelete:
		return "DELETE"
	case KCopy:
		return "COPY"
	case KCompute:
		return "COMPUTE"
	case KInsnStart:
		return "INSN_START"
	case KCall:
		return "CALL"
	case KRet:
		return "RET"
	default:
		return "UNKNOWN_OP"
	}
}

// InsnKind names what INSN_START is about to introduce: "load", "store",
// "condbranch", "switch", "select", or "phi". A closed enum rather than a
// free-form string field, matching the rest of Op's fixed-record fields.
type InsnKind uint8

const (
	InsnLoad InsnKind = iota
	InsnStore
	InsnCondBranch
	InsnSwitch
	InsnSelect
	InsnPhi
)

func (k InsnKind) String() string {
	switch k {
	case InsnLoad:
		return "load"
	case InsnStore:
		return "store"
	case InsnCondBranch:
		return "condbranch"
	case InsnSwitch:
		return "switch"
	case InsnSelect:
		return "select"
	case InsnPhi:
		return "phi"
	default:
		return "unknown"
	}
}

// MaxCases bounds the switch/phi arrays embedded in a fixed-size
// INSN_START record. A block needing more cases than this is a known
// limitation, same spirit as the hard-coded two-frame stack.
const MaxCases = 16

// NameLen bounds the fixed-size name field on a CALL op.
const NameLen = 32

// LabelOp is `LABEL{a,l}`.
type LabelOp struct {
	A addr.Addr
	L label.Label
}

// DeleteOp is `DELETE{a}`.
type DeleteOp struct {
	A addr.Addr
}

// CopyOp is `COPY{a,b}`.
type CopyOp struct {
	A, B addr.Addr
}

// ComputeOp is `COMPUTE{a,b,c}`.
type ComputeOp struct {
	A, B, C addr.Addr
}

// InsnStartOp carries the static metadata the fixup protocol patches the
// following NumOps operations against.
type InsnStartOp struct {
	InsnKind     InsnKind
	NumOps       uint8
	NumCases     uint8
	BranchLabels [2]int32
	SwitchConds  [MaxCases]int64
	SwitchLabels [MaxCases + 1]int32 // index 0 is the default target
	PhiBlocks    [MaxCases]int32
	PhiVals      [MaxCases]int32
}

// CallOp is `CALL{name,ttb_ref}`. TTBRef is resolved against the host's
// TTB registry (see texec.TTBResolver) — the lifter emits a stable
// reference, not a pointer, because op buffers are meant to be relocatable.
type CallOp struct {
	Name   [NameLen]byte
	TTBRef uint64
}

// Op is the fixed-size, tagged-union wire record. Every field is present
// in every record (not just the active variant) so encoding/binary can
// serialize and deserialize it as one fixed-width struct.
type Op struct {
	Kind    Kind
	Label   LabelOp
	Delete  DeleteOp
	Copy    CopyOp
	Compute ComputeOp
	Insn    InsnStartOp
	Call    CallOp
}
