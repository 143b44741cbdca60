// Package dynlog implements the dynamic value log: the in-order stream of
// runtime-observed values (load/store addresses, branch outcomes, switch
// conditions, select conditions, exceptions) that resolves the placeholders
// a lifted op buffer leaves for the interpreter's fixup pass.
package dynlog

import (
	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/internal/fault"
)

// AccessOp discriminates a memory access record.
type AccessOp uint8

const (
	OpLoad AccessOp = iota
	OpStore
)

// Kind discriminates the record variants.
type Kind uint8

const (
	KAddr Kind = iota
	KBranch
	KSwitch
	KSelect
	KException
)

// ExceptionSentinel is the integer encoding of an EXCEPTIONENTRY.
const ExceptionSentinel = addr.ExceptionSentinel

// Record is one dynamic-log entry. Only the field matching Kind is
// meaningful.
type Record struct {
	Kind Kind

	AddrOp AccessOp
	Addr   addr.Addr

	Branch bool // BRANCHENTRY / SELECTENTRY
	Switch int64
}

// AddrEntry builds an ADDRENTRY record.
func AddrEntry(op AccessOp, a addr.Addr) Record { return Record{Kind: KAddr, AddrOp: op, Addr: a} }

// BranchEntry builds a BRANCHENTRY record.
func BranchEntry(taken bool) Record { return Record{Kind: KBranch, Branch: taken} }

// SwitchEntry builds a SWITCHENTRY record.
func SwitchEntry(cond int64) Record { return Record{Kind: KSwitch, Switch: cond} }

// SelectEntry builds a SELECTENTRY record.
func SelectEntry(taken bool) Record { return Record{Kind: KSelect, Branch: taken} }

// ExceptionEntry builds an EXCEPTIONENTRY record.
func ExceptionEntry() Record { return Record{Kind: KException} }

// Log is the ordered, rewindable sequence of records produced by guest
// execution and consumed by the post-execution taint pass.
type Log struct {
	records []Record
	cursor  int
}

// New wraps a pre-built slice of records — instrumentation (out of core
// scope) is responsible for producing them in execution order.
func New(records []Record) *Log {
	return &Log{records: records}
}

// Rewind resets the cursor to the start. Callers rewind before each
// execute pass.
func (l *Log) Rewind() { l.cursor = 0 }

// Next returns the next record and advances the cursor, or ok=false if
// the log is exhausted.
func (l *Log) Next() (Record, bool) {
	if l.cursor >= len(l.records) {
		return Record{}, false
	}
	r := l.records[l.cursor]
	l.cursor++
	return r, true
}

// End reports whether every record has been consumed.
func (l *Log) End() bool { return l.cursor >= len(l.records) }

// MustBeExhausted panics with a fault if the log was not fully consumed.
// Callers invoke this after a top-level Execute that did not terminate via
// an exception, to catch a lifter/log mismatch that silently dropped or
// duplicated fixups.
func (l *Log) MustBeExhausted() {
	if !l.End() {
		fault.Fatalf("dynamic log not fully consumed: %d of %d records remain", len(l.records)-l.cursor, len(l.records))
	}
}
