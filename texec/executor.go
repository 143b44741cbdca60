// Package texec implements the op interpreter: it walks a TTB's op
// buffers, resolves per-instruction fixups against the dynamic log,
// dispatches label/delete/copy/compute, descends into calls, and honors
// branch/switch/select/phi redirection between basic blocks.
package texec

import (
	"go.uber.org/zap"

	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/dynlog"
	"github.com/shadowbyte/taintcore/internal/fault"
	"github.com/shadowbyte/taintcore/shadow"
	"github.com/shadowbyte/taintcore/tob"
)

// step is the control state driving block-to-block redirection
// (next_step, taken_branch): bundled into the Executor rather than left
// as process-global state, so multiple shadows/executors can coexist.
type step uint8

const (
	stepReturn step = iota
	stepBranch
	stepSwitch
	stepExcept
)

// SelectConstSentinel marks a select fixup whose chosen value is a
// constant, not an IR register — the corresponding COPY is rewritten to a
// DELETE of its destination instead.
const SelectConstSentinel = -1

// TTBResolver looks up the TTB a CALL op refers to. The host owns TTB
// lifetime and caching; the interpreter only asks for a reference to
// execute.
type TTBResolver interface {
	Resolve(ref uint64) *tob.Unit
}

// Executor holds the loop-control state for one execute pass: the taken
// branch, the pending step, and behavioral configuration. It carries no
// shadow-memory or log state across calls — those are passed explicitly to
// Execute so a single Executor can drive multiple independent passes.
type Executor struct {
	resolver       TTBResolver
	taintedPointer bool
	statsMode      bool
	logger         *zap.Logger

	nextStep    step
	takenBranch int32
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithTaintedPointer enables COMPUTE handling in store fixups and
// suppresses COMPUTE writes to register destinations.
func WithTaintedPointer() Option { return func(e *Executor) { e.taintedPointer = true } }

// WithStatsMode causes each executed TTB to be torn down immediately
// after its pass instead of being left for the caller to cache.
func WithStatsMode() Option { return func(e *Executor) { e.statsMode = true } }

// WithLogger attaches a zap logger for debug-only tracing. Never on the
// taint-semantics hot path: disabling the logger must not change behavior.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an Executor bound to a TTB resolver (used to follow CALL
// ops into callee TTBs).
func New(resolver TTBResolver, opts ...Option) *Executor {
	e := &Executor{resolver: resolver, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute drives u to completion against m, resolving dynamic values from
// log. An EXCEPTIONENTRY terminates the pass early and is not an error —
// shadow mutations performed before the exception remain visible. Contract
// violations panic with *fault.Error and are never recovered here.
func (e *Executor) Execute(u *tob.Unit, m *shadow.Memory, log *dynlog.Log) {
	e.nextStep = stepReturn
	e.logger.Debug("enter ttb", zap.String("name", u.Name))

	e.process(u.Entry.Buf, m, log)
	for e.nextStep != stepReturn && e.nextStep != stepExcept {
		target := e.takenBranch
		e.nextStep = stepReturn
		blk, ok := u.FindBlock(target)
		if !ok {
			e.logger.Debug("no successor block matches taken branch, terminating", zap.Int32("label", target))
			break
		}
		e.process(blk.Buf, m, log)
	}

	if e.statsMode {
		u.Cleanup()
	}
}

// process rewinds buf, dispatches every op in order, and rewinds again
// before returning.
func (e *Executor) process(buf *tob.Buffer, m *shadow.Memory, log *dynlog.Log) {
	buf.Rewind()
	defer buf.Rewind()

	for !buf.End() {
		op := buf.Read()
		switch op.Kind {
		case tob.KLabel:
			shadow.LabelAddr(m, op.Label.A, op.Label.L)

		case tob.KDelete:
			if op.Delete.A.Flag == addr.FlagIrrelevant {
				continue
			}
			shadow.DeleteAddr(m, op.Delete.A)

		case tob.KCopy:
			switch {
			case op.Copy.A.Flag == addr.FlagIrrelevant:
				shadow.DeleteAddr(m, op.Copy.B)
			case op.Copy.B.Flag == addr.FlagIrrelevant:
				// destination untracked: skip entirely
			default:
				shadow.CopyAddr(m, op.Copy.A, op.Copy.B)
			}

		case tob.KCompute:
			switch {
			case op.Compute.C.Flag == addr.FlagIrrelevant:
				// skip
			case e.taintedPointer && (op.Compute.C.Typ == addr.GREG || op.Compute.C.Typ == addr.GSPEC):
				// tainted-pointer mode suppresses pointer taint landing in registers
			default:
				shadow.ComputeAddr(m, op.Compute.A, op.Compute.B, op.Compute.C)
			}

		case tob.KInsnStart:
			if e.fixup(buf, op.Insn, log) {
				return // EXCEPTIONENTRY: graceful early return
			}

		case tob.KCall:
			cur := m.CurrentFrame()
			if cur+1 >= m.Frames() {
				fault.Fatalf("call frame overflow: current=%d frames=%d", cur, m.Frames())
			}
			callee := e.resolver.Resolve(op.Call.TTBRef)
			if callee == nil {
				fault.Fatalf("unresolved TTB reference %d", op.Call.TTBRef)
			}
			m.SetCurrentFrame(cur + 1)
			e.Execute(callee, m, log)

		case tob.KRet:
			if m.CurrentFrame() == 0 {
				fault.Fatalf("frame underflow on RET")
			}
			m.SetCurrentFrame(m.CurrentFrame() - 1)

		default:
			fault.Fatalf("unknown taint op kind %v", op.Kind)
		}
	}
}
