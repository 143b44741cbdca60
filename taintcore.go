// Package taintcore is the consumer surface of the dynamic taint-propagation
// engine: a shadow-memory handle, the query/label primitives, and an
// executor that drives taint operations over a translation block. The
// engine is single-threaded and cooperative — instantiate one Engine per
// guest CPU if the host exposes more than one.
package taintcore

import (
	"go.uber.org/zap"

	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/dynlog"
	"github.com/shadowbyte/taintcore/internal/fault"
	"github.com/shadowbyte/taintcore/label"
	"github.com/shadowbyte/taintcore/shadow"
	"github.com/shadowbyte/taintcore/texec"
	"github.com/shadowbyte/taintcore/tob"
)

// FaultError marks an unrecoverable contract violation (frame over/
// underflow, a CONST destination, an unresolved UNK, a misaligned dynamic
// log, a buffer overrun). The engine panics with one instead of returning
// it; recover it at the host boundary if you want to survive one.
type FaultError = fault.Error

// Label is an opaque 32-bit provenance identifier.
type Label = label.Label

// Addr is the tagged address every operation names a byte by.
type Addr = addr.Addr

// Log is the dynamic value log consumed during an Execute pass.
type Log = dynlog.Log

// Unit is a taint translation block.
type Unit = tob.Unit

// Engine owns one shadow memory and the executor driving it. Not safe for
// concurrent use from multiple goroutines.
type Engine struct {
	shad     *shadow.Memory
	exec     *texec.Executor
	units    map[uint64]*tob.Unit
	nextUnit uint64
}

// New builds an Engine with empty shadow state, sized by hdSize, memSize,
// ioSize, and maxVals (the number of distinct IR virtual registers the
// lifter may reference).
func New(hdSize, memSize, ioSize uint64, maxVals int, opts ...Option) *Engine {
	cfg := Config{HDSize: hdSize, MemSize: memSize, IOSize: ioSize, MaxVals: maxVals}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	shad := shadow.New(shadow.Config{
		HDSize:      hdSize,
		MemSize:     memSize,
		IOSize:      ioSize,
		MaxVals:     maxVals,
		X86_64:      cfg.x86_64,
		NumGregs:    cfg.NumGregs,
		WordSize:    cfg.WordSize,
		NumSpec:     cfg.NumSpec,
		MaxRegBytes: cfg.MaxRegBytes,
	})

	e := &Engine{shad: shad, units: make(map[uint64]*tob.Unit)}

	var execOpts []texec.Option
	if cfg.taintedPointer {
		execOpts = append(execOpts, texec.WithTaintedPointer())
	}
	if cfg.statsMode {
		execOpts = append(execOpts, texec.WithStatsMode())
	}
	execOpts = append(execOpts, texec.WithLogger(cfg.logger))
	e.exec = texec.New(e, execOpts...)

	return e
}

// Resolve implements texec.TTBResolver against the engine's own unit
// registry.
func (e *Engine) Resolve(ref uint64) *tob.Unit { return e.units[ref] }

// RegisterUnit makes u resolvable as a CALL target under ref, returning
// the same ref for convenience. Call-site TTBRef values must match what
// was registered here.
func (e *Engine) RegisterUnit(ref uint64, u *tob.Unit) uint64 {
	e.units[ref] = u
	return ref
}

// Close releases every live label set held by the shadow memory. The
// Engine must not be used afterward.
func (e *Engine) Close() { e.shad.Release() }

// Label unions l into a's set, creating it with type COPY if absent.
func (e *Engine) Label(a Addr, l Label) { shadow.LabelAddr(e.shad, a, l) }

// Delete removes taint at a.
func (e *Engine) Delete(a Addr) { shadow.DeleteAddr(e.shad, a) }

// Copy sets b's taint to a's.
func (e *Engine) Copy(a, b Addr) { shadow.CopyAddr(e.shad, a, b) }

// Compute sets c's taint to the union of a's and b's.
func (e *Engine) Compute(a, b, c Addr) { shadow.ComputeAddr(e.shad, a, b, c) }

// Query reports whether the byte at a carries a non-empty label set.
func (e *Engine) Query(a Addr) bool { return shadow.Query(e.shad, a) }

// Execute drives u to completion, resolving dynamic values from log.
func (e *Engine) Execute(u *Unit, log *Log) { e.exec.Execute(u, e.shad, log) }

// CurrentFrame reports the engine's active call frame, mostly useful for
// tests and debug tooling.
func (e *Engine) CurrentFrame() int { return e.shad.CurrentFrame() }
