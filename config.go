package taintcore

import "go.uber.org/zap"

// Config dimensions and configures an Engine. The spec's compile-time
// flags (TARGET_X86_64, TAINTED_POINTER, TAINTSTATS, TAINTDEBUG) become
// runtime options set once at construction, the standard Go replacement
// for a C #ifdef: a value instead of a build tag.
type Config struct {
	HDSize, MemSize, IOSize uint64
	MaxVals                 int

	NumGregs    int
	WordSize    int
	NumSpec     int
	MaxRegBytes int

	x86_64         bool
	taintedPointer bool
	statsMode      bool
	logger         *zap.Logger
}

// Option configures a Config at construction.
type Option func(*Config)

// WithX86_64 selects a 64-bit-keyed RAM directory and disables the RAM
// presence bitmap fast-reject path.
func WithX86_64() Option { return func(c *Config) { c.x86_64 = true } }

// WithTaintedPointer enables tainted-pointer mode: COMPUTE handling in
// store fixups, and suppresses COMPUTE landing taint in GREG/GSPEC
// destinations.
func WithTaintedPointer() Option { return func(c *Config) { c.taintedPointer = true } }

// WithStatsMode tears each TTB down immediately after it executes instead
// of leaving it for the caller to cache across passes.
func WithStatsMode() Option { return func(c *Config) { c.statsMode = true } }

// WithLogger attaches a zap logger for debug-only observability
// (TAINTDEBUG). Never affects taint semantics.
func WithLogger(l *zap.Logger) Option { return func(c *Config) { c.logger = l } }

// WithRegisterFile overrides the guest register file dimensions; the
// defaults match shadow.Default*.
func WithRegisterFile(numGregs, wordSize, numSpec int) Option {
	return func(c *Config) {
		c.NumGregs = numGregs
		c.WordSize = wordSize
		c.NumSpec = numSpec
	}
}
