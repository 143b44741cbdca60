package shadow

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/shadowbyte/taintcore/addr"
	"github.com/shadowbyte/taintcore/internal/fault"
	"github.com/shadowbyte/taintcore/label"
)

// Default dimensions for the guest register file and call-frame depth.
const (
	DefaultFrames      = 2
	DefaultMaxRegBytes = 16
	DefaultNumGregs    = 16
	DefaultWordSize    = 8
	DefaultNumSpec     = 32
)

// Config dimensions a Memory at construction time. It is the runtime
// replacement for the original's compile-time TARGET_X86_64 flag: X86_64
// selects a 64-bit-keyed RAM directory and disables the presence bitmap.
type Config struct {
	HDSize, MemSize, IOSize uint64
	MaxVals                 int

	X86_64      bool
	Frames      int
	MaxRegBytes int
	NumGregs    int
	WordSize    int
	NumSpec     int
}

func (c *Config) setDefaults() {
	if c.Frames == 0 {
		c.Frames = DefaultFrames
	}
	if c.MaxRegBytes == 0 {
		c.MaxRegBytes = DefaultMaxRegBytes
	}
	if c.NumGregs == 0 {
		c.NumGregs = DefaultNumGregs
	}
	if c.WordSize == 0 {
		c.WordSize = DefaultWordSize
	}
	if c.NumSpec == 0 {
		c.NumSpec = DefaultNumSpec
	}
}

// Memory is the full shadow state: three sparse directories (hard disk,
// RAM, I/O), a RAM presence bitmap (32-bit mode only), a frame-indexed IR
// virtual register file, flat guest general/special register arrays, a
// return/temp register, and the current frame index.
type Memory struct {
	cfg Config

	hd  *Directory
	ram *Directory
	io  *Directory

	ramBitmap *bitset.BitSet // nil when cfg.X86_64

	iregs []*label.Set // MaxVals * Frames * MaxRegBytes, flattened
	gregs []*label.Set // NumGregs * WordSize
	gspec []*label.Set // NumSpec
	ret   []*label.Set // MaxRegBytes

	frame int
}

// New builds an empty shadow memory. All directories start empty; every
// live label set must be released exactly once, via Release, at teardown.
func New(cfg Config) *Memory {
	cfg.setDefaults()

	m := &Memory{cfg: cfg}

	hdBits := [3]uint{12, 12, 16}
	ioBits := [3]uint{12, 12, 16}
	ramBits := [3]uint{12, 12, 16}
	if !cfg.X86_64 {
		ramBits = [3]uint{10, 10, 12}
		m.ramBitmap = bitset.New(uint(cfg.MemSize))
	}

	m.hd = NewDirectory(hdBits)
	m.ram = NewDirectory(ramBits)
	m.io = NewDirectory(ioBits)

	m.iregs = make([]*label.Set, cfg.MaxVals*cfg.Frames*cfg.MaxRegBytes)
	m.gregs = make([]*label.Set, cfg.NumGregs*cfg.WordSize)
	m.gspec = make([]*label.Set, cfg.NumSpec)
	m.ret = make([]*label.Set, cfg.MaxRegBytes)

	return m
}

// Frames reports the configured frame count (hard-coded to 2 by default —
// a known limitation, not a bug: see design notes on CALL/RET bookkeeping).
func (m *Memory) Frames() int { return m.cfg.Frames }

// CurrentFrame returns the active frame index, always in [0, Frames()).
func (m *Memory) CurrentFrame() int { return m.frame }

// SetCurrentFrame moves the active frame. Callers (the interpreter's
// CALL/RET handling) are responsible for bounds-checking before calling.
func (m *Memory) SetCurrentFrame(f int) {
	if f < 0 || f >= m.cfg.Frames {
		fault.Fatalf("frame %d out of range [0,%d)", f, m.cfg.Frames)
	}
	m.frame = f
}

// Release frees every live label set in every directory and register
// file. Call once at shadow-memory teardown.
func (m *Memory) Release() {
	m.hd.Release()
	m.ram.Release()
	m.io.Release()
	releaseSlice(m.iregs)
	releaseSlice(m.gregs)
	releaseSlice(m.gspec)
	releaseSlice(m.ret)
}

func releaseSlice(s []*label.Set) {
	for i, ls := range s {
		label.Free(ls)
		s[i] = nil
	}
}

// --- addressing ---

func (m *Memory) iregIndex(a addr.Addr) int {
	frame := m.frame
	if a.Flag == addr.FlagFuncArg {
		frame = m.frame + 1
		if frame >= m.cfg.Frames {
			fault.Fatalf("FUNCARG write requires frame %d < %d", frame, m.cfg.Frames)
		}
	}
	if int(a.Val) >= m.cfg.MaxVals {
		fault.Fatalf("LADDR %d out of range [0,%d)", a.Val, m.cfg.MaxVals)
	}
	if int(a.Offset) >= m.cfg.MaxRegBytes {
		fault.Fatalf("LADDR offset %d out of range [0,%d)", a.Offset, m.cfg.MaxRegBytes)
	}
	return (int(a.Val)*m.cfg.Frames+frame)*m.cfg.MaxRegBytes + int(a.Offset)
}

func (m *Memory) gregIndex(a addr.Addr) int {
	idx := int(a.Val)*m.cfg.WordSize + int(a.Offset)
	if idx < 0 || idx >= len(m.gregs) {
		fault.Fatalf("GREG %d+%d out of range", a.Val, a.Offset)
	}
	return idx
}

func (m *Memory) gspecIndex(a addr.Addr) int {
	idx := int(a.Val) - m.cfg.NumGregs
	if idx < 0 || idx >= len(m.gspec) {
		fault.Fatalf("GSPEC %d out of range", a.Val)
	}
	return idx
}

// find returns the label set currently occupying a, or nil if untainted.
// a must already be resolved to a concrete type (never CONST-as-dest,
// never UNK): the fixup pass is responsible for that before any op runs.
func (m *Memory) find(a addr.Addr) *label.Set {
	if a.Flag == addr.FlagIrrelevant {
		return nil
	}
	switch a.Typ {
	case addr.CONST:
		return nil
	case addr.HADDR:
		ls, _ := m.hd.Find(a.Effective())
		return ls
	case addr.MADDR:
		return m.findRAM(a.Effective())
	case addr.IADDR:
		ls, _ := m.io.Find(a.Effective())
		return ls
	case addr.LADDR:
		return m.iregs[m.iregIndex(a)]
	case addr.GREG:
		return m.gregs[m.gregIndex(a)]
	case addr.GSPEC:
		return m.gspec[m.gspecIndex(a)]
	case addr.RET:
		return m.ret[a.Offset]
	case addr.UNK:
		fault.Fatalf("UNK address used where a resolved address is required")
		return nil
	default:
		fault.Fatalf("unknown address type %v", a.Typ)
		return nil
	}
}

func (m *Memory) findRAM(key uint64) *label.Set {
	if !m.cfg.X86_64 {
		if key >= uint64(m.ramBitmap.Len()) || !m.ramBitmap.Test(uint(key)) {
			return nil
		}
	}
	ls, _ := m.ram.Find(key)
	return ls
}

// store installs ls at a, releasing whatever previously occupied that slot.
func (m *Memory) store(a addr.Addr, ls *label.Set) {
	if a.Flag == addr.FlagIrrelevant {
		return
	}
	switch a.Typ {
	case addr.CONST:
		fault.Fatalf("CONST may never be a destination")
	case addr.HADDR:
		m.hd.Add(a.Effective(), ls)
	case addr.MADDR:
		m.storeRAM(a.Effective(), ls)
	case addr.IADDR:
		m.io.Add(a.Effective(), ls)
	case addr.LADDR:
		idx := m.iregIndex(a)
		label.Free(m.iregs[idx])
		m.iregs[idx] = ls
	case addr.GREG:
		idx := m.gregIndex(a)
		label.Free(m.gregs[idx])
		m.gregs[idx] = ls
	case addr.GSPEC:
		idx := m.gspecIndex(a)
		label.Free(m.gspec[idx])
		m.gspec[idx] = ls
	case addr.RET:
		label.Free(m.ret[a.Offset])
		m.ret[a.Offset] = ls
	case addr.UNK:
		fault.Fatalf("UNK address used where a resolved address is required")
	default:
		fault.Fatalf("unknown address type %v", a.Typ)
	}
}

func (m *Memory) storeRAM(key uint64, ls *label.Set) {
	if ls.IsEmpty() {
		m.removeRAM(key)
		return
	}
	m.ram.Add(key, ls)
	if !m.cfg.X86_64 {
		m.ramBitmap.Set(uint(key))
	}
}

// delete clears taint at a; for 32-bit RAM it also clears the bitmap bit.
func (m *Memory) delete(a addr.Addr) {
	if a.Flag == addr.FlagIrrelevant {
		return
	}
	switch a.Typ {
	case addr.CONST:
		// no-op: CONST never carries taint
	case addr.HADDR:
		m.hd.Remove(a.Effective())
	case addr.MADDR:
		m.removeRAM(a.Effective())
	case addr.IADDR:
		m.io.Remove(a.Effective())
	case addr.LADDR:
		idx := m.iregIndex(a)
		label.Free(m.iregs[idx])
		m.iregs[idx] = nil
	case addr.GREG:
		idx := m.gregIndex(a)
		label.Free(m.gregs[idx])
		m.gregs[idx] = nil
	case addr.GSPEC:
		idx := m.gspecIndex(a)
		label.Free(m.gspec[idx])
		m.gspec[idx] = nil
	case addr.RET:
		label.Free(m.ret[a.Offset])
		m.ret[a.Offset] = nil
	case addr.UNK:
		fault.Fatalf("UNK address used where a resolved address is required")
	default:
		fault.Fatalf("unknown address type %v", a.Typ)
	}
}

func (m *Memory) removeRAM(key uint64) {
	m.ram.Remove(key)
	if !m.cfg.X86_64 && key < uint64(m.ramBitmap.Len()) {
		m.ramBitmap.Clear(uint(key))
	}
}

// RAMBitmapConsistent reports whether, for every directory entry in RAM,
// the presence bitmap bit matches — and vice versa. 32-bit mode only;
// always true (vacuously) in X86_64 mode. Compares aggregate counts first,
// then walks every occupied address in both directions, since equal counts
// don't rule out disjoint sets of set bits.
func (m *Memory) RAMBitmapConsistent() bool {
	if m.cfg.X86_64 {
		return true
	}
	if uint64(m.ram.Occupancy()) != uint64(m.ramBitmap.Count()) {
		return false
	}
	consistent := true
	m.ram.ForEachKey(func(key uint64) {
		if key >= uint64(m.ramBitmap.Len()) || !m.ramBitmap.Test(uint(key)) {
			consistent = false
		}
	})
	if !consistent {
		return false
	}
	for i, ok := m.ramBitmap.NextSet(0); ok; i, ok = m.ramBitmap.NextSet(i + 1) {
		if _, found := m.ram.Find(uint64(i)); !found {
			return false
		}
	}
	return true
}

// FindForTest exposes the internal resolver for assertions in tests
// outside this package; never used on the taint-semantics hot path.
func (m *Memory) FindForTest(a addr.Addr) *label.Set { return m.find(a) }

// --- public API ---

// Query reports whether the byte at a carries a non-empty label set.
func Query(m *Memory, a addr.Addr) bool {
	if a.Flag == addr.FlagIrrelevant {
		return false
	}
	return !m.find(a).IsEmpty()
}

// LabelAddr unions l into a's set, creating it with type COPY if absent.
func LabelAddr(m *Memory, a addr.Addr, l label.Label) {
	if a.Flag == addr.FlagIrrelevant {
		return
	}
	old := m.find(a)
	ns := label.New()
	if old.IsEmpty() {
		ns.SetType(label.TypeCopy)
	} else {
		label.UnionInto(ns, old)
		ns.SetType(old.Type())
	}
	ns.Add(l)
	m.store(a, ns)
}

// DeleteAddr removes taint at a.
func DeleteAddr(m *Memory, a addr.Addr) {
	m.delete(a)
}

// CopyAddr sets b's taint to a's. a and b must not be the same address; if
// a is untainted, b becomes untainted regardless of its prior state.
func CopyAddr(m *Memory, a, b addr.Addr) {
	if b.Flag == addr.FlagIrrelevant {
		return
	}
	if a == b {
		fault.Fatalf("copy source and destination must not be the same address")
	}
	src := m.find(a)
	if src.IsEmpty() {
		m.delete(b)
		return
	}
	m.store(b, src.Copy())
}

// ComputeAddr sets c's taint to the union of a's and b's; either may equal
// c. The result is always typed COMPUTE.
func ComputeAddr(m *Memory, a, b, c addr.Addr) {
	if c.Flag == addr.FlagIrrelevant {
		return
	}
	as := m.find(a)
	bs := m.find(b)
	if as.IsEmpty() && bs.IsEmpty() {
		m.delete(c)
		return
	}
	ns := label.New()
	label.UnionInto(ns, as)
	label.UnionInto(ns, bs)
	ns.SetType(label.TypeCompute)
	m.store(c, ns)
}
