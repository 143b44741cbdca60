package tob

// Block is one basic block within a TTB: the IR label the interpreter
// matches branch/switch/phi targets against, plus its own op buffer.
type Block struct {
	Label int32
	Buf   *Buffer
}

// NewBlock allocates a block with a freshly sized op buffer.
func NewBlock(label int32, bufSize int) *Block {
	return &Block{Label: label, Buf: NewBuffer(bufSize)}
}

// Unit is a taint translation block (TTB): one entry block plus zero or
// more successor blocks, referenced by CALL ops and therefore forming a
// DAG across units — never a tree, never a cycle back to itself, since the
// lifter is block-local.
type Unit struct {
	Name  string
	Entry *Block
	Succ  []*Block
}

// NewUnit builds a TTB with a pre-sized successor slice.
func NewUnit(name string, numSuccessors int) *Unit {
	return &Unit{Name: name, Succ: make([]*Block, 0, numSuccessors)}
}

// AddBlock appends a non-entry successor block.
func (u *Unit) AddBlock(b *Block) { u.Succ = append(u.Succ, b) }

// FindBlock returns the successor block whose label matches, if any. The
// entry block is deliberately excluded: branch/switch/phi targets always
// name a successor, never the entry itself.
func (u *Unit) FindBlock(label int32) (*Block, bool) {
	for _, b := range u.Succ {
		if b.Label == label {
			return b, true
		}
	}
	return nil, false
}

// Cleanup releases every block's buffer. Called after execution when
// stats mode is active; otherwise the caller owns the TTB and is expected
// to cache it until shutdown.
func (u *Unit) Cleanup() {
	u.Entry = nil
	u.Succ = nil
}
