package tob

import (
	"bytes"
	"encoding/binary"

	"github.com/shadowbyte/taintcore/internal/fault"
)

var recordSize = binary.Size(Op{})

// Buffer is an append-only, fixed-record byte buffer with a read cursor:
// size is len(data), cursor is the read position. Go's slice already
// tracks the start implicitly.
type Buffer struct {
	data    []byte
	maxSize int
	cursor  int
}

// NewBuffer allocates a buffer able to hold maxSize bytes before Write
// starts reporting an overflow error.
func NewBuffer(maxSize int) *Buffer {
	return &Buffer{data: make([]byte, 0, maxSize), maxSize: maxSize}
}

// Write serializes op and appends it. Returns an error (not a fault panic)
// on overflow: buffer construction is a host-side, correctable activity,
// unlike a read-time overrun which signals a corrupt stream.
func (b *Buffer) Write(op Op) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, op); err != nil {
		return err
	}
	if len(b.data)+buf.Len() > b.maxSize {
		return errBufferFull
	}
	b.data = append(b.data, buf.Bytes()...)
	return nil
}

// Read decodes the record at the cursor and advances it by one record.
func (b *Buffer) Read() Op {
	op := b.PeekAt(0)
	b.cursor += recordSize
	return op
}

// PeekAt decodes the i-th record relative to the cursor (i=0 is the next
// record Read would return) without moving the cursor.
func (b *Buffer) PeekAt(i int) Op {
	pos := b.cursor + i*recordSize
	if pos+recordSize > len(b.data) {
		fault.Fatalf("taint op buffer overrun at offset %d", pos)
	}
	var op Op
	r := bytes.NewReader(b.data[pos : pos+recordSize])
	if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
		fault.Fatalf("taint op buffer decode failure: %v", err)
	}
	return op
}

// PatchAt overwrites the i-th record relative to the cursor in place,
// without moving the cursor — the fixup protocol's peek-and-patch API, so
// the outer interpreter loop still reads the patched records through its
// ordinary Read calls.
func (b *Buffer) PatchAt(i int, op Op) {
	pos := b.cursor + i*recordSize
	if pos+recordSize > len(b.data) {
		fault.Fatalf("taint op buffer overrun patching offset %d", pos)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, op); err != nil {
		fault.Fatalf("taint op buffer encode failure: %v", err)
	}
	copy(b.data[pos:pos+recordSize], buf.Bytes())
}

// Rewind resets the cursor to the start of the buffer.
func (b *Buffer) Rewind() { b.cursor = 0 }

// End reports whether the cursor has consumed every record.
func (b *Buffer) End() bool { return b.cursor >= len(b.data) }

// Clear empties the buffer and resets the cursor.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
	b.cursor = 0
}

// FullFrac reports how full the buffer is, in [0,1].
func (b *Buffer) FullFrac() float64 {
	if b.maxSize == 0 {
		return 0
	}
	return float64(len(b.data)) / float64(b.maxSize)
}

// Len reports the number of encoded records currently stored.
func (b *Buffer) Len() int {
	if recordSize == 0 {
		return 0
	}
	return len(b.data) / recordSize
}

var errBufferFull = bufferFullError{}

type bufferFullError struct{}

func (bufferFullError) Error() string { return "taint op buffer is full" }
