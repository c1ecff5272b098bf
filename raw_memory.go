package rawmem

import (
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/rawmem/internal/common"
)

// noCopy trips go vet's copylocks check when a RawMemory is copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// RawMemory is an owned, growable byte region with a single read/write
// cursor. Writes append at the cursor and grow the region when needed; reads
// consume from the cursor and never run past the region.
//
// A RawMemory must not be copied; use Clone. It is not safe for concurrent
// use.
type RawMemory struct {
	noCopy noCopy

	data   []byte
	offset int
	used   int // high-water mark of writes
	limit  int
}

// NewRawMemory returns a RawMemory initialized with initialCapacity bytes.
func NewRawMemory(initialCapacity int) (*RawMemory, error) {
	m := &RawMemory{}
	if err := m.Init(initialCapacity); err != nil {
		return nil, err
	}
	return m, nil
}

// Init allocates initialCapacity bytes and puts the cursor at 0. Storage from
// a previous Init is released first.
func (m *RawMemory) Init(initialCapacity int) error {
	m.Free()
	data, err := allocate(initialCapacity, m.maxAlloc())
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

// SetLimit caps how large the region may grow. Zero restores DefaultMaxAlloc.
func (m *RawMemory) SetLimit(n int) {
	m.limit = n
}

func (m *RawMemory) maxAlloc() int {
	if m.limit <= 0 {
		return DefaultMaxAlloc
	}
	return m.limit
}

// Free releases the storage. Calling it again is a no-op.
func (m *RawMemory) Free() {
	m.data = nil
	m.offset = 0
	m.used = 0
}

// ShrinkToFit reallocates the region down to the bytes written so far. The
// cursor is clamped to the new size.
func (m *RawMemory) ShrinkToFit() error {
	if m.used == len(m.data) {
		return nil
	}
	data, err := allocate(m.used, m.maxAlloc())
	if err != nil {
		return err
	}
	copy(data, m.data[:m.used])
	m.data = data
	m.offset = min(m.offset, m.used)
	return nil
}

// ResetReadWriteCursor moves the cursor back to 0.
func (m *RawMemory) ResetReadWriteCursor() {
	m.offset = 0
}

// SetCursor moves the cursor to offset, which must lie within the region.
func (m *RawMemory) SetCursor(offset int) error {
	if offset < 0 || offset > len(m.data) {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrCursorOutOfRange, offset, len(m.data))
	}
	m.offset = offset
	return nil
}

// WriteDangerous copies length bytes of src to the cursor, growing the region
// if they do not fit, and advances the cursor. Nothing about the bytes is
// checked beyond src really holding length of them.
func (m *RawMemory) WriteDangerous(src []byte, length int) error {
	if length < 0 || length > len(src) {
		return fmt.Errorf("%w: write of %d bytes from %d byte source", ErrBufferOverrun, length, len(src))
	}
	need := m.offset + length
	if need > len(m.data) {
		if err := m.grow(need); err != nil {
			return err
		}
	}
	copy(m.data[m.offset:need], src[:length])
	m.offset = need
	m.used = max(m.used, need)
	return nil
}

// grow doubles the region, or fits it exactly to need when doubling is not
// enough or would pass the limit.
func (m *RawMemory) grow(need int) error {
	limit := m.maxAlloc()
	if need > limit {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrAllocation, need, limit)
	}
	size := max(min(2*len(m.data), limit), need)
	data, err := allocate(size, limit)
	if err != nil {
		return err
	}
	copy(data, m.data[:m.used])
	m.data = data
	return nil
}

// ReadDangerous copies length bytes from the cursor into dst and advances the
// cursor. It reports false, leaving both the cursor and dst untouched, when
// fewer than length bytes remain or dst is too short.
func (m *RawMemory) ReadDangerous(dst []byte, length int) bool {
	if length < 0 || length > len(dst) || length > len(m.data)-m.offset {
		return false
	}
	copy(dst[:length], m.data[m.offset:m.offset+length])
	m.offset += length
	return true
}

func (m *RawMemory) Size() int      { return len(m.data) }
func (m *RawMemory) Offset() int    { return m.offset }
func (m *RawMemory) Used() int      { return m.used }
func (m *RawMemory) Remaining() int { return len(m.data) - m.offset }

// Bytes returns the written portion of the region. The slice aliases the
// storage and is invalidated by the next write that grows it.
func (m *RawMemory) Bytes() []byte {
	return m.data[:m.used]
}

// Clone returns a deep copy with its own storage, cursor and limit.
func (m *RawMemory) Clone() *RawMemory {
	c := &RawMemory{offset: m.offset, used: m.used, limit: m.limit}
	if m.data != nil {
		c.data = make([]byte, len(m.data))
		copy(c.data, m.data)
	}
	return c
}

// Write implements io.Writer on top of WriteDangerous.
func (m *RawMemory) Write(p []byte) (int, error) {
	if err := m.WriteDangerous(p, len(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read implements io.Reader over the written portion of the region.
func (m *RawMemory) Read(p []byte) (int, error) {
	if m.offset >= m.used {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, m.data[m.offset:m.used])
	m.offset += n
	return n, nil
}

// WriteValue writes the raw bytes of *v at the cursor. T must be fixed layout.
func WriteValue[T any](m *RawMemory, v *T) error {
	if v == nil {
		return ErrNotPointer
	}
	p, err := defaultCodec.getPlan(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return err
	}
	return m.WriteDangerous(common.BytesOf(unsafe.Pointer(v), p.typ.Size()), p.size)
}

// ReadValue fills *v from the raw bytes at the cursor. It reports false when
// T is not fixed layout or not enough bytes remain.
func ReadValue[T any](m *RawMemory, v *T) bool {
	if v == nil {
		return false
	}
	p, err := defaultCodec.getPlan(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return false
	}
	b := common.BytesOf(unsafe.Pointer(v), p.typ.Size())
	if !m.ReadDangerous(b, p.size) {
		return false
	}
	p.fixBools(b)
	return true
}
