package rawmem

import (
	"bytes"
	"io"
	"testing"
	"testing/quick"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMemoryScalarRoundTrip(t *testing.T) {
	m, err := NewRawMemory(16)
	require.NoError(t, err)
	i := int32(42)
	f := 3.5
	require.NoError(t, WriteValue(m, &i))
	require.NoError(t, WriteValue(m, &f))
	require.Equal(t, 12, m.Offset())
	require.Equal(t, 16, m.Size())

	m.ResetReadWriteCursor()
	var gotI int32
	var gotF float64
	require.True(t, ReadValue(m, &gotI))
	require.True(t, ReadValue(m, &gotF))
	assert.Equal(t, int32(42), gotI)
	assert.Equal(t, 3.5, gotF)
	assert.Equal(t, 12, m.Offset())
}

func TestRawMemoryGrows(t *testing.T) {
	m, err := NewRawMemory(4)
	require.NoError(t, err)
	payload := []byte("more than four bytes")
	require.NoError(t, m.WriteDangerous(payload, len(payload)))
	assert.Equal(t, len(payload), m.Offset())
	assert.GreaterOrEqual(t, m.Size(), len(payload))
	assert.Equal(t, payload, m.Bytes())

	// doubling wins when it is enough
	m2, err := NewRawMemory(8)
	require.NoError(t, err)
	require.NoError(t, m2.WriteDangerous(make([]byte, 10), 10))
	assert.Equal(t, 16, m2.Size())
}

func TestRawMemoryGrowFromZero(t *testing.T) {
	var m RawMemory
	require.NoError(t, m.WriteDangerous([]byte{1, 2, 3}, 3))
	assert.Equal(t, 3, m.Size())
	assert.Equal(t, []byte{1, 2, 3}, m.Bytes())
}

func TestRawMemoryCursorMonotonic(t *testing.T) {
	condition := func(chunks [][]byte) bool {
		m, err := NewRawMemory(0)
		require.NoError(t, err)
		for _, c := range chunks {
			before := m.Offset()
			require.NoError(t, m.WriteDangerous(c, len(c)))
			if m.Offset() != before+len(c) {
				return false
			}
		}
		m.ResetReadWriteCursor()
		for _, c := range chunks {
			before := m.Offset()
			dst := make([]byte, len(c))
			if !m.ReadDangerous(dst, len(c)) || !bytes.Equal(dst, c) {
				return false
			}
			if m.Offset() != before+len(c) {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(condition, &quick.Config{}))
}

func TestRawMemoryOverrunRejected(t *testing.T) {
	m, err := NewRawMemory(8)
	require.NoError(t, err)
	require.NoError(t, m.SetCursor(5))

	dst := []byte{9, 9, 9, 9}
	assert.False(t, m.ReadDangerous(dst, 4))
	assert.Equal(t, 5, m.Offset())
	assert.Equal(t, []byte{9, 9, 9, 9}, dst)

	// dst shorter than the requested length
	assert.False(t, m.ReadDangerous(dst[:2], 3))
	assert.Equal(t, 5, m.Offset())

	assert.True(t, m.ReadDangerous(dst, 3))
	assert.Equal(t, 8, m.Offset())
	assert.False(t, m.ReadDangerous(dst, 1))

	var v uint64
	m.ResetReadWriteCursor()
	require.NoError(t, m.SetCursor(1))
	assert.False(t, ReadValue(m, &v))
	assert.Equal(t, 1, m.Offset())
}

func TestRawMemoryShrinkPreservesContent(t *testing.T) {
	m, err := NewRawMemory(64)
	require.NoError(t, err)
	payload := []byte("shrink me down")
	require.NoError(t, m.WriteDangerous(payload, len(payload)))
	m.ResetReadWriteCursor()
	require.NoError(t, m.ShrinkToFit())
	assert.Equal(t, len(payload), m.Size())

	got := make([]byte, len(payload))
	require.True(t, m.ReadDangerous(got, len(got)))
	assert.Equal(t, payload, got)
}

func TestRawMemoryShrinkUsesHighWaterMark(t *testing.T) {
	m, err := NewRawMemory(32)
	require.NoError(t, err)
	require.NoError(t, m.WriteDangerous([]byte("abcdefgh"), 8))
	require.NoError(t, m.SetCursor(2))
	require.NoError(t, m.ShrinkToFit())
	assert.Equal(t, 8, m.Size())
	assert.Equal(t, 2, m.Offset())

	m2, err := NewRawMemory(32)
	require.NoError(t, err)
	require.NoError(t, m2.WriteDangerous([]byte("ab"), 2))
	require.NoError(t, m2.SetCursor(20))
	require.NoError(t, m2.ShrinkToFit())
	assert.Equal(t, 2, m2.Offset())
}

func TestRawMemorySetCursor(t *testing.T) {
	m, err := NewRawMemory(4)
	require.NoError(t, err)
	require.NoError(t, m.SetCursor(4))
	assert.Equal(t, 0, m.Remaining())
	require.ErrorIs(t, m.SetCursor(5), ErrCursorOutOfRange)
	require.ErrorIs(t, m.SetCursor(-1), ErrCursorOutOfRange)
	assert.Equal(t, 4, m.Offset())
}

func TestRawMemoryFreeIdempotent(t *testing.T) {
	m, err := NewRawMemory(8)
	require.NoError(t, err)
	require.NoError(t, m.WriteDangerous([]byte{1}, 1))
	m.Free()
	m.Free()
	assert.Equal(t, 0, m.Size())
	assert.Equal(t, 0, m.Offset())
	assert.Equal(t, 0, m.Used())
}

func TestRawMemoryReinit(t *testing.T) {
	m, err := NewRawMemory(8)
	require.NoError(t, err)
	require.NoError(t, m.WriteDangerous([]byte{1, 2}, 2))
	require.NoError(t, m.Init(4))
	assert.Equal(t, 4, m.Size())
	assert.Equal(t, 0, m.Offset())
	assert.Empty(t, m.Bytes())
}

func TestRawMemoryAllocationErrors(t *testing.T) {
	_, err := NewRawMemory(-1)
	require.ErrorIs(t, err, ErrAllocation)

	m, err := NewRawMemory(4)
	require.NoError(t, err)
	m.SetLimit(6)
	require.NoError(t, m.WriteDangerous([]byte{1, 2, 3, 4, 5}, 5))
	assert.Equal(t, 6, m.Size())
	require.ErrorIs(t, m.WriteDangerous([]byte{1, 2}, 2), ErrAllocation)
	assert.Equal(t, 5, m.Offset())

	require.ErrorIs(t, m.Init(7), ErrAllocation)
}

func TestRawMemoryShortSource(t *testing.T) {
	m, err := NewRawMemory(4)
	require.NoError(t, err)
	require.ErrorIs(t, m.WriteDangerous([]byte{1}, 2), ErrBufferOverrun)
	require.ErrorIs(t, m.WriteDangerous([]byte{1}, -1), ErrBufferOverrun)
	assert.Equal(t, 0, m.Offset())
}

func TestRawMemoryClone(t *testing.T) {
	m, err := NewRawMemory(4)
	require.NoError(t, err)
	require.NoError(t, m.WriteDangerous([]byte{1, 2, 3}, 3))
	c := m.Clone()
	require.NoError(t, c.SetCursor(0))
	require.NoError(t, c.WriteDangerous([]byte{7}, 1))
	assert.Equal(t, []byte{1, 2, 3}, m.Bytes())
	assert.Equal(t, []byte{7, 2, 3}, c.Bytes())
	assert.Equal(t, 3, m.Offset())
}

func TestRawMemoryIO(t *testing.T) {
	var m RawMemory
	n, err := io.Copy(&m, bytes.NewReader([]byte("streamed through")))
	require.NoError(t, err)
	assert.EqualValues(t, 16, n)
	m.ResetReadWriteCursor()
	got, err := io.ReadAll(&m)
	require.NoError(t, err)
	assert.Equal(t, "streamed through", string(got))
}

func TestRawMemoryTypedStruct(t *testing.T) {
	type vec4 struct {
		X, Y, Z, W float32
	}
	m, err := NewRawMemory(0)
	require.NoError(t, err)
	in := vec4{1, 2, 3, 4}
	require.NoError(t, WriteValue(m, &in))
	assert.Equal(t, 16, m.Offset())
	m.ResetReadWriteCursor()
	var out vec4
	require.True(t, ReadValue(m, &out))
	assert.Equal(t, in, out)
}

func TestRawMemoryTypedRejectsPointers(t *testing.T) {
	type withSlice struct {
		B []byte
	}
	m, err := NewRawMemory(16)
	require.NoError(t, err)
	s := "nope"
	require.ErrorIs(t, WriteValue(m, &s), ErrNotFixedLayout)
	require.ErrorIs(t, WriteValue(m, &withSlice{}), ErrNotFixedLayout)
	require.ErrorIs(t, WriteValue[int32](m, nil), ErrNotPointer)
	assert.Equal(t, 0, m.Offset())
	assert.False(t, ReadValue(m, &s))
}

func TestRawMemoryReadValueBool(t *testing.T) {
	m, err := NewRawMemory(2)
	require.NoError(t, err)
	require.NoError(t, m.WriteDangerous([]byte{0x80, 0}, 2))
	m.ResetReadWriteCursor()
	var on, off bool
	require.True(t, ReadValue(m, &on))
	require.True(t, ReadValue(m, &off))
	assert.True(t, on)
	assert.Equal(t, byte(1), *(*byte)(unsafe.Pointer(&on)))
	assert.False(t, off)
}
