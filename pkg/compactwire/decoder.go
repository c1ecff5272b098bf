package compactwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/rawmem"
	"github.com/rawbytedev/rawmem/internal/common"
)

// Decoder unwraps frames. MaxSize bounds both the stored and the
// decompressed payload; zero means rawmem.DefaultMaxAlloc. A Decoder is not
// safe for concurrent use.
type Decoder struct {
	MaxSize int

	zdec      *zstd.Decoder
	zdecLimit int // MaxSize the zstd decoder was built with
}

func NewDecoder(maxSize int) *Decoder {
	return &Decoder{MaxSize: maxSize}
}

func (d *Decoder) maxSize() int {
	if d.MaxSize <= 0 {
		return rawmem.DefaultMaxAlloc
	}
	return d.MaxSize
}

// Decode validates frame and returns its blob as a fresh owned copy.
func (d *Decoder) Decode(frame []byte) (Frame, error) {
	if len(frame) < minFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(frame))
	}
	if frame[0] != Magic0 || frame[1] != Magic1 {
		return Frame{}, ErrNotFrame
	}
	if frame[2] != VersionV1 {
		return Frame{}, fmt.Errorf("%w: %d", ErrVersion, frame[2])
	}
	end := len(frame) - crcSize
	want := binary.LittleEndian.Uint32(frame[end:])
	if crc32.ChecksumIEEE(frame[2:end]) != want {
		return Frame{}, ErrChecksum
	}

	f := Frame{Flags: Flags(frame[3])}
	if f.Flags&^knownFlags != 0 || f.Flags&(FlagZstd|FlagSnappy) == FlagZstd|FlagSnappy {
		return Frame{}, fmt.Errorf("%w: bad flags %#x", ErrNotFrame, byte(f.Flags))
	}
	n, k := common.ReadVarUint(frame[preambleSize:end])
	if k == 0 {
		return Frame{}, fmt.Errorf("%w: payload length", ErrTruncated)
	}
	pos := preambleSize + k
	if f.Signed() {
		if end-pos < sigSize {
			return Frame{}, fmt.Errorf("%w: signature", ErrTruncated)
		}
		f.Signature = binary.LittleEndian.Uint32(frame[pos:])
		pos += sigSize
	}
	if uint64(end-pos) != n {
		return Frame{}, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, end-pos, n)
	}
	if n > uint64(d.maxSize()) {
		return Frame{}, fmt.Errorf("%w: %d byte payload (limit %d)", rawmem.ErrAllocation, n, d.maxSize())
	}
	blob, err := d.decompress(f.Flags, frame[pos:end])
	if err != nil {
		return Frame{}, err
	}
	f.Blob = rawmem.Own(blob)
	return f, nil
}

func (d *Decoder) decompress(flags Flags, payload []byte) ([]byte, error) {
	limit := d.maxSize()
	switch {
	case flags&FlagZstd != 0:
		if d.zdec == nil || d.zdecLimit != limit {
			d.Close()
			dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(limit)))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCompression, err)
			}
			d.zdec, d.zdecLimit = dec, limit
		}
		out, err := d.zdec.DecodeAll(payload, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("%w: zstd payload decompresses past %d bytes", rawmem.ErrAllocation, limit)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		return out, nil
	case flags&FlagSnappy != 0:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		if n > limit {
			return nil, fmt.Errorf("%w: %d bytes decompressed (limit %d)", rawmem.ErrAllocation, n, limit)
		}
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		return out, nil
	default:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
}

// ByteReader is what ReadFrame needs from its source.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// byteRecorder keeps the bytes read through it, so the length varint goes
// into the frame exactly as it was sent.
type byteRecorder struct {
	r   io.ByteReader
	buf []byte
}

func (b *byteRecorder) ReadByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err == nil {
		b.buf = append(b.buf, c)
	}
	return c, err
}

// ReadFrame reads exactly one frame from r and decodes it. It returns io.EOF
// when r ends cleanly before a frame starts.
func (d *Decoder) ReadFrame(r ByteReader) (Frame, error) {
	var preamble [preambleSize]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: preamble", ErrTruncated)
		}
		return Frame{}, err
	}
	if preamble[0] != Magic0 || preamble[1] != Magic1 {
		return Frame{}, ErrNotFrame
	}
	var scratch [binary.MaxVarintLen64]byte
	rec := &byteRecorder{r: r, buf: scratch[:0]}
	n, err := binary.ReadUvarint(rec)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: payload length: %v", ErrTruncated, err)
	}
	if n > uint64(d.maxSize()) {
		return Frame{}, fmt.Errorf("%w: %d byte payload (limit %d)", rawmem.ErrAllocation, n, d.maxSize())
	}

	rest := int(n) + crcSize
	if Flags(preamble[3])&FlagSignature != 0 {
		rest += sigSize
	}
	lenBytes := rec.buf

	var mem rawmem.RawMemory
	mem.SetLimit(d.maxSize() + minFrameSize + 16)
	if err := mem.Init(preambleSize + len(lenBytes) + rest); err != nil {
		return Frame{}, err
	}
	if err := mem.WriteDangerous(preamble[:], preambleSize); err != nil {
		return Frame{}, err
	}
	if err := mem.WriteDangerous(lenBytes, len(lenBytes)); err != nil {
		return Frame{}, err
	}
	if _, err := io.CopyN(&mem, r, int64(rest)); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("%w: body", ErrTruncated)
		}
		return Frame{}, err
	}
	return d.Decode(mem.Bytes())
}

// Close releases the zstd decoder, if one was created.
func (d *Decoder) Close() {
	if d.zdec != nil {
		d.zdec.Close()
		d.zdec = nil
	}
}
