package compactwire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/rawbytedev/rawmem"
	"github.com/rawbytedev/rawmem/internal/common"
)

// Encoder wraps blobs into frames. It is not safe for concurrent use.
type Encoder struct {
	Compression Compression
	Portable    bool // mark frames as holding portable blobs

	mem  rawmem.RawMemory
	zenc *zstd.Encoder
	comp []byte
}

func NewEncoder(c Compression) *Encoder {
	return &Encoder{Compression: c}
}

// Encode frames blob without a signature.
func (e *Encoder) Encode(blob rawmem.SizedMemory) ([]byte, error) {
	return e.encode(blob, 0, false)
}

// EncodeSigned frames blob and records sig, normally the rawmem.Codec
// signature of the packed type list.
func (e *Encoder) EncodeSigned(blob rawmem.SizedMemory, sig uint32) ([]byte, error) {
	return e.encode(blob, sig, true)
}

func (e *Encoder) encode(blob rawmem.SizedMemory, sig uint32, signed bool) ([]byte, error) {
	flags := e.Compression.flag()
	if e.Portable {
		flags |= FlagPortable
	}
	if signed {
		flags |= FlagSignature
	}
	payload, err := e.compress(blob.Bytes())
	if err != nil {
		return nil, err
	}

	var scratch [10]byte
	lenBytes := common.WriteVarUintTo(scratch[:0], uint64(len(payload)))
	total := preambleSize + len(lenBytes) + len(payload) + crcSize
	if signed {
		total += sigSize
	}
	// fresh storage per frame: the returned slice belongs to the caller
	if err := e.mem.Init(total); err != nil {
		return nil, err
	}
	preamble := [preambleSize]byte{Magic0, Magic1, VersionV1, byte(flags)}
	if err := e.mem.WriteDangerous(preamble[:], preambleSize); err != nil {
		return nil, err
	}
	if err := e.mem.WriteDangerous(lenBytes, len(lenBytes)); err != nil {
		return nil, err
	}
	if signed {
		var s [sigSize]byte
		binary.LittleEndian.PutUint32(s[:], sig)
		if err := e.mem.WriteDangerous(s[:], sigSize); err != nil {
			return nil, err
		}
	}
	if err := e.mem.WriteDangerous(payload, len(payload)); err != nil {
		return nil, err
	}
	var crc [crcSize]byte
	binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(e.mem.Bytes()[2:]))
	if err := e.mem.WriteDangerous(crc[:], crcSize); err != nil {
		return nil, err
	}
	out := e.mem.Bytes()
	e.mem.Free()
	return out, nil
}

func (e *Encoder) compress(raw []byte) ([]byte, error) {
	switch e.Compression {
	case CompressNone:
		return raw, nil
	case CompressZstd:
		if e.zenc == nil {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCompression, err)
			}
			e.zenc = enc
		}
		e.comp = e.zenc.EncodeAll(raw, e.comp[:0])
		return e.comp, nil
	case CompressSnappy:
		e.comp = snappy.Encode(e.comp[:cap(e.comp)], raw)
		return e.comp, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCompression, e.Compression)
	}
}

// Close releases the zstd encoder, if one was created.
func (e *Encoder) Close() error {
	if e.zenc == nil {
		return nil
	}
	err := e.zenc.Close()
	e.zenc = nil
	return err
}

// WriteFrame encodes blob and writes the frame to w.
func (e *Encoder) WriteFrame(w io.Writer, blob rawmem.SizedMemory) error {
	frame, err := e.Encode(blob)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// WriteSignedFrame is WriteFrame with a signature.
func (e *Encoder) WriteSignedFrame(w io.Writer, blob rawmem.SizedMemory, sig uint32) error {
	frame, err := e.EncodeSigned(blob, sig)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
