package compactwire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rawbytedev/rawmem"
)

// Frame layout, integers little-endian:
//
//	magic "RM" | version u8 | flags u8 | payload length uvarint |
//	[signature u32, FlagSignature] | payload | crc32 u32
//
// The crc covers everything between the magic and the crc itself. The payload
// length counts stored bytes, after compression.

const (
	Magic0    = 'R'
	Magic1    = 'M'
	VersionV1 = 1

	preambleSize = 4 // magic + version + flags
	crcSize      = 4
	sigSize      = 4
	minFrameSize = preambleSize + 1 + crcSize
)

type Flags byte

const (
	FlagSignature Flags = 0x01
	FlagZstd      Flags = 0x02
	FlagSnappy    Flags = 0x04
	FlagPortable  Flags = 0x08 // blob was packed with rawmem Options.Portable

	knownFlags = FlagSignature | FlagZstd | FlagSnappy | FlagPortable
)

type Compression byte

const (
	CompressNone Compression = iota
	CompressZstd
	CompressSnappy
)

var (
	ErrNotFrame    = errors.New("not a frame")
	ErrVersion     = errors.New("unsupported frame version")
	ErrChecksum    = errors.New("crc mismatch")
	ErrTruncated   = errors.New("frame truncated")
	ErrCompression = errors.New("compression error")
)

// ParseCompression maps a config name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "raw":
		return CompressNone, nil
	case "zstd":
		return CompressZstd, nil
	case "snappy":
		return CompressSnappy, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression %q", ErrCompression, s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressZstd:
		return "zstd"
	case CompressSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("Compression(%d)", byte(c))
	}
}

func (c Compression) flag() Flags {
	switch c {
	case CompressZstd:
		return FlagZstd
	case CompressSnappy:
		return FlagSnappy
	default:
		return 0
	}
}

// Frame is a decoded frame. Blob is owned by the caller.
type Frame struct {
	Blob      rawmem.SizedMemory
	Flags     Flags
	Signature uint32
}

func (f Frame) Signed() bool   { return f.Flags&FlagSignature != 0 }
func (f Frame) Portable() bool { return f.Flags&FlagPortable != 0 }

// Check verifies that the frame was written with signature sig.
func (f Frame) Check(sig uint32) error {
	if !f.Signed() {
		return fmt.Errorf("%w: frame carries no signature", rawmem.ErrSignatureMismatch)
	}
	if f.Signature != sig {
		return fmt.Errorf("%w: frame %08x, want %08x", rawmem.ErrSignatureMismatch, f.Signature, sig)
	}
	return nil
}
