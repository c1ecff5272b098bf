package rawmem

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/rawbytedev/rawmem/internal/common"
)

// Blob layout: [signature u32, only with Options.Signature] then each value's
// bytes back to back in argument order, no padding between them. Without
// Options.Portable the bytes are the host's in-memory representation.

// Pack lays values out into one freshly allocated blob owned by the caller.
// Every value must be of a fixed-layout type.
func (c *Codec) Pack(values ...any) (SizedMemory, error) {
	plans, err := c.valuePlans(values)
	if err != nil {
		return SizedMemory{}, err
	}
	total := 0
	if c.Opts.Signature {
		total = signatureSize
	}
	for _, p := range plans {
		total += p.size
	}
	buf, err := allocate(total, c.Opts.maxAlloc())
	if err != nil {
		return SizedMemory{}, err
	}

	off := 0
	if c.Opts.Signature {
		binary.LittleEndian.PutUint32(buf, signatureOf(plans))
		off = signatureSize
	}
	for i, v := range values {
		p := plans[i]
		// copy into addressable memory; interface contents are not
		tmp := reflect.New(p.typ)
		tmp.Elem().Set(reflect.ValueOf(v))
		c.put(buf[off:off+p.size], tmp.UnsafePointer(), p)
		off += p.size
	}
	return SizedMemory{Memory: buf, Size: total, owned: true}, nil
}

// Unpack copies consecutive members of mem into outs, which must be non-nil
// pointers to fixed-layout types given in the same order as at Pack time.
// Before each member the remaining length is checked; on overrun the members
// already decoded stay written and the rest are left alone.
//
// Without Options.Signature nothing ties the blob to a type list: a mismatched
// list reads garbage that is well defined but wrong. Bools always come out
// true or false, whatever byte they were read from.
func (c *Codec) Unpack(mem SizedMemory, outs ...any) error {
	plans, err := c.outputPlans(outs)
	if err != nil {
		return err
	}
	data := mem.Bytes()
	off := 0
	if c.Opts.Signature {
		if len(data) < signatureSize {
			return fmt.Errorf("%w: %d byte blob has no signature", ErrBufferOverrun, len(data))
		}
		got, want := binary.LittleEndian.Uint32(data), signatureOf(plans)
		if got != want {
			return fmt.Errorf("%w: blob %08x, outputs %08x", ErrSignatureMismatch, got, want)
		}
		off = signatureSize
	}
	for i, out := range outs {
		p := plans[i]
		if len(data)-off < p.size {
			return fmt.Errorf("%w: member %d (%s) needs %d bytes, %d remain",
				ErrBufferOverrun, i, p.typ, p.size, len(data)-off)
		}
		c.get(reflect.ValueOf(out).UnsafePointer(), data[off:off+p.size], p)
		off += p.size
	}
	return nil
}

func (c *Codec) put(dst []byte, src unsafe.Pointer, p *typePlan) {
	if !c.Opts.Portable {
		copy(dst, common.BytesOf(src, p.typ.Size()))
		return
	}
	for _, leaf := range p.leaves {
		v := reflect.NewAt(leaf.Type, unsafe.Add(src, leaf.Offset)).Elem()
		common.PutFixed(dst[leaf.Offset:], v)
	}
}

func (c *Codec) get(dst unsafe.Pointer, src []byte, p *typePlan) {
	if !c.Opts.Portable {
		b := common.BytesOf(dst, p.typ.Size())
		copy(b, src)
		p.fixBools(b)
		return
	}
	for _, leaf := range p.leaves {
		v := reflect.NewAt(leaf.Type, unsafe.Add(dst, leaf.Offset)).Elem()
		common.SetFixed(v, src[leaf.Offset:])
	}
}

// Pack packs values with the default native codec.
func Pack(values ...any) (SizedMemory, error) {
	return defaultCodec.Pack(values...)
}

// Unpack unpacks mem with the default native codec.
func Unpack(mem SizedMemory, outs ...any) error {
	return defaultCodec.Unpack(mem, outs...)
}

// SizeOf reports the native packed size of values.
func SizeOf(values ...any) (int, error) {
	return defaultCodec.SizeOf(values...)
}

// SizeOfTypes reports the native packed size of an ordered type list.
func SizeOfTypes(types ...reflect.Type) (int, error) {
	return defaultCodec.SizeOfTypes(types...)
}

// The fixed-arity forms pin the type list in the signature of the call so
// that pack and unpack sites cannot drift apart silently.

func Pack2[A, B any](a A, b B) (SizedMemory, error) {
	return defaultCodec.Pack(a, b)
}

func Unpack2[A, B any](mem SizedMemory, a *A, b *B) error {
	return defaultCodec.Unpack(mem, a, b)
}

func Pack3[A, B, C any](a A, b B, c C) (SizedMemory, error) {
	return defaultCodec.Pack(a, b, c)
}

func Unpack3[A, B, C any](mem SizedMemory, a *A, b *B, c *C) error {
	return defaultCodec.Unpack(mem, a, b, c)
}

func Pack4[A, B, C, D any](a A, b B, c C, d D) (SizedMemory, error) {
	return defaultCodec.Pack(a, b, c, d)
}

func Unpack4[A, B, C, D any](mem SizedMemory, a *A, b *B, c *C, d *D) error {
	return defaultCodec.Unpack(mem, a, b, c, d)
}
