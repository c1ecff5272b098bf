package common

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unsafe"
)

// IsFixedKind reports whether k is a fixed-size primitive kind.
func IsFixedKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// FixedSize returns the byte width for fixed-size primitive kinds.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Complex64:
		return 8
	case reflect.Complex128:
		return 16
	case reflect.Int, reflect.Uint:
		return strconv.IntSize / 8
	case reflect.Uintptr:
		return int(unsafe.Sizeof(uintptr(0)))
	default:
		return -1
	}
}

// IsFixedLayout reports whether every byte of a t value is plain data:
// primitives, and arrays or structs built only from them.
func IsFixedLayout(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return IsFixedLayout(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !IsFixedLayout(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return IsFixedKind(t.Kind())
	}
}

// Leaf is a primitive located at Offset inside a fixed-layout value.
type Leaf struct {
	Offset uintptr
	Type   reflect.Type
}

// Leaves flattens a fixed-layout type into its primitives in memory order.
// Blank and unexported fields are included; they occupy bytes all the same.
func Leaves(t reflect.Type) []Leaf {
	return appendLeaves(nil, t, 0)
}

func appendLeaves(dst []Leaf, t reflect.Type, base uintptr) []Leaf {
	switch t.Kind() {
	case reflect.Array:
		elem := t.Elem()
		for i := 0; i < t.Len(); i++ {
			dst = appendLeaves(dst, elem, base+uintptr(i)*elem.Size())
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			dst = appendLeaves(dst, sf.Type, base+sf.Offset)
		}
	default:
		dst = append(dst, Leaf{Offset: base, Type: t})
	}
	return dst
}

// Describe renders the structural shape of t: kinds, sizes and offsets, but
// not names. Two types with the same memory layout describe identically.
func Describe(t reflect.Type) string {
	var sb strings.Builder
	describe(&sb, t)
	return sb.String()
}

func describe(sb *strings.Builder, t reflect.Type) {
	switch t.Kind() {
	case reflect.Array:
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(t.Len()))
		sb.WriteByte(']')
		describe(sb, t.Elem())
	case reflect.Struct:
		sb.WriteByte('{')
		for i := 0; i < t.NumField(); i++ {
			if i > 0 {
				sb.WriteByte(';')
			}
			sf := t.Field(i)
			sb.WriteString(strconv.FormatUint(uint64(sf.Offset), 10))
			sb.WriteByte(':')
			describe(sb, sf.Type)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(t.Kind().String())
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(t.Size()), 10))
	}
}

// PutFixed encodes the primitive held by v into b in little-endian order.
// b must hold at least FixedSize(v.Kind()) bytes.
func PutFixed(b []byte, v reflect.Value) {
	switch k := v.Kind(); k {
	case reflect.Bool:
		if v.Bool() {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case reflect.Int8:
		b[0] = byte(v.Int())
	case reflect.Uint8:
		b[0] = byte(v.Uint())
	case reflect.Int16:
		binary.LittleEndian.PutUint16(b, uint16(v.Int()))
	case reflect.Uint16:
		binary.LittleEndian.PutUint16(b, uint16(v.Uint()))
	case reflect.Int32:
		binary.LittleEndian.PutUint32(b, uint32(v.Int()))
	case reflect.Uint32:
		binary.LittleEndian.PutUint32(b, uint32(v.Uint()))
	case reflect.Int64:
		binary.LittleEndian.PutUint64(b, uint64(v.Int()))
	case reflect.Uint64:
		binary.LittleEndian.PutUint64(b, v.Uint())
	case reflect.Int:
		putWord(b, uint64(v.Int()), FixedSize(k))
	case reflect.Uint, reflect.Uintptr:
		putWord(b, v.Uint(), FixedSize(k))
	case reflect.Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.Float())))
	case reflect.Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.Float()))
	case reflect.Complex64:
		c := v.Complex()
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(real(c))))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(imag(c))))
	case reflect.Complex128:
		c := v.Complex()
		binary.LittleEndian.PutUint64(b, math.Float64bits(real(c)))
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(imag(c)))
	default:
		panic("common: not a fixed kind: " + k.String())
	}
}

// SetFixed decodes a little-endian primitive from b and sets dst.
func SetFixed(dst reflect.Value, b []byte) {
	switch k := dst.Kind(); k {
	case reflect.Bool:
		dst.SetBool(b[0] != 0)
	case reflect.Int8:
		dst.SetInt(int64(int8(b[0])))
	case reflect.Uint8:
		dst.SetUint(uint64(b[0]))
	case reflect.Int16:
		dst.SetInt(int64(int16(binary.LittleEndian.Uint16(b))))
	case reflect.Uint16:
		dst.SetUint(uint64(binary.LittleEndian.Uint16(b)))
	case reflect.Int32:
		dst.SetInt(int64(int32(binary.LittleEndian.Uint32(b))))
	case reflect.Uint32:
		dst.SetUint(uint64(binary.LittleEndian.Uint32(b)))
	case reflect.Int64:
		dst.SetInt(int64(binary.LittleEndian.Uint64(b)))
	case reflect.Uint64:
		dst.SetUint(binary.LittleEndian.Uint64(b))
	case reflect.Int:
		w := FixedSize(k)
		if w == 4 {
			dst.SetInt(int64(int32(binary.LittleEndian.Uint32(b))))
		} else {
			dst.SetInt(int64(binary.LittleEndian.Uint64(b)))
		}
	case reflect.Uint, reflect.Uintptr:
		dst.SetUint(getWord(b, FixedSize(k)))
	case reflect.Float32:
		dst.SetFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case reflect.Float64:
		dst.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case reflect.Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(b))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
		dst.SetComplex(complex(float64(re), float64(im)))
	case reflect.Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(b))
		im := math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
		dst.SetComplex(complex(re, im))
	default:
		panic("common: not a fixed kind: " + k.String())
	}
}

func putWord(b []byte, x uint64, width int) {
	if width == 4 {
		binary.LittleEndian.PutUint32(b, uint32(x))
		return
	}
	binary.LittleEndian.PutUint64(b, x)
}

func getWord(b []byte, width int) uint64 {
	if width == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

// BytesOf aliases the n bytes starting at p. The caller keeps p alive.
func BytesOf(p unsafe.Pointer, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// WriteVarUintTo appends varint-encoded x to dst using a small stack scratch.
func WriteVarUintTo(dst []byte, x uint64) []byte {
	var scratch [10]byte
	i := 0
	for x >= 0x80 {
		scratch[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	scratch[i] = byte(x)
	i++
	return append(dst, scratch[:i]...)
}

// ReadVarUint decodes a varint from b returning value and bytes consumed.
// A zero count means b ended before the varint did, or it overflowed.
func ReadVarUint(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, c := range b {
		if i == 10 {
			return 0, 0
		}
		x |= uint64(c&0x7F) << s
		if c&0x80 == 0 {
			return x, i + 1
		}
		s += 7
	}
	return 0, 0
}
