// Package layout implements the fixed binary encoding of ledger records.
//
// A record is an 8-byte discriminator (the record tag) followed by its fields
// in declared order. All multi-byte integers are little-endian. 64-bit values
// are stored as two 32-bit halves, low word first; the high word of a signed
// value is sign-extended on decode. Strings carry a 4-byte little-endian
// length prefix and must be valid UTF-8.
//
// Record types declare an ordered field list (a Layout) consumed by one
// generic encode/decode pair, so adding a field never requires touching
// offset arithmetic.
package layout

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"unicode/utf8"
)

// TagLen is the byte length of a record discriminator.
const TagLen = 8

// Tag derives a record discriminator from the record type name: the first 8
// bytes of SHA-256("account:<name>"). The tag is a protocol compatibility
// seam; changing a name is a breaking format change.
func Tag(name string) [TagLen]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var t [TagLen]byte
	copy(t[:], sum[:TagLen])
	return t
}

// Kind identifies a field's wire type.
type Kind int

const (
	// U8 is a single unsigned byte.
	U8 Kind = iota
	// Bool is a single byte, 0 or 1.
	Bool
	// U32 is a little-endian unsigned 32-bit integer.
	U32
	// U64 is an unsigned 64-bit integer stored as two 32-bit halves.
	U64
	// I64 is a signed 64-bit integer stored as two 32-bit halves.
	I64
	// Addr is a 32-byte address.
	Addr
	// Str is a 4-byte little-endian length prefix followed by UTF-8 bytes.
	Str
)

// Field is one entry in a record layout.
type Field struct {
	Name string
	Kind Kind
}

// Layout describes a record type: its discriminator and ordered fields.
type Layout struct {
	Tag    [TagLen]byte
	Fields []Field
}

// Decode errors, per record. A scanner skips records that fail to decode; it
// never aborts the batch.
var (
	// ErrBadTag means the leading 8 bytes do not match the expected
	// discriminator for the target type.
	ErrBadTag = errors.New("record tag mismatch")

	// ErrTruncated means the buffer ended before a declared field, including
	// a string whose length prefix exceeds the remaining bytes.
	ErrTruncated = errors.New("record truncated")

	// ErrInvalidText means a text field holds invalid UTF-8.
	ErrInvalidText = errors.New("invalid UTF-8 in text field")
)

// Values holds field values keyed by field name. The concrete types per kind:
// U8 -> uint8, Bool -> bool, U32 -> uint32, U64 -> uint64, I64 -> int64,
// Addr -> [32]byte, Str -> string.
type Values map[string]any

// Encode serializes values according to the layout. Every declared field must
// be present with its expected type; a mismatch is a programming error and is
// reported, not panicked on.
func Encode(l Layout, v Values) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(l.Tag[:])

	for _, f := range l.Fields {
		raw, ok := v[f.Name]
		if !ok {
			return nil, fmt.Errorf("encode: missing field %q", f.Name)
		}
		if err := encodeField(&buf, f, raw); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeField(buf *bytes.Buffer, f Field, raw any) error {
	switch f.Kind {
	case U8:
		u, ok := raw.(uint8)
		if !ok {
			return typeError(f, raw)
		}
		buf.WriteByte(u)
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return typeError(f, raw)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case U32:
		u, ok := raw.(uint32)
		if !ok {
			return typeError(f, raw)
		}
		putU32(buf, u)
	case U64:
		u, ok := raw.(uint64)
		if !ok {
			return typeError(f, raw)
		}
		putU32(buf, uint32(u))
		putU32(buf, uint32(u>>32))
	case I64:
		i, ok := raw.(int64)
		if !ok {
			return typeError(f, raw)
		}
		u := uint64(i)
		putU32(buf, uint32(u))
		putU32(buf, uint32(u>>32))
	case Addr:
		a, ok := raw.([32]byte)
		if !ok {
			return typeError(f, raw)
		}
		buf.Write(a[:])
	case Str:
		s, ok := raw.(string)
		if !ok {
			return typeError(f, raw)
		}
		putU32(buf, uint32(len(s)))
		buf.WriteString(s)
	default:
		return fmt.Errorf("encode: field %q has unknown kind %d", f.Name, f.Kind)
	}
	return nil
}

func typeError(f Field, raw any) error {
	return fmt.Errorf("encode: field %q holds %T, want kind %d", f.Name, raw, f.Kind)
}

func putU32(buf *bytes.Buffer, u uint32) {
	buf.WriteByte(byte(u))
	buf.WriteByte(byte(u >> 8))
	buf.WriteByte(byte(u >> 16))
	buf.WriteByte(byte(u >> 24))
}

// Decode parses data according to the layout. The leading tag must match
// exactly; every declared field must fit in the remaining bytes.
func Decode(l Layout, data []byte) (Values, error) {
	if len(data) < TagLen {
		return nil, fmt.Errorf("%w: %d bytes, need %d for tag", ErrTruncated, len(data), TagLen)
	}
	if !bytes.Equal(data[:TagLen], l.Tag[:]) {
		return nil, ErrBadTag
	}

	r := &reader{data: data, off: TagLen}
	v := make(Values, len(l.Fields))
	for _, f := range l.Fields {
		val, err := decodeField(r, f)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		v[f.Name] = val
	}
	return v, nil
}

func decodeField(r *reader, f Field) (any, error) {
	switch f.Kind {
	case U8:
		return r.u8()
	case Bool:
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case U32:
		return r.u32()
	case U64:
		return r.u64()
	case I64:
		return r.i64()
	case Addr:
		raw, err := r.take(32)
		if err != nil {
			return nil, err
		}
		var a [32]byte
		copy(a[:], raw)
		return a, nil
	case Str:
		return r.str()
	default:
		return nil, fmt.Errorf("unknown kind %d", f.Kind)
	}
}

// reader walks the buffer sequentially, reporting ErrTruncated on overrun.
type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) ([]byte, error) {
	if len(r.data)-r.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, r.off, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// u64 reconstructs an unsigned 64-bit value from two little-endian 32-bit
// halves, low word first: high*2^32 + low.
func (r *reader) u64() (uint64, error) {
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	hi, err := r.u32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// i64 is u64 with the high word sign-extended.
func (r *reader) i64() (int64, error) {
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	hi, err := r.u32()
	if err != nil {
		return 0, err
	}
	return int64(int32(hi))*(1<<32) + int64(lo), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidText
	}
	return string(b), nil
}
