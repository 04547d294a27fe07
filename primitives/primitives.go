// Package primitives implements the byte-level codec shared by the row and
// SSTable formats: LEB128 varints, zig-zag signed varints, little-endian
// fixed-width integers, and length-prefixed UTF-8 strings.
//
// Encoding writes to a Sink (satisfied by *pool.ByteBuffer; bytes.Buffer
// does not implement it); decoding reads from a byte slice through a cursor offset the
// caller owns, matching the style of the SSTable reader which decodes
// directly out of an mmap-ed slice without copying.
package primitives

import (
	"fmt"

	"github.com/hugetable/hugetable/errs"
	"github.com/hugetable/hugetable/internal/endian"
)

// Sink is anything varint/fixed/string encoding can append bytes to. It is
// satisfied by *pool.ByteBuffer.
type Sink interface {
	MustWrite(data []byte)
	MustWriteByte(b byte)
}

// maxVarintLen64 bounds how many continuation bytes a well-formed varint can
// carry; decoding past it means the buffer is corrupt rather than merely
// large.
const maxVarintLen64 = 10

// EncodeVarintU64 writes value as an unsigned LEB128 varint.
func EncodeVarintU64(dst Sink, value uint64) {
	for value >= 0x80 {
		dst.MustWriteByte(byte(value) | 0x80)
		value >>= 7
	}
	dst.MustWriteByte(byte(value))
}

// EncodeVarintU32 writes value as an unsigned LEB128 varint.
func EncodeVarintU32(dst Sink, value uint32) {
	EncodeVarintU64(dst, uint64(value))
}

// EncodeVarintLen writes a non-negative length (a column count, a string
// byte length) as an unsigned LEB128 varint.
func EncodeVarintLen(dst Sink, n int) {
	EncodeVarintU64(dst, uint64(n))
}

// EncodeZigzagI64 writes a signed value as a zig-zag-encoded varint, so
// small-magnitude negative values cost as few bytes as small positives.
func EncodeZigzagI64(dst Sink, value int64) {
	EncodeVarintU64(dst, uint64(value)<<1^uint64(value>>63))
}

// EncodeZigzagI32 writes a signed value as a zig-zag-encoded varint.
func EncodeZigzagI32(dst Sink, value int32) {
	EncodeVarintU32(dst, uint32(value)<<1^uint32(value>>31))
}

// EncodeFixedU32 writes value as 4 little-endian bytes.
func EncodeFixedU32(dst Sink, value uint32) {
	var buf [4]byte
	endian.LittleEndian.PutUint32(buf[:], value)
	dst.MustWrite(buf[:])
}

// EncodeFixedU64 writes value as 8 little-endian bytes.
func EncodeFixedU64(dst Sink, value uint64) {
	var buf [8]byte
	endian.LittleEndian.PutUint64(buf[:], value)
	dst.MustWrite(buf[:])
}

// EncodeBool writes value as a single byte, 1 for true and 0 for false.
func EncodeBool(dst Sink, value bool) {
	if value {
		dst.MustWriteByte(1)
		return
	}
	dst.MustWriteByte(0)
}

// EncodeUTF8 writes value as a varint byte length followed by its raw UTF-8
// bytes.
func EncodeUTF8(dst Sink, value string) {
	EncodeVarintLen(dst, len(value))
	dst.MustWrite([]byte(value))
}

// DecodeVarintU64 reads an unsigned LEB128 varint starting at *offs,
// advancing *offs past it.
func DecodeVarintU64(buf []byte, offs *int) (uint64, error) {
	var result uint64
	var shift uint

	for i := 0; i < maxVarintLen64; i++ {
		if *offs >= len(buf) {
			return 0, fmt.Errorf("%w: varint truncated at offset %d", errs.ErrFileIntegrity, *offs)
		}

		next := buf[*offs]
		*offs++

		result |= uint64(next&0x7F) << shift
		if next&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}

	return 0, fmt.Errorf("%w: varint too long at offset %d", errs.ErrFileIntegrity, *offs)
}

// DecodeVarintU32 reads an unsigned LEB128 varint and narrows it to 32 bits.
func DecodeVarintU32(buf []byte, offs *int) (uint32, error) {
	v, err := DecodeVarintU64(buf, offs)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: varint overflows 32 bits at offset %d", errs.ErrFileIntegrity, *offs)
	}

	return uint32(v), nil
}

// DecodeVarintLen reads a varint-encoded length and returns it as an int.
func DecodeVarintLen(buf []byte, offs *int) (int, error) {
	v, err := DecodeVarintU64(buf, offs)
	if err != nil {
		return 0, err
	}

	return int(v), nil
}

// DecodeZigzagI64 reads a zig-zag-encoded signed varint.
func DecodeZigzagI64(buf []byte, offs *int) (int64, error) {
	raw, err := DecodeVarintU64(buf, offs)
	if err != nil {
		return 0, err
	}

	return int64(raw>>1) ^ -int64(raw&1), nil
}

// DecodeZigzagI32 reads a zig-zag-encoded signed varint.
func DecodeZigzagI32(buf []byte, offs *int) (int32, error) {
	raw, err := DecodeVarintU32(buf, offs)
	if err != nil {
		return 0, err
	}

	return int32(raw>>1) ^ -int32(raw&1), nil
}

// DecodeFixedU32 reads 4 little-endian bytes starting at *offs.
func DecodeFixedU32(buf []byte, offs *int) (uint32, error) {
	if *offs+4 > len(buf) {
		return 0, fmt.Errorf("%w: fixed u32 truncated at offset %d", errs.ErrFileIntegrity, *offs)
	}
	v := endian.LittleEndian.Uint32(buf[*offs:])
	*offs += 4

	return v, nil
}

// DecodeFixedU64 reads 8 little-endian bytes starting at *offs.
func DecodeFixedU64(buf []byte, offs *int) (uint64, error) {
	if *offs+8 > len(buf) {
		return 0, fmt.Errorf("%w: fixed u64 truncated at offset %d", errs.ErrFileIntegrity, *offs)
	}
	v := endian.LittleEndian.Uint64(buf[*offs:])
	*offs += 8

	return v, nil
}

// DecodeBool reads a single bool byte. Any nonzero byte decodes as true.
func DecodeBool(buf []byte, offs *int) (bool, error) {
	if *offs >= len(buf) {
		return false, fmt.Errorf("%w: bool truncated at offset %d", errs.ErrFileIntegrity, *offs)
	}
	v := buf[*offs] != 0
	*offs++

	return v, nil
}

// DecodeUTF8 reads a varint byte length followed by that many UTF-8 bytes.
func DecodeUTF8(buf []byte, offs *int) (string, error) {
	n, err := DecodeVarintLen(buf, offs)
	if err != nil {
		return "", err
	}
	if n < 0 || *offs+n > len(buf) {
		return "", fmt.Errorf("%w: utf8 string truncated at offset %d", errs.ErrFileIntegrity, *offs)
	}
	s := string(buf[*offs : *offs+n])
	*offs += n

	return s, nil
}
