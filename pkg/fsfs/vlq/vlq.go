// Package vlq implements the 7-bits-per-byte variable-length integer
// encoding shared by the L2P and P2L indexes: the continuation bit is
// the MSB of each byte, and signed values are zig-zag encoded first.
package vlq

import "github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"

// MaxLen is the largest number of bytes a 64-bit VLQ can occupy.
const MaxLen = 10

// AppendUint appends the VLQ encoding of v to buf and returns the
// extended slice.
func AppendUint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// AppendInt zig-zag encodes v and appends its VLQ encoding to buf.
func AppendInt(buf []byte, v int64) []byte {
	return AppendUint(buf, zigzagEncode(v))
}

// DecodeUint reads a VLQ-encoded unsigned integer from the front of
// buf, returning the value and the number of bytes consumed.
func DecodeUint(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < MaxLen && i < len(buf); i++ {
		b := buf[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, fsfserr.MalformedIndex("truncated or oversized vlq")
}

// DecodeInt reads a zig-zag VLQ-encoded signed integer.
func DecodeInt(buf []byte) (int64, int, error) {
	u, n, err := DecodeUint(buf)
	if err != nil {
		return 0, 0, err
	}
	return zigzagDecode(u), n, nil
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// Reader decodes a sequence of VLQ values from an in-memory buffer,
// tracking position. It is the decode-side counterpart used by pages
// and blocks that hold many back-to-back VLQ values.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential VLQ decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Pos returns the current byte offset within the wrapped buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Uint decodes the next unsigned VLQ value.
func (r *Reader) Uint() (uint64, error) {
	v, n, err := DecodeUint(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// Int decodes the next signed (zig-zag) VLQ value.
func (r *Reader) Int() (int64, error) {
	v, n, err := DecodeInt(r.buf[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// Bytes reads n raw bytes, with no VLQ interpretation.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fsfserr.MalformedIndex("short read")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
