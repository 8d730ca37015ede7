package gep

import (
	"fmt"
	"math"
)

// ErrInvalidMessage reports a malformed message: a variable-length integer
// that cannot be decoded (bad offset, truncated, or outside the int32
// range), an empty response, or a frame that fails the messenger's length
// or checksum checks.
type ErrInvalidMessage struct {
	reason string
}

func (e *ErrInvalidMessage) Error() string {
	return "gep: invalid message: " + e.reason
}

// encodeVarInt encodes value using the wire's signed variable-length
// integer format, most significant bits first: the low 6 bits of the first
// byte carry the highest magnitude bits, bit 6 is the sign, bit 7 marks
// continuation (more bytes follow, each contributing the next 7 magnitude
// bits; the last byte has bit 7 clear). A value below 64 fits in the first
// byte alone. math.MinInt32 has no positive counterpart and is special-cased to
// the single byte 0x40 (sign set, magnitude zero, terminator).
func encodeVarInt(value int32) []byte {
	if value == -1<<31 {
		return []byte{0x40}
	}

	negative := value < 0
	magnitude := uint32(value)
	if negative {
		magnitude = uint32(-value)
	}

	var buf [5]uint32
	n := 0
	for magnitude > 63 {
		buf[n] = magnitude % 128
		magnitude /= 128
		n++
	}
	buf[n] = magnitude
	n++

	if negative {
		buf[n-1] |= 0x40
	}

	result := make([]byte, n)
	for i, j := n-1, 0; i > 0; i, j = i-1, j+1 {
		result[j] = byte(buf[i] | 0x80)
	}
	result[n-1] = byte(buf[0])
	return result
}

// decodeVarInt decodes a variable-length integer starting at offset in data
// and returns the value together with the number of bytes consumed.
func decodeVarInt(data []byte, offset int) (int32, int, error) {
	if offset < 0 || offset >= len(data) {
		return 0, 0, &ErrInvalidMessage{reason: "offset out of range"}
	}

	start := offset
	b := data[offset]
	negative := b&0x40 != 0
	continuation := b&0x80 != 0
	result := int64(b & 0x3F)

	if !continuation && negative && result == 0 {
		return -1 << 31, 1, nil
	}

	for continuation {
		offset++
		if offset >= len(data) {
			return 0, 0, &ErrInvalidMessage{reason: "truncated variable-length integer"}
		}
		b = data[offset]
		result = result*128 + int64(b&0x7F)
		continuation = b&0x80 != 0
	}

	if negative {
		result = -result
	}
	if result < math.MinInt32 || result > math.MaxInt32 {
		return 0, 0, &ErrInvalidMessage{reason: fmt.Sprintf("decoded value %d out of int32 range", result)}
	}
	return int32(result), offset - start + 1, nil
}
