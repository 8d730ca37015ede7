package gep

import (
	"encoding/hex"
	"reflect"
	"strings"
)

// HexBinaryCodec transforms a hexadecimal string to and from a remote
// binary register. When spaces is set, decoded strings separate each byte
// with a space; encoding always tolerates spaces regardless of the
// setting.
type HexBinaryCodec struct {
	minLength int
	maxLength int
	spaces    bool
}

// NewHexBinaryCodec constructs a HexBinaryCodec whose EncodeBinary accepts
// byte sequences whose length lies in [minLength, maxLength]; a maxLength
// of zero or less sets no upper bound. DecodeBinary does not check length.
func NewHexBinaryCodec(minLength, maxLength int, spaces bool) *HexBinaryCodec {
	return &HexBinaryCodec{minLength: minLength, maxLength: maxLength, spaces: spaces}
}

// MinLength returns the minimum accepted byte-sequence length.
func (c *HexBinaryCodec) MinLength() int { return c.minLength }

// MaxLength returns the maximum accepted byte-sequence length.
func (c *HexBinaryCodec) MaxLength() int { return c.maxLength }

// ValueType implements Codec.
func (c *HexBinaryCodec) ValueType() reflect.Type {
	return reflect.TypeOf("")
}

// DecodeBinary implements BinaryCodec. The result renders each byte as two
// lowercase hex digits, separated by single spaces when spaces is set.
func (c *HexBinaryCodec) DecodeBinary(wire []byte) (any, bool) {
	if !c.spaces {
		return hex.EncodeToString(wire), true
	}
	var sb strings.Builder
	for i, b := range wire {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String(), true
}

// EncodeBinary implements BinaryCodec. Spaces are stripped before decoding;
// an odd number of remaining hex digits is rejected.
func (c *HexBinaryCodec) EncodeBinary(local any) ([]byte, bool) {
	s, ok := local.(string)
	if !ok {
		return nil, false
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if len(s)%2 != 0 {
		return nil, false
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if len(decoded) < c.minLength || (c.maxLength > 0 && len(decoded) > c.maxLength) {
		return nil, false
	}
	return decoded, true
}
