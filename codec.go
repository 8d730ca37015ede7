package gep

import "reflect"

// Codec transforms values between a remote register's wire representation
// and a local, typed value. A Codec is either an IntCodec or a BinaryCodec;
// which one determines whether a Register issues integer or binary reads
// and writes. Codecs are immutable after construction and may be shared
// across any number of registers without synchronization.
type Codec interface {
	// ValueType describes the kind of value the codec produces and accepts.
	ValueType() reflect.Type
}

// IntCodec decodes and encodes registers whose wire representation is a
// signed 32-bit integer.
type IntCodec interface {
	Codec

	// DecodeInt converts a wire value to a local value. DecodeInt must
	// never return (nil, true); a rejected value is reported through ok.
	DecodeInt(wire int32) (local any, ok bool)

	// EncodeInt converts a local value to a wire value. EncodeInt reports
	// ok=false if local cannot be represented on the wire.
	EncodeInt(local any) (wire int32, ok bool)
}

// BinaryCodec decodes and encodes registers whose wire representation is an
// arbitrary byte sequence.
type BinaryCodec interface {
	Codec

	// DecodeBinary converts a wire value to a local value. DecodeBinary
	// must never return (nil, true); a rejected value is reported through
	// ok.
	DecodeBinary(wire []byte) (local any, ok bool)

	// EncodeBinary converts a local value to a wire value. EncodeBinary
	// reports ok=false if local cannot be represented on the wire.
	EncodeBinary(local any) (wire []byte, ok bool)
}
