package gep

import "reflect"

// booleanCodec transforms a boolean local value to and from a remote
// integer register: any positive wire value decodes to true.
type booleanCodec struct{}

// BooleanCodec is the shared boolean IntCodec instance. It is stateless and
// safe to use from any number of registers concurrently.
var BooleanCodec IntCodec = booleanCodec{}

func (booleanCodec) ValueType() reflect.Type {
	return reflect.TypeOf(false)
}

func (booleanCodec) DecodeInt(wire int32) (any, bool) {
	return wire > 0, true
}

func (booleanCodec) EncodeInt(local any) (int32, bool) {
	b, ok := local.(bool)
	if !ok {
		return 0, false
	}
	if b {
		return 1, true
	}
	return 0, true
}
