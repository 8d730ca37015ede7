package gep

import (
	"math"
	"reflect"
)

// NumberCodec transforms a scaled, optionally fractional local number to
// and from a remote integer register: local = round(scale*wire+shift,
// decimals). With decimals == 0 the local value type is int64; otherwise it
// is float64.
type NumberCodec struct {
	scale         float64
	shift         float64
	decimals      int
	decimalsPower float64
}

// NewNumberCodec constructs a NumberCodec. decimals is clamped to [0, 4].
func NewNumberCodec(scale, shift float64, decimals int) *NumberCodec {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 4 {
		decimals = 4
	}
	power := 1.0
	for i := 0; i < decimals; i++ {
		power *= 10
	}
	return &NumberCodec{scale: scale, shift: shift, decimals: decimals, decimalsPower: power}
}

// Scale returns the multiplication constant applied to the wire value.
func (c *NumberCodec) Scale() float64 { return c.scale }

// Shift returns the additive constant applied after scaling.
func (c *NumberCodec) Shift() float64 { return c.shift }

// Decimals returns the number of decimal digits retained after the point.
func (c *NumberCodec) Decimals() int { return c.decimals }

// ValueType implements Codec.
func (c *NumberCodec) ValueType() reflect.Type {
	if c.decimals == 0 {
		return reflect.TypeOf(int64(0))
	}
	return reflect.TypeOf(float64(0))
}

// DecodeInt implements IntCodec.
func (c *NumberCodec) DecodeInt(wire int32) (any, bool) {
	filtered := float64(wire)*c.scale + c.shift
	if c.decimals == 0 {
		return int64(math.Round(filtered)), true
	}
	return math.Round(filtered*c.decimalsPower) / c.decimalsPower, true
}

// EncodeInt implements IntCodec.
func (c *NumberCodec) EncodeInt(local any) (int32, bool) {
	f, ok := toFloat64(local)
	if !ok {
		return 0, false
	}
	return int32(math.Round((f - c.shift) / c.scale)), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
