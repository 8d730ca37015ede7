package gep

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNumberCodecIntegerRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		codec := NewNumberCodec(1, 0, 0)
		wire := rapid.Int32().Draw(t, "wire")

		local, ok := codec.DecodeInt(wire)
		if !ok {
			t.Fatalf("DecodeInt rejected %d", wire)
		}
		back, ok := codec.EncodeInt(local)
		if !ok {
			t.Fatalf("EncodeInt rejected %v", local)
		}
		if back != wire {
			t.Fatalf("round trip mismatch: got %d, want %d", back, wire)
		}
	})
}

func TestNumberCodecDecimalsClamped(t *testing.T) {
	if c := NewNumberCodec(1, 0, -3); c.Decimals() != 0 {
		t.Fatalf("negative decimals should clamp to 0, got %d", c.Decimals())
	}
	if c := NewNumberCodec(1, 0, 9); c.Decimals() != 4 {
		t.Fatalf("large decimals should clamp to 4, got %d", c.Decimals())
	}
}

func TestNumberCodecScaleAndShift(t *testing.T) {
	codec := NewNumberCodec(0.1, 5, 1)
	local, ok := codec.DecodeInt(20)
	if !ok {
		t.Fatal("DecodeInt rejected 20")
	}
	// 0.1*20 + 5 = 7.0
	if local.(float64) != 7.0 {
		t.Fatalf("got %v, want 7.0", local)
	}
}

func TestNumberCodecValueType(t *testing.T) {
	if NewNumberCodec(1, 0, 0).ValueType().Kind().String() != "int64" {
		t.Fatal("decimals=0 codec should report int64 value type")
	}
	if NewNumberCodec(1, 0, 2).ValueType().Kind().String() != "float64" {
		t.Fatal("decimals>0 codec should report float64 value type")
	}
}
