package gep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCollection(t *testing.T, handle func(destID byte, payload []byte, tag uint16) []byte) *RegisterCollection {
	t.Helper()
	fm := &fakeMessenger{handle: handle}
	g := NewGateway(fm, nil)
	require.NoError(t, g.Start())
	t.Cleanup(func() { g.Stop(true) })

	col, err := NewRegisterCollection(g, 0)
	require.NoError(t, err)
	return col
}

func TestRegisterUpdateValueSuccess(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return append([]byte{statusOK}, encodeVarInt(21)...)
	})
	r, err := col.AddRegister(1, NewNumberCodec(2, 0, 0), DefaultConnectionSettings, false)
	require.NoError(t, err)

	require.NoError(t, r.UpdateValue(context.Background()))
	value, valid := r.Value()
	require.True(t, valid, "expected value to be valid after a successful update")
	require.Equal(t, int64(42), value)
}

func TestRegisterUpdateValueInvalidatesAfterRepeatedFailures(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return []byte{statusFailed}
	})
	settings := DefaultConnectionSettings
	settings.AttemptsToPromoteReadFail = 2

	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), settings, false)
	require.NoError(t, err)

	r.UpdateValue(context.Background())
	r.UpdateValue(context.Background())
	_, valid := r.Value()
	require.False(t, valid, "expected value to be invalidated after AttemptsToPromoteReadFail failures")
}

func TestRegisterSetValueReadOnlyRejected(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return []byte{statusOK}
	})
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), DefaultConnectionSettings, true)
	require.NoError(t, err)

	err = r.SetValue(context.Background(), int64(5))
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestRegisterSetValueUpdatesCache(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		if payload[0] == opWriteInt {
			return []byte{statusOK}
		}
		return append([]byte{statusOK}, encodeVarInt(9)...)
	})
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), DefaultConnectionSettings, false)
	require.NoError(t, err)

	require.NoError(t, r.SetValue(context.Background(), int64(9)))
	value, valid := r.Value()
	require.True(t, valid)
	require.Equal(t, int64(9), value)
}

func TestRegisterSetValueRefreshesFromActualDeviceValue(t *testing.T) {
	// The device may coerce or clamp a written value; SetValue's recovery
	// read must reflect what the device actually stored, not the caller's
	// input.
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		if payload[0] == opWriteInt {
			return []byte{statusOK}
		}
		return append([]byte{statusOK}, encodeVarInt(7)...)
	})
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), DefaultConnectionSettings, false)
	require.NoError(t, err)

	var lastNotified any
	r.SetChangeListener(func(reg *Register, value any) { lastNotified = value })

	require.NoError(t, r.SetValue(context.Background(), int64(9)))
	value, valid := r.Value()
	require.True(t, valid)
	require.Equal(t, int64(7), value)
	require.Equal(t, int64(7), lastNotified)
}

func TestRegisterChangeListenerFiresOnChange(t *testing.T) {
	responses := []int32{1, 1, 2}
	i := 0
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		v := responses[i]
		if i < len(responses)-1 {
			i++
		}
		return append([]byte{statusOK}, encodeVarInt(v)...)
	})
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), DefaultConnectionSettings, false)
	require.NoError(t, err)

	var notifications int
	r.SetChangeListener(func(reg *Register, value any) {
		notifications++
	})

	r.UpdateValue(context.Background())
	r.UpdateValue(context.Background())
	r.UpdateValue(context.Background())

	require.Equal(t, 2, notifications, "want initial value + the one real change")
}
