package gep

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAutoUpdaterPollsDueRegisters(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return append([]byte{statusOK}, encodeVarInt(5)...)
	})
	settings := DefaultConnectionSettings
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), settings, false)
	require.NoError(t, err)

	u := NewAutoUpdater(nil)
	u.AddRegister(r)

	u.runPass()

	_, valid := r.Value()
	require.True(t, valid, "expected runPass to poll the due register")
}

func TestAutoUpdaterReclaimsCollectedCollection(t *testing.T) {
	u := NewAutoUpdater(nil)

	func() {
		col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
			return []byte{statusOK}
		})
		settings := DefaultConnectionSettings
		_, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), settings, false)
		require.NoError(t, err)
		u.UseRegistryHints(col, HintSettings{IntervalMs: 1, TimeoutMs: 1000})
	}()

	// The collection and its register are now unreachable except through
	// the updater's weak pointer; no register of it is managed.
	for i := 0; i < 5 && len(u.states) > 0; i++ {
		runtime.GC()
		u.runPass()
	}

	require.Empty(t, u.states, "expected AutoUpdater to reclaim the collected collection")
}

func TestAutoUpdaterRemoveAllRegistersStopsUpdates(t *testing.T) {
	var polls int
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		polls++
		return append([]byte{statusOK}, encodeVarInt(1)...)
	})
	settings := DefaultConnectionSettings
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), settings, false)
	require.NoError(t, err)

	u := NewAutoUpdater(nil)
	u.AddRegister(r)
	u.runPass()
	require.Equal(t, 1, polls)

	u.RemoveAllRegisters()
	require.Empty(t, u.Registers())

	u.runPass()
	require.Equal(t, 1, polls, "expected no updateValue() calls for removed registers")
}

func TestAutoUpdaterRemoveRegisterIsImmediate(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return []byte{statusOK}
	})
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), DefaultConnectionSettings, false)
	require.NoError(t, err)

	u := NewAutoUpdater(nil)
	u.AddRegister(r)
	u.RemoveRegister(r)

	require.Empty(t, u.Registers())
	require.Empty(t, u.states)
}

func TestAutoUpdaterUseRegistryHintsIsIndependentOfRegistration(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return append([]byte{statusOK}, encodeVarInt(-1)...)
	})

	u := NewAutoUpdater(nil)
	u.UseRegistryHints(col, HintSettings{IntervalMs: 1, TimeoutMs: 1000})

	// A hint subscription with no managed registers keeps the collection's
	// state around, but runPass never issues a probe for it.
	require.Len(t, u.states, 1)
	u.runPass()

	u.DisableRegistryHints(col)
	require.Empty(t, u.states)
}

func TestAutoUpdaterStartStop(t *testing.T) {
	col := newTestCollection(t, func(destID byte, payload []byte, tag uint16) []byte {
		return append([]byte{statusOK}, encodeVarInt(1)...)
	})
	settings := DefaultConnectionSettings
	r, err := col.AddRegister(1, NewNumberCodec(1, 0, 0), settings, false)
	require.NoError(t, err)

	u := NewAutoUpdater(nil)
	u.AddRegister(r)
	u.Start()
	defer u.Stop(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, valid := r.Value(); valid {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the background goroutine to poll the register within the deadline")
}
