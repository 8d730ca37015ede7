package gep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeMessenger is an in-memory Messenger double. handle computes the
// response payload for one sent request; the response is delivered back
// through the installed listener as if it arrived asynchronously.
type fakeMessenger struct {
	mu       sync.Mutex
	running  bool
	listener MessageListener
	handle   func(destID byte, payload []byte, tag uint16) []byte
	dropNext bool
}

func (f *fakeMessenger) Start() error {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) Stop(block bool) error {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeMessenger) SetListener(listener MessageListener) {
	f.mu.Lock()
	f.listener = listener
	f.mu.Unlock()
}

func (f *fakeMessenger) Send(destID byte, payload []byte, tag uint16) error {
	f.mu.Lock()
	drop := f.dropNext
	f.dropNext = false
	handle := f.handle
	listener := f.listener
	f.mu.Unlock()

	if drop {
		return nil
	}
	resp := handle(destID, payload, tag)
	go listener(tag, resp)
	return nil
}

func TestGatewayReadIntRoundTrip(t *testing.T) {
	fm := &fakeMessenger{handle: func(destID byte, payload []byte, tag uint16) []byte {
		return append([]byte{statusOK}, encodeVarInt(42)...)
	}}
	g := NewGateway(fm, nil)
	require.NoError(t, g.Start())
	defer g.Stop(true)

	value, err := g.ReadInt(context.Background(), 0, 7)
	require.NoError(t, err)
	require.Equal(t, int32(42), value)
}

func TestGatewayRequestFailedStatus(t *testing.T) {
	fm := &fakeMessenger{handle: func(destID byte, payload []byte, tag uint16) []byte {
		return []byte{statusFailed}
	}}
	g := NewGateway(fm, nil)
	g.Start()
	defer g.Stop(true)

	_, err := g.ReadInt(context.Background(), 0, 7)
	require.ErrorIs(t, err, ErrRequestFailed)
}

func TestGatewayWriteUnwritable(t *testing.T) {
	fm := &fakeMessenger{handle: func(destID byte, payload []byte, tag uint16) []byte {
		return []byte{statusUnwritable}
	}}
	g := NewGateway(fm, nil)
	g.Start()
	defer g.Stop(true)

	err := g.WriteInt(context.Background(), 0, 7, 1)
	require.ErrorIs(t, err, ErrUnwritableRegister)
}

func TestGatewayTagsIncrementAndWrap(t *testing.T) {
	var seenTags []uint16
	var mu sync.Mutex
	fm := &fakeMessenger{handle: func(destID byte, payload []byte, tag uint16) []byte {
		mu.Lock()
		seenTags = append(seenTags, tag)
		mu.Unlock()
		return append([]byte{statusOK}, encodeVarInt(1)...)
	}}
	g := NewGateway(fm, nil)
	g.Start()
	defer g.Stop(true)

	for i := 0; i < tagSpace+5; i++ {
		_, err := g.ReadInt(context.Background(), 0, 1)
		require.NoErrorf(t, err, "ReadInt #%d", i)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equalf(t, (seenTags[0]+1)%tagSpace, seenTags[1], "expected consecutive requests to use consecutive tags, got sequence %v", seenTags[:6])
	require.Equalf(t, seenTags[0], seenTags[tagSpace], "expected tag counter to wrap at %d, got sequence %v", tagSpace, seenTags[:6])
}

func TestGatewayNoResponseTimesOut(t *testing.T) {
	fm := &fakeMessenger{dropNext: true, handle: func(destID byte, payload []byte, tag uint16) []byte {
		return nil
	}}
	g := NewGateway(fm, nil)
	g.Start()
	defer g.Stop(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.ReadInt(ctx, 0, 1)
	require.ErrorIs(t, err, ErrNoResponse)
}

func TestGatewayContextCanceledInterrupts(t *testing.T) {
	fm := &fakeMessenger{dropNext: true, handle: func(destID byte, payload []byte, tag uint16) []byte {
		return nil
	}}
	g := NewGateway(fm, nil)
	g.Start()
	defer g.Stop(true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := g.ReadInt(ctx, 0, 1)
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestGatewayNotRunning(t *testing.T) {
	fm := &fakeMessenger{handle: func(destID byte, payload []byte, tag uint16) []byte { return nil }}
	g := NewGateway(fm, nil)

	_, err := g.ReadInt(context.Background(), 0, 1)
	require.ErrorIs(t, err, ErrNotRunning)
}
