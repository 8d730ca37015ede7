package gep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	opReadInt      = 0x01
	opWriteInt     = 0x02
	opReadBinary   = 0x03
	opWriteBinary  = 0x04
	opGetChangeHint = 0x05

	statusFailed     = 0x00
	statusOK         = 0x01
	statusUnwritable = 0x02

	// tagSpace is the modulus of the request tag counter. Tags repeat
	// every tagSpace requests, so a stale reply to an earlier, timed-out
	// request is accepted if its tag equals the tag now awaited.
	tagSpace = 1000
)

// Gateway is the single request/response engine multiplexed over one
// Messenger. Only one request may be in flight at a time; a coarse lock
// spans the full round trip (send, wait, decode) so that concurrent callers
// queue rather than race for the messenger's single reply channel. A finer
// lock guards only the pending tag and the arriving response, and is where
// sendReceive actually blocks via a condition variable while the coarse
// lock is held for the whole cycle.
type Gateway struct {
	messenger Messenger
	logger    *slog.Logger

	// serialOrder is held for the entire duration of one request, forcing
	// callers to queue in FIFO-ish order rather than race the messenger.
	serialOrder sync.Mutex

	// pending guards tag/response state shared with the messenger's
	// receive goroutine.
	pending    sync.Mutex
	cond       *sync.Cond
	awaiting   bool
	awaitedTag uint16
	response   []byte
	responded  bool

	tagMu      sync.Mutex
	tagCounter uint16
}

// NewGateway constructs a Gateway driving requests over messenger.
// messenger must not have a listener installed yet; NewGateway installs its
// own.
func NewGateway(messenger Messenger, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{messenger: messenger, logger: logger}
	g.cond = sync.NewCond(&g.pending)
	messenger.SetListener(g.handleMessage)
	return g
}

// Start starts the underlying messenger.
func (g *Gateway) Start() error {
	return g.messenger.Start()
}

// Stop stops the underlying messenger and releases any caller blocked in
// sendReceive, which then fails with ErrNoResponse.
func (g *Gateway) Stop(block bool) error {
	err := g.messenger.Stop(block)
	g.pending.Lock()
	if g.awaiting {
		g.responded = true
		g.response = nil
		g.cond.Broadcast()
	}
	g.pending.Unlock()
	return err
}

func (g *Gateway) nextTag() uint16 {
	g.tagMu.Lock()
	defer g.tagMu.Unlock()
	tag := g.tagCounter
	g.tagCounter = (g.tagCounter + 1) % tagSpace
	return tag
}

// sendReceive sends payload to destID and waits for the matching reply, or
// for ctx to be canceled, whichever comes first. Exactly one request is in
// flight on this Gateway at any time.
func (g *Gateway) sendReceive(ctx context.Context, destID byte, payload []byte) ([]byte, error) {
	if !g.messenger.IsRunning() {
		return nil, ErrNotRunning
	}

	g.serialOrder.Lock()
	defer g.serialOrder.Unlock()

	tag := g.nextTag()

	g.pending.Lock()
	g.awaiting = true
	g.awaitedTag = tag
	g.responded = false
	g.response = nil
	g.pending.Unlock()

	defer func() {
		g.pending.Lock()
		g.awaiting = false
		g.pending.Unlock()
	}()

	if err := g.messenger.Send(destID, payload, tag); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	done := make(chan struct{})
	go func() {
		g.pending.Lock()
		for !g.responded {
			g.cond.Wait()
		}
		g.pending.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		g.pending.Lock()
		g.responded = true
		g.cond.Broadcast()
		g.pending.Unlock()
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrNoResponse
		}
		return nil, ErrInterrupted
	}

	g.pending.Lock()
	response := g.response
	g.pending.Unlock()

	if response == nil {
		return nil, ErrNoResponse
	}
	return response, nil
}

// handleMessage is the Messenger's MessageListener. It runs on the
// messenger's own receive goroutine and must not block.
func (g *Gateway) handleMessage(tag uint16, payload []byte) {
	g.pending.Lock()
	defer g.pending.Unlock()
	if !g.awaiting || g.responded || tag != g.awaitedTag {
		return
	}
	g.response = payload
	g.responded = true
	g.cond.Broadcast()
}

// idBytes encodes a register id (0 ≤ id < 128·256) the way requests
// address a register: a single byte when id fits in 7 bits, otherwise two
// bytes with the high bit of the first set as a continuation marker. This
// is a distinct, narrower encoding from the general variable-length
// integer codec used for values and hint ids.
func idBytes(id int) []byte {
	if id < 128 {
		return []byte{byte(id)}
	}
	return []byte{byte(id>>8) | 0x80, byte(id)}
}

// ReadInt issues opcode 0x01 against registerID on the collection
// identified by registryID, returning the decoded wire integer. registryID
// (0-15) is carried as the messenger's destination, not in the payload.
func (g *Gateway) ReadInt(ctx context.Context, registryID, registerID int) (int32, error) {
	req := append([]byte{opReadInt}, idBytes(registerID)...)
	resp, err := g.sendReceive(ctx, byte(registryID), req)
	if err != nil {
		return 0, err
	}
	return decodeIntResponse(resp)
}

// WriteInt issues opcode 0x02, writing value to registerID on the
// collection identified by registryID.
func (g *Gateway) WriteInt(ctx context.Context, registryID, registerID int, value int32) error {
	req := append([]byte{opWriteInt}, idBytes(registerID)...)
	req = append(req, encodeVarInt(value)...)
	resp, err := g.sendReceive(ctx, byte(registryID), req)
	if err != nil {
		return err
	}
	return decodeStatusResponse(resp)
}

// ReadBinary issues opcode 0x03 against registerID on the collection
// identified by registryID, returning the raw wire bytes.
func (g *Gateway) ReadBinary(ctx context.Context, registryID, registerID int) ([]byte, error) {
	req := append([]byte{opReadBinary}, idBytes(registerID)...)
	resp, err := g.sendReceive(ctx, byte(registryID), req)
	if err != nil {
		return nil, err
	}
	return decodeBinaryResponse(resp)
}

// WriteBinary issues opcode 0x04, writing value to registerID on the
// collection identified by registryID.
func (g *Gateway) WriteBinary(ctx context.Context, registryID, registerID int, value []byte) error {
	req := append([]byte{opWriteBinary}, idBytes(registerID)...)
	req = append(req, value...)
	resp, err := g.sendReceive(ctx, byte(registryID), req)
	if err != nil {
		return err
	}
	return decodeStatusResponse(resp)
}

// GetChangeHint issues opcode 0x05 against the collection identified by
// registryID, confirming confirmedRegisterID as already observed by the
// caller (a negative value sends the bare probe). The response is an
// opaque hint identifying the register that changed, or a negative value
// if none did.
func (g *Gateway) GetChangeHint(ctx context.Context, registryID int, confirmedRegisterID int) (int32, error) {
	req := []byte{opGetChangeHint}
	if confirmedRegisterID >= 0 {
		req = append(req, idBytes(confirmedRegisterID)...)
	}
	resp, err := g.sendReceive(ctx, byte(registryID), req)
	if err != nil {
		return -1, err
	}
	return decodeIntResponse(resp)
}

func decodeStatusResponse(resp []byte) error {
	if len(resp) < 1 {
		return &ErrInvalidMessage{reason: "empty response"}
	}
	switch resp[0] {
	case statusOK:
		return nil
	case statusUnwritable:
		return ErrUnwritableRegister
	default:
		return ErrRequestFailed
	}
}

func decodeIntResponse(resp []byte) (int32, error) {
	if len(resp) < 1 {
		return 0, &ErrInvalidMessage{reason: "empty response"}
	}
	if resp[0] != statusOK {
		if resp[0] == statusUnwritable {
			return 0, ErrUnwritableRegister
		}
		return 0, ErrRequestFailed
	}
	value, _, err := decodeVarInt(resp, 1)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func decodeBinaryResponse(resp []byte) ([]byte, error) {
	if len(resp) < 1 {
		return nil, &ErrInvalidMessage{reason: "empty response"}
	}
	if resp[0] != statusOK {
		if resp[0] == statusUnwritable {
			return nil, ErrUnwritableRegister
		}
		return nil, ErrRequestFailed
	}
	return resp[1:], nil
}
