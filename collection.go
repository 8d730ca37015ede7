package gep

import (
	"context"
	"fmt"
	"sync"
)

// RegisterCollection groups the registers exposed by a single remote
// registry (registryID, in [0,15]) reachable through one Gateway. The
// registry id is carried directly as the messenger's destination byte for
// every request the collection issues. Registers are looked up by an
// integer id local to the collection.
type RegisterCollection struct {
	gateway    *Gateway
	registryID int

	stats RequestStatistics

	mu        sync.Mutex
	registers map[int]*Register
}

// NewRegisterCollection constructs a collection of registers served by the
// registryID-th registry on gateway's device.
func NewRegisterCollection(gateway *Gateway, registryID int) (*RegisterCollection, error) {
	if gateway == nil {
		return nil, fmt.Errorf("%w: nil gateway", ErrInvalidArgument)
	}
	if registryID < 0 || registryID > 15 {
		return nil, fmt.Errorf("%w: registry id %d out of range [0,15]", ErrInvalidArgument, registryID)
	}
	return &RegisterCollection{
		gateway:    gateway,
		registryID: registryID,
		registers:  make(map[int]*Register),
	}, nil
}

// AddRegister constructs and registers a new Register with this
// collection. id must be unique within the collection and in [0,32767].
func (c *RegisterCollection) AddRegister(id int, codec Codec, settings ConnectionSettings, readOnly bool) (*Register, error) {
	if id < 0 || id > 32767 {
		return nil, fmt.Errorf("%w: register id %d out of range [0,32767]", ErrInvalidArgument, id)
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: nil codec", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.registers[id]; exists {
		return nil, fmt.Errorf("%w: register id %d already registered", ErrInvalidArgument, id)
	}

	r := newRegister(c, id, codec, settings, readOnly)
	c.registers[id] = r
	return r, nil
}

// Register returns the register with the given id, or nil if none exists.
func (c *RegisterCollection) Register(id int) *Register {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registers[id]
}

// Registers returns a snapshot of every register in the collection.
func (c *RegisterCollection) Registers() []*Register {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Register, 0, len(c.registers))
	for _, r := range c.registers {
		out = append(out, r)
	}
	return out
}

// Statistics returns the request counters accumulated for this collection.
func (c *RegisterCollection) Statistics() *RequestStatistics {
	return &c.stats
}

// RegistryID returns the collection's registry id on its gateway.
func (c *RegisterCollection) RegistryID() int {
	return c.registryID
}

// ReadInt forwards to the Gateway with this collection's registry id
// prefilled, counting the request in Statistics.
func (c *RegisterCollection) ReadInt(ctx context.Context, registerID int) (int32, error) {
	v, err := c.gateway.ReadInt(ctx, c.registryID, registerID)
	c.stats.CountRequest(err != nil)
	return v, err
}

// WriteInt forwards to the Gateway with this collection's registry id
// prefilled, counting the request in Statistics.
func (c *RegisterCollection) WriteInt(ctx context.Context, registerID int, value int32) error {
	err := c.gateway.WriteInt(ctx, c.registryID, registerID, value)
	c.stats.CountRequest(err != nil)
	return err
}

// ReadBinary forwards to the Gateway with this collection's registry id
// prefilled, counting the request in Statistics.
func (c *RegisterCollection) ReadBinary(ctx context.Context, registerID int) ([]byte, error) {
	v, err := c.gateway.ReadBinary(ctx, c.registryID, registerID)
	c.stats.CountRequest(err != nil)
	return v, err
}

// WriteBinary forwards to the Gateway with this collection's registry id
// prefilled, counting the request in Statistics.
func (c *RegisterCollection) WriteBinary(ctx context.Context, registerID int, value []byte) error {
	err := c.gateway.WriteBinary(ctx, c.registryID, registerID, value)
	c.stats.CountRequest(err != nil)
	return err
}

// GetChangeHintID forwards to Gateway.GetChangeHint with this collection's
// registry id prefilled, counting the request in Statistics.
func (c *RegisterCollection) GetChangeHintID(ctx context.Context, confirmedRegisterID int) (int32, error) {
	id, err := c.gateway.GetChangeHint(ctx, c.registryID, confirmedRegisterID)
	c.stats.CountRequest(err != nil)
	return id, err
}
