// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package gep

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

const serialConnectTimeout = 5 * time.Second

// SerialSocket implements FullDuplexStreamSocket over a serial port using
// github.com/grid-x/serial.
type SerialSocket struct {
	// Config is the port configuration (address/baud/parity/etc); see
	// github.com/grid-x/serial.Config.
	Config serial.Config

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewSerialSocket constructs a SerialSocket for address with the package's
// default connect timeout. Baud rate and framing default to
// grid-x/serial's zero-value defaults; set Config directly to override
// them before calling Open.
func NewSerialSocket(address string) *SerialSocket {
	return &SerialSocket{
		Config: serial.Config{
			Address: address,
			Timeout: serialConnectTimeout,
		},
	}
}

// Open implements FullDuplexStreamSocket.
func (s *SerialSocket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := serial.Open(&s.Config)
	if err != nil {
		return fmt.Errorf("gep: open serial port %s: %w", s.Config.Address, err)
	}
	s.port = port
	return nil
}

// Read implements FullDuplexStreamSocket.
func (s *SerialSocket) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("gep: serial port %s not open", s.Config.Address)
	}
	return port.Read(p)
}

// Write implements FullDuplexStreamSocket.
func (s *SerialSocket) Write(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, fmt.Errorf("gep: serial port %s not open", s.Config.Address)
	}
	return port.Write(p)
}

// Close implements FullDuplexStreamSocket.
func (s *SerialSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
