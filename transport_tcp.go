// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package gep

import (
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	tcpConnectTimeout = 10 * time.Second
	tcpIdleTimeout    = 60 * time.Second
)

// TCPSocket implements FullDuplexStreamSocket over a TCP connection, idle
// timing out and reconnecting the way the reference serial and TCP
// transports do.
type TCPSocket struct {
	// Address is the "host:port" to dial.
	Address string
	// ConnectTimeout bounds Open's dial call.
	ConnectTimeout time.Duration
	// IdleTimeout closes the connection after this long without any
	// Read or Write; the next call to either reopens it.
	IdleTimeout time.Duration

	mu           sync.Mutex
	conn         net.Conn
	lastActivity time.Time
	closeTimer   *time.Timer
}

// NewTCPSocket constructs a TCPSocket dialing address on Open, using the
// package's default connect and idle timeouts.
func NewTCPSocket(address string) *TCPSocket {
	return &TCPSocket{
		Address:        address,
		ConnectTimeout: tcpConnectTimeout,
		IdleTimeout:    tcpIdleTimeout,
	}
}

// Open implements FullDuplexStreamSocket.
func (s *TCPSocket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect()
}

func (s *TCPSocket) connect() error {
	if s.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", s.Address, s.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("gep: dial %s: %w", s.Address, err)
	}
	s.conn = conn
	return nil
}

// Read implements FullDuplexStreamSocket, reconnecting on demand and
// resetting the idle timer on every call.
func (s *TCPSocket) Read(p []byte) (int, error) {
	s.mu.Lock()
	if err := s.connect(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	conn := s.conn
	s.lastActivity = time.Now()
	s.startCloseTimerLocked()
	s.mu.Unlock()

	return conn.Read(p)
}

// Write implements FullDuplexStreamSocket, reconnecting on demand and
// resetting the idle timer on every call.
func (s *TCPSocket) Write(p []byte) (int, error) {
	s.mu.Lock()
	if err := s.connect(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	conn := s.conn
	s.lastActivity = time.Now()
	s.startCloseTimerLocked()
	s.mu.Unlock()

	return conn.Write(p)
}

// Close implements FullDuplexStreamSocket.
func (s *TCPSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close()
}

func (s *TCPSocket) close() error {
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// startCloseTimerLocked arms (or rearms) the idle-close timer. Caller must
// hold s.mu.
func (s *TCPSocket) startCloseTimerLocked() {
	if s.IdleTimeout <= 0 {
		return
	}
	if s.closeTimer == nil {
		s.closeTimer = time.AfterFunc(s.IdleTimeout, s.closeIdle)
	} else {
		s.closeTimer.Reset(s.IdleTimeout)
	}
}

func (s *TCPSocket) closeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil && time.Since(s.lastActivity) >= s.IdleTimeout {
		s.conn.Close()
		s.conn = nil
	}
}
