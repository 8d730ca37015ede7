package gep

import (
	"io"
	"net"
	"testing"
	"time"
)

// pipeSocket adapts a net.Conn half of an in-memory pipe to
// FullDuplexStreamSocket for tests; Open is a no-op since the pipe is
// already connected.
type pipeSocket struct {
	net.Conn
}

func (pipeSocket) Open() error { return nil }

func newConnectedMessengerPair(t *testing.T, idA, idB byte) (*GEPMessenger, *GEPMessenger) {
	t.Helper()
	a, b := net.Pipe()
	ma := NewGEPMessenger(pipeSocket{a}, idA, nil)
	mb := NewGEPMessenger(pipeSocket{b}, idB, nil)
	if err := ma.Start(); err != nil {
		t.Fatalf("Start a: %v", err)
	}
	if err := mb.Start(); err != nil {
		t.Fatalf("Start b: %v", err)
	}
	t.Cleanup(func() {
		ma.Stop(true)
		mb.Stop(true)
	})
	return ma, mb
}

func TestGEPMessengerDeliversMatchingFrame(t *testing.T) {
	sender, receiver := newConnectedMessengerPair(t, 0, 7)

	received := make(chan []byte, 1)
	receiver.SetListener(func(tag uint16, payload []byte) {
		received <- payload
	})

	if err := sender.Send(7, []byte("hello"), 42); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "hello" {
			t.Fatalf("payload = %q, want %q", payload, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestGEPMessengerFiltersUnaddressedFrame(t *testing.T) {
	sender, receiver := newConnectedMessengerPair(t, 0, 7)

	received := make(chan []byte, 1)
	receiver.SetListener(func(tag uint16, payload []byte) {
		received <- payload
	})

	if err := sender.Send(9, []byte("not for you"), 1); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := sender.Send(7, []byte("for you"), 2); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "for you" {
			t.Fatalf("payload = %q, want the frame addressed to id 7", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestGEPMessengerAcceptAllID(t *testing.T) {
	sender, receiver := newConnectedMessengerPair(t, 0, 0)

	received := make(chan []byte, 1)
	receiver.SetListener(func(tag uint16, payload []byte) {
		received <- payload
	})

	if err := sender.Send(3, []byte("broadcast target"), 1); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("messenger id 0 should accept every frame")
	}
}

func TestGEPMessengerStopUnblocksReadLoop(t *testing.T) {
	a, b := net.Pipe()
	m := NewGEPMessenger(pipeSocket{a}, 0, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Close()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	if err := m.Stop(false); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not unblock the read loop in time")
	}
}

func TestXorChecksumEmpty(t *testing.T) {
	if got := xorChecksum(nil); got != 0 {
		t.Fatalf("xorChecksum(nil) = %#x, want 0", got)
	}
}

var _ io.ReadWriteCloser = pipeSocket{}
