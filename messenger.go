package gep

import "io"

// FullDuplexStreamSocket is the byte stream a Messenger frames into
// messages. Serial ports and TCP sockets both satisfy it. Framing, CRC and
// addressing below the messenger are the concrete Messenger's concern, not
// this package's; Gateway only ever talks to a Messenger.
type FullDuplexStreamSocket interface {
	io.ReadWriteCloser

	// Open establishes the underlying connection. Open may block.
	Open() error
}

// MessageListener is invoked once per received (tag, payload) pair. It runs
// on the Messenger's own receive goroutine and must not block: Gateway's
// implementation only stores the payload and signals a waiting caller.
type MessageListener func(tag uint16, payload []byte)

// Messenger frames a FullDuplexStreamSocket into (tag, payload) messages.
// It is the sole abstraction the Gateway engine depends on; concrete
// framing, addressing and integrity checks live below this interface.
type Messenger interface {
	// Start opens the underlying socket and begins the receive loop. Start
	// may block until the connection is established.
	Start() error

	// Stop shuts the messenger down. If block is true, Stop waits for the
	// receive goroutine to exit before returning.
	Stop(block bool) error

	// IsRunning reports whether the receive loop is active.
	IsRunning() bool

	// Send transmits payload to destID, tagging it so the peer's reply
	// (or the peer's protocol, if it doesn't echo tags) can be matched
	// against it by SetListener's callback.
	Send(destID byte, payload []byte, tag uint16) error

	// SetListener installs the callback invoked for every received
	// message. It must be called before Start.
	SetListener(listener MessageListener)
}
