package gep

import "errors"

// Sentinel errors identifying the error kinds described by the protocol.
// TransportFailure and ProtocolFailure are reported identically to callers;
// they are distinguished here only so that logging and tests can tell them
// apart with errors.Is.
var (
	// ErrNoResponse is a TransportFailure: the gateway received no
	// response before the request's timeout elapsed.
	ErrNoResponse = errors.New("gep: no response from registry")

	// ErrRequestFailed is a ProtocolFailure: the registry replied with a
	// non-OK status.
	ErrRequestFailed = errors.New("gep: request failed on registry")

	// ErrUnwritableRegister is a ProtocolFailure: the registry rejected a
	// write to a register it will not accept writes for.
	ErrUnwritableRegister = errors.New("gep: register is not writable")

	// ErrInterrupted is a TransportFailure: the caller's context was
	// canceled while awaiting a response.
	ErrInterrupted = errors.New("gep: request interrupted")

	// ErrNotRunning is a TransportFailure: a request was attempted on a
	// gateway that has not been started or has been stopped.
	ErrNotRunning = errors.New("gep: gateway is not running")

	// ErrReadOnly is a WriteOnReadOnly: Register.SetValue was called on a
	// register constructed with readOnly=true.
	ErrReadOnly = errors.New("gep: register is read-only")

	// ErrDecodeRejected is a DecodeRejection: the codec rejected a value
	// read from the wire.
	ErrDecodeRejected = errors.New("gep: codec rejected decoded value")

	// ErrInvalidArgument is raised synchronously at construction or
	// set-site for out-of-range register ids, non-positive intervals, or
	// nil codecs/collections.
	ErrInvalidArgument = errors.New("gep: invalid argument")
)
