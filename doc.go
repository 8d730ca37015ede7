// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

/*
Package gep is a client library for reading and writing remote registers
hosted on embedded devices reachable over a serial or TCP transport using
the GEP request/response framing.

A Gateway owns a single full-duplex stream socket and serializes requests
against it, matching responses to requests by a numeric tag. A
RegisterCollection is a per-device facade over a Gateway; a Register mirrors
one remote value locally, polling it on an interval with retry backoff and
notifying a listener on change. An AutoUpdater multiplexes many registers
and collections behind one background goroutine, optionally probing devices
for change hints instead of polling blindly.

The transport (serial port, TCP socket) and value codecs are supplied by
the caller; this package only assumes a byte stream that a Messenger frames
into (tag, payload) pairs.
*/
package gep
