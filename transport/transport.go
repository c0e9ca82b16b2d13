// Package transport defines the byte-duplex contract the protocol engine's
// caller must supply, plus a connection pool for callers that prefer a
// borrow/return model over multiplexing one connection per destination.
// Nothing in this package understands STOMP; it is pure connection
// lifecycle plumbing, usable by whatever out-of-scope client wrapper drives
// the session and wire packages.
package transport

import (
	"context"
	"time"
)

// Transport is a single byte-duplex link to one broker. The protocol engine
// never implements this itself; it only ever consumes it.
type Transport interface {
	// Connect establishes the link.
	Connect(ctx context.Context) error

	// Send writes b in full.
	Send(b []byte) error

	// ReceiveSome reads whatever is available, at least one byte on
	// success.
	ReceiveSome() ([]byte, error)

	// CanRead reports whether ReceiveSome would return data within
	// timeout.
	CanRead(timeout time.Duration) (bool, error)

	// Disconnect closes the link. Calling it more than once is safe.
	Disconnect() error
}
