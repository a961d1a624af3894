// Package transport provides the negotiated, connected, bidirectional
// message channel between two endpoints. The WebRTC implementation is the
// real thing; the memory implementation backs tests and local loopback.
package transport

import (
	"context"
	"errors"
)

var (
	ErrNotConnected       = errors.New("transport: not connected")
	ErrClosed             = errors.New("transport: closed")
	ErrInvalidSignal      = errors.New("transport: invalid remote descriptor")
	ErrNegotiationTimeout = errors.New("transport: timed out waiting for local descriptor")
	ErrWrongRole          = errors.New("transport: operation not valid for this role")
)

type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Transport is one negotiated link. Callbacks must be registered before
// negotiation starts; they fire on the transport's own goroutines, so
// handlers guard any shared state themselves.
type Transport interface {
	// CreateOffer produces the local descriptor on an initiator. It blocks
	// until candidate gathering finishes so the descriptor is complete
	// enough for one-shot out-of-band exchange.
	CreateOffer(ctx context.Context) (string, error)

	// CreateAnswer consumes a remote offer on a responder and produces the
	// local answer descriptor.
	CreateAnswer(ctx context.Context, remoteSDP string) (string, error)

	// Signal feeds the remote answer into an initiator to complete
	// negotiation.
	Signal(remoteSDP string) error

	// Send transmits one discrete message. Frames sent on one transport
	// arrive in send order.
	Send(data []byte) error

	Connected() bool
	Close() error

	OnConnect(func())
	OnData(func([]byte))
	OnError(func(error))
	OnClose(func())
}
