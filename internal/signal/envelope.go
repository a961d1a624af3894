// Package signal models the offer/answer descriptors exchanged out-of-band
// to negotiate a transport. Envelopes travel as copyable text or QR payloads;
// both carriers round-trip the same string.
package signal

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/09sachin/fileshare/internal/protocol"
)

var ErrMalformedEnvelope = errors.New("signal: malformed envelope")

type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
)

// Envelope wraps a transport descriptor with role metadata. Immutable once
// serialized: decode yields a fresh value, never a shared one.
type Envelope struct {
	Kind Kind   `json:"kind"`
	SDP  string `json:"sdp"`

	// Pair protocol: the sender attaches the descriptor to its offer so the
	// remote can preview name and size before accepting.
	File *protocol.FileDescriptor `json:"file,omitempty"`

	// Broadcast protocol: an answer must echo the subscriberId of the offer
	// it responds to.
	SubscriberID   string `json:"subscriberId,omitempty"`
	SubscriberName string `json:"subscriberName,omitempty"`
}

// Encode returns the single-line text handed to the user for out-of-band
// exchange.
func (e Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("signal: marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses text produced by Encode. A bad paste or scan reports
// ErrMalformedEnvelope without touching any session state.
func Decode(text string) (Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Kind != KindOffer && env.Kind != KindAnswer {
		return Envelope{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEnvelope, env.Kind)
	}
	if env.SDP == "" {
		return Envelope{}, fmt.Errorf("%w: missing descriptor", ErrMalformedEnvelope)
	}
	return env, nil
}
