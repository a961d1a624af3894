package signal

import (
	"errors"
	"testing"

	"github.com/09sachin/fileshare/internal/protocol"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		Kind: KindOffer,
		SDP:  "v=0\r\no=- 123 2 IN IP4 127.0.0.1\r\n",
		File: &protocol.FileDescriptor{
			Name:       "report.pdf",
			Size:       50000,
			MimeType:   "application/pdf",
			ChunkCount: 4,
		},
	}

	text, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Kind != KindOffer {
		t.Errorf("expected kind offer, got %q", decoded.Kind)
	}
	if decoded.SDP != env.SDP {
		t.Errorf("SDP mismatch")
	}
	if decoded.File == nil || *decoded.File != *env.File {
		t.Errorf("file descriptor mismatch: %+v", decoded.File)
	}
}

func TestEnvelopeRoundTripSubscriber(t *testing.T) {
	env := Envelope{
		Kind:           KindAnswer,
		SDP:            "v=0\r\n",
		SubscriberID:   "sub-42",
		SubscriberName: "Ann",
	}

	text, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.SubscriberID != "sub-42" {
		t.Errorf("expected subscriberId sub-42, got %q", decoded.SubscriberID)
	}
	if decoded.SubscriberName != "Ann" {
		t.Errorf("expected subscriberName Ann, got %q", decoded.SubscriberName)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, text := range []string{
		"not base64 at all!!!",
		"aGVsbG8gd29ybGQ=", // base64 of plain text, not JSON
		"",
	} {
		if _, err := Decode(text); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Decode(%q): expected ErrMalformedEnvelope, got %v", text, err)
		}
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	env := Envelope{Kind: "renegotiate", SDP: "v=0"}
	text, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Decode(text); !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestDecodeRejectsMissingSDP(t *testing.T) {
	env := Envelope{Kind: KindOffer}
	text, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Decode(text); !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("expected ErrMalformedEnvelope, got %v", err)
	}
}
