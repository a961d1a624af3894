package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func connectPair(t *testing.T) (*Memory, *Memory) {
	t.Helper()

	a, b := NewMemoryPair()
	ctx := context.Background()

	offer, err := a.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	answer, err := b.CreateAnswer(ctx, offer)
	if err != nil {
		t.Fatalf("CreateAnswer failed: %v", err)
	}
	if err := a.Signal(answer); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestMemoryHandshake(t *testing.T) {
	a, b := connectPair(t)

	if !a.Connected() {
		t.Error("initiator not connected after handshake")
	}
	if !b.Connected() {
		t.Error("responder not connected after handshake")
	}
}

func TestMemoryRejectsBadDescriptors(t *testing.T) {
	a, b := NewMemoryPair()
	ctx := context.Background()

	if _, err := b.CreateAnswer(ctx, "garbage"); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("CreateAnswer: expected ErrInvalidSignal, got %v", err)
	}
	if err := a.Signal("garbage"); !errors.Is(err, ErrInvalidSignal) {
		t.Errorf("Signal: expected ErrInvalidSignal, got %v", err)
	}
}

func TestMemoryRoleChecks(t *testing.T) {
	a, b := NewMemoryPair()
	ctx := context.Background()

	if _, err := b.CreateOffer(ctx); !errors.Is(err, ErrWrongRole) {
		t.Errorf("responder CreateOffer: expected ErrWrongRole, got %v", err)
	}
	if _, err := a.CreateAnswer(ctx, "x"); !errors.Is(err, ErrWrongRole) {
		t.Errorf("initiator CreateAnswer: expected ErrWrongRole, got %v", err)
	}
	if err := b.Signal("x"); !errors.Is(err, ErrWrongRole) {
		t.Errorf("responder Signal: expected ErrWrongRole, got %v", err)
	}
}

func TestMemorySendBeforeConnect(t *testing.T) {
	a, _ := NewMemoryPair()

	if err := a.Send([]byte("early")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestMemoryDeliversInOrder(t *testing.T) {
	a, b := connectPair(t)

	received := make(chan []byte, 16)
	b.OnData(func(data []byte) {
		received <- data
	})

	frames := [][]byte{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
		{0x00, 0x01, 0x02},
	}
	for _, f := range frames {
		if err := a.Send(f); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for i, want := range frames {
		select {
		case got := <-received:
			if !bytes.Equal(got, want) {
				t.Errorf("frame %d: expected %q, got %q", i, want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}
}

func TestMemoryCloseNotifiesPeerOnce(t *testing.T) {
	a, b := connectPair(t)

	closes := make(chan struct{}, 4)
	b.OnClose(func() {
		closes <- struct{}{}
	})

	_ = a.Close()
	_ = a.Close()

	select {
	case <-closes:
	case <-time.After(time.Second):
		t.Fatal("peer close event never fired")
	}

	select {
	case <-closes:
		t.Error("peer close event fired twice")
	case <-time.After(100 * time.Millisecond):
	}

	if err := b.Send([]byte("after close")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after peer close, got %v", err)
	}
}

func TestMemoryNegotiationTimeout(t *testing.T) {
	a, _ := NewMemoryPair()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.CreateOffer(ctx); !errors.Is(err, ErrNegotiationTimeout) {
		t.Errorf("expected ErrNegotiationTimeout, got %v", err)
	}
}
