package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	memoryOfferPrefix  = "memory-offer:"
	memoryAnswerPrefix = "memory-answer:"
)

// Memory is an in-process Transport pair. It walks the same offer/answer
// dance as the WebRTC transport and delivers frames in send order on a
// single goroutine per side, which is what manager code relies on.
type Memory struct {
	role Role
	id   string

	mu        sync.Mutex
	peer      *Memory
	connected bool
	answered  bool
	closed    bool

	inbox chan []byte
	done  chan struct{}

	onConnect func()
	onData    func([]byte)
	onError   func(error)
	onClose   func()

	closeOnce  sync.Once
	notifyOnce sync.Once
	pumpOnce   sync.Once
}

// NewMemoryPair returns two linked transports, initiator first.
func NewMemoryPair() (*Memory, *Memory) {
	a := newMemory(Initiator)
	b := newMemory(Responder)
	a.peer = b
	b.peer = a
	return a, b
}

func newMemory(role Role) *Memory {
	return &Memory{
		role:  role,
		id:    uuid.NewString(),
		inbox: make(chan []byte, 256),
		done:  make(chan struct{}),
	}
}

func (m *Memory) CreateOffer(ctx context.Context) (string, error) {
	if m.role != Initiator {
		return "", ErrWrongRole
	}
	select {
	case <-ctx.Done():
		return "", ErrNegotiationTimeout
	default:
	}
	return memoryOfferPrefix + m.id, nil
}

func (m *Memory) CreateAnswer(ctx context.Context, remoteSDP string) (string, error) {
	if m.role != Responder {
		return "", ErrWrongRole
	}
	select {
	case <-ctx.Done():
		return "", ErrNegotiationTimeout
	default:
	}
	if !strings.HasPrefix(remoteSDP, memoryOfferPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSignal, truncate(remoteSDP))
	}

	m.mu.Lock()
	m.answered = true
	m.mu.Unlock()

	return memoryAnswerPrefix + m.id, nil
}

func (m *Memory) Signal(remoteSDP string) error {
	if m.role != Initiator {
		return ErrWrongRole
	}
	if !strings.HasPrefix(remoteSDP, memoryAnswerPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidSignal, truncate(remoteSDP))
	}

	peer := m.peer
	peer.mu.Lock()
	answered := peer.answered
	peer.mu.Unlock()
	if !answered {
		return fmt.Errorf("%w: answer does not match this link", ErrInvalidSignal)
	}

	m.becomeConnected()
	peer.becomeConnected()
	return nil
}

func (m *Memory) becomeConnected() {
	m.mu.Lock()
	if m.connected || m.closed {
		m.mu.Unlock()
		return
	}
	m.connected = true
	fn := m.onConnect
	m.mu.Unlock()

	m.pumpOnce.Do(func() { go m.pump() })

	if fn != nil {
		go fn()
	}
}

// pump delivers inbound frames one at a time, preserving send order.
func (m *Memory) pump() {
	for {
		select {
		case data := <-m.inbox:
			m.mu.Lock()
			fn := m.onData
			m.mu.Unlock()
			if fn != nil {
				fn(data)
			}
		case <-m.done:
			return
		}
	}
}

func (m *Memory) Send(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	peer := m.peer
	m.mu.Unlock()

	peer.mu.Lock()
	peerClosed := peer.closed
	peer.mu.Unlock()
	if peerClosed {
		return ErrNotConnected
	}

	// The sender may reuse its buffer; the channel owns a copy.
	cp := make([]byte, len(data))
	copy(cp, data)

	select {
	case peer.inbox <- cp:
		return nil
	case <-peer.done:
		return ErrNotConnected
	}
}

func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && !m.closed
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.connected = false
		peer := m.peer
		m.mu.Unlock()

		close(m.done)
		m.fireClose()
		if peer != nil {
			peer.peerClosed()
		}
	})
	return nil
}

// peerClosed is invoked by the remote side's Close.
func (m *Memory) peerClosed() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	m.fireClose()
}

func (m *Memory) OnConnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

func (m *Memory) OnData(fn func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onData = fn
}

func (m *Memory) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

func (m *Memory) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

func (m *Memory) fireClose() {
	m.notifyOnce.Do(func() {
		m.mu.Lock()
		fn := m.onClose
		m.mu.Unlock()
		if fn != nil {
			go fn()
		}
	})
}

func truncate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}
