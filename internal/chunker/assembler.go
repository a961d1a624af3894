package chunker

import (
	"bytes"
	"fmt"
	"sync"
)

// Assembler holds the receive-side state of one in-flight transfer. Chunk
// identity is assigned by arrival order; the declared index from the
// preceding control frame is only validated, never trusted for placement.
// Assembly is all-or-nothing: a gap is a hard failure, never a silent skip.
type Assembler struct {
	mu       sync.Mutex
	active   bool
	expected uint32
	received uint32
	chunks   map[uint32][]byte
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Begin resets state for a new transfer, discarding any prior incomplete
// one. Called on receipt of a start control frame.
func (a *Assembler) Begin(expected uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = true
	a.expected = expected
	a.received = 0
	a.chunks = make(map[uint32][]byte, expected)
}

func (a *Assembler) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// CheckDeclaredIndex compares a chunk-meta frame's declared index against
// the arrival-order index the next binary frame will get. A false return
// means the two sides have drifted; callers log it and carry on, since the
// completeness check at assembly is the real guard.
func (a *Assembler) CheckDeclaredIndex(declared uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return declared == a.received
}

// AddBinary stores the next chunk at the arrival-order index and reports
// progress.
func (a *Assembler) AddBinary(data []byte) (Progress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return Progress{}, ErrNoActiveTransfer
	}
	if a.received >= a.expected {
		return Progress{}, fmt.Errorf("%w: got chunk %d of %d", ErrUnexpectedChunk, a.received, a.expected)
	}

	a.chunks[a.received] = data
	a.received++
	return progressAt(a.received, a.expected), nil
}

// Assemble concatenates chunks by ascending index and clears the transfer
// state. Every index must be present and the counts must match; arrival
// order assignment makes a gap unlikely, but a duplicated or dropped
// control frame can desynchronize state, so it is checked regardless.
func (a *Assembler) Assemble() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return nil, ErrNoActiveTransfer
	}
	if a.received != a.expected {
		received, expected := a.received, a.expected
		a.reset()
		return nil, fmt.Errorf("%w: have %d of %d chunks", ErrIncomplete, received, expected)
	}

	var buf bytes.Buffer
	for i := uint32(0); i < a.expected; i++ {
		chunk, ok := a.chunks[i]
		if !ok {
			a.reset()
			return nil, fmt.Errorf("%w: missing chunk %d", ErrIncomplete, i)
		}
		buf.Write(chunk)
	}

	a.reset()
	return buf.Bytes(), nil
}

// Reset drops any in-flight state, used on owner teardown.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Assembler) reset() {
	a.active = false
	a.expected = 0
	a.received = 0
	a.chunks = nil
}
