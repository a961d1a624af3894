package chunker

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/09sachin/fileshare/internal/protocol"
)

type recordingWriter struct {
	frames    [][]byte
	live      bool
	failAfter int // -1 never fails
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{live: true, failAfter: -1}
}

func (w *recordingWriter) Send(data []byte) error {
	if w.failAfter == 0 {
		return errors.New("wire gone")
	}
	if w.failAfter > 0 {
		w.failAfter--
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	w.frames = append(w.frames, cp)
	return nil
}

func (w *recordingWriter) Connected() bool { return w.live }

// replay feeds recorded pair-protocol frames into an assembler the way a
// manager would, returning the assembled payload.
func replay(t *testing.T, frames [][]byte, asm *Assembler) []byte {
	t.Helper()

	var assembled []byte
	for _, frame := range frames {
		decoded, err := protocol.DecodePair(frame)
		if errors.Is(err, protocol.ErrNotControl) {
			if _, err := asm.AddBinary(frame); err != nil {
				t.Fatalf("AddBinary failed: %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("DecodePair failed: %v", err)
		}

		switch f := decoded.(type) {
		case protocol.FileStart:
			asm.Begin(f.File.ChunkCount)
		case protocol.ChunkStart:
			if !asm.CheckDeclaredIndex(f.Index) {
				t.Errorf("declared index %d drifted from arrival order", f.Index)
			}
		case protocol.FileComplete:
			payload, err := asm.Assemble()
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			assembled = payload
		}
	}
	return assembled
}

func TestChunkCount(t *testing.T) {
	cases := []struct {
		size     uint64
		chunk    int
		expected uint32
	}{
		{0, 16384, 0},
		{1, 16384, 1},
		{16384, 16384, 1},
		{16385, 16384, 2},
		{50000, 16384, 4},
		{100, 0, 0},
	}
	for _, c := range cases {
		if got := ChunkCount(c.size, c.chunk); got != c.expected {
			t.Errorf("ChunkCount(%d, %d): expected %d, got %d", c.size, c.chunk, c.expected, got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 847, 16384, 16385, 50000}

	for _, size := range sizes {
		payload := make([]byte, size)
		rand.New(rand.NewSource(int64(size))).Read(payload)

		w := newRecordingWriter()
		frames := PairFrames{File: protocol.FileDescriptor{
			Name:       "blob.bin",
			Size:       uint64(size),
			MimeType:   "application/octet-stream",
			ChunkCount: ChunkCount(uint64(size), protocol.ChunkSize),
		}}

		err := Send(context.Background(), w, payload, frames, SendOptions{Delay: 1})
		if err != nil {
			t.Fatalf("size %d: Send failed: %v", size, err)
		}

		got := replay(t, w.frames, NewAssembler())
		if !bytes.Equal(got, payload) {
			t.Errorf("size %d: round trip mismatch", size)
		}
	}
}

func TestSendInterleaving(t *testing.T) {
	payload := make([]byte, 50000)
	rand.New(rand.NewSource(7)).Read(payload)

	w := newRecordingWriter()
	frames := PairFrames{File: protocol.FileDescriptor{
		Name: "f", Size: 50000, ChunkCount: 4,
	}}
	if err := Send(context.Background(), w, payload, frames, SendOptions{Delay: 1}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// start + 4*(meta+binary) + complete
	if len(w.frames) != 10 {
		t.Fatalf("expected 10 frames, got %d", len(w.frames))
	}

	lastSize := len(w.frames[8])
	if lastSize != 848 {
		t.Errorf("expected last chunk of 848 bytes, got %d", lastSize)
	}

	for i, frame := range w.frames {
		_, err := protocol.DecodePair(frame)
		isBinary := errors.Is(err, protocol.ErrNotControl)
		// odd positions between start and complete carry binary data
		wantBinary := i > 0 && i < 9 && i%2 == 0
		if isBinary != wantBinary {
			t.Errorf("frame %d: binary=%v, expected %v", i, isBinary, wantBinary)
		}
	}
}

func TestSendEmptyPayload(t *testing.T) {
	w := newRecordingWriter()
	frames := PairFrames{File: protocol.FileDescriptor{Name: "empty", ChunkCount: 0}}

	if err := Send(context.Background(), w, nil, frames, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(w.frames) != 2 {
		t.Fatalf("expected start+complete only, got %d frames", len(w.frames))
	}

	got := replay(t, w.frames, NewAssembler())
	if len(got) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got))
	}
}

func TestSendAbortsWhenDisconnected(t *testing.T) {
	payload := make([]byte, 3*protocol.ChunkSize)

	w := newRecordingWriter()
	w.live = false
	frames := PairFrames{File: protocol.FileDescriptor{Size: uint64(len(payload)), ChunkCount: 3}}

	err := Send(context.Background(), w, payload, frames, SendOptions{Delay: 1})
	if !errors.Is(err, ErrTransferAborted) {
		t.Errorf("expected ErrTransferAborted, got %v", err)
	}
}

func TestSendAbortsOnWireError(t *testing.T) {
	payload := make([]byte, 3*protocol.ChunkSize)

	w := newRecordingWriter()
	w.failAfter = 3
	frames := PairFrames{File: protocol.FileDescriptor{Size: uint64(len(payload)), ChunkCount: 3}}

	err := Send(context.Background(), w, payload, frames, SendOptions{Delay: 1})
	if !errors.Is(err, ErrTransferAborted) {
		t.Errorf("expected ErrTransferAborted, got %v", err)
	}
}

func TestSendAbortsOnCancel(t *testing.T) {
	payload := make([]byte, 3*protocol.ChunkSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newRecordingWriter()
	frames := PairFrames{File: protocol.FileDescriptor{Size: uint64(len(payload)), ChunkCount: 3}}

	err := Send(ctx, w, payload, frames, SendOptions{Delay: 1})
	if !errors.Is(err, ErrTransferAborted) {
		t.Errorf("expected ErrTransferAborted, got %v", err)
	}
}

func TestSendProgress(t *testing.T) {
	payload := make([]byte, 50000)

	var events []Progress
	w := newRecordingWriter()
	frames := PairFrames{File: protocol.FileDescriptor{Size: 50000, ChunkCount: 4}}
	err := Send(context.Background(), w, payload, frames, SendOptions{
		Delay:      1,
		OnProgress: func(p Progress) { events = append(events, p) },
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(events) != 4 {
		t.Fatalf("expected 4 progress events, got %d", len(events))
	}
	if events[3].Percentage != 100 {
		t.Errorf("expected final percentage 100, got %d", events[3].Percentage)
	}
	if events[1].Count != 2 || events[1].Expected != 4 || events[1].Percentage != 50 {
		t.Errorf("unexpected mid progress: %+v", events[1])
	}
}

func TestBinaryWithoutStart(t *testing.T) {
	asm := NewAssembler()
	if _, err := asm.AddBinary([]byte("stray")); !errors.Is(err, ErrNoActiveTransfer) {
		t.Errorf("expected ErrNoActiveTransfer, got %v", err)
	}
}

func TestChunkBeyondDeclaredCount(t *testing.T) {
	asm := NewAssembler()
	asm.Begin(1)

	if _, err := asm.AddBinary([]byte("one")); err != nil {
		t.Fatalf("AddBinary failed: %v", err)
	}
	if _, err := asm.AddBinary([]byte("two")); !errors.Is(err, ErrUnexpectedChunk) {
		t.Errorf("expected ErrUnexpectedChunk, got %v", err)
	}
}

func TestAssembleIncomplete(t *testing.T) {
	asm := NewAssembler()
	asm.Begin(3)
	if _, err := asm.AddBinary([]byte("only one")); err != nil {
		t.Fatalf("AddBinary failed: %v", err)
	}

	if _, err := asm.Assemble(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
	if asm.Active() {
		t.Error("expected state cleared after failed assembly")
	}
}

func TestRestartDiscardsPriorTransfer(t *testing.T) {
	asm := NewAssembler()
	asm.Begin(2)
	if _, err := asm.AddBinary([]byte("old")); err != nil {
		t.Fatalf("AddBinary failed: %v", err)
	}

	asm.Begin(1)
	if _, err := asm.AddBinary([]byte("new")); err != nil {
		t.Fatalf("AddBinary failed: %v", err)
	}

	payload, err := asm.Assemble()
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if string(payload) != "new" {
		t.Errorf("expected 'new', got %q", payload)
	}
}

// Two concurrent transfers keyed separately must not cross-contaminate,
// even when their frames interleave arbitrarily.
func TestOverlappingTransfersStayIsolated(t *testing.T) {
	first := NewAssembler()
	second := NewAssembler()

	first.Begin(2)
	second.Begin(2)

	steps := []struct {
		asm  *Assembler
		data string
	}{
		{first, "aa"},
		{second, "xx"},
		{second, "yy"},
		{first, "bb"},
	}
	for _, s := range steps {
		if _, err := s.asm.AddBinary([]byte(s.data)); err != nil {
			t.Fatalf("AddBinary failed: %v", err)
		}
	}

	p1, err := first.Assemble()
	if err != nil {
		t.Fatalf("first Assemble failed: %v", err)
	}
	p2, err := second.Assemble()
	if err != nil {
		t.Fatalf("second Assemble failed: %v", err)
	}

	if string(p1) != "aabb" {
		t.Errorf("first transfer corrupted: %q", p1)
	}
	if string(p2) != "xxyy" {
		t.Errorf("second transfer corrupted: %q", p2)
	}
}

func TestCheckDeclaredIndexDrift(t *testing.T) {
	asm := NewAssembler()
	asm.Begin(2)

	if !asm.CheckDeclaredIndex(0) {
		t.Error("expected declared index 0 to match before any chunk")
	}
	if asm.CheckDeclaredIndex(1) {
		t.Error("expected declared index 1 to be flagged as drift")
	}
}

func TestAssembleIncompleteReportsCounts(t *testing.T) {
	asm := NewAssembler()
	asm.Begin(3)
	if _, err := asm.AddBinary([]byte("x")); err != nil {
		t.Fatalf("AddBinary failed: %v", err)
	}

	_, err := asm.Assemble()
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if !strings.Contains(err.Error(), "have 1 of 3") {
		t.Errorf("expected the real counts in the error, got %q", err.Error())
	}
}
