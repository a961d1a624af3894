package broadcast

import (
	"fmt"
	"sync"

	"github.com/09sachin/fileshare/internal/chunker"
	"github.com/09sachin/fileshare/internal/protocol"
)

// linkReceiver tracks every in-flight inbound transfer on one transport,
// keyed by fileId so concurrent transfers from the same sender stay
// independent. Binary frames carry no fileId of their own; the most recent
// fileStart/fileChunk control frame names the transfer the next binary
// frame belongs to.
type linkReceiver struct {
	mu        sync.Mutex
	transfers map[string]*incomingFile
	current   string
}

type incomingFile struct {
	asm  *chunker.Assembler
	meta protocol.CastFileStart
}

func newLinkReceiver() *linkReceiver {
	return &linkReceiver{transfers: make(map[string]*incomingFile)}
}

func (r *linkReceiver) begin(meta protocol.CastFileStart) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in := &incomingFile{asm: chunker.NewAssembler(), meta: meta}
	in.asm.Begin(meta.TotalChunks)
	r.transfers[meta.FileID] = in
	r.current = meta.FileID
}

// note points the next binary frame at the transfer named by a fileChunk
// control frame. Returns false when the declared index has drifted from
// arrival order.
func (r *linkReceiver) note(chunk protocol.CastFileChunk) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.transfers[chunk.FileID]
	if !ok {
		return false, fmt.Errorf("%w: fileId %s", chunker.ErrNoActiveTransfer, chunk.FileID)
	}
	r.current = chunk.FileID
	return in.asm.CheckDeclaredIndex(chunk.ChunkIndex), nil
}

// active reports whether a binary frame arriving now has a transfer to
// land in.
func (r *linkReceiver) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.transfers[r.current]
	return ok
}

func (r *linkReceiver) addBinary(data []byte) (string, chunker.Progress, error) {
	r.mu.Lock()
	in, ok := r.transfers[r.current]
	fileID := r.current
	r.mu.Unlock()

	if !ok {
		return "", chunker.Progress{}, chunker.ErrNoActiveTransfer
	}

	p, err := in.asm.AddBinary(data)
	return fileID, p, err
}

// complete assembles and discards the named transfer.
func (r *linkReceiver) complete(fileID string) (protocol.CastFileStart, []byte, error) {
	r.mu.Lock()
	in, ok := r.transfers[fileID]
	delete(r.transfers, fileID)
	if r.current == fileID {
		r.current = ""
	}
	r.mu.Unlock()

	if !ok {
		return protocol.CastFileStart{}, nil, fmt.Errorf("%w: fileId %s", chunker.ErrNoActiveTransfer, fileID)
	}

	payload, err := in.asm.Assemble()
	if err != nil {
		return in.meta, nil, err
	}
	return in.meta, payload, nil
}

func (r *linkReceiver) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.transfers {
		in.asm.Reset()
	}
	r.transfers = make(map[string]*incomingFile)
	r.current = ""
}
