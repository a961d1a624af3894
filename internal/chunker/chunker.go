// Package chunker implements the shared split/reassemble algorithm used by
// both transfer protocols. Framing metadata rides in separate control
// messages so binary frames stay byte-identical to the source slices; the
// cost is a strict ordering dependency the transport must honor.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/09sachin/fileshare/internal/protocol"
)

var (
	// ErrIncomplete is raised when assembly runs with missing chunks.
	ErrIncomplete = errors.New("chunker: transfer incomplete")

	// ErrNoActiveTransfer marks a binary frame that arrived with no start
	// control frame before it.
	ErrNoActiveTransfer = errors.New("chunker: no active transfer")

	// ErrUnexpectedChunk marks a binary frame beyond the declared count.
	ErrUnexpectedChunk = errors.New("chunker: chunk beyond declared count")

	// ErrTransferAborted is raised when the transport dies mid-send.
	ErrTransferAborted = errors.New("chunker: transfer aborted")
)

// ChunkCount is ceil(size/chunkSize); zero for an empty payload.
func ChunkCount(size uint64, chunkSize int) uint32 {
	if chunkSize <= 0 {
		return 0
	}
	return uint32((size + uint64(chunkSize) - 1) / uint64(chunkSize))
}

// Progress reports receive or send position within one transfer.
type Progress struct {
	Count      uint32
	Expected   uint32
	Percentage int
}

func progressAt(count, expected uint32) Progress {
	pct := 100
	if expected > 0 {
		pct = int(math.Round(100 * float64(count) / float64(expected)))
	}
	return Progress{Count: count, Expected: expected, Percentage: pct}
}

// FrameSet builds the control frames for one protocol family, so the pair
// and broadcast variants share one send loop.
type FrameSet interface {
	Start() protocol.Frame
	Chunk(index, size, total uint32) protocol.Frame
	Complete() protocol.Frame
}

// PairFrames builds pair-protocol control frames.
type PairFrames struct {
	File protocol.FileDescriptor
}

func (f PairFrames) Start() protocol.Frame { return protocol.FileStart{File: f.File} }

func (PairFrames) Chunk(index, size, total uint32) protocol.Frame {
	return protocol.ChunkStart{Index: index, Size: size, Total: total}
}

func (PairFrames) Complete() protocol.Frame { return protocol.FileComplete{} }

// CastFrames builds broadcast-protocol control frames, scoped by fileId.
type CastFrames struct {
	FileID      string
	FileName    string
	FileSize    uint64
	FileType    string
	TotalChunks uint32
}

func (f CastFrames) Start() protocol.Frame {
	return protocol.CastFileStart{
		FileID:      f.FileID,
		FileName:    f.FileName,
		FileSize:    f.FileSize,
		FileType:    f.FileType,
		TotalChunks: f.TotalChunks,
	}
}

func (f CastFrames) Chunk(index, _, total uint32) protocol.Frame {
	return protocol.CastFileChunk{FileID: f.FileID, ChunkIndex: index, TotalChunks: total}
}

func (f CastFrames) Complete() protocol.Frame {
	return protocol.CastFileComplete{FileID: f.FileID}
}

// FrameWriter is the slice of a transport the send loop needs. Broadcast
// fan-out substitutes a writer that replicates each frame to every target.
type FrameWriter interface {
	Send(data []byte) error
	Connected() bool
}

// SendOptions tune one send sequence.
type SendOptions struct {
	ChunkSize  int           // defaults to protocol.ChunkSize
	Delay      time.Duration // defaults to protocol.InterChunkDelay
	OnProgress func(Progress)
}

// Send streams payload through w as one strict sequence: start, then per
// chunk a control frame immediately followed by the raw bytes, then
// complete. The receiver has no independent framing channel, so nothing
// here may reorder or parallelize. Transport liveness is checked before
// every chunk; a dead transport aborts rather than iterating on.
func Send(ctx context.Context, w FrameWriter, payload []byte, frames FrameSet, opts SendOptions) error {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = protocol.ChunkSize
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = protocol.InterChunkDelay
	}

	total := ChunkCount(uint64(len(payload)), chunkSize)

	if err := sendFrame(w, frames.Start()); err != nil {
		return err
	}

	for i := uint32(0); i < total; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferAborted, err)
		}
		if !w.Connected() {
			return ErrTransferAborted
		}

		lo := int(i) * chunkSize
		hi := lo + chunkSize
		if hi > len(payload) {
			hi = len(payload)
		}
		chunk := payload[lo:hi]

		if err := sendFrame(w, frames.Chunk(i, uint32(len(chunk)), total)); err != nil {
			return err
		}
		if err := w.Send(chunk); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferAborted, err)
		}

		if opts.OnProgress != nil {
			opts.OnProgress(progressAt(i+1, total))
		}

		if i+1 < total {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrTransferAborted, ctx.Err())
			}
		}
	}

	return sendFrame(w, frames.Complete())
}

func sendFrame(w FrameWriter, f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	if err := w.Send(data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferAborted, err)
	}
	return nil
}
