package protocol

import "time"

const (
	// ChunkSize is the fixed payload slice carried by one binary frame.
	// Both sides must agree on it for chunkCount arithmetic to line up.
	ChunkSize = 16 * 1024

	// MaxPayloadSize is enforced at the boundary before any negotiation
	// begins, never inside the codec.
	MaxPayloadSize = 100 * 1024 * 1024

	// NegotiationTimeout bounds the wait for a local descriptor. Nothing
	// bounds a post-connect stall; only close/error signals detect those.
	NegotiationTimeout = 30 * time.Second

	// InterChunkDelay is a coarse throttle between chunk sends, not flow
	// control. A slow receiver can still buffer without bound.
	InterChunkDelay = 5 * time.Millisecond
)

type FrameType string

const (
	FrameFileStart    FrameType = "fileStart"
	FrameChunkStart   FrameType = "chunkStart"
	FrameFileComplete FrameType = "fileComplete"
	FrameMessage      FrameType = "message"
	FrameFileChunk    FrameType = "fileChunk"
	FrameUnknown      FrameType = "unknown"
)

func (t FrameType) String() string {
	switch t {
	case FrameFileStart:
		return "FILE_START"
	case FrameChunkStart:
		return "CHUNK_START"
	case FrameFileComplete:
		return "FILE_COMPLETE"
	case FrameMessage:
		return "MESSAGE"
	case FrameFileChunk:
		return "FILE_CHUNK"
	default:
		return "UNKNOWN"
	}
}
