package protocol

// Frame is a control message carried as JSON text over the data channel.
// Binary chunk payloads are not frames; they travel as raw bytes between
// a ChunkStart (or FileChunk) control frame and the next control frame.
type Frame interface {
	Type() FrameType
}

// FileDescriptor announces an upcoming pair-protocol transfer. Computed
// once at send start and never mutated.
type FileDescriptor struct {
	Name       string `json:"name"`
	Size       uint64 `json:"size"`
	MimeType   string `json:"mimeType"`
	ChunkCount uint32 `json:"chunkCount"`
}

// FileStart opens a pair-protocol transfer.
type FileStart struct {
	File FileDescriptor
}

func (FileStart) Type() FrameType { return FrameFileStart }

// ChunkStart precedes each binary frame of a pair-protocol transfer. The
// receiver assigns chunk identity by arrival order; Index is only checked
// defensively.
type ChunkStart struct {
	Index uint32 `json:"index"`
	Size  uint32 `json:"size"`
	Total uint32 `json:"total"`
}

func (ChunkStart) Type() FrameType { return FrameChunkStart }

// FileComplete closes a pair-protocol transfer and triggers assembly.
type FileComplete struct{}

func (FileComplete) Type() FrameType { return FrameFileComplete }

// Sender identifies which side of a broadcast link authored a message.
type Sender string

const (
	SenderHost       Sender = "host"
	SenderSubscriber Sender = "subscriber"
)

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

// ChatMessage is one entry in a broadcast session's append-only log.
type ChatMessage struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	Timestamp    int64       `json:"timestamp"`
	Sender       Sender      `json:"sender"`
	SubscriberID string      `json:"subscriberId,omitempty"`
	Kind         MessageKind `json:"kind"`
	FileName     string      `json:"fileName,omitempty"`
	FileSize     uint64      `json:"fileSize,omitempty"`
}

// CastMessage carries a chat message over the broadcast protocol.
type CastMessage struct {
	Message ChatMessage
}

func (CastMessage) Type() FrameType { return FrameMessage }

// CastFileStart opens a fileId-scoped broadcast transfer. The same fileId
// is shared across every recipient of one fan-out.
type CastFileStart struct {
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	FileSize    uint64 `json:"fileSize"`
	FileType    string `json:"fileType"`
	TotalChunks uint32 `json:"totalChunks"`
}

func (CastFileStart) Type() FrameType { return FrameFileStart }

// CastFileChunk precedes each binary frame of a broadcast transfer.
type CastFileChunk struct {
	FileID      string `json:"fileId"`
	ChunkIndex  uint32 `json:"chunkIndex"`
	TotalChunks uint32 `json:"totalChunks"`
}

func (CastFileChunk) Type() FrameType { return FrameFileChunk }

// CastFileComplete closes a broadcast transfer.
type CastFileComplete struct {
	FileID string `json:"fileId"`
}

func (CastFileComplete) Type() FrameType { return FrameFileComplete }

// UnknownFrame is returned for control frames with an unrecognized tag.
// Callers log and ignore it rather than treating it as a binary chunk.
type UnknownFrame struct {
	Tag string
}

func (UnknownFrame) Type() FrameType { return FrameUnknown }
