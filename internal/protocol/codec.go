package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotControl marks an inbound message that does not parse as a control
// frame. When a transfer is active the caller treats such a message as the
// next binary chunk.
var ErrNotControl = errors.New("protocol: not a control frame")

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serializes a control frame to its wire form.
func Encode(f Frame) ([]byte, error) {
	env := envelope{Type: string(f.Type())}

	var payload any
	switch v := f.(type) {
	case FileStart:
		payload = v.File
	case ChunkStart:
		payload = v
	case FileComplete:
		payload = nil
	case CastMessage:
		payload = v.Message
	case CastFileStart:
		payload = v
	case CastFileChunk:
		payload = v
	case CastFileComplete:
		payload = v
	default:
		return nil, fmt.Errorf("protocol: cannot encode frame type %q", f.Type())
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", f.Type(), err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// DecodePair parses a pair-protocol control frame. Returns ErrNotControl
// when the message is not JSON control text at all, and UnknownFrame when
// the tag is not part of the pair protocol.
func DecodePair(data []byte) (Frame, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch FrameType(env.Type) {
	case FrameFileStart:
		var fd FileDescriptor
		if err := json.Unmarshal(env.Data, &fd); err != nil {
			return nil, fmt.Errorf("protocol: bad fileStart data: %w", err)
		}
		return FileStart{File: fd}, nil
	case FrameChunkStart:
		var cs ChunkStart
		if err := json.Unmarshal(env.Data, &cs); err != nil {
			return nil, fmt.Errorf("protocol: bad chunkStart data: %w", err)
		}
		return cs, nil
	case FrameFileComplete:
		return FileComplete{}, nil
	default:
		return UnknownFrame{Tag: env.Type}, nil
	}
}

// DecodeBroadcast parses a broadcast-protocol control frame. Same contract
// as DecodePair, over the broadcast tag set.
func DecodeBroadcast(data []byte) (Frame, error) {
	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch FrameType(env.Type) {
	case FrameMessage:
		var msg ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("protocol: bad message data: %w", err)
		}
		return CastMessage{Message: msg}, nil
	case FrameFileStart:
		var fs CastFileStart
		if err := json.Unmarshal(env.Data, &fs); err != nil {
			return nil, fmt.Errorf("protocol: bad fileStart data: %w", err)
		}
		return fs, nil
	case FrameFileChunk:
		var fc CastFileChunk
		if err := json.Unmarshal(env.Data, &fc); err != nil {
			return nil, fmt.Errorf("protocol: bad fileChunk data: %w", err)
		}
		return fc, nil
	case FrameFileComplete:
		var done CastFileComplete
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &done); err != nil {
				return nil, fmt.Errorf("protocol: bad fileComplete data: %w", err)
			}
		}
		return done, nil
	default:
		return UnknownFrame{Tag: env.Type}, nil
	}
}

func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, ErrNotControl
	}
	if env.Type == "" {
		return envelope{}, ErrNotControl
	}
	return env, nil
}
