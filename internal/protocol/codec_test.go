package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodePairFileStart(t *testing.T) {
	frame := FileStart{File: FileDescriptor{
		Name:       "photo.png",
		Size:       50000,
		MimeType:   "image/png",
		ChunkCount: 4,
	}}

	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodePair(data)
	if err != nil {
		t.Fatalf("DecodePair failed: %v", err)
	}

	fs, ok := decoded.(FileStart)
	if !ok {
		t.Fatalf("expected FileStart, got %T", decoded)
	}
	if fs.File != frame.File {
		t.Errorf("descriptor mismatch: %+v != %+v", fs.File, frame.File)
	}
}

func TestEncodeDecodeChunkStart(t *testing.T) {
	frame := ChunkStart{Index: 2, Size: 848, Total: 4}

	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodePair(data)
	if err != nil {
		t.Fatalf("DecodePair failed: %v", err)
	}

	cs, ok := decoded.(ChunkStart)
	if !ok {
		t.Fatalf("expected ChunkStart, got %T", decoded)
	}
	if cs != frame {
		t.Errorf("expected %+v, got %+v", frame, cs)
	}
}

func TestEncodeFileCompleteOmitsData(t *testing.T) {
	data, err := Encode(FileComplete{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if string(raw["type"]) != `"fileComplete"` {
		t.Errorf("expected type fileComplete, got %s", raw["type"])
	}
	if _, exists := raw["data"]; exists {
		t.Error("expected no data field on fileComplete")
	}
}

func TestWireTags(t *testing.T) {
	cases := []struct {
		frame Frame
		tag   string
	}{
		{FileStart{}, "fileStart"},
		{ChunkStart{}, "chunkStart"},
		{FileComplete{}, "fileComplete"},
		{CastMessage{}, "message"},
		{CastFileStart{}, "fileStart"},
		{CastFileChunk{}, "fileChunk"},
		{CastFileComplete{}, "fileComplete"},
	}

	for _, c := range cases {
		data, err := Encode(c.frame)
		if err != nil {
			t.Fatalf("Encode %T failed: %v", c.frame, err)
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal %T envelope: %v", c.frame, err)
		}
		if env.Type != c.tag {
			t.Errorf("%T: expected tag %q, got %q", c.frame, c.tag, env.Type)
		}
	}
}

func TestEncodeDecodeBroadcastMessage(t *testing.T) {
	frame := CastMessage{Message: ChatMessage{
		ID:        "msg-1",
		Content:   "hello",
		Timestamp: 1700000000,
		Sender:    SenderHost,
		Kind:      KindText,
	}}

	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodeBroadcast(data)
	if err != nil {
		t.Fatalf("DecodeBroadcast failed: %v", err)
	}

	msg, ok := decoded.(CastMessage)
	if !ok {
		t.Fatalf("expected CastMessage, got %T", decoded)
	}
	if msg.Message != frame.Message {
		t.Errorf("message mismatch: %+v != %+v", msg.Message, frame.Message)
	}
}

func TestEncodeDecodeBroadcastFileFrames(t *testing.T) {
	start := CastFileStart{
		FileID:      "f-1",
		FileName:    "notes.txt",
		FileSize:    40000,
		FileType:    "text/plain",
		TotalChunks: 3,
	}
	data, err := Encode(start)
	if err != nil {
		t.Fatalf("Encode CastFileStart failed: %v", err)
	}
	decoded, err := DecodeBroadcast(data)
	if err != nil {
		t.Fatalf("DecodeBroadcast failed: %v", err)
	}
	if got, ok := decoded.(CastFileStart); !ok || got != start {
		t.Errorf("expected %+v, got %+v", start, decoded)
	}

	chunk := CastFileChunk{FileID: "f-1", ChunkIndex: 1, TotalChunks: 3}
	data, err = Encode(chunk)
	if err != nil {
		t.Fatalf("Encode CastFileChunk failed: %v", err)
	}
	decoded, err = DecodeBroadcast(data)
	if err != nil {
		t.Fatalf("DecodeBroadcast failed: %v", err)
	}
	if got, ok := decoded.(CastFileChunk); !ok || got != chunk {
		t.Errorf("expected %+v, got %+v", chunk, decoded)
	}

	done := CastFileComplete{FileID: "f-1"}
	data, err = Encode(done)
	if err != nil {
		t.Fatalf("Encode CastFileComplete failed: %v", err)
	}
	decoded, err = DecodeBroadcast(data)
	if err != nil {
		t.Fatalf("DecodeBroadcast failed: %v", err)
	}
	if got, ok := decoded.(CastFileComplete); !ok || got != done {
		t.Errorf("expected %+v, got %+v", done, decoded)
	}
}

func TestDecodeBinaryIsNotControl(t *testing.T) {
	binary := []byte{0x00, 0x01, 0xfe, 0xff, 0x42}

	if _, err := DecodePair(binary); !errors.Is(err, ErrNotControl) {
		t.Errorf("expected ErrNotControl, got %v", err)
	}
	if _, err := DecodeBroadcast(binary); !errors.Is(err, ErrNotControl) {
		t.Errorf("expected ErrNotControl, got %v", err)
	}
}

func TestDecodeJSONWithoutTypeIsNotControl(t *testing.T) {
	data := []byte(`{"hello":"world"}`)
	if _, err := DecodePair(data); !errors.Is(err, ErrNotControl) {
		t.Errorf("expected ErrNotControl, got %v", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	data := []byte(`{"type":"renegotiate","data":{}}`)

	decoded, err := DecodePair(data)
	if err != nil {
		t.Fatalf("DecodePair failed: %v", err)
	}
	unknown, ok := decoded.(UnknownFrame)
	if !ok {
		t.Fatalf("expected UnknownFrame, got %T", decoded)
	}
	if unknown.Tag != "renegotiate" {
		t.Errorf("expected tag 'renegotiate', got %q", unknown.Tag)
	}
}

func TestDecodePairRejectsBroadcastOnlyTag(t *testing.T) {
	data, err := Encode(CastMessage{Message: ChatMessage{ID: "m"}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := DecodePair(data)
	if err != nil {
		t.Fatalf("DecodePair failed: %v", err)
	}
	if _, ok := decoded.(UnknownFrame); !ok {
		t.Errorf("expected UnknownFrame for broadcast tag in pair protocol, got %T", decoded)
	}
}
