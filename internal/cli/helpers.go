package cli

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/signal"
)

// stdin is shared across prompts so no input is lost between reads.
// Encoded envelopes are single lines but can run long; the buffer must
// hold a full one.
var stdin = bufio.NewReaderSize(os.Stdin, 1<<20)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readEnvelope(prompt string) (signal.Envelope, error) {
	fmt.Print(prompt)
	line, err := readLine()
	if err != nil {
		return signal.Envelope{}, err
	}
	return signal.Decode(line)
}

func printEnvelope(label string, env signal.Envelope) error {
	code, err := env.Encode()
	if err != nil {
		return err
	}
	fmt.Println(label)
	fmt.Println(code)
	return nil
}

// loadPayload reads a file for sending, rejecting anything past the
// payload ceiling before it touches memory wholesale.
func loadPayload(path string) (name, mimeType string, data []byte, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", nil, err
	}
	if info.Size() > protocol.MaxPayloadSize {
		return "", "", nil, fmt.Errorf("%s is %d bytes, above the %d byte limit", path, info.Size(), protocol.MaxPayloadSize)
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return "", "", nil, err
	}

	mimeType = mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return filepath.Base(path), mimeType, data, nil
}

// savePayload writes a received file under dir, using only the base of
// the advertised name so a hostile sender cannot pick the directory.
func savePayload(dir, name string, data []byte) (string, error) {
	if name == "" {
		name = "received.bin"
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
