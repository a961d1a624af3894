package broadcast

import "time"

// Subscriber is the host's record of one joined member. Owned by the host
// manager; created when an answer is processed, removed when the member's
// transport closes or errors.
type Subscriber struct {
	ID        string
	Name      string
	Connected bool
	JoinedAt  time.Time
}

// File is an outbound payload for one fan-out.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// ReceivedFile is an assembled inbound transfer. From carries the sending
// subscriber's id on the host side and is empty on a subscriber, whose
// only sender is the host.
type ReceivedFile struct {
	FileID   string
	Name     string
	MimeType string
	From     string
	Data     []byte
}
