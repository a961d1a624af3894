// Package broadcast drives a 1:N session: a host holds one transport per
// subscriber and fans messages and files out across them; a subscriber
// holds exactly one transport back to the host and never models its
// peers.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/09sachin/fileshare/internal/chunker"
	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/signal"
	"github.com/09sachin/fileshare/internal/transport"
)

var (
	ErrRoleViolation     = errors.New("broadcast: operation not valid for this role")
	ErrMalformedOffer    = errors.New("broadcast: offer carries no subscriber id")
	ErrUnknownSubscriber = errors.New("broadcast: answer references no pending offer")
	ErrNotConnected      = errors.New("broadcast: not connected to host")
	ErrDestroyed         = errors.New("broadcast: manager destroyed")
)

type Role int

const (
	RoleHost Role = iota
	RoleSubscriber
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "subscriber"
}

// Options configures a Manager. Callbacks fire on transport goroutines;
// handlers must not assume any particular caller.
type Options struct {
	Role Role
	Name string

	// Factory constructs one transport per link; defaults to WebRTC.
	Factory func(role transport.Role) (transport.Transport, error)

	STUNServers []string
	Logger      *logrus.Logger
	ChunkSize   int
	Delay       time.Duration

	OnMessage          func(protocol.ChatMessage)
	OnFileReceived     func(ReceivedFile)
	OnProgress         func(fileID string, p chunker.Progress)
	OnSubscriberJoined func(Subscriber)
	OnSubscriberLeft   func(Subscriber)
	OnError            func(error)
}

type Manager struct {
	role      Role
	name      string
	log       *logrus.Logger
	factory   func(role transport.Role) (transport.Transport, error)
	chunkSize int
	delay     time.Duration

	onMessage      func(protocol.ChatMessage)
	onFileReceived func(ReceivedFile)
	onProgress     func(fileID string, p chunker.Progress)
	onJoined       func(Subscriber)
	onLeft         func(Subscriber)
	onError        func(error)

	// eventMu serializes joined/left emission so a close racing a join can
	// never surface "left" before "joined" for the same subscriber.
	eventMu sync.Mutex

	// sendMu keeps each chunk's control frame adjacent to its binary frame
	// on the wire; the receiver routes binary frames by the last control
	// frame it saw, so two sequences must never interleave mid-pair.
	sendMu sync.Mutex

	mu        sync.Mutex
	destroyed bool

	// host side; links and subs stay in lockstep while connected
	links     map[string]transport.Transport
	subs      map[string]*Subscriber
	receivers map[string]*linkReceiver

	// subscriber side
	host         transport.Transport
	hostReceiver *linkReceiver
	selfID       string
}

func New(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	factory := opts.Factory
	if factory == nil {
		cfg := transport.Config{STUNServers: opts.STUNServers, Logger: log}
		factory = func(role transport.Role) (transport.Transport, error) {
			return transport.NewWebRTC(role, cfg)
		}
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = protocol.ChunkSize
	}

	return &Manager{
		role:           opts.Role,
		name:           opts.Name,
		log:            log,
		factory:        factory,
		chunkSize:      chunkSize,
		delay:          opts.Delay,
		onMessage:      opts.OnMessage,
		onFileReceived: opts.OnFileReceived,
		onProgress:     opts.OnProgress,
		onJoined:       opts.OnSubscriberJoined,
		onLeft:         opts.OnSubscriberLeft,
		onError:        opts.OnError,
		links:          make(map[string]transport.Transport),
		subs:           make(map[string]*Subscriber),
		receivers:      make(map[string]*linkReceiver),
		hostReceiver:   newLinkReceiver(),
	}
}

func (m *Manager) Role() Role { return m.role }

// SubscriberID returns the id echoed back to the host; empty on a host or
// before CreateAnswer ran.
func (m *Manager) SubscriberID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selfID
}

// Subscribers snapshots the connected membership, host only.
func (m *Manager) Subscribers() []Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, *s)
	}
	return out
}

// CreateOffer allocates a fresh subscriber id and a pending transport for
// it, returning the offer envelope for out-of-band delivery. The pending
// entry becomes a full member once its answer is processed.
func (m *Manager) CreateOffer(ctx context.Context) (signal.Envelope, error) {
	if m.role != RoleHost {
		return signal.Envelope{}, ErrRoleViolation
	}
	if m.isDestroyed() {
		return signal.Envelope{}, ErrDestroyed
	}

	id := uuid.NewString()
	tr, err := m.factory(transport.Initiator)
	if err != nil {
		return signal.Envelope{}, err
	}
	m.wireLink(id, tr)

	m.mu.Lock()
	m.links[id] = tr
	m.receivers[id] = newLinkReceiver()
	m.mu.Unlock()

	ctx, cancel := withNegotiationBound(ctx)
	defer cancel()

	sdp, err := tr.CreateOffer(ctx)
	if err != nil {
		m.dropLink(id)
		_ = tr.Close()
		return signal.Envelope{}, err
	}

	m.log.WithField("subscriber", id).Debug("offer ready")
	return signal.Envelope{Kind: signal.KindOffer, SDP: sdp, SubscriberID: id}, nil
}

// CreateAnswer consumes a host offer on a subscriber and produces the
// answer envelope, echoing the offer's subscriber id.
func (m *Manager) CreateAnswer(ctx context.Context, offer signal.Envelope) (signal.Envelope, error) {
	if m.role != RoleSubscriber {
		return signal.Envelope{}, ErrRoleViolation
	}
	if m.isDestroyed() {
		return signal.Envelope{}, ErrDestroyed
	}
	if offer.Kind != signal.KindOffer || offer.SubscriberID == "" {
		return signal.Envelope{}, ErrMalformedOffer
	}

	tr, err := m.factory(transport.Responder)
	if err != nil {
		return signal.Envelope{}, err
	}
	m.wireHostLink(tr)

	ctx, cancel := withNegotiationBound(ctx)
	defer cancel()

	sdp, err := tr.CreateAnswer(ctx, offer.SDP)
	if err != nil {
		_ = tr.Close()
		return signal.Envelope{}, err
	}

	m.mu.Lock()
	m.host = tr
	m.selfID = offer.SubscriberID
	m.mu.Unlock()

	return signal.Envelope{
		Kind:           signal.KindAnswer,
		SDP:            sdp,
		SubscriberID:   offer.SubscriberID,
		SubscriberName: m.name,
	}, nil
}

// ProcessAnswer completes negotiation with the pending transport the
// answer names, promotes it to a full member, and greets the newcomer
// privately. A stale or forged envelope fails without touching any state.
func (m *Manager) ProcessAnswer(answer signal.Envelope) error {
	if m.role != RoleHost {
		return ErrRoleViolation
	}
	if answer.Kind != signal.KindAnswer || answer.SubscriberID == "" {
		return ErrUnknownSubscriber
	}

	m.mu.Lock()
	tr, ok := m.links[answer.SubscriberID]
	promoted := m.subs[answer.SubscriberID] != nil
	m.mu.Unlock()
	if !ok || promoted {
		return ErrUnknownSubscriber
	}

	if err := tr.Signal(answer.SDP); err != nil {
		return err
	}

	sub := &Subscriber{
		ID:        answer.SubscriberID,
		Name:      answer.SubscriberName,
		Connected: true,
		JoinedAt:  time.Now(),
	}

	m.eventMu.Lock()
	m.mu.Lock()
	if _, live := m.links[sub.ID]; !live {
		// The link closed between Signal and promotion. removeSubscriber
		// already ran and found no member, so promoting now would strand a
		// ghost entry and fire "joined" with no matching "left".
		m.mu.Unlock()
		m.eventMu.Unlock()
		return ErrUnknownSubscriber
	}
	m.subs[sub.ID] = sub
	m.mu.Unlock()
	m.log.WithFields(logrus.Fields{
		"subscriber": sub.ID,
		"name":       sub.Name,
	}).Info("subscriber joined")
	if m.onJoined != nil {
		m.onJoined(*sub)
	}
	m.eventMu.Unlock()

	m.sendWelcome(sub)
	return nil
}

func (m *Manager) sendWelcome(sub *Subscriber) {
	name := sub.Name
	if name == "" {
		name = sub.ID
	}
	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		Content:   "Welcome, " + name + "!",
		Timestamp: time.Now().UnixMilli(),
		Sender:    protocol.SenderHost,
		Kind:      protocol.KindText,
	}
	if err := m.sendToSubscriber(sub.ID, msg); err != nil {
		m.log.Warnf("welcome to %s undelivered: %v", sub.ID, err)
	}
}

func (m *Manager) sendToSubscriber(id string, msg protocol.ChatMessage) error {
	m.mu.Lock()
	tr, ok := m.links[id]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSubscriber
	}

	data, err := protocol.Encode(protocol.CastMessage{Message: msg})
	if err != nil {
		return err
	}
	return tr.Send(data)
}

// SendMessage builds a chat message and delivers it best-effort: the host
// fans out to targets (default all connected members) with each transport
// send logged individually, a subscriber sends only to the host link. The
// message always surfaces locally through the message callback regardless
// of delivery outcome.
func (m *Manager) SendMessage(content string, targets ...string) (protocol.ChatMessage, error) {
	if m.isDestroyed() {
		return protocol.ChatMessage{}, ErrDestroyed
	}

	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Kind:      protocol.KindText,
	}

	if m.role == RoleHost {
		msg.Sender = protocol.SenderHost
	} else {
		msg.Sender = protocol.SenderSubscriber
		msg.SubscriberID = m.SubscriberID()
	}

	data, err := protocol.Encode(protocol.CastMessage{Message: msg})
	if err != nil {
		return protocol.ChatMessage{}, err
	}

	if m.role == RoleHost {
		for id, tr := range m.targetLinks(targets) {
			if err := tr.Send(data); err != nil {
				m.log.Warnf("message %s to %s undelivered: %v", msg.ID, id, err)
			}
		}
	} else {
		m.mu.Lock()
		host := m.host
		m.mu.Unlock()
		if host == nil {
			m.log.Warnf("message %s undelivered: no host link", msg.ID)
		} else if err := host.Send(data); err != nil {
			m.log.Warnf("message %s to host undelivered: %v", msg.ID, err)
		}
	}

	if m.onMessage != nil {
		m.onMessage(msg)
	}
	return msg, nil
}

// targetLinks resolves explicit targets, or every connected member when
// none are named, against the live transport map.
func (m *Manager) targetLinks(targets []string) map[string]transport.Transport {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]transport.Transport)
	if len(targets) == 0 {
		for id := range m.subs {
			if tr, ok := m.links[id]; ok {
				out[id] = tr
			}
		}
		return out
	}
	for _, id := range targets {
		if tr, ok := m.links[id]; ok {
			out[id] = tr
		}
	}
	return out
}

// fanOut replicates every frame of one send sequence to each target
// transport independently, best-effort. One sequence, one fileId, one
// aggregate progress stream regardless of recipient count.
type fanOut struct {
	m       *Manager
	targets []string
}

func (f *fanOut) Send(data []byte) error {
	for id, tr := range f.m.targetLinks(f.targets) {
		if err := tr.Send(data); err != nil {
			f.m.log.Warnf("chunk to %s undelivered: %v", id, err)
		}
	}
	return nil
}

func (f *fanOut) Connected() bool {
	return !f.m.isDestroyed()
}

// SendFile streams one file to every target as a single chunk sequence
// sharing one fileId. Host only.
func (m *Manager) SendFile(ctx context.Context, f File, targets ...string) (string, error) {
	if m.role != RoleHost {
		return "", ErrRoleViolation
	}
	if m.isDestroyed() {
		return "", ErrDestroyed
	}

	fileID := uuid.NewString()
	frames := chunker.CastFrames{
		FileID:      fileID,
		FileName:    f.Name,
		FileSize:    uint64(len(f.Data)),
		FileType:    f.MimeType,
		TotalChunks: chunker.ChunkCount(uint64(len(f.Data)), m.chunkSize),
	}

	m.log.WithFields(logrus.Fields{
		"fileId": fileID,
		"name":   f.Name,
		"size":   len(f.Data),
	}).Info("broadcasting file")

	var onProgress func(chunker.Progress)
	if m.onProgress != nil {
		onProgress = func(p chunker.Progress) { m.onProgress(fileID, p) }
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	err := chunker.Send(ctx, &fanOut{m: m, targets: targets}, f.Data, frames, chunker.SendOptions{
		ChunkSize:  m.chunkSize,
		Delay:      m.delay,
		OnProgress: onProgress,
	})
	if err != nil {
		return fileID, err
	}
	return fileID, nil
}

func (m *Manager) wireLink(id string, tr transport.Transport) {
	tr.OnConnect(func() {
		m.log.WithField("subscriber", id).Debug("link open")
	})

	tr.OnData(func(data []byte) {
		m.mu.Lock()
		recv := m.receivers[id]
		m.mu.Unlock()
		if recv != nil {
			m.handleData(recv, id, data)
		}
	})

	tr.OnError(func(err error) {
		m.log.Warnf("link %s error: %v", id, err)
		if m.onError != nil {
			m.onError(err)
		}
	})

	tr.OnClose(func() {
		m.removeSubscriber(id)
	})
}

// removeSubscriber tears one member down exactly once, firing "left" only
// for members that actually joined. Close and error for the same link
// collapse into a single removal because the first pass empties the maps.
func (m *Manager) removeSubscriber(id string) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	m.mu.Lock()
	sub := m.subs[id]
	delete(m.subs, id)
	delete(m.links, id)
	recv := m.receivers[id]
	delete(m.receivers, id)
	m.mu.Unlock()

	if recv != nil {
		recv.reset()
	}
	if sub == nil {
		return
	}

	sub.Connected = false
	m.log.WithField("subscriber", id).Info("subscriber left")
	if m.onLeft != nil {
		m.onLeft(*sub)
	}
}

func (m *Manager) dropLink(id string) {
	m.mu.Lock()
	delete(m.links, id)
	delete(m.receivers, id)
	m.mu.Unlock()
}

func (m *Manager) wireHostLink(tr transport.Transport) {
	tr.OnConnect(func() {
		m.log.Info("connected to host")
	})

	tr.OnData(func(data []byte) {
		m.handleData(m.hostReceiver, "", data)
	})

	tr.OnError(func(err error) {
		m.log.Warnf("host link error: %v", err)
		if m.onError != nil {
			m.onError(err)
		}
	})

	tr.OnClose(func() {
		m.log.Info("host link closed")
		m.hostReceiver.reset()
	})
}

// handleData routes one inbound transport message: control frames by tag,
// anything that does not parse as control to the link's active transfer.
func (m *Manager) handleData(recv *linkReceiver, from string, data []byte) {
	frame, err := protocol.DecodeBroadcast(data)
	if errors.Is(err, protocol.ErrNotControl) {
		m.handleBinary(recv, data)
		return
	}
	if err != nil {
		m.log.Warnf("dropping undecodable control frame: %v", err)
		return
	}

	switch f := frame.(type) {
	case protocol.CastMessage:
		if m.onMessage != nil {
			m.onMessage(f.Message)
		}

	case protocol.CastFileStart:
		m.log.WithFields(logrus.Fields{
			"fileId": f.FileID,
			"name":   f.FileName,
			"chunks": f.TotalChunks,
		}).Info("incoming broadcast file")
		recv.begin(f)

	case protocol.CastFileChunk:
		inOrder, err := recv.note(f)
		if err != nil {
			m.log.Warnf("chunk control for unknown transfer: %v", err)
			return
		}
		if !inOrder {
			m.log.Warnf("declared chunk index %d drifted from arrival order", f.ChunkIndex)
		}

	case protocol.CastFileComplete:
		meta, payload, err := recv.complete(f.FileID)
		if err != nil {
			m.log.Errorf("assembly of %s failed: %v", f.FileID, err)
			if m.onError != nil {
				m.onError(err)
			}
			return
		}
		if m.onFileReceived != nil {
			m.onFileReceived(ReceivedFile{
				FileID:   meta.FileID,
				Name:     meta.FileName,
				MimeType: meta.FileType,
				From:     from,
				Data:     payload,
			})
		}

	case protocol.UnknownFrame:
		// A payload chunk can itself be JSON with a "type" key. Only a
		// recognized tag makes a message control traffic; mid-transfer,
		// anything else is the next binary frame.
		if recv.active() {
			m.handleBinary(recv, data)
			return
		}
		m.log.Warnf("ignoring control frame with unknown tag %q", f.Tag)
	}
}

func (m *Manager) handleBinary(recv *linkReceiver, data []byte) {
	fileID, p, err := recv.addBinary(data)
	if err != nil {
		m.log.Warnf("dropping binary frame: %v", err)
		return
	}
	if m.onProgress != nil {
		m.onProgress(fileID, p)
	}
}

// Destroy closes every owned transport and clears all state. Idempotent.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	links := m.links
	host := m.host
	m.links = make(map[string]transport.Transport)
	m.subs = make(map[string]*Subscriber)
	m.receivers = make(map[string]*linkReceiver)
	m.host = nil
	m.mu.Unlock()

	for _, tr := range links {
		_ = tr.Close()
	}
	if host != nil {
		_ = host.Close()
	}
	m.hostReceiver.reset()
}

func (m *Manager) isDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

func withNegotiationBound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, protocol.NegotiationTimeout)
}
