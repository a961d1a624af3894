// Package pair drives a 1:1 transfer session: one transport, one
// offer/answer handshake, one file streamed in one direction.
package pair

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/09sachin/fileshare/internal/chunker"
	"github.com/09sachin/fileshare/internal/protocol"
	"github.com/09sachin/fileshare/internal/signal"
	"github.com/09sachin/fileshare/internal/transport"
)

var (
	ErrNotConnected = errors.New("pair: not connected")
	ErrNoTransport  = errors.New("pair: transport not created")
	ErrDestroyed    = errors.New("pair: manager destroyed")
)

type State int

const (
	Idle State = iota
	AwaitingLocalSignal
	AwaitingRemoteSignal
	Connected
	Transferring
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingLocalSignal:
		return "awaiting-local-signal"
	case AwaitingRemoteSignal:
		return "awaiting-remote-signal"
	case Connected:
		return "connected"
	case Transferring:
		return "transferring"
	case Complete:
		return "complete"
	default:
		return "failed"
	}
}

// File is one payload with its identity; the data-bearing twin of
// protocol.FileDescriptor.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

func (f File) descriptor(chunkSize int) protocol.FileDescriptor {
	return protocol.FileDescriptor{
		Name:       f.Name,
		Size:       uint64(len(f.Data)),
		MimeType:   f.MimeType,
		ChunkCount: chunker.ChunkCount(uint64(len(f.Data)), chunkSize),
	}
}

// Options configures a Manager. Callbacks fire on transport goroutines.
type Options struct {
	// Factory constructs the transport; defaults to WebRTC. Tests inject
	// memory transports here.
	Factory func(role transport.Role) (transport.Transport, error)

	STUNServers []string
	Logger      *logrus.Logger
	ChunkSize   int
	Delay       time.Duration

	OnConnected    func()
	OnDisconnected func()
	OnProgress     func(chunker.Progress)
	OnFileReceived func(File)
	OnError        func(error)
}

// Manager owns exactly one transport and destroys it on teardown.
type Manager struct {
	log       *logrus.Logger
	factory   func(role transport.Role) (transport.Transport, error)
	chunkSize int
	delay     time.Duration

	onConnected    func()
	onDisconnected func()
	onProgress     func(chunker.Progress)
	onFileReceived func(File)
	onError        func(error)

	mu        sync.Mutex
	state     State
	tr        transport.Transport
	asm       *chunker.Assembler
	outgoing  *File
	remote    *protocol.FileDescriptor
	destroyed bool
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
		log:            log,
		factory:        factory,
		chunkSize:      chunkSize,
		delay:          opts.Delay,
		onConnected:    opts.OnConnected,
		onDisconnected: opts.OnDisconnected,
		onProgress:     opts.OnProgress,
		onFileReceived: opts.OnFileReceived,
		onError:        opts.OnError,
		state:          Idle,
		asm:            chunker.NewAssembler(),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetOutgoingFile records the payload this side intends to send, so the
// offer can carry its descriptor for a remote preview.
func (m *Manager) SetOutgoingFile(f File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outgoing = &f
}

// CreatePeer constructs the transport in the given role. An initiator
// returns its offer envelope; a responder returns an empty envelope and
// produces its answer from ConnectToPeer once the offer arrives.
func (m *Manager) CreatePeer(ctx context.Context, isInitiator bool) (signal.Envelope, error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return signal.Envelope{}, ErrDestroyed
	}
	if m.tr != nil {
		m.mu.Unlock()
		return signal.Envelope{}, errors.New("pair: peer already created")
	}
	outgoing := m.outgoing
	m.mu.Unlock()

	role := transport.Responder
	if isInitiator {
		role = transport.Initiator
	}

	tr, err := m.factory(role)
	if err != nil {
		return signal.Envelope{}, err
	}
	m.wireTransport(tr)

	m.mu.Lock()
	m.tr = tr
	m.mu.Unlock()

	if !isInitiator {
		m.setState(AwaitingRemoteSignal)
		return signal.Envelope{}, nil
	}

	m.setState(AwaitingLocalSignal)

	ctx, cancel := withNegotiationBound(ctx)
	defer cancel()

	sdp, err := tr.CreateOffer(ctx)
	if err != nil {
		m.setState(Failed)
		return signal.Envelope{}, err
	}

	env := signal.Envelope{Kind: signal.KindOffer, SDP: sdp}
	if outgoing != nil {
		desc := outgoing.descriptor(m.chunkSize)
		env.File = &desc
	}

	m.setState(AwaitingRemoteSignal)
	return env, nil
}

// ConnectToPeer feeds the remote envelope into the local transport. A
// responder consuming an offer returns its answer envelope; an initiator
// consuming an answer returns an empty one. A malformed or role-mismatched
// envelope is reported without corrupting the session.
func (m *Manager) ConnectToPeer(ctx context.Context, env signal.Envelope) (signal.Envelope, error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return signal.Envelope{}, ErrDestroyed
	}
	tr := m.tr
	m.mu.Unlock()

	if tr == nil {
		return signal.Envelope{}, ErrNoTransport
	}

	if env.File != nil {
		m.mu.Lock()
		remote := *env.File
		m.remote = &remote
		m.mu.Unlock()
	}

	switch env.Kind {
	case signal.KindOffer:
		ctx, cancel := withNegotiationBound(ctx)
		defer cancel()

		sdp, err := tr.CreateAnswer(ctx, env.SDP)
		if err != nil {
			return signal.Envelope{}, err
		}
		return signal.Envelope{Kind: signal.KindAnswer, SDP: sdp}, nil

	case signal.KindAnswer:
		if err := tr.Signal(env.SDP); err != nil {
			return signal.Envelope{}, err
		}
		return signal.Envelope{}, nil

	default:
		return signal.Envelope{}, signal.ErrMalformedEnvelope
	}
}

func (m *Manager) wireTransport(tr transport.Transport) {
	tr.OnConnect(func() {
		m.setState(Connected)
		m.log.Info("pair link connected")
		if m.onConnected != nil {
			m.onConnected()
		}
	})

	tr.OnData(m.handleData)

	tr.OnError(func(err error) {
		m.log.Warnf("pair transport error: %v", err)
		if m.onError != nil {
			m.onError(err)
		}
	})

	tr.OnClose(func() {
		m.mu.Lock()
		terminal := m.state == Complete || m.destroyed
		if !terminal {
			m.state = Failed
		}
		m.asm.Reset()
		m.mu.Unlock()

		m.log.Info("pair link closed")
		if m.onDisconnected != nil {
			m.onDisconnected()
		}
	})
}

// SendFile streams one file over the connected transport, reporting
// progress per chunk. It rejects with the chunker's abort error when the
// transport dies mid-send.
func (m *Manager) SendFile(ctx context.Context, f File) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	tr := m.tr
	m.mu.Unlock()

	if tr == nil || !tr.Connected() {
		return ErrNotConnected
	}

	m.setState(Transferring)
	m.log.WithFields(logrus.Fields{
		"name": f.Name,
		"size": len(f.Data),
	}).Info("sending file")

	frames := chunker.PairFrames{File: f.descriptor(m.chunkSize)}
	err := chunker.Send(ctx, tr, f.Data, frames, chunker.SendOptions{
		ChunkSize:  m.chunkSize,
		Delay:      m.delay,
		OnProgress: m.onProgress,
	})
	if err != nil {
		m.setState(Failed)
		return err
	}

	m.setState(Complete)
	return nil
}

func (m *Manager) handleData(data []byte) {
	frame, err := protocol.DecodePair(data)
	if errors.Is(err, protocol.ErrNotControl) {
		m.handleBinary(data)
		return
	}
	if err != nil {
		m.log.Warnf("dropping undecodable control frame: %v", err)
		return
	}

	switch f := frame.(type) {
	case protocol.FileStart:
		m.mu.Lock()
		remote := f.File
		m.remote = &remote
		m.state = Transferring
		m.mu.Unlock()

		m.asm.Begin(f.File.ChunkCount)
		m.log.WithFields(logrus.Fields{
			"name":   f.File.Name,
			"size":   f.File.Size,
			"chunks": f.File.ChunkCount,
		}).Info("incoming file")

	case protocol.ChunkStart:
		if !m.asm.CheckDeclaredIndex(f.Index) {
			m.log.Warnf("declared chunk index %d drifted from arrival order", f.Index)
		}

	case protocol.FileComplete:
		m.finishReceive()

	case protocol.UnknownFrame:
		// A payload chunk can itself be JSON with a "type" key. Only a
		// recognized tag makes a message control traffic; mid-transfer,
		// anything else is the next binary frame.
		if m.asm.Active() {
			m.handleBinary(data)
			return
		}
		m.log.Warnf("ignoring control frame with unknown tag %q", f.Tag)
	}
}

func (m *Manager) handleBinary(data []byte) {
	progress, err := m.asm.AddBinary(data)
	if err != nil {
		m.log.Warnf("dropping binary frame: %v", err)
		return
	}
	if m.onProgress != nil {
		m.onProgress(progress)
	}
}

func (m *Manager) finishReceive() {
	payload, err := m.asm.Assemble()
	if err != nil {
		m.setState(Failed)
		m.log.Errorf("assembly failed: %v", err)
		if m.onError != nil {
			m.onError(err)
		}
		return
	}

	m.mu.Lock()
	remote := m.remote
	m.remote = nil
	m.state = Complete
	m.mu.Unlock()

	received := File{Data: payload}
	if remote != nil {
		received.Name = remote.Name
		received.MimeType = remote.MimeType
	}

	m.log.WithFields(logrus.Fields{
		"name": received.Name,
		"size": len(payload),
	}).Info("file received")

	if m.onFileReceived != nil {
		m.onFileReceived(received)
	}
}

// Destroy tears down the transport and clears transfer state. Idempotent;
// a second call does nothing and fires no extra events.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	tr := m.tr
	m.tr = nil
	m.mu.Unlock()

	m.asm.Reset()
	if tr != nil {
		_ = tr.Close()
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func withNegotiationBound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, protocol.NegotiationTimeout)
}
