package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// WebRTC is a Transport over a pion data channel. Delivery order within
// the channel is guaranteed by the ordered data channel configuration;
// the chunk protocol depends on it.
type WebRTC struct {
	role Role
	pc   *webrtc.PeerConnection
	log  *logrus.Logger

	mu sync.Mutex
	dc *webrtc.DataChannel

	onConnect func()
	onData    func([]byte)
	onError   func(error)
	onClose   func()

	closeOnce  sync.Once
	notifyOnce sync.Once
}

// NewWebRTC constructs a transport in the given role. The initiator owns
// data channel creation; the responder waits for it to arrive.
func NewWebRTC(role Role, cfg Config) (*WebRTC, error) {
	pc, err := webrtc.NewPeerConnection(cfg.webrtcConfiguration())
	if err != nil {
		return nil, fmt.Errorf("transport: create peer connection: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	t := &WebRTC{role: role, pc: pc, log: log}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.log.Debugf("peer connection state: %s", s)
		switch s {
		case webrtc.PeerConnectionStateFailed:
			t.fireError(fmt.Errorf("transport: peer connection failed"))
			t.fireClose()
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			t.fireClose()
		}
	})

	if role == Initiator {
		dc, err := pc.CreateDataChannel("data", defaultDataChannelInit())
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("transport: create data channel: %w", err)
		}
		t.setupDataChannel(dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			t.setupDataChannel(dc)
		})
	}

	return t, nil
}

func (t *WebRTC) setupDataChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnOpen(func() {
		t.log.Debugf("data channel '%s'-'%d' open", dc.Label(), dc.ID())
		if fn := t.connectHandler(); fn != nil {
			fn()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if fn := t.dataHandler(); fn != nil {
			fn(msg.Data)
		}
	})

	dc.OnError(func(err error) {
		t.fireError(err)
	})

	dc.OnClose(func() {
		t.log.Debugf("data channel '%s'-'%d' closed", dc.Label(), dc.ID())
		t.fireClose()
	})
}

func (t *WebRTC) CreateOffer(ctx context.Context) (string, error) {
	if t.role != Initiator {
		return "", ErrWrongRole
	}

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("transport: create offer: %w", err)
	}

	return t.gatherLocalDescription(ctx, offer)
}

func (t *WebRTC) CreateAnswer(ctx context.Context, remoteSDP string) (string, error) {
	if t.role != Responder {
		return "", ErrWrongRole
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: remoteSDP}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("transport: create answer: %w", err)
	}

	return t.gatherLocalDescription(ctx, answer)
}

// gatherLocalDescription sets the local description and waits for ICE
// gathering to finish, so the returned SDP carries every candidate and no
// trickle channel is needed.
func (t *WebRTC) gatherLocalDescription(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(t.pc)

	if err := t.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("transport: set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ErrNegotiationTimeout
	}

	local := t.pc.LocalDescription()
	if local == nil {
		return "", ErrNegotiationTimeout
	}
	return local.SDP, nil
}

func (t *WebRTC) Signal(remoteSDP string) error {
	if t.role != Initiator {
		return ErrWrongRole
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: remoteSDP}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	return nil
}

func (t *WebRTC) Send(data []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotConnected
	}
	return dc.Send(data)
}

func (t *WebRTC) Connected() bool {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	return dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (t *WebRTC) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		dc := t.dc
		t.mu.Unlock()
		if dc != nil {
			_ = dc.Close()
		}
		err = t.pc.Close()
	})
	return err
}

func (t *WebRTC) OnConnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnect = fn
}

func (t *WebRTC) OnData(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = fn
}

func (t *WebRTC) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

func (t *WebRTC) OnClose(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = fn
}

func (t *WebRTC) connectHandler() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onConnect
}

func (t *WebRTC) dataHandler() func([]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onData
}

func (t *WebRTC) fireError(err error) {
	t.mu.Lock()
	fn := t.onError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// fireClose notifies at most once, even when close and error paths race
// for the same connection.
func (t *WebRTC) fireClose() {
	t.notifyOnce.Do(func() {
		t.mu.Lock()
		fn := t.onClose
		t.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
