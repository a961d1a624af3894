package transport

import (
	"testing"

	"github.com/pion/webrtc/v3"
)

func TestDefaultWebRTCConfiguration(t *testing.T) {
	config := Config{}.webrtcConfiguration()

	if len(config.ICEServers) != 1 {
		t.Errorf("expected 1 ICE server group, got %d", len(config.ICEServers))
	}
	if len(config.ICEServers[0].URLs) != 3 {
		t.Errorf("expected 3 STUN URLs, got %d", len(config.ICEServers[0].URLs))
	}
	if config.ICETransportPolicy != webrtc.ICETransportPolicyAll {
		t.Errorf("expected ICETransportPolicyAll")
	}
}

func TestSTUNPassthrough(t *testing.T) {
	config := Config{STUNServers: []string{"stun:example.com:3478"}}.webrtcConfiguration()

	if len(config.ICEServers[0].URLs) != 1 {
		t.Fatalf("expected 1 STUN URL, got %d", len(config.ICEServers[0].URLs))
	}
	if config.ICEServers[0].URLs[0] != "stun:example.com:3478" {
		t.Errorf("expected passthrough URL, got %q", config.ICEServers[0].URLs[0])
	}
}

func TestDefaultDataChannelInit(t *testing.T) {
	init := defaultDataChannelInit()

	if init.Ordered == nil || !*init.Ordered {
		t.Error("expected Ordered to be true")
	}
	if init.MaxRetransmits != nil {
		t.Error("expected unlimited retransmits")
	}
	if init.Protocol == nil || *init.Protocol != "file-transfer" {
		t.Error("expected protocol name 'file-transfer'")
	}
}
