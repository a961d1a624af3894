package transport

import (
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// Config carries transport construction parameters. STUN servers are
// passed through to ICE unchanged.
type Config struct {
	STUNServers []string
	Logger      *logrus.Logger
}

func (c Config) webrtcConfiguration() webrtc.Configuration {
	servers := c.STUNServers
	if len(servers) == 0 {
		servers = defaultSTUNServers
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: servers},
		},
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}

func defaultDataChannelInit() *webrtc.DataChannelInit {
	protocolName := "file-transfer"
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}
