package peer

import (
	"encoding/json"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/meetmesh/meetmesh/internal/config"
)

// link is one PeerConnection toward a remote peer. Candidates that
// arrive before the remote description are buffered and drained once
// it lands.
type link struct {
	pc *pion.PeerConnection
	dc *pion.DataChannel

	mu        sync.Mutex
	remoteSet bool
	pending   []pion.ICECandidateInit
}

func newPeerConnection(cfg *config.ClientConfig) (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

func (l *link) setRemoteDescription(desc pion.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}

	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(c); err != nil {
			return NewError("add buffered ICE candidate", err)
		}
	}
	return nil
}

func (l *link) addCandidate(raw any) error {
	if raw == nil {
		return nil
	}

	candidateBytes, _ := json.Marshal(raw)
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(candidateBytes, &ice); err != nil {
		return NewError("parse ICE candidate", err)
	}

	l.mu.Lock()
	if !l.remoteSet {
		l.pending = append(l.pending, ice)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.pc.AddICECandidate(ice); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (l *link) close() {
	if l.dc != nil {
		l.dc.Close()
	}
	l.pc.Close()
}
