package peer

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

// SignalSender pushes an offer, answer or ice-candidate payload onto
// the signaling relay.
type SignalSender func(event string, payload signaling.SignalPayload)

// Callbacks surface link activity to the session.
type Callbacks struct {
	OnRemoteTrack func(peerID string, track *pion.TrackRemote)
	OnPeerLeft    func(peerID string)
	OnDataOpen    func(peerID string)
	OnData        func(peerID string, msg Message)
}

// Manager owns every peer link of one meeting session: per remote
// peer a media link carrying the local tracks and a data link with a
// "data" channel. Negotiation runs over the room-wide signaling
// relay; payloads not addressed to this manager's id are dropped.
type Manager struct {
	cfg       *config.ClientConfig
	send      SignalSender
	callbacks Callbacks

	mu     sync.Mutex
	id     string
	stream *media.LocalStream
	media  map[string]*link
	data   map[string]*link
	closed bool
}

// NewManager creates a manager. Open must be called before any link
// is established.
func NewManager(cfg *config.ClientConfig, send SignalSender, cb Callbacks) *Manager {
	return &Manager{
		cfg:       cfg,
		send:      send,
		callbacks: cb,
		media:     make(map[string]*link),
		data:      make(map[string]*link),
	}
}

// Open fixes the manager's rendezvous identity and makes it ready to
// accept inbound signals. It must complete before the session
// announces itself to the room, so that every offer addressed to the
// returned id finds a live manager.
func (m *Manager) Open() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrManagerClosed
	}
	if m.id == "" {
		m.id = uuid.NewString()
	}
	return m.id, nil
}

// ID returns the rendezvous id. Empty until Open.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// BindLocalStream attaches the local media source used for outgoing
// media links.
func (m *Manager) BindLocalStream(stream *media.LocalStream) {
	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()
}

// CallPeer opens the media link toward a remote peer: local tracks
// are added and an offer is sent over the relay. Calling an already
// linked peer is a no-op.
func (m *Manager) CallPeer(remoteID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if _, ok := m.media[remoteID]; ok {
		m.mu.Unlock()
		return nil
	}
	stream := m.stream
	m.mu.Unlock()

	l, err := m.newMediaLink(remoteID, stream)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.media[remoteID] = l
	m.mu.Unlock()

	offer, err := createOffer(l.pc)
	if err != nil {
		l.close()
		m.dropLink(remoteID, signaling.LinkKindMedia)
		return NewPeerError("call peer", remoteID, err)
	}

	m.send(signaling.EventOffer, signaling.SignalPayload{
		Kind: signaling.LinkKindMedia,
		Type: "offer",
		SDP:  offer.SDP,
		From: m.id,
		To:   remoteID,
	})
	return nil
}

// ConnectPeer opens the data link toward a remote peer with an
// ordered "data" channel.
func (m *Manager) ConnectPeer(remoteID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if _, ok := m.data[remoteID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	l, err := m.newDataLink(remoteID)
	if err != nil {
		return err
	}

	ordered := true
	dc, err := l.pc.CreateDataChannel("data", &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		l.close()
		return NewPeerError("create data channel", remoteID, err)
	}
	l.dc = dc
	m.setupDataChannel(remoteID, dc)

	m.mu.Lock()
	m.data[remoteID] = l
	m.mu.Unlock()

	offer, err := createOffer(l.pc)
	if err != nil {
		l.close()
		m.dropLink(remoteID, signaling.LinkKindData)
		return NewPeerError("connect peer", remoteID, err)
	}

	m.send(signaling.EventOffer, signaling.SignalPayload{
		Kind: signaling.LinkKindData,
		Type: "offer",
		SDP:  offer.SDP,
		From: m.id,
		To:   remoteID,
	})
	return nil
}

// HandleSignal processes one inbound relay payload. Relays arrive
// room-wide; anything not addressed to this manager is dropped.
func (m *Manager) HandleSignal(event string, payload signaling.SignalPayload) error {
	m.mu.Lock()
	if m.closed || payload.To != m.id || payload.From == m.id {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	switch event {
	case signaling.EventOffer:
		return m.handleOffer(payload)
	case signaling.EventAnswer:
		return m.handleAnswer(payload)
	case signaling.EventICECandidate:
		return m.handleCandidate(payload)
	default:
		return WrapError("handle signal", ErrUnexpectedSignal, event)
	}
}

func (m *Manager) handleOffer(payload signaling.SignalPayload) error {
	remoteID := payload.From

	var l *link
	var err error
	switch payload.Kind {
	case signaling.LinkKindMedia:
		m.mu.Lock()
		stream := m.stream
		m.mu.Unlock()

		l, err = m.newMediaLink(remoteID, stream)
		if err != nil {
			return err
		}
		m.mu.Lock()
		if old, ok := m.media[remoteID]; ok {
			old.close()
		}
		m.media[remoteID] = l
		m.mu.Unlock()

	case signaling.LinkKindData:
		l, err = m.newDataLink(remoteID)
		if err != nil {
			return err
		}
		l.pc.OnDataChannel(func(dc *pion.DataChannel) {
			l.dc = dc
			m.setupDataChannel(remoteID, dc)
		})
		m.mu.Lock()
		if old, ok := m.data[remoteID]; ok {
			old.close()
		}
		m.data[remoteID] = l
		m.mu.Unlock()

	default:
		return WrapError("handle offer", ErrUnexpectedSignal, payload.Kind)
	}

	answer, err := createAnswer(l.pc, pion.SessionDescription{
		Type: pion.SDPTypeOffer,
		SDP:  payload.SDP,
	}, l)
	if err != nil {
		return NewPeerError("answer offer", remoteID, err)
	}

	m.send(signaling.EventAnswer, signaling.SignalPayload{
		Kind: payload.Kind,
		Type: "answer",
		SDP:  answer.SDP,
		From: m.id,
		To:   remoteID,
	})
	return nil
}

func (m *Manager) handleAnswer(payload signaling.SignalPayload) error {
	l := m.lookup(payload.Kind, payload.From)
	if l == nil {
		return NewPeerError("handle answer", payload.From, ErrUnknownPeer)
	}
	return l.setRemoteDescription(pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  payload.SDP,
	})
}

func (m *Manager) handleCandidate(payload signaling.SignalPayload) error {
	l := m.lookup(payload.Kind, payload.From)
	if l == nil {
		return NewPeerError("handle candidate", payload.From, ErrUnknownPeer)
	}
	return l.addCandidate(payload.ICECandidate)
}

func (m *Manager) lookup(kind, remoteID string) *link {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case signaling.LinkKindMedia:
		return m.media[remoteID]
	case signaling.LinkKindData:
		return m.data[remoteID]
	}
	return nil
}

func (m *Manager) newMediaLink(remoteID string, stream *media.LocalStream) (*link, error) {
	pc, err := newPeerConnection(m.cfg)
	if err != nil {
		return nil, err
	}
	l := &link{pc: pc}

	if stream != nil {
		if _, err := pc.AddTrack(stream.Audio); err != nil {
			pc.Close()
			return nil, NewPeerError("add audio track", remoteID, err)
		}
		if _, err := pc.AddTrack(stream.Video); err != nil {
			pc.Close()
			return nil, NewPeerError("add video track", remoteID, err)
		}
	}

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if m.callbacks.OnRemoteTrack != nil {
			m.callbacks.OnRemoteTrack(remoteID, track)
		}
	})

	m.setupICE(pc, signaling.LinkKindMedia, remoteID)
	m.watchState(pc, remoteID)
	return l, nil
}

func (m *Manager) newDataLink(remoteID string) (*link, error) {
	pc, err := newPeerConnection(m.cfg)
	if err != nil {
		return nil, err
	}
	m.setupICE(pc, signaling.LinkKindData, remoteID)
	return &link{pc: pc}, nil
}

func (m *Manager) setupICE(pc *pion.PeerConnection, kind, remoteID string) {
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		m.send(signaling.EventICECandidate, signaling.SignalPayload{
			Kind:         kind,
			ICECandidate: c.ToJSON(),
			From:         m.id,
			To:           remoteID,
		})
	})
}

// watchState drops the peer when its media link dies. The data link
// goes down with it.
func (m *Manager) watchState(pc *pion.PeerConnection, remoteID string) {
	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		if state != pion.ICEConnectionStateFailed && state != pion.ICEConnectionStateClosed {
			return
		}
		if m.ClosePeer(remoteID) && m.callbacks.OnPeerLeft != nil {
			m.callbacks.OnPeerLeft(remoteID)
		}
	})
}

func (m *Manager) setupDataChannel(remoteID string, dc *pion.DataChannel) {
	dc.OnOpen(func() {
		if m.callbacks.OnDataOpen != nil {
			m.callbacks.OnDataOpen(remoteID)
		}
	})
	dc.OnMessage(func(raw pion.DataChannelMessage) {
		var msg Message
		if err := msgpack.Unmarshal(raw.Data, &msg); err != nil {
			slog.Warn("bad data channel message", "peer", remoteID, "error", err)
			return
		}
		if m.callbacks.OnData != nil {
			m.callbacks.OnData(remoteID, msg)
		}
	})
}

// SendTo delivers one message over a peer's data channel.
func (m *Manager) SendTo(remoteID string, msg Message) error {
	m.mu.Lock()
	l, ok := m.data[remoteID]
	m.mu.Unlock()
	if !ok {
		return NewPeerError("send", remoteID, ErrUnknownPeer)
	}
	if l.dc == nil || l.dc.ReadyState() != pion.DataChannelStateOpen {
		return NewPeerError("send", remoteID, ErrChannelNotOpen)
	}

	b, err := msgpack.Marshal(msg)
	if err != nil {
		return NewPeerError("encode message", remoteID, err)
	}
	return l.dc.Send(b)
}

// BroadcastData delivers one message to every peer whose data channel
// is open. Peers without an open channel are skipped.
func (m *Manager) BroadcastData(msg Message) {
	b, err := msgpack.Marshal(msg)
	if err != nil {
		slog.Warn("encode broadcast failed", "error", err)
		return
	}

	m.mu.Lock()
	links := make(map[string]*link, len(m.data))
	for id, l := range m.data {
		links[id] = l
	}
	m.mu.Unlock()

	for id, l := range links {
		if l.dc == nil || l.dc.ReadyState() != pion.DataChannelStateOpen {
			continue
		}
		if err := l.dc.Send(b); err != nil {
			slog.Warn("broadcast send failed", "peer", id, "error", err)
		}
	}
}

// ReplaceLocalStream swaps the outgoing tracks on every live media
// link without renegotiation. Used for screen share start/stop.
func (m *Manager) ReplaceLocalStream(stream *media.LocalStream) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	m.stream = stream
	links := make([]*link, 0, len(m.media))
	for _, l := range m.media {
		links = append(links, l)
	}
	m.mu.Unlock()

	for _, l := range links {
		for _, sender := range l.pc.GetSenders() {
			track := sender.Track()
			if track == nil {
				continue
			}
			var replacement pion.TrackLocal
			switch track.Kind() {
			case pion.RTPCodecTypeAudio:
				replacement = stream.Audio
			case pion.RTPCodecTypeVideo:
				replacement = stream.Video
			default:
				continue
			}
			if err := sender.ReplaceTrack(replacement); err != nil {
				return NewError("replace track", err)
			}
		}
	}
	return nil
}

// ClosePeer tears down both links to one peer. Reports whether any
// link existed.
func (m *Manager) ClosePeer(remoteID string) bool {
	m.mu.Lock()
	ml, hadMedia := m.media[remoteID]
	dl, hadData := m.data[remoteID]
	delete(m.media, remoteID)
	delete(m.data, remoteID)
	m.mu.Unlock()

	if hadMedia {
		ml.close()
	}
	if hadData {
		dl.close()
	}
	return hadMedia || hadData
}

// CloseAll tears down every link. Safe to call more than once.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	mediaLinks := m.media
	dataLinks := m.data
	m.media = make(map[string]*link)
	m.data = make(map[string]*link)
	m.mu.Unlock()

	for _, l := range mediaLinks {
		l.close()
	}
	for _, l := range dataLinks {
		l.close()
	}
}

func (m *Manager) dropLink(remoteID, kind string) {
	m.mu.Lock()
	switch kind {
	case signaling.LinkKindMedia:
		delete(m.media, remoteID)
	case signaling.LinkKindData:
		delete(m.data, remoteID)
	}
	m.mu.Unlock()
}

func createOffer(pc *pion.PeerConnection) (*pion.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return pc.LocalDescription(), nil
}

func createAnswer(pc *pion.PeerConnection, offer pion.SessionDescription, l *link) (*pion.SessionDescription, error) {
	if err := l.setRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return pc.LocalDescription(), nil
}
