// Package session orchestrates one participant's presence in one
// meeting: the signaling channel, the peer links and the local media
// source, driven by the inbound event stream.
package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"

	"github.com/meetmesh/meetmesh/internal/client"
	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/peer"
	"github.com/meetmesh/meetmesh/internal/signaling"
	"github.com/meetmesh/meetmesh/internal/version"
)

const joinTimeout = 10 * time.Second

// Notice kinds surfaced to the UI.
const (
	NoticeJoined      = "joined"
	NoticeLeft        = "left"
	NoticeUpdated     = "updated"
	NoticeChat        = "chat"
	NoticeTrack       = "track"
	NoticeError       = "error"
	NoticeReconnected = "reconnected"
	NoticeClosed      = "closed"
)

// Notice is one user-visible session event.
type Notice struct {
	Kind        string
	Participant *models.Participant
	Chat        *models.ChatMessage
	Text        string
}

// Session is one participant's live attachment to a meeting.
type Session struct {
	cfg     *config.ClientConfig
	channel *client.Channel
	handler *client.Handler
	manager *peer.Manager

	meetingID string
	password  string
	self      models.Participant

	mu     sync.Mutex
	roster map[string]models.Participant
	chat   []models.ChatMessage
	camera *media.LocalStream
	screen *media.LocalStream

	notices   chan Notice
	leaveOnce sync.Once
	done      chan struct{}
}

// New creates a session for the given identity. Join attaches it.
func New(cfg *config.ClientConfig, name string) *Session {
	s := &Session{
		cfg: cfg,
		self: models.Participant{
			ID:   uuid.NewString(),
			Name: name,
		},
		roster:  make(map[string]models.Participant),
		notices: make(chan Notice, 128),
		done:    make(chan struct{}),
	}
	s.manager = peer.NewManager(cfg, s.sendSignal, peer.Callbacks{
		OnRemoteTrack: s.onRemoteTrack,
		OnPeerLeft:    s.onPeerLeft,
		OnDataOpen:    s.onDataOpen,
		OnData:        s.onData,
	})
	return s
}

// SetHost marks this participant as the meeting host.
func (s *Session) SetHost() {
	s.self.IsHost = true
}

// Join attaches the session to a meeting. The peer manager is opened
// first, so the rendezvous id travels inside the join announcement
// and remote peers can dial the moment they learn of us; the
// announcement doubles as the readiness confirmation.
func (s *Session) Join(meetingID, password string, source media.Source) error {
	s.meetingID = meetingID
	s.password = password

	peerID, err := s.manager.Open()
	if err != nil {
		return fmt.Errorf("open peer manager: %w", err)
	}
	s.self.PeerID = peerID

	// Media acquisition failure is not fatal; the meeting proceeds
	// without outgoing tracks.
	stream, err := media.NewLocalStream(source)
	if err != nil {
		s.notify(Notice{Kind: NoticeError, Text: "local media unavailable: " + err.Error()})
	} else {
		stream.Start()
		s.camera = stream
		s.manager.BindLocalStream(stream)
		s.self.IsVideoOn = source.VideoPath != ""
		s.self.IsAudioOn = source.AudioPath != ""
	}

	s.channel = client.NewChannel(s.cfg.WebSocketURL)
	if err := s.channel.Connect(); err != nil {
		return err
	}
	s.handler = client.NewHandler(s.channel)
	go s.handler.Start()

	s.sendJoin()

	if err := s.awaitJoin(); err != nil {
		s.channel.Close()
		return err
	}

	go s.loop()
	return nil
}

func (s *Session) sendJoin() {
	s.channel.SendMessage(&signaling.Message{
		Type:      signaling.EventJoinMeeting,
		MeetingID: s.meetingID,
		Payload: signaling.EncodePayload(signaling.JoinPayload{
			Participant: s.self,
			Password:    s.password,
		}),
	})
}

// awaitJoin consumes handler events until the roster snapshot or a
// server error arrives.
func (s *Session) awaitJoin() error {
	timeout := time.After(joinTimeout)
	for {
		select {
		case roster := <-s.handler.Roster:
			s.handleRoster(roster)
			return nil
		case msg := <-s.handler.Errors:
			return fmt.Errorf("join rejected: %s", msg)
		case <-s.handler.Done:
			return fmt.Errorf("signaling channel closed")
		case <-timeout:
			return fmt.Errorf("no response from server")
		}
	}
}

// loop drives the session off the inbound event stream until the
// channel dies or the session leaves.
func (s *Session) loop() {
	for {
		select {
		case roster := <-s.handler.Roster:
			s.handleRoster(roster)

		case history := <-s.handler.ChatHistory:
			s.mu.Lock()
			s.chat = history
			s.mu.Unlock()

		case p := <-s.handler.ParticipantJoined:
			s.handleJoined(p)

		case id := <-s.handler.ParticipantLeft:
			s.handleLeft(id)

		case p := <-s.handler.ParticipantUpdated:
			s.handleUpdated(p)

		case msg := <-s.handler.Chat:
			s.mu.Lock()
			s.chat = append(s.chat, *msg)
			s.mu.Unlock()
			s.notify(Notice{Kind: NoticeChat, Chat: msg})

		case sig := <-s.handler.Signals:
			if err := s.manager.HandleSignal(sig.Event, sig.Payload); err != nil {
				slog.Warn("signal handling failed", "event", sig.Event, "error", err)
			}

		case msg := <-s.handler.Errors:
			s.notify(Notice{Kind: NoticeError, Text: msg})

		case <-s.channel.Reconnected():
			// The server treated the drop as a disconnect and removed
			// us; re-announce to rebuild presence.
			s.sendJoin()
			s.notify(Notice{Kind: NoticeReconnected, Text: "signaling reconnected"})

		case <-s.handler.Done:
			s.notify(Notice{Kind: NoticeClosed, Text: "connection lost"})
			s.Leave()
			return

		case <-s.done:
			return
		}
	}
}

func (s *Session) handleRoster(roster []models.Participant) {
	s.mu.Lock()
	for _, p := range roster {
		s.roster[p.ID] = p
	}
	s.mu.Unlock()

	for _, p := range roster {
		if p.ID == s.self.ID {
			continue
		}
		s.dialIfInitiator(p)
	}
}

func (s *Session) handleJoined(p *models.Participant) {
	if p.ID == s.self.ID {
		return
	}
	s.mu.Lock()
	s.roster[p.ID] = *p
	s.mu.Unlock()

	s.dialIfInitiator(*p)
	s.notify(Notice{Kind: NoticeJoined, Participant: p})
}

// dialIfInitiator establishes the links to a newly known peer. For
// every pair exactly one side initiates, picked by rendezvous id
// order, so simultaneous discovery cannot produce crossed offers.
func (s *Session) dialIfInitiator(p models.Participant) {
	if p.PeerID == "" || s.self.PeerID >= p.PeerID {
		return
	}
	if err := s.manager.CallPeer(p.PeerID); err != nil {
		slog.Warn("call failed", "peer", p.ID, "error", err)
	}
	if err := s.manager.ConnectPeer(p.PeerID); err != nil {
		slog.Warn("connect failed", "peer", p.ID, "error", err)
	}
}

func (s *Session) handleLeft(id string) {
	s.mu.Lock()
	p, ok := s.roster[id]
	delete(s.roster, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	if p.PeerID != "" {
		s.manager.ClosePeer(p.PeerID)
	}
	s.notify(Notice{Kind: NoticeLeft, Participant: &p})
}

func (s *Session) handleUpdated(p *models.Participant) {
	s.mu.Lock()
	s.roster[p.ID] = *p
	if p.ID == s.self.ID {
		s.self = *p
	}
	s.mu.Unlock()

	if p.ID != s.self.ID {
		s.notify(Notice{Kind: NoticeUpdated, Participant: p})
	}
}

// SendChat sends a room-wide chat line. The coordinator does not echo
// to the sender, so the local copy is appended here.
func (s *Session) SendChat(text string) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    s.self.Name,
		SenderID:  s.self.ID,
		Text:      text,
		Timestamp: time.Now(),
	}

	s.channel.SendMessage(&signaling.Message{
		Type:      signaling.EventChatMessage,
		MeetingID: s.meetingID,
		Payload:   signaling.EncodePayload(signaling.ChatPayload{Message: msg}),
	})

	s.mu.Lock()
	s.chat = append(s.chat, msg)
	s.mu.Unlock()
	return msg
}

// SendPrivate sends a chat line directly to one peer over the data
// link, bypassing the coordinator and its history.
func (s *Session) SendPrivate(participantID, text string) error {
	s.mu.Lock()
	p, ok := s.roster[participantID]
	s.mu.Unlock()
	if !ok || p.PeerID == "" {
		return fmt.Errorf("unknown participant %s", participantID)
	}

	msg, err := peer.NewMessage(peer.DataTypeChat, peer.ChatPayload{
		Sender:    s.self.Name,
		SenderID:  s.self.ID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return s.manager.SendTo(p.PeerID, msg)
}

// ToggleVideo flips the local video state and announces it.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	s.self.IsVideoOn = !s.self.IsVideoOn
	on := s.self.IsVideoOn
	s.mu.Unlock()

	s.sendUpdate(models.ParticipantUpdate{IsVideoOn: &on})
	return on
}

// ToggleAudio flips the local audio state and announces it.
func (s *Session) ToggleAudio() bool {
	s.mu.Lock()
	s.self.IsAudioOn = !s.self.IsAudioOn
	on := s.self.IsAudioOn
	s.mu.Unlock()

	s.sendUpdate(models.ParticipantUpdate{IsAudioOn: &on})
	return on
}

func (s *Session) sendUpdate(u models.ParticipantUpdate) {
	s.channel.SendMessage(&signaling.Message{
		Type:      signaling.EventUpdateParticipant,
		MeetingID: s.meetingID,
		Payload: signaling.EncodePayload(signaling.UpdatePayload{
			ParticipantID: s.self.ID,
			Updates:       u,
		}),
	})
}

// StartScreenShare swaps the outgoing tracks to a share source. The
// camera stream keeps running so StopScreenShare can restore it.
func (s *Session) StartScreenShare(source media.Source) error {
	stream, err := media.NewLocalStream(source)
	if err != nil {
		return err
	}
	stream.Start()

	if err := s.manager.ReplaceLocalStream(stream); err != nil {
		stream.Stop()
		return err
	}

	s.mu.Lock()
	if s.screen != nil {
		s.screen.Stop()
	}
	s.screen = stream
	s.mu.Unlock()
	return nil
}

// StopScreenShare restores the camera tracks.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	screen := s.screen
	s.screen = nil
	camera := s.camera
	s.mu.Unlock()

	if screen == nil {
		return nil
	}
	screen.Stop()

	if camera == nil {
		return nil
	}
	return s.manager.ReplaceLocalStream(camera)
}

// Leave tears the session down. Safe to call more than once.
func (s *Session) Leave() {
	s.leaveOnce.Do(func() {
		close(s.done)

		if s.channel != nil {
			s.channel.SendMessage(&signaling.Message{
				Type:      signaling.EventLeaveMeeting,
				MeetingID: s.meetingID,
				Payload:   signaling.EncodePayload(signaling.LeavePayload{ParticipantID: s.self.ID}),
			})
		}

		s.mu.Lock()
		if s.screen != nil {
			s.screen.Stop()
		}
		if s.camera != nil {
			s.camera.Stop()
		}
		s.mu.Unlock()

		s.manager.CloseAll()
		if s.channel != nil {
			// Let the leave announcement flush before the close frame.
			time.Sleep(100 * time.Millisecond)
			s.channel.Close()
		}
	})
}

// Notices returns the stream of user-visible session events.
func (s *Session) Notices() <-chan Notice {
	return s.notices
}

// Self returns the local participant record.
func (s *Session) Self() models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// MeetingID returns the joined meeting id.
func (s *Session) MeetingID() string {
	return s.meetingID
}

// Roster returns a snapshot of the current roster in join order,
// matching the order the server lists participants in.
func (s *Session) Roster() []models.Participant {
	s.mu.Lock()
	out := make([]models.Participant, 0, len(s.roster))
	for _, p := range s.roster {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// Chat returns a snapshot of the chat history.
func (s *Session) Chat() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

func (s *Session) sendSignal(event string, payload signaling.SignalPayload) {
	s.channel.SendMessage(&signaling.Message{
		Type:         event,
		MeetingID:    s.meetingID,
		TargetPeerID: payload.To,
		Payload:      signaling.EncodePayload(payload),
	})
}

func (s *Session) onRemoteTrack(peerID string, track *pion.TrackRemote) {
	name := s.nameForPeer(peerID)
	s.notify(Notice{
		Kind: NoticeTrack,
		Text: fmt.Sprintf("receiving %s from %s", track.Kind(), name),
	})

	// Drain the track; a headless client has no renderer.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}

func (s *Session) onPeerLeft(peerID string) {
	s.notify(Notice{
		Kind: NoticeError,
		Text: fmt.Sprintf("lost direct link to %s", s.nameForPeer(peerID)),
	})
}

func (s *Session) onDataOpen(peerID string) {
	msg, err := peer.NewMessage(peer.DataTypeHello, peer.HelloPayload{
		PeerID:  s.self.PeerID,
		Name:    s.self.Name,
		Version: version.Version,
	})
	if err != nil {
		return
	}
	if err := s.manager.SendTo(peerID, msg); err != nil {
		slog.Debug("hello send failed", "peer", peerID, "error", err)
	}
}

func (s *Session) onData(peerID string, msg peer.Message) {
	switch msg.Type {
	case peer.DataTypeChat:
		var payload peer.ChatPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return
		}
		chat := models.ChatMessage{
			ID:          uuid.NewString(),
			Sender:      payload.Sender,
			SenderID:    payload.SenderID,
			Text:        payload.Text,
			Timestamp:   time.UnixMilli(payload.Timestamp),
			IsPrivate:   true,
			RecipientID: s.self.ID,
		}
		s.mu.Lock()
		s.chat = append(s.chat, chat)
		s.mu.Unlock()
		s.notify(Notice{Kind: NoticeChat, Chat: &chat})

	case peer.DataTypeHello:
		var payload peer.HelloPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return
		}
		slog.Debug("peer hello", "peer", peerID, "name", payload.Name, "version", payload.Version)
	}
}

func (s *Session) nameForPeer(peerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.roster {
		if p.PeerID == peerID {
			return p.Name
		}
	}
	return peerID
}

func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		// A stalled consumer drops the oldest semantics in favor of
		// not blocking the event loop.
	}
}
