package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/registry"
	"github.com/meetmesh/meetmesh/internal/registry/memory"
	"github.com/meetmesh/meetmesh/internal/server"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

func newTestCoordinator(t *testing.T) (*config.ClientConfig, registry.Registry) {
	t.Helper()

	reg := memory.NewRegistry(0)
	hub := signaling.NewHub(reg)
	go hub.Run()

	srv := httptest.NewServer(server.SetupRoutes(hub, reg, nil))
	t.Cleanup(srv.Close)

	host := strings.TrimPrefix(srv.URL, "http://")
	return &config.ClientConfig{
		Server:       host,
		WebSocketURL: "ws://" + host + "/ws",
		APIBaseURL:   "http://" + host,
		STUNServer:   "stun:stun.l.google.com:19302",
		Insecure:     true,
	}, reg
}

func waitNotice(t *testing.T, s *Session, kind string) Notice {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-s.Notices():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q notice", kind)
		}
	}
}

func TestJoinAnnouncesReadyIdentity(t *testing.T) {
	cfg, reg := newTestCoordinator(t)

	s := New(cfg, "Alice")
	require.NoError(t, s.Join("123456789", "", media.Source{}))
	defer s.Leave()

	// The rendezvous id was fixed before the announcement went out,
	// so the server-side record is dialable from the first moment.
	self := s.Self()
	assert.NotEmpty(t, self.PeerID)

	roster, err := reg.ListParticipants(t.Context(), "123456789")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, self.PeerID, roster[0].PeerID)
}

func TestJoinWrongPasswordFails(t *testing.T) {
	cfg, reg := newTestCoordinator(t)

	m, err := reg.CreateMeeting(t.Context(), "host", "Alice", "", "s3cret")
	require.NoError(t, err)

	s := New(cfg, "Eve")
	err = s.Join(m.ID, "wrong", media.Source{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join rejected")
}

func TestPresenceAndChatBetweenSessions(t *testing.T) {
	cfg, _ := newTestCoordinator(t)

	alice := New(cfg, "Alice")
	require.NoError(t, alice.Join("123456789", "", media.Source{}))
	defer alice.Leave()

	bob := New(cfg, "Bob")
	require.NoError(t, bob.Join("123456789", "", media.Source{}))
	defer bob.Leave()

	joined := waitNotice(t, alice, NoticeJoined)
	assert.Equal(t, "Bob", joined.Participant.Name)

	// Bob's roster snapshot contains both participants.
	require.Eventually(t, func() bool {
		return len(bob.Roster()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	sent := alice.SendChat("hello room")
	assert.Equal(t, "Alice", sent.Sender)

	got := waitNotice(t, bob, NoticeChat)
	assert.Equal(t, "hello room", got.Chat.Text)
	assert.Equal(t, "Alice", got.Chat.Sender)

	// The sender holds a local copy; the server does not echo.
	chat := alice.Chat()
	require.Len(t, chat, 1)
	assert.Equal(t, "hello room", chat[0].Text)
}

func TestLateJoinerReceivesHistory(t *testing.T) {
	cfg, _ := newTestCoordinator(t)

	alice := New(cfg, "Alice")
	require.NoError(t, alice.Join("123456789", "", media.Source{}))
	defer alice.Leave()
	alice.SendChat("for the record")

	carol := New(cfg, "Carol")
	require.NoError(t, carol.Join("123456789", "", media.Source{}))
	defer carol.Leave()

	require.Eventually(t, func() bool {
		chat := carol.Chat()
		return len(chat) == 1 && chat[0].Text == "for the record"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestToggleBroadcastsMergedState(t *testing.T) {
	cfg, _ := newTestCoordinator(t)

	alice := New(cfg, "Alice")
	require.NoError(t, alice.Join("123456789", "", media.Source{}))
	defer alice.Leave()

	bob := New(cfg, "Bob")
	require.NoError(t, bob.Join("123456789", "", media.Source{}))
	defer bob.Leave()
	waitNotice(t, alice, NoticeJoined)

	on := bob.ToggleAudio()
	assert.True(t, on)

	updated := waitNotice(t, alice, NoticeUpdated)
	assert.Equal(t, "Bob", updated.Participant.Name)
	assert.True(t, updated.Participant.IsAudioOn)
}

func TestLeaveIsIdempotent(t *testing.T) {
	cfg, reg := newTestCoordinator(t)

	alice := New(cfg, "Alice")
	require.NoError(t, alice.Join("123456789", "", media.Source{}))

	alice.Leave()
	alice.Leave()

	require.Eventually(t, func() bool {
		roster, err := reg.ListParticipants(t.Context(), "123456789")
		return err == nil && len(roster) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLeaveNotifiesOthers(t *testing.T) {
	cfg, _ := newTestCoordinator(t)

	alice := New(cfg, "Alice")
	require.NoError(t, alice.Join("123456789", "", media.Source{}))
	defer alice.Leave()

	bob := New(cfg, "Bob")
	require.NoError(t, bob.Join("123456789", "", media.Source{}))
	waitNotice(t, alice, NoticeJoined)

	bob.Leave()

	left := waitNotice(t, alice, NoticeLeft)
	assert.Equal(t, "Bob", left.Participant.Name)
	require.Eventually(t, func() bool {
		return len(alice.Roster()) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
