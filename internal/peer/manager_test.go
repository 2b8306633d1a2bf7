package peer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/media"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

// sentRecorder captures outbound relay payloads.
type sentRecorder struct {
	mu   sync.Mutex
	sent []signaling.SignalPayload
}

func (r *sentRecorder) send(event string, payload signaling.SignalPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
}

func (r *sentRecorder) byType(sdpType string) []signaling.SignalPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []signaling.SignalPayload
	for _, p := range r.sent {
		if p.Type == sdpType {
			out = append(out, p)
		}
	}
	return out
}

func testConfig() *config.ClientConfig {
	return &config.ClientConfig{STUNServer: "stun:stun.l.google.com:19302"}
}

func newTestManager(t *testing.T) (*Manager, *sentRecorder) {
	t.Helper()
	rec := &sentRecorder{}
	m := NewManager(testConfig(), rec.send, Callbacks{})
	t.Cleanup(m.CloseAll)
	return m, rec
}

func TestOpenIsStable(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := m.Open()
	require.NoError(t, err)
	assert.Equal(t, id, again, "reopening keeps the rendezvous identity")
	assert.Equal(t, id, m.ID())
}

func TestOpenAfterCloseFails(t *testing.T) {
	m, _ := newTestManager(t)

	m.CloseAll()
	_, err := m.Open()
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestCallPeerSendsAddressedOffer(t *testing.T) {
	m, rec := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)

	stream, err := media.NewLocalStream(media.Source{Label: "cam"})
	require.NoError(t, err)
	m.BindLocalStream(stream)

	require.NoError(t, m.CallPeer("remote-1"))

	offers := rec.byType("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, signaling.LinkKindMedia, offers[0].Kind)
	assert.Equal(t, id, offers[0].From)
	assert.Equal(t, "remote-1", offers[0].To)
	assert.NotEmpty(t, offers[0].SDP)

	// Calling the same peer again is a no-op.
	require.NoError(t, m.CallPeer("remote-1"))
	assert.Len(t, rec.byType("offer"), 1)
}

func TestConnectPeerSendsDataOffer(t *testing.T) {
	m, rec := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)

	require.NoError(t, m.ConnectPeer("remote-1"))

	offers := rec.byType("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, signaling.LinkKindData, offers[0].Kind)
	assert.Equal(t, id, offers[0].From)
	assert.Equal(t, "remote-1", offers[0].To)
}

func TestHandleSignalFiltersByAddress(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)

	// Not addressed to us: silently dropped, whatever the content.
	err = m.HandleSignal(signaling.EventOffer, signaling.SignalPayload{
		Kind: signaling.LinkKindMedia,
		From: "remote-1",
		To:   "someone-else",
	})
	assert.NoError(t, err)

	// Our own payload echoed back room-wide: also dropped.
	err = m.HandleSignal(signaling.EventAnswer, signaling.SignalPayload{
		Kind: signaling.LinkKindMedia,
		From: id,
		To:   id,
	})
	assert.NoError(t, err)
}

func TestHandleAnswerForUnknownPeer(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)

	err = m.HandleSignal(signaling.EventAnswer, signaling.SignalPayload{
		Kind: signaling.LinkKindMedia,
		From: "ghost",
		To:   id,
	})
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestHandleSignalUnknownEvent(t *testing.T) {
	m, _ := newTestManager(t)

	id, err := m.Open()
	require.NoError(t, err)

	err = m.HandleSignal("renegotiate", signaling.SignalPayload{From: "remote-1", To: id})
	assert.ErrorIs(t, err, ErrUnexpectedSignal)
}

func TestOfferAnswerBetweenManagers(t *testing.T) {
	recA := &sentRecorder{}
	recB := &sentRecorder{}
	a := NewManager(testConfig(), recA.send, Callbacks{})
	b := NewManager(testConfig(), recB.send, Callbacks{})
	t.Cleanup(a.CloseAll)
	t.Cleanup(b.CloseAll)

	idA, err := a.Open()
	require.NoError(t, err)
	idB, err := b.Open()
	require.NoError(t, err)

	require.NoError(t, a.ConnectPeer(idB))
	offers := recA.byType("offer")
	require.Len(t, offers, 1)

	// B answers the offer addressed to it.
	require.NoError(t, b.HandleSignal(signaling.EventOffer, offers[0]))
	answers := recB.byType("answer")
	require.Len(t, answers, 1)
	assert.Equal(t, idB, answers[0].From)
	assert.Equal(t, idA, answers[0].To)
	assert.Equal(t, signaling.LinkKindData, answers[0].Kind)

	// A accepts the answer addressed to it.
	require.NoError(t, a.HandleSignal(signaling.EventAnswer, answers[0]))
}

func TestSendToWithoutOpenChannel(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open()
	require.NoError(t, err)

	msg, err := NewMessage(DataTypeChat, ChatPayload{Text: "hi"})
	require.NoError(t, err)

	assert.ErrorIs(t, m.SendTo("ghost", msg), ErrUnknownPeer)

	require.NoError(t, m.ConnectPeer("remote-1"))
	assert.ErrorIs(t, m.SendTo("remote-1", msg), ErrChannelNotOpen)
}

func TestClosePeerReportsExistence(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open()
	require.NoError(t, err)

	assert.False(t, m.ClosePeer("ghost"))

	require.NoError(t, m.ConnectPeer("remote-1"))
	assert.True(t, m.ClosePeer("remote-1"))
	assert.False(t, m.ClosePeer("remote-1"))
}

func TestReplaceLocalStreamSwapsSenderTracks(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open()
	require.NoError(t, err)

	camera, err := media.NewLocalStream(media.Source{Label: "camera"})
	require.NoError(t, err)
	m.BindLocalStream(camera)
	require.NoError(t, m.CallPeer("remote-1"))

	share, err := media.NewLocalStream(media.Source{Label: "screen"})
	require.NoError(t, err)
	require.NoError(t, m.ReplaceLocalStream(share))

	m.mu.Lock()
	l := m.media["remote-1"]
	m.mu.Unlock()
	require.NotNil(t, l)

	for _, sender := range l.pc.GetSenders() {
		track := sender.Track()
		require.NotNil(t, track)
		assert.Equal(t, "screen", track.StreamID())
	}
}

func TestCloseAllIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Open()
	require.NoError(t, err)
	require.NoError(t, m.ConnectPeer("remote-1"))

	m.CloseAll()
	m.CloseAll()

	assert.ErrorIs(t, m.CallPeer("remote-2"), ErrManagerClosed)
}
