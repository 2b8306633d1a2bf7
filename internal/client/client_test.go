package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmesh/meetmesh/internal/signaling"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// echoServer upgrades and echoes every JSON message back.
func echoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg signaling.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := conn.WriteJSON(&msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChannelRoundTrip(t *testing.T) {
	ch := NewChannel(echoServer(t))
	require.NoError(t, ch.Connect())
	t.Cleanup(ch.Close)

	ch.SendMessage(&signaling.Message{
		Type:      signaling.EventJoinMeeting,
		MeetingID: "123456789",
	})

	select {
	case msg := <-ch.Incoming():
		require.NotNil(t, msg)
		assert.Equal(t, signaling.EventJoinMeeting, msg.Type)
		assert.Equal(t, "123456789", msg.MeetingID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestChannelCloseIsIdempotent(t *testing.T) {
	ch := NewChannel(echoServer(t))
	require.NoError(t, ch.Connect())

	ch.Close()
	ch.Close()

	// SendMessage after close must not block.
	done := make(chan struct{})
	go func() {
		ch.SendMessage(&signaling.Message{Type: signaling.EventChatMessage})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendMessage blocked after close")
	}
}

func TestChannelConnectBadURL(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws")
	assert.Error(t, ch.Connect())
}

func TestChannelReconnects(t *testing.T) {
	var drops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if drops.Add(1) == 1 {
			// First connection is dropped immediately to force a
			// reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			var msg signaling.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := conn.WriteJSON(&msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ch := NewChannel("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, ch.Connect())
	t.Cleanup(ch.Close)

	select {
	case <-ch.Reconnected():
	case <-time.After(10 * time.Second):
		t.Fatal("channel never reconnected")
	}

	ch.SendMessage(&signaling.Message{Type: signaling.EventChatMessage, MeetingID: "123456789"})
	select {
	case msg := <-ch.Incoming():
		assert.Equal(t, signaling.EventChatMessage, msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo after reconnect")
	}
}
