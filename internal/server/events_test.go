package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

func TestMonitorStreamsRoomEvents(t *testing.T) {
	monitor := NewMonitor()
	t.Cleanup(monitor.Close)

	srv := httptest.NewServer(monitor)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/?stream=123456789")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Publish after the observer attached.
	go func() {
		time.Sleep(50 * time.Millisecond)
		monitor.Sink("123456789", signaling.EventParticipantJoined, models.Participant{ID: "p1", Name: "Alice"})
	}()

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var sawEvent, sawData bool
	deadline := time.After(5 * time.Second)
	for !(sawEvent && sawData) {
		select {
		case line := <-lines:
			if strings.HasPrefix(line, "event:") && strings.Contains(line, signaling.EventParticipantJoined) {
				sawEvent = true
			}
			if strings.HasPrefix(line, "data:") && strings.Contains(line, "Alice") {
				sawData = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for SSE event")
		}
	}
}

func TestMonitorSinkBeforeObservers(t *testing.T) {
	monitor := NewMonitor()
	t.Cleanup(monitor.Close)

	// No stream exists yet; the sink must create it rather than drop.
	monitor.Sink("123456789", signaling.EventChatMessage, models.ChatMessage{ID: "m1", Text: "hi"})
	assert.True(t, monitor.server.StreamExists("123456789"))
}
