package server

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
)

// Monitor exposes room events as server-sent event streams, one stream
// per meeting, for read-only observers such as the dashboard. Media
// never flows here; this is roster and chat metadata only.
type Monitor struct {
	server *sse.Server
}

// NewMonitor creates an SSE monitor.
func NewMonitor() *Monitor {
	server := sse.New()
	server.AutoReplay = false
	return &Monitor{server: server}
}

// Sink is the hub event sink. It lazily creates a stream per meeting
// and publishes each room event on it.
func (m *Monitor) Sink(meetingID, event string, data any) {
	if !m.server.StreamExists(meetingID) {
		m.server.CreateStream(meetingID)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	m.server.Publish(meetingID, &sse.Event{
		Event: []byte(event),
		Data:  payload,
	})
}

// ServeHTTP serves GET /events?stream={meetingId}.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The sse server rejects unknown streams; make sure observers can
	// attach before the first event fires.
	if id := r.URL.Query().Get("stream"); id != "" && !m.server.StreamExists(id) {
		m.server.CreateStream(id)
	}
	m.server.ServeHTTP(w, r)
}

// Close shuts down all streams.
func (m *Monitor) Close() {
	m.server.Close()
}
