// Package server wires the HTTP surface: websocket upgrades, the REST
// snapshot API, the SSE monitor and health checks.
package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meetmesh/meetmesh/internal/registry"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

// Configure the websocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// In production you'd check r.Header.Get("Origin") against the
	// frontend's domain.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades requests to
// websocket connections and hands them to the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("failed to upgrade connection", "error", err)
			return
		}

		client := &signaling.Client{
			ID:    uuid.NewString(),
			Hub:   hub,
			Conn:  conn,
			Rooms: make(map[string]bool),
			Send:  make(chan *signaling.Message, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

// SetupRoutes configures all HTTP routes.
func SetupRoutes(hub *signaling.Hub, reg registry.Registry, monitor *Monitor) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ws", ServeWs(hub))

	meetingHandler := NewMeetingHandler(reg)
	mux.Handle("/meetings", meetingHandler)
	mux.Handle("/meetings/", meetingHandler)

	if monitor != nil {
		mux.HandleFunc("/events", monitor.ServeHTTP)
	}

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}
