package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/registry"
)

// EventSink receives a copy of every room-level event the hub emits.
// Used by the SSE monitor; nil disables it.
type EventSink func(meetingID, event string, data any)

// Hub is the session coordinator. It owns all connected clients and
// their room membership, and is the only writer of the registry.
//
// The single Run goroutine serializes every mutation and broadcast, so
// events from one channel are processed in arrival order and each
// event is handled to completion before the next is dequeued.
type Hub struct {
	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Broadcast is a channel for clients to submit inbound messages
	// to. The hub processes them one at a time.
	Broadcast chan *Message

	// rooms maps meeting ids to the set of connected clients that
	// joined them.
	rooms map[string]map[*Client]bool

	reg  registry.Registry
	sink EventSink
}

// NewHub creates a new Hub backed by the given registry.
func NewHub(reg registry.Registry) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message),
		rooms:      make(map[string]map[*Client]bool),
		reg:        reg,
	}
}

// SetEventSink installs an observer for room events. Must be called
// before Run.
func (h *Hub) SetEventSink(sink EventSink) {
	h.sink = sink
}

// Run starts the hub's main processing loop. This is the single
// goroutine that manages all connection and room state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			slog.Info("client registered", "conn", client.ID)

		case client := <-h.Unregister:
			h.handleDisconnect(client)

		case message := <-h.Broadcast:
			h.dispatch(message)
		}
	}
}

func (h *Hub) dispatch(msg *Message) {
	slog.Debug("event received", "type", msg.Type, "meeting", msg.MeetingID, "conn", msg.client.ID)

	switch msg.Type {
	case EventJoinMeeting:
		h.handleJoin(msg)
	case EventLeaveMeeting:
		h.handleLeave(msg)
	case EventUpdateParticipant:
		h.handleUpdate(msg)
	case EventChatMessage:
		h.handleChat(msg)
	case EventOffer, EventAnswer, EventICECandidate:
		h.handleRelay(msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "conn", msg.client.ID)
	}
}

// handleJoin adds the connection to the room's broadcast group and the
// participant to the registry. Duplicate joins for an already-present
// participant re-emit only the roster snapshot, never a fresh
// participant-joined broadcast.
func (h *Hub) handleJoin(msg *Message) {
	ctx := context.Background()
	client := msg.client

	var payload JoinPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("malformed join payload", "conn", client.ID, "error", err)
		return
	}

	meeting, err := h.reg.GetMeeting(ctx, msg.MeetingID)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		// First join to an unknown id creates the meeting.
		meeting, err = h.reg.EnsureMeeting(ctx, msg.MeetingID)
		if err != nil {
			slog.Error("ensure meeting failed", "meeting", msg.MeetingID, "error", err)
			return
		}
	case err != nil:
		slog.Error("get meeting failed", "meeting", msg.MeetingID, "error", err)
		return
	}

	if meeting.Password != "" && payload.Password != meeting.Password {
		slog.Info("join rejected: wrong password", "meeting", msg.MeetingID, "conn", client.ID)
		h.sendToClient(client, &Message{
			Type:    EventError,
			Payload: mustMarshal(ErrorPayload{Error: "wrong meeting password"}),
		})
		return
	}

	if h.rooms[msg.MeetingID] == nil {
		h.rooms[msg.MeetingID] = make(map[*Client]bool)
	}
	h.rooms[msg.MeetingID][client] = true
	client.Rooms[msg.MeetingID] = true

	p := payload.Participant
	p.ConnID = client.ID
	added, err := h.reg.AddParticipant(ctx, msg.MeetingID, p)
	if err != nil {
		slog.Error("add participant failed", "meeting", msg.MeetingID, "error", err)
		return
	}

	roster, _ := h.reg.ListParticipants(ctx, msg.MeetingID)
	h.sendToClient(client, &Message{
		Type:      EventMeetingParticipants,
		MeetingID: msg.MeetingID,
		Payload:   mustMarshal(roster),
	})

	history, _ := h.reg.ListChatMessages(ctx, msg.MeetingID)
	h.sendToClient(client, &Message{
		Type:      EventChatHistory,
		MeetingID: msg.MeetingID,
		Payload:   mustMarshal(history),
	})

	if added {
		var joined models.Participant
		for i := range roster {
			if roster[i].ID == p.ID {
				joined = roster[i]
				break
			}
		}
		h.broadcastToRoom(msg.MeetingID, &Message{
			Type:      EventParticipantJoined,
			MeetingID: msg.MeetingID,
			Payload:   mustMarshal(joined),
		}, client)
		h.emit(msg.MeetingID, EventParticipantJoined, joined)
		slog.Info("participant joined", "meeting", msg.MeetingID, "participant", p.ID)
	}
}

// handleLeave drops the connection from the room's broadcast group and
// the participant from the registry.
func (h *Hub) handleLeave(msg *Message) {
	client := msg.client

	var payload LeavePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("malformed leave payload", "conn", client.ID, "error", err)
		return
	}

	if clients, ok := h.rooms[msg.MeetingID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, msg.MeetingID)
		}
	}
	delete(client.Rooms, msg.MeetingID)

	h.reg.RemoveParticipant(context.Background(), msg.MeetingID, payload.ParticipantID)

	h.broadcastToRoom(msg.MeetingID, &Message{
		Type:      EventParticipantLeft,
		MeetingID: msg.MeetingID,
		Payload:   mustMarshal(payload),
	}, client)
	h.emit(msg.MeetingID, EventParticipantLeft, payload)
	slog.Info("participant left", "meeting", msg.MeetingID, "participant", payload.ParticipantID)
}

// handleUpdate merges partial fields into the participant and
// broadcasts the merged entry to the entire room, sender included.
func (h *Hub) handleUpdate(msg *Message) {
	var payload UpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("malformed update payload", "conn", msg.client.ID, "error", err)
		return
	}

	merged, err := h.reg.UpdateParticipant(context.Background(), msg.MeetingID, payload.ParticipantID, payload.Updates)
	if err != nil {
		// Updates to unknown rooms or participants are absorbed.
		return
	}

	h.broadcastToRoom(msg.MeetingID, &Message{
		Type:      EventParticipantUpdated,
		MeetingID: msg.MeetingID,
		Payload:   mustMarshal(merged),
	}, nil)
	h.emit(msg.MeetingID, EventParticipantUpdated, merged)
}

// handleChat appends the message to the meeting's history and
// broadcasts it to everyone except the sender, who already holds a
// local copy.
func (h *Hub) handleChat(msg *Message) {
	var payload ChatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("malformed chat payload", "conn", msg.client.ID, "error", err)
		return
	}

	if err := h.reg.AppendChatMessage(context.Background(), msg.MeetingID, payload.Message); err != nil {
		return
	}

	h.broadcastToRoom(msg.MeetingID, &Message{
		Type:      EventChatMessage,
		MeetingID: msg.MeetingID,
		Payload:   mustMarshal(payload),
	}, msg.client)
	h.emit(msg.MeetingID, EventChatMessage, payload.Message)
}

// handleRelay forwards offer/answer/ice-candidate payloads to the rest
// of the room, tagged with the sender's connection id. Delivery is
// room-wide: the declared target id is not used to narrow it, the
// rendezvous ids ride inside the opaque payload and receivers filter
// on them.
func (h *Hub) handleRelay(msg *Message) {
	h.broadcastToRoom(msg.MeetingID, &Message{
		Type:         msg.Type,
		MeetingID:    msg.MeetingID,
		Payload:      msg.Payload,
		SenderPeerID: msg.client.ID,
	}, msg.client)
}

// handleDisconnect undoes the presence of every participant bound to
// this connection, one room at a time.
func (h *Hub) handleDisconnect(client *Client) {
	ctx := context.Background()

	for meetingID := range client.Rooms {
		if clients, ok := h.rooms[meetingID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, meetingID)
			}
		}

		participantID, removed, err := h.reg.RemoveParticipantByConn(ctx, meetingID, client.ID)
		if err != nil || !removed {
			continue
		}

		payload := LeavePayload{ParticipantID: participantID}
		h.broadcastToRoom(meetingID, &Message{
			Type:      EventParticipantLeft,
			MeetingID: meetingID,
			Payload:   mustMarshal(payload),
		}, client)
		h.emit(meetingID, EventParticipantLeft, payload)
		slog.Info("participant disconnected", "meeting", meetingID, "participant", participantID)
	}

	h.closeClient(client)
	slog.Info("client unregistered", "conn", client.ID)
}

// broadcastToRoom fans msg out to every client in the room except the
// excluded one. Clients with a full send queue are dropped.
func (h *Hub) broadcastToRoom(meetingID string, msg *Message, except *Client) {
	clients, ok := h.rooms[meetingID]
	if !ok {
		return
	}
	for client := range clients {
		if client == except {
			continue
		}
		if client.closed {
			// Evicted in another room; its unregister has not landed yet.
			delete(clients, client)
			continue
		}
		select {
		case client.Send <- msg:
		default:
			// Slow consumer: close and forget it. Its read pump will
			// trigger the normal unregister path.
			h.closeClient(client)
			delete(clients, client)
		}
	}
}

// sendToClient queues a unicast reply without ever blocking the hub
// loop. Evicted connections are skipped; a connection whose queue is
// full is dropped like any other slow consumer.
func (h *Hub) sendToClient(client *Client, msg *Message) {
	if client.closed {
		return
	}
	select {
	case client.Send <- msg:
	default:
		h.closeClient(client)
	}
}

// closeClient closes the send channel exactly once. Only the hub
// goroutine calls this, so the flag needs no lock.
func (h *Hub) closeClient(client *Client) {
	if !client.closed {
		client.closed = true
		close(client.Send)
	}
}

func (h *Hub) emit(meetingID, event string, data any) {
	if h.sink != nil {
		h.sink(meetingID, event, data)
	}
}
