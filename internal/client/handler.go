package client

import (
	"encoding/json"
	"log/slog"

	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/signaling"
)

// RelaySignal is an inbound signaling relay (offer, answer or ICE
// candidate) together with the server-stamped sender connection id.
type RelaySignal struct {
	Event      string
	SenderConn string
	Payload    signaling.SignalPayload
}

// Handler fans the raw message stream out into typed event channels.
type Handler struct {
	channel *Channel

	Roster             chan []models.Participant
	ChatHistory        chan []models.ChatMessage
	ParticipantJoined  chan *models.Participant
	ParticipantLeft    chan string
	ParticipantUpdated chan *models.Participant
	Chat               chan *models.ChatMessage
	Signals            chan *RelaySignal
	Errors             chan string
	Done               chan struct{}
}

// NewHandler creates a handler reading from the given channel.
func NewHandler(ch *Channel) *Handler {
	return &Handler{
		channel:            ch,
		Roster:             make(chan []models.Participant, 4),
		ChatHistory:        make(chan []models.ChatMessage, 4),
		ParticipantJoined:  make(chan *models.Participant, 32),
		ParticipantLeft:    make(chan string, 32),
		ParticipantUpdated: make(chan *models.Participant, 32),
		Chat:               make(chan *models.ChatMessage, 32),
		Signals:            make(chan *RelaySignal, 64),
		Errors:             make(chan string, 4),
		Done:               make(chan struct{}),
	}
}

// Start consumes inbound messages until the channel closes. Run it in
// its own goroutine.
func (h *Handler) Start() {
	defer close(h.Done)

	for msg := range h.channel.Incoming() {
		h.dispatch(msg)
	}
}

func (h *Handler) dispatch(msg *signaling.Message) {
	switch msg.Type {
	case signaling.EventMeetingParticipants:
		var roster []models.Participant
		if err := json.Unmarshal(msg.Payload, &roster); err != nil {
			slog.Warn("bad roster payload", "error", err)
			return
		}
		h.Roster <- roster

	case signaling.EventChatHistory:
		var history []models.ChatMessage
		if err := json.Unmarshal(msg.Payload, &history); err != nil {
			slog.Warn("bad chat history payload", "error", err)
			return
		}
		h.ChatHistory <- history

	case signaling.EventParticipantJoined:
		var p models.Participant
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			slog.Warn("bad participant payload", "error", err)
			return
		}
		h.ParticipantJoined <- &p

	case signaling.EventParticipantLeft:
		var payload signaling.LeavePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("bad leave payload", "error", err)
			return
		}
		h.ParticipantLeft <- payload.ParticipantID

	case signaling.EventParticipantUpdated:
		var p models.Participant
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			slog.Warn("bad participant payload", "error", err)
			return
		}
		h.ParticipantUpdated <- &p

	case signaling.EventChatMessage:
		var payload signaling.ChatPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("bad chat payload", "error", err)
			return
		}
		h.Chat <- &payload.Message

	case signaling.EventOffer, signaling.EventAnswer, signaling.EventICECandidate:
		var payload signaling.SignalPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("bad signal payload", "type", msg.Type, "error", err)
			return
		}
		h.Signals <- &RelaySignal{
			Event:      msg.Type,
			SenderConn: msg.SenderPeerID,
			Payload:    payload,
		}

	case signaling.EventError:
		var payload signaling.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("bad error payload", "error", err)
			return
		}
		h.Errors <- payload.Error

	default:
		slog.Debug("unhandled signaling event", "type", msg.Type)
	}
}
