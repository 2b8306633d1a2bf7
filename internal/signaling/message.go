package signaling

import (
	"encoding/json"

	"github.com/meetmesh/meetmesh/internal/models"
)

// Event names for all C2S (Client to Server) and S2C (Server to
// Client) websocket messages.
const (
	EventJoinMeeting       = "join-meeting"
	EventLeaveMeeting      = "leave-meeting"
	EventUpdateParticipant = "update-participant"
	EventChatMessage       = "chat-message"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICECandidate      = "ice-candidate"

	EventMeetingParticipants = "meeting-participants"
	EventChatHistory         = "chat-history"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventParticipantUpdated  = "participant-updated"
	EventError               = "error"
)

// Message is the envelope for every websocket frame, both directions.
type Message struct {
	Type      string          `json:"type"`
	MeetingID string          `json:"meetingId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// TargetPeerID is declared by relay senders. The coordinator does
	// not use it to narrow delivery; relays are room-wide and
	// receivers filter on the rendezvous ids inside the payload.
	TargetPeerID string `json:"targetPeerId,omitempty"`

	// SenderPeerID tags relayed messages with the sender's channel
	// connection id.
	SenderPeerID string `json:"senderPeerId,omitempty"`

	// client is the connection that sent the message. Used internally
	// by the Hub and not sent over JSON.
	client *Client `json:"-"`
}

// JoinPayload is carried by join-meeting.
type JoinPayload struct {
	Participant models.Participant `json:"participant"`
	Password    string             `json:"password,omitempty"`
}

// LeavePayload is carried by leave-meeting and participant-left.
type LeavePayload struct {
	ParticipantID string `json:"participantId"`
}

// UpdatePayload is carried by update-participant.
type UpdatePayload struct {
	ParticipantID string                   `json:"participantId"`
	Updates       models.ParticipantUpdate `json:"updates"`
}

// ChatPayload is carried by chat-message in both directions.
type ChatPayload struct {
	Message models.ChatMessage `json:"message"`
}

// ErrorPayload is carried by error events.
type ErrorPayload struct {
	Error string `json:"error"`
}

// SignalPayload is the relay payload for offer, answer and
// ice-candidate events. The coordinator treats it as opaque bytes;
// only peers parse it. Kind distinguishes the media link from the
// data link between the same pair of peers.
type SignalPayload struct {
	Kind         string `json:"kind"`
	Type         string `json:"type,omitempty"`
	SDP          string `json:"sdp,omitempty"`
	ICECandidate any    `json:"iceCandidate,omitempty"`

	// From and To are rendezvous ids. Relays arrive room-wide, so
	// receivers drop anything not addressed to them.
	From string `json:"from"`
	To   string `json:"to"`
}

// Link kinds used in SignalPayload.Kind.
const (
	LinkKindMedia = "media"
	LinkKindData  = "data"
)

// EncodePayload marshals a payload for the message envelope. Payload
// types are all plainly marshalable; a failure yields an empty object.
func EncodePayload(v any) json.RawMessage {
	return mustMarshal(v)
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
