// Package peer manages the direct WebRTC links between meeting
// participants: one media link and one data link per remote peer,
// negotiated over the signaling relay.
package peer

import "github.com/vmihailenco/msgpack/v5"

// Data channel message types.
const (
	DataTypeChat  = "chat"
	DataTypeHello = "hello"
)

// Message represents all data channel messages.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// ChatPayload is a chat line sent directly peer to peer.
type ChatPayload struct {
	Sender    string `msgpack:"sender"`
	SenderID  string `msgpack:"senderId"`
	Text      string `msgpack:"text"`
	Timestamp int64  `msgpack:"timestamp"`
}

// HelloPayload identifies the sender when a data channel opens.
type HelloPayload struct {
	PeerID  string `msgpack:"peerId"`
	Name    string `msgpack:"name"`
	Version string `msgpack:"version"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}
