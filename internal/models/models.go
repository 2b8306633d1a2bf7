// Package models defines the core entities of the meeting coordinator.
package models

import "time"

// Meeting is a named, timestamped room identified by a 9-digit string.
// It is never deleted during normal operation; only the inactivity
// reaper removes it once the roster has drained.
type Meeting struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	HostID    string    `json:"hostId"`
	HostName  string    `json:"hostName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`

	// Password is an optional access password. Empty means the
	// meeting is open; non-empty means join requests must carry
	// the matching password.
	Password string `json:"password,omitempty"`
}

// Participant is a user's presence record within one meeting.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
	IsVideoOn bool   `json:"isVideoOn"`
	IsAudioOn bool   `json:"isAudioOn"`

	// PeerID is the rendezvous identifier used to address this
	// participant for direct media/data links. It is distinct from
	// the signaling connection id.
	PeerID string `json:"peerId"`

	// ConnID is the signaling channel connection this participant is
	// bound to. It is set by the coordinator when the participant
	// joins over the channel and is used to undo the participant's
	// presence on disconnect. Never sent to clients.
	ConnID string `json:"-"`

	JoinedAt time.Time `json:"joinedAt"`
}

// ParticipantUpdate is a partial participant used for shallow merges.
// Nil fields are left untouched.
type ParticipantUpdate struct {
	Name      *string `json:"name,omitempty"`
	IsVideoOn *bool   `json:"isVideoOn,omitempty"`
	IsAudioOn *bool   `json:"isAudioOn,omitempty"`
	PeerID    *string `json:"peerId,omitempty"`
}

// Apply merges the set fields of u into p.
func (u ParticipantUpdate) Apply(p *Participant) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.IsVideoOn != nil {
		p.IsVideoOn = *u.IsVideoOn
	}
	if u.IsAudioOn != nil {
		p.IsAudioOn = *u.IsAudioOn
	}
	if u.PeerID != nil {
		p.PeerID = *u.PeerID
	}
}

// ChatMessage is one entry in a meeting's chat history. Messages are
// retained for the lifetime of the meeting and replayed in full to
// late joiners.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	// Private targeting is declared in the data shape but relay is
	// room-wide; recipients self-filter.
	IsPrivate   bool   `json:"isPrivate,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}
