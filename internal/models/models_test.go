package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantUpdateApply(t *testing.T) {
	p := Participant{ID: "p1", Name: "Alice", IsVideoOn: true, IsAudioOn: true, PeerID: "peer-1"}

	off := false
	name := "Alice B"
	ParticipantUpdate{Name: &name, IsAudioOn: &off}.Apply(&p)

	assert.Equal(t, "Alice B", p.Name)
	assert.False(t, p.IsAudioOn)
	assert.True(t, p.IsVideoOn, "unset fields are untouched")
	assert.Equal(t, "peer-1", p.PeerID)
}

func TestParticipantConnIDNeverSerialized(t *testing.T) {
	p := Participant{ID: "p1", Name: "Alice", ConnID: "conn-secret"}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "conn-secret"))
}

func TestChatMessageWireField(t *testing.T) {
	msg := ChatMessage{ID: "m1", Sender: "Alice", Text: "hello", Timestamp: time.Now()}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// The chat body travels as "message" on the wire.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "hello", raw["message"])
	_, hasText := raw["text"]
	assert.False(t, hasText)
}
