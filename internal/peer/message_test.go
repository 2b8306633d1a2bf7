package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(DataTypeChat, ChatPayload{
		Sender:    "Alice",
		SenderID:  "p1",
		Text:      "psst",
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	assert.Equal(t, DataTypeChat, msg.Type)

	var got ChatPayload
	require.NoError(t, msg.DecodePayload(&got))
	assert.Equal(t, "Alice", got.Sender)
	assert.Equal(t, "psst", got.Text)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
}

func TestHelloMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(DataTypeHello, HelloPayload{
		PeerID:  "peer-1",
		Name:    "Alice",
		Version: "dev",
	})
	require.NoError(t, err)

	var got HelloPayload
	require.NoError(t, msg.DecodePayload(&got))
	assert.Equal(t, "peer-1", got.PeerID)
	assert.Equal(t, "Alice", got.Name)
}

func TestDecodeIntoWrongShape(t *testing.T) {
	msg, err := NewMessage(DataTypeChat, ChatPayload{Sender: "Alice"})
	require.NoError(t, err)

	// Decoding into a mismatched scalar fails loudly instead of
	// silently producing zero values.
	var n int
	assert.Error(t, msg.DecodePayload(&n))
}
